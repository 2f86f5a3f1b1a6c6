// Package sequencer plays a Score through an engine. It runs on the audio
// callback: cues due within a block are sent with their frame offset as the
// event delay, then the block is rendered.
package sequencer

import (
	"math"

	"github.com/cbegin/polysampler-go/internal/engine"
)

// Engine is the part of engine.Synth the sequencer drives.
type Engine interface {
	Send(e engine.Event) bool
	RenderBlock(frames int) []float32
	// ActiveCount returns the number of voices still sounding (playing or
	// releasing). Used to detect when playback has fully ended including
	// release tails.
	ActiveCount() int
	Params() engine.Params
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	LoopWholeScore    bool
	OnEvent           func(EventKind)
	ReleaseTailFrames int // extra frames to render after last voice ends (0 = use 0.5s default)
	MasterTranspose   int // semitones added to every key
}

type Sequencer struct {
	score      *Score
	engine     Engine
	sampleRate float64
	blockSize  int

	next    int   // index of the next cue to send
	frame   int64 // frames rendered since the start of the current pass
	endAt   int64 // frame at which the score is exhausted
	held    [128]bool
	stalled bool

	loopWholeScore     bool
	onEvent            func(EventKind)
	tailFrames         int
	tailLeft           int
	transpose          int
	commandExhausted   bool // score done; waiting for voices to finish
	playbackEndedFired bool
	loops              int
}

func New(score *Score, eng Engine) *Sequencer {
	return NewWithOptions(score, eng, Options{})
}

func NewWithOptions(score *Score, eng Engine, opts Options) *Sequencer {
	p := eng.Params()
	tailFrames := opts.ReleaseTailFrames
	if tailFrames <= 0 {
		tailFrames = p.SampleRate / 2
	}
	if score == nil {
		score = &Score{}
	}
	s := &Sequencer{
		score:          score,
		engine:         eng,
		sampleRate:     float64(p.SampleRate),
		blockSize:      p.BlockSize,
		loopWholeScore: opts.LoopWholeScore,
		onEvent:        opts.OnEvent,
		tailFrames:     tailFrames,
		tailLeft:       tailFrames,
		transpose:      opts.MasterTranspose,
	}
	s.endAt = s.toFrame(score.End())
	return s
}

func (s *Sequencer) toFrame(sec float64) int64 {
	return int64(math.Round(sec * s.sampleRate))
}

// Process renders interleaved stereo into dst.
func (s *Sequencer) Process(dst []float32) {
	for len(dst) >= 2 {
		frames := min(len(dst)/2, s.blockSize)
		if s.loopWholeScore && s.frame < s.endAt {
			// Stop the block at the loop point so the next pass starts on
			// a block boundary.
			frames = int(min(int64(frames), s.endAt-s.frame))
		}
		s.dispatch(frames)
		copy(dst, s.engine.RenderBlock(frames))
		dst = dst[frames*2:]
		s.frame += int64(frames)
		s.advance(frames)
	}
}

// dispatch sends every cue due before the end of the coming block. The block
// that closes a loop pass also takes the cues sitting exactly on the loop
// point, in its last frame. When the engine queue is full the rest wait for
// the next block.
func (s *Sequencer) dispatch(frames int) {
	end := s.frame + int64(frames)
	closing := s.loopWholeScore && end == s.endAt
	s.stalled = false
	for s.next < len(s.score.Cues) {
		c := s.score.Cues[s.next]
		at := s.toFrame(c.At)
		if at > end || (at == end && !closing) {
			return
		}
		e, ok := s.prepare(c.Event)
		if ok {
			e.Delay = int(min(max(at-s.frame, 0), int64(max(frames-1, 0))))
			if !s.engine.Send(e) {
				s.stalled = true
				return
			}
			s.track(e)
		}
		s.next++
	}
}

func (s *Sequencer) prepare(e engine.Event) (engine.Event, bool) {
	if s.transpose == 0 {
		return e, true
	}
	switch e.Kind {
	case engine.NoteOn, engine.NoteOff, engine.PolyAftertouch:
		k := int(e.Key) + s.transpose
		if k < 0 || k > 127 {
			return e, false
		}
		e.Key = uint8(k)
	}
	return e, true
}

func (s *Sequencer) track(e engine.Event) {
	switch e.Kind {
	case engine.NoteOn:
		s.held[e.Key] = true
	case engine.NoteOff:
		s.held[e.Key] = false
	case engine.AllNotesOff, engine.AllSoundOff:
		s.held = [128]bool{}
	}
}

func (s *Sequencer) exhausted() bool {
	return s.next >= len(s.score.Cues) && s.frame >= s.endAt
}

func (s *Sequencer) advance(frames int) {
	if !s.exhausted() || s.stalled {
		return
	}
	if s.loopWholeScore && s.endAt > 0 {
		s.releaseHeld()
		s.rewind()
		s.loops++
		if s.onEvent != nil {
			s.onEvent(EventLoopCompleted)
		}
		return
	}
	s.commandExhausted = true
	if s.playbackEndedFired || s.engine.ActiveCount() > 0 {
		return
	}
	s.tailLeft -= frames
	if s.tailLeft <= 0 {
		s.playbackEndedFired = true
		if s.onEvent != nil {
			s.onEvent(EventPlaybackEnded)
		}
	}
}

// releaseHeld ends notes the score left hanging so they do not pile up
// across loop passes.
func (s *Sequencer) releaseHeld() {
	for k, on := range s.held {
		if on && s.engine.Send(engine.NoteOffEvent(uint8(k))) {
			s.held[k] = false
		}
	}
}

func (s *Sequencer) rewind() {
	s.next = 0
	s.frame = 0
}

// Reset rewinds to the start of the score and clears end-of-playback state.
// Voices already sounding are left alone.
func (s *Sequencer) Reset() {
	s.releaseHeld()
	s.rewind()
	s.commandExhausted = false
	s.playbackEndedFired = false
	s.tailLeft = s.tailFrames
}

// Ended reports whether the score has finished and every voice has decayed,
// plus the release tail.
func (s *Sequencer) Ended() bool { return s.playbackEndedFired }

// Exhausted reports whether every cue has been sent.
func (s *Sequencer) Exhausted() bool { return s.commandExhausted }

// Position is the playback time in seconds within the current pass.
func (s *Sequencer) Position() float64 { return float64(s.frame) / s.sampleRate }

// Loops is the number of completed loop passes.
func (s *Sequencer) Loops() int { return s.loops }

func (s *Sequencer) Score() *Score { return s.score }
