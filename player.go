// Package polysampler is a polyphonic sample player. Load an instrument,
// then play notes live or play a score or MIDI file through the sound card.
package polysampler

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	intaudio "github.com/cbegin/polysampler-go/internal/audio"
	intcat "github.com/cbegin/polysampler-go/internal/catalog"
	"github.com/cbegin/polysampler-go/internal/debug"
	"github.com/cbegin/polysampler-go/internal/engine"
	"github.com/cbegin/polysampler-go/internal/midiin"
	"github.com/cbegin/polysampler-go/internal/region"
	intseq "github.com/cbegin/polysampler-go/internal/sequencer"
)

// PlaybackEvent is sent on the Watch channel.
type PlaybackEvent struct {
	Kind int // EventLoopCompleted or EventPlaybackEnded
	Loop int // completed loops so far
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

// Audio backends.
const (
	BackendEbiten = intaudio.BackendEbiten
	BackendOto    = intaudio.BackendOto
	BackendNull   = intaudio.BackendNull
)

// ErrNoInstrument is returned when playing before Load.
var ErrNoInstrument = errors.New("no instrument loaded")

type PlayerOption func(*playerConfig)

type playerConfig struct {
	params       engine.Params
	backend      string
	loopPlayback bool
	sampleTap    func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{params: engine.DefaultParams(), backend: BackendEbiten}
}

// WithParams replaces the engine parameters. The sample rate passed to
// NewPlayer still wins.
func WithParams(p engine.Params) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.params = p
	}
}

func WithPolyphony(voices int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.params.MaxPolyphony = voices
	}
}

func WithBlockSize(frames int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.params.BlockSize = frames
	}
}

func WithBackend(backend string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = backend
	}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

type Player struct {
	mu           sync.Mutex
	sampleRate   int
	params       engine.Params
	backend      string
	catalog      *region.Catalog
	synth        atomic.Pointer[engine.Synth]
	audio        intaudio.Output
	volume       float64
	transpose    int
	channel      int
	loopPlayback bool
	sampleTap    func([]float32)
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex

	// The audio thread closes done when a score ends, so it has its own
	// lock and never waits on mu.
	doneMu sync.Mutex
	done   chan struct{}
	finish func()
}

// source feeds the audio backend: the sequencer when a score is playing,
// the bare engine otherwise.
type source struct {
	synth     *engine.Synth
	seq       *intseq.Sequencer
	finished  atomic.Bool
	sampleTap func([]float32)
}

func (s *source) Process(dst []float32) {
	if s.seq != nil {
		s.seq.Process(dst)
	} else {
		s.synth.Process(dst)
	}
	if s.sampleTap != nil {
		s.sampleTap(dst)
	}
}

func (s *source) Finished() bool {
	return s.finished.Load()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.params.SampleRate = sampleRate
	return &Player{
		sampleRate:   sampleRate,
		params:       cfg.params,
		backend:      cfg.backend,
		volume:       1,
		channel:      midiin.AllChannels,
		loopPlayback: cfg.loopPlayback,
		sampleTap:    cfg.sampleTap,
	}, nil
}

// Load installs a built catalog and starts a live engine on it. Any playback
// in progress is stopped.
func (p *Player) Load(cat *region.Catalog) error {
	if cat == nil {
		return errors.New("nil catalog")
	}
	p.mu.Lock()
	p.catalog = cat
	p.mu.Unlock()
	_ = p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	synth, err := p.newSynth()
	if err != nil {
		return err
	}
	return p.start(&source{synth: synth, sampleTap: p.sampleTap})
}

// LoadFile reads an instrument description and loads it. Samples finish
// decoding before LoadFile returns.
func (p *Player) LoadFile(path string) (*intcat.Instrument, error) {
	in, err := intcat.Load(path, intcat.Options{})
	if err != nil {
		return nil, err
	}
	if err := p.Load(in.Catalog); err != nil {
		return nil, err
	}
	return in, nil
}

func (p *Player) newSynth() (*engine.Synth, error) {
	if p.catalog == nil {
		return nil, ErrNoInstrument
	}
	synth, err := engine.New(p.params, p.catalog)
	if err != nil {
		return nil, err
	}
	synth.SetMasterGain(synth.Params().MasterGain * p.volume)
	p.synth.Store(synth)
	return synth, nil
}

// start swaps in a new backend stream for src. Callers hold p.mu.
func (p *Player) start(src *source) error {
	backend, err := intaudio.Open(p.backend, p.sampleRate, src)
	if err != nil {
		return err
	}
	if p.audio != nil {
		_ = p.audio.Stop()
	}
	p.audio = backend
	p.audio.Play()
	debug.Log("player", "started %s backend at %d Hz", p.backend, p.sampleRate)
	return nil
}

// PlayScore plays score from the start on a fresh engine, so nothing from
// the previous score is still sounding.
func (p *Player) PlayScore(score *intseq.Score) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	synth, err := p.newSynth()
	if err != nil {
		return err
	}

	// Signal any existing Wait() that the previous playback was replaced
	finish := p.newPlayback()

	src := &source{synth: synth, sampleTap: p.sampleTap}
	var seq *intseq.Sequencer
	onEvent := func(kind intseq.EventKind) {
		switch kind {
		case intseq.EventLoopCompleted:
			p.sendEvent(PlaybackEvent{Kind: EventLoopCompleted, Loop: seq.Loops()})
		case intseq.EventPlaybackEnded:
			src.finished.Store(true)
			p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Loop: seq.Loops()})
			finish()
		}
	}
	seq = intseq.NewWithOptions(score, synth, intseq.Options{
		LoopWholeScore:  p.loopPlayback,
		OnEvent:         onEvent,
		MasterTranspose: p.transpose,
	})
	src.seq = seq
	return p.start(src)
}

// PlaySMF plays a Standard MIDI File, keeping only the channel chosen with
// SetChannel.
func (p *Player) PlaySMF(path string) error {
	p.mu.Lock()
	f := midiin.Filter{Channel: p.channel}
	p.mu.Unlock()
	score, err := midiin.ReadSMFFiltered(path, f)
	if err != nil {
		return err
	}
	return p.PlayScore(score)
}

// Send queues a live event on the current engine. It reports false when no
// instrument is loaded or the event queue is full.
func (p *Player) Send(e engine.Event) bool {
	synth := p.synth.Load()
	if synth == nil {
		return false
	}
	return synth.Send(e)
}

func (p *Player) NoteOn(key, velocity uint8) bool { return p.Send(engine.NoteOnEvent(key, velocity)) }
func (p *Player) NoteOff(key uint8) bool          { return p.Send(engine.NoteOffEvent(key)) }
func (p *Player) CC(cc uint8, value float64) bool { return p.Send(engine.CCEvent(cc, value)) }
func (p *Player) PitchBend(value float64) bool    { return p.Send(engine.PitchBendEvent(value)) }

// ListenMIDI forwards the named MIDI input to the engine until stop is
// called. A gomidi driver must be registered, usually by a blank import in
// the main package.
func (p *Player) ListenMIDI(port string) (stop func(), err error) {
	in, err := midiin.FindInput(port)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	f := midiin.Filter{Channel: p.channel, Transpose: p.transpose}
	p.mu.Unlock()
	return midiin.Listen(in, f, p.Send)
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

// newPlayback ends the previous playback's Wait and returns the function
// that ends this one. The returned function is safe to call more than once.
func (p *Player) newPlayback() func() {
	p.endPlayback()
	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }
	p.doneMu.Lock()
	p.done, p.finish = done, finish
	p.doneMu.Unlock()
	return finish
}

func (p *Player) endPlayback() {
	p.doneMu.Lock()
	finish := p.finish
	p.done, p.finish = nil, nil
	p.doneMu.Unlock()
	if finish != nil {
		finish()
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	p.endPlayback()
	return err
}

// Wait blocks until the current playback ends. When loop playback is enabled,
// Wait blocks indefinitely (use Watch for loop-counting instead).
// Wait returns immediately if no score is playing or if it was stopped.
func (p *Player) Wait() {
	p.doneMu.Lock()
	done := p.done
	p.doneMu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. Events are sent when:
//   - EventLoopCompleted: a whole-score loop iteration finished (when looping)
//   - EventPlaybackEnded: playback finished (when not looping) or Stop was called
//
// The channel is buffered (cap 8); receive in a goroutine to avoid blocking the sequencer.
// Only the most recent Watch() channel receives events; call Watch before PlayScore.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if synth := p.synth.Load(); synth != nil {
		synth.SetMasterGain(synth.Params().MasterGain * volume)
	}
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetTranspose sets the shift in semitones applied to scores and MIDI input.
// Takes effect on the next PlayScore, PlaySMF or ListenMIDI call.
func (p *Player) SetTranspose(semitones int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transpose = semitones
}

func (p *Player) Transpose() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transpose
}

// SetChannel restricts MIDI input and files to one zero-based channel;
// midiin.AllChannels (-1) accepts every channel.
func (p *Player) SetChannel(ch int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = ch
}

// Synth returns the current engine, or nil before Load.
func (p *Player) Synth() *engine.Synth { return p.synth.Load() }

// Snapshot returns the engine state after its latest block.
func (p *Player) Snapshot() engine.Snapshot {
	if synth := p.synth.Load(); synth != nil {
		return synth.Snapshot()
	}
	return engine.Snapshot{}
}

func (p *Player) Stats() engine.Stats {
	if synth := p.synth.Load(); synth != nil {
		return synth.Stats()
	}
	return engine.Stats{}
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
