// Package engine is the realtime core: it matches events against the region
// catalog, allocates voices from a fixed pool, renders them block by block
// and publishes snapshots for other goroutines to inspect.
//
// Exactly one goroutine may call RenderBlock or Process. Send, Snapshot and
// the other accessors are safe from any goroutine.
package engine

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/cbegin/polysampler-go/internal/bus"
	"github.com/cbegin/polysampler-go/internal/controller"
	"github.com/cbegin/polysampler-go/internal/pool"
	"github.com/cbegin/polysampler-go/internal/queue"
	"github.com/cbegin/polysampler-go/internal/region"
	"github.com/cbegin/polysampler-go/internal/voice"
)

// Stats are the engine's diagnostic counters.
type Stats struct {
	Blocks    uint64
	Dropped   uint64 // note-ons with no voice available
	Rejected  uint64 // invalid events
	Overflow  uint64 // events lost to a full queue
	Underruns uint64 // voice blocks rendered silent for lack of sample data
	Steals    uint64
}

type counters struct {
	blocks, dropped, rejected, overflow, underruns, steals atomic.Uint64
}

func (c *counters) load() Stats {
	return Stats{
		Blocks:    c.blocks.Load(),
		Dropped:   c.dropped.Load(),
		Rejected:  c.rejected.Load(),
		Overflow:  c.overflow.Load(),
		Underruns: c.underruns.Load(),
		Steals:    c.steals.Load(),
	}
}

// Synth is the engine.
type Synth struct {
	params  Params
	catalog *region.Catalog
	ctrl    controller.State
	shared  voice.Shared
	pool    *pool.Pool
	events  *queue.MPSC[Event]
	snaps   *tripleBuffer
	stats   counters
	active  atomic.Int32

	mix     [][2]float32
	out     []float32
	gain    bus.Gain
	limiter *bus.Limiter
	post    atomic.Pointer[bus.Chain]

	// velocity of the last note-on per key, for release triggers
	noteVel  [128]uint8
	noteDown [128]bool
}

// New builds an engine for a built catalog. All render-time storage is
// allocated here.
func New(params Params, catalog *region.Catalog) (*Synth, error) {
	if catalog == nil {
		return nil, errors.New("engine: nil catalog")
	}
	maxTargets := 0
	for _, r := range catalog.Regions {
		if !r.Built() {
			return nil, errors.Errorf("engine: region %q has not been built", r.Name)
		}
		maxTargets = max(maxTargets, r.NumTargets())
	}
	params = params.normalized()
	s := &Synth{
		params:  params,
		catalog: catalog,
		pool:    pool.New(params.MaxPolyphony, maxTargets, params.BlockSize, params.Policy),
		events:  queue.NewMPSC[Event](params.QueueSize),
		snaps:   newTripleBuffer(params.MaxPolyphony),
		mix:     make([][2]float32, params.BlockSize),
		out:     make([]float32, params.BlockSize*2),
	}
	s.shared = voice.Shared{
		SampleRate:   float64(params.SampleRate),
		Controllers:  &s.ctrl,
		SilenceFloor: params.SilenceFloor,
	}
	s.gain.Set(params.MasterGain)
	if params.LimiterCeilingDB < 0 {
		s.limiter = bus.NewLimiter(params.SampleRate, float32(params.LimiterCeilingDB), 0.5, 80)
	}
	s.publish()
	return s, nil
}

func (s *Synth) Params() Params           { return s.params }
func (s *Synth) Catalog() *region.Catalog { return s.catalog }
func (s *Synth) SampleRate() int          { return s.params.SampleRate }
func (s *Synth) SetMasterGain(g float64)  { s.gain.Set(g) }
func (s *Synth) MasterGain() float64      { return s.gain.Get() }
func (s *Synth) Stats() Stats             { return s.stats.load() }
func (s *Synth) SetBus(chain *bus.Chain)  { s.post.Store(chain) }
func (s *Synth) QueueLen() int            { return s.events.Len() }

// ActiveCount is the number of sounding voices after the latest block. It
// does not copy a snapshot and may be polled from the audio callback.
func (s *Synth) ActiveCount() int { return int(s.active.Load()) }

// Send queues an event for the next block. It never blocks; it returns false
// when the queue is full and the event is lost.
func (s *Synth) Send(e Event) bool {
	if !s.events.Push(e) {
		s.stats.overflow.Add(1)
		return false
	}
	return true
}

// RenderBlock renders up to BlockSize frames and returns them interleaved.
// The returned slice is reused by the next call.
func (s *Synth) RenderBlock(frames int) []float32 {
	frames = min(max(frames, 0), s.params.BlockSize)

	s.pool.Reclaim()
	for {
		e, ok := s.events.Pop()
		if !ok {
			break
		}
		s.apply(e, frames)
	}

	mix := s.mix[:frames]
	clear(mix)
	for _, v := range s.pool.Voices() {
		if v.Render(mix, &s.shared) {
			s.stats.underruns.Add(1)
		}
	}
	s.pool.Fade(mix)

	out := s.out[:frames*2]
	g := float32(s.gain.Get())
	post := s.post.Load()
	for i, f := range mix {
		l, r := f[0]*g, f[1]*g
		if post != nil {
			l, r = post.Process(l, r)
		}
		if s.limiter != nil {
			l, r = s.limiter.Process(l, r)
		}
		out[2*i], out[2*i+1] = l, r
	}

	s.stats.blocks.Add(1)
	s.stats.steals.Store(s.pool.Steals())
	s.publish()
	return out
}

// Process fills an interleaved stereo buffer, rendering as many blocks as
// it takes.
func (s *Synth) Process(dst []float32) {
	for len(dst) >= 2 {
		frames := min(len(dst)/2, s.params.BlockSize)
		copy(dst, s.RenderBlock(frames))
		dst = dst[frames*2:]
	}
}

func (s *Synth) apply(e Event, frames int) {
	if err := e.Validate(); err != nil {
		s.stats.rejected.Add(1)
		return
	}
	delay := min(e.Delay, max(frames-1, 0))
	switch e.Kind {
	case NoteOn:
		s.noteVel[e.Key] = e.Velocity
		s.noteDown[e.Key] = true
		s.trigger(e.Key, e.Velocity, delay, region.TriggerAttack)
	case NoteOff:
		if !s.noteDown[e.Key] {
			return
		}
		s.noteDown[e.Key] = false
		s.pool.Release(e.Key, s.ctrl.SustainDown())
		s.trigger(e.Key, s.noteVel[e.Key], delay, region.TriggerRelease)
	case ControlChange:
		s.controlChange(e.CC, e.Value)
	case PitchBend:
		s.ctrl.SetPitchBend(e.Value)
	case ChannelAftertouch:
		s.ctrl.SetAftertouch(e.Value)
	case PolyAftertouch:
		s.ctrl.SetPolyAftertouch(e.Key, e.Value)
	case AllNotesOff:
		s.noteDown = [128]bool{}
		s.pool.ReleaseAll()
	case AllSoundOff:
		s.noteDown = [128]bool{}
		s.pool.KillAll()
	}
}

func (s *Synth) controlChange(cc uint8, v float64) {
	wasDown := s.ctrl.SustainDown()
	s.ctrl.SetCC(cc, v)
	switch cc {
	case controller.Sustain:
		if wasDown && !s.ctrl.SustainDown() {
			s.pool.ReleaseSustained()
		}
	case controller.AllNotesOff:
		s.noteDown = [128]bool{}
		s.pool.ReleaseAll()
	case controller.AllSoundOff:
		s.noteDown = [128]bool{}
		s.pool.KillAll()
	case controller.ResetAll:
		s.ctrl.Reset()
		s.pool.ReleaseSustained()
	}
}

// trigger starts a voice for every region of the given kind that matches,
// scanning the catalog in order.
func (s *Synth) trigger(key, velocity uint8, delay int, kind region.TriggerKind) {
	for _, r := range s.catalog.Regions {
		if r.Trigger.On != kind || !r.Matches(key, velocity, &s.ctrl) {
			continue
		}
		s.pool.Choke(r.Group)
		if !r.OverlapTriggers {
			if v := s.pool.Playing(r, key); v != nil {
				v.Release()
			}
		}
		if s.pool.Allocate(r, key, velocity, delay, &s.shared) == nil {
			s.stats.dropped.Add(1)
		}
	}
}

func (s *Synth) publish() {
	snap := s.snaps.back()
	snap.Block = s.stats.blocks.Load()
	snap.Counts = s.pool.Counts()
	snap.Voices = snap.Voices[:0]
	for _, v := range s.pool.Voices() {
		if v.State() == voice.Idle {
			continue
		}
		info := VoiceInfo{
			Slot:      v.ID(),
			Note:      v.Note(),
			Velocity:  v.Velocity(),
			State:     v.State(),
			Age:       v.Age(),
			Region:    -1,
			Level:     v.Level(),
			Sustained: v.Sustained(),
		}
		if r := v.Region(); r != nil {
			info.Region = r.ID
			info.RegionName = r.Name
			info.Sample = r.SampleName()
		}
		snap.Voices = append(snap.Voices, info)
	}
	snap.Stats = s.stats.load()
	s.active.Store(int32(snap.Counts.Active()))
	s.snaps.publish()
}

// Snapshot returns a copy of the state after the latest completed block.
func (s *Synth) Snapshot() Snapshot { return s.snaps.latest() }
