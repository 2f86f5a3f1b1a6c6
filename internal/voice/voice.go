// Package voice implements the per-note rendering instance. A Voice is bound
// to one region while it sounds, owns its envelopes, LFOs and sample cursor,
// and resolves the region's modulation connections once per block. Voices
// live in a preallocated pool and are only touched by the render thread.
package voice

import (
	"math"

	"github.com/cbegin/polysampler-go/internal/controller"
	"github.com/cbegin/polysampler-go/internal/envelope"
	"github.com/cbegin/polysampler-go/internal/lfo"
	"github.com/cbegin/polysampler-go/internal/modkey"
	"github.com/cbegin/polysampler-go/internal/region"
	"github.com/cbegin/polysampler-go/internal/stream"
)

const twoPi = math.Pi * 2

type State int

const (
	Idle State = iota
	Playing
	Releasing
	Off
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Releasing:
		return "releasing"
	case Off:
		return "off"
	default:
		return "idle"
	}
}

// Shared is the engine state a voice reads while it resolves and renders.
type Shared struct {
	SampleRate   float64
	Controllers  *controller.State
	SilenceFloor float64
}

// slots caches the resolution-table position of every parameter the DSP
// chain reads, -1 when the region does not drive it.
type slots struct {
	amplitude int
	volume    int
	pan       int
	pitch     int
	cutoff    [region.MaxFilters]int
	resonance [region.MaxFilters]int
	lfoFreq   [region.MaxLFOs]int
	lfoDepth  [region.MaxLFOs]int
}

type filterState struct {
	lp1, lp2 [2]float64
}

// Voice is one slot of the pool.
type Voice struct {
	id       int
	region   *region.Region
	note     uint8
	velocity uint8
	state    State
	age      uint64

	ampEG envelope.State
	egs   [region.MaxEnvelopes]envelope.State
	lfos  [region.MaxLFOs]lfo.LFO
	// LFO depth as resolved by the previous block; read by Resolve so that a
	// resolution never depends on its own partial results.
	lfoDepth [region.MaxLFOs]float64

	resolved []float64
	slot     slots
	cursor   stream.Cursor
	scratch  [][2]float32
	filters  [region.MaxFilters]filterState
	gain     [2]float64 // gain reached at the end of the last block
	last     [2]float32 // final frame added to the mix by the last block
	amp      float64

	delay     int
	sustained bool
	underrun  bool
	released  bool // a release was requested, possibly deferred
}

// New preallocates a voice able to resolve maxTargets parameters and render
// blocks of up to maxFrames frames.
func New(id, maxTargets, maxFrames int) *Voice {
	return &Voice{
		id:       id,
		resolved: make([]float64, 0, maxTargets),
		scratch:  make([][2]float32, maxFrames),
	}
}

// Start binds the voice to r and rewinds every generator. delay is the
// number of frames into the next block at which the note begins. Start
// never allocates.
func (v *Voice) Start(r *region.Region, note, velocity uint8, age uint64, delay int, sh *Shared) {
	v.region = r
	v.note = note
	v.velocity = velocity
	v.state = Playing
	v.age = age
	v.delay = max(delay, 0)
	v.sustained = false
	v.underrun = false
	v.released = false
	v.gain = [2]float64{}
	v.last = [2]float32{}
	v.amp = 0
	v.filters = [region.MaxFilters]filterState{}

	v.ampEG.Start(r.AmpEG)
	for i := range v.egs {
		v.egs[i].Reset()
		if i < len(r.Envelopes) {
			v.egs[i].Start(r.Envelopes[i])
		}
	}
	for i := range v.lfos {
		v.lfos[i].Reset()
		if i < len(r.LFOs) {
			v.lfos[i].Start(r.LFOs[i])
		}
	}
	v.cursor.Reset(r.Sample, r.SampleOffset)

	n := min(r.NumTargets(), cap(v.resolved))
	v.resolved = v.resolved[:n]
	targets := r.Targets()
	for i := range v.resolved {
		v.resolved[i] = targets[i].Static
	}
	v.bindSlots()
	v.captureLFOMods()
	v.Resolve(sh)
}

func (v *Voice) bindSlots() {
	find := func(k modkey.ModKey) int {
		if i := v.region.Slot(k); i < len(v.resolved) {
			return i
		}
		return -1
	}
	v.slot.amplitude = find(modkey.Target(modkey.Amplitude))
	v.slot.volume = find(modkey.Target(modkey.Volume))
	v.slot.pan = find(modkey.Target(modkey.Pan))
	v.slot.pitch = find(modkey.Target(modkey.Pitch))
	for i := range v.slot.cutoff {
		v.slot.cutoff[i] = find(modkey.TargetN(modkey.FilterCutoff, uint8(i)))
		v.slot.resonance[i] = find(modkey.TargetN(modkey.FilterResonance, uint8(i)))
	}
	for i := range v.slot.lfoFreq {
		v.slot.lfoFreq[i] = find(modkey.TargetN(modkey.LFOFrequency, uint8(i)))
		v.slot.lfoDepth[i] = find(modkey.TargetN(modkey.LFODepth, uint8(i)))
	}
}

func (v *Voice) captureLFOMods() {
	for i := range v.lfoDepth {
		v.lfoDepth[i] = v.value(v.slot.lfoDepth[i], modkey.ParamDefault(modkey.LFODepth))
	}
}

// Release moves a playing voice to its release phase. Other states are left
// alone.
func (v *Voice) Release() {
	if v.state != Playing {
		return
	}
	v.state = Releasing
	v.released = true
	v.sustained = false
	v.ampEG.Release()
	for i := range v.egs {
		v.egs[i].Release()
	}
}

// Sustain marks a playing voice as held by the sustain pedal. The note-off
// has been seen; Release will be called when the pedal lifts.
func (v *Voice) Sustain() {
	if v.state == Playing {
		v.sustained = true
	}
}

// Kill silences the voice immediately. Used for stealing and choke groups.
func (v *Voice) Kill() {
	if v.state == Idle {
		return
	}
	v.state = Off
	v.amp = 0
}

// Reclaim returns an Off voice to Idle. The pool calls it only between
// blocks.
func (v *Voice) Reclaim() {
	if v.state != Off {
		return
	}
	v.state = Idle
	v.region = nil
	v.cursor.Release()
	v.resolved = v.resolved[:0]
	v.sustained = false
	v.underrun = false
}

// Resolve recomputes every parameter the region drives from the current
// generator outputs and controller state. It does not advance anything, so
// calling it twice yields the same values.
func (v *Voice) Resolve(sh *Shared) {
	if v.region == nil {
		return
	}
	targets := v.region.Targets()
	for i := range v.resolved {
		t := &targets[i]
		var sum float64
		for j := range t.Connections {
			c := &t.Connections[j]
			sum = c.Accumulate(sum, v.source(c.Source, sh))
		}
		v.resolved[i] = t.Range.Clamp(t.Static + sum)
	}
}

func (v *Voice) source(k modkey.ModKey, sh *Shared) float64 {
	switch k.ID {
	case modkey.Controller:
		return sh.Controllers.CCOr(k.CC, v.region.CCDefault(k.CC))
	case modkey.Envelope:
		return v.egs[k.N%region.MaxEnvelopes].Value()
	case modkey.AmpEnvelope:
		return v.ampEG.Value()
	case modkey.LFO:
		n := k.N % region.MaxLFOs
		return v.lfos[n].Value() * v.lfoDepth[n]
	case modkey.Velocity:
		return float64(v.velocity) / 127
	case modkey.Keytrack:
		return float64(v.note) / 127
	case modkey.ChannelAftertouch:
		return sh.Controllers.Aftertouch()
	case modkey.PolyAftertouch:
		return sh.Controllers.PolyAftertouch(v.note)
	case modkey.PitchBend:
		return sh.Controllers.PitchBend()
	}
	return 0
}

func (v *Voice) value(slot int, def float64) float64 {
	if slot < 0 {
		return def
	}
	return v.resolved[slot]
}

// Render advances the voice by len(out) frames and adds its output to out.
// It reports whether the sample stream underran during the block. Voices
// that finish naturally are moved to Off afterwards.
func (v *Voice) Render(out [][2]float32, sh *Shared) (underrun bool) {
	if v.state != Playing && v.state != Releasing {
		return false
	}
	start := 0
	if v.delay > 0 {
		if v.delay >= len(out) {
			v.delay -= len(out)
			return false
		}
		start = v.delay
		v.delay = 0
	}
	out = out[start:]
	frames := min(len(out), len(v.scratch))
	out = out[:frames]
	sr := sh.SampleRate

	v.amp = v.ampEG.Advance(frames, sr)
	for i := range v.region.Envelopes {
		v.egs[i].Advance(frames, sr)
	}
	for i := range v.region.LFOs {
		v.lfos[i].AdvanceBlock(frames, sr, v.value(v.slot.lfoFreq[i], 0))
	}
	v.captureLFOMods()
	v.Resolve(sh)

	buf := v.scratch[:frames]
	_, v.underrun = v.cursor.Read(buf, v.pitchRatio(sr))
	if !v.underrun {
		v.filter(buf, sr)
		v.mix(out, buf)
	} else {
		v.gain = [2]float64{}
		v.last = [2]float32{}
	}

	switch {
	case v.ampEG.Done():
		v.state = Off
	case v.cursor.Exhausted() && !v.underrun:
		v.state = Off
	case v.ampEG.Stage() >= envelope.StageSustain && v.amp <= sh.SilenceFloor:
		v.state = Off
	}
	return v.underrun
}

func (v *Voice) pitchRatio(sampleRate float64) float64 {
	r := v.region
	cents := v.value(v.slot.pitch, 0) + r.PitchKeytrack*(float64(v.note)-float64(r.PitchKeycenter))
	ratio := math.Exp2(cents / 1200)
	if r.Sample != nil && r.Sample.SampleRate > 0 && sampleRate > 0 {
		ratio *= r.Sample.SampleRate / sampleRate
	}
	return ratio
}

// filter runs the region's lowpass stages in place. Each stage is two
// cascaded one-pole sections; resonance adds back the band between them.
func (v *Voice) filter(buf [][2]float32, sampleRate float64) {
	for f := 0; f < v.region.Filters; f++ {
		cutoff := v.value(v.slot.cutoff[f], modkey.ParamDefault(modkey.FilterCutoff))
		if cutoff >= sampleRate/2 {
			continue
		}
		cutoff = max(cutoff, 10)
		rc := 1.0 / (twoPi * cutoff)
		dt := 1.0 / sampleRate
		alpha := dt / (rc + dt)
		emph := v.value(v.slot.resonance[f], 0) / 20
		st := &v.filters[f]
		for i := range buf {
			for ch := 0; ch < 2; ch++ {
				x := float64(buf[i][ch])
				st.lp1[ch] += alpha * (x - st.lp1[ch])
				st.lp2[ch] += alpha * (st.lp1[ch] - st.lp2[ch])
				buf[i][ch] = float32(st.lp1[ch] + emph*(st.lp1[ch]-st.lp2[ch]))
			}
		}
	}
}

// mix applies amplitude and constant-power pan, ramping from the previous
// block's gain to avoid zipper noise, and adds into out.
func (v *Voice) mix(out, buf [][2]float32) {
	r := v.region
	vel := float64(v.velocity) / 127
	level := v.amp * (1 - r.AmpVelTrack + r.AmpVelTrack*vel)
	level *= v.value(v.slot.amplitude, 1)
	level *= math.Pow(10, v.value(v.slot.volume, 0)/20)

	angle := (v.value(v.slot.pan, 0) + 1) * math.Pi / 4
	target := [2]float64{level * math.Cos(angle), level * math.Sin(angle)}

	n := float64(len(buf))
	stepL := (target[0] - v.gain[0]) / n
	stepR := (target[1] - v.gain[1]) / n
	gl, gr := v.gain[0], v.gain[1]
	for i := range buf {
		gl += stepL
		gr += stepR
		v.last = [2]float32{float32(float64(buf[i][0]) * gl), float32(float64(buf[i][1]) * gr)}
		out[i][0] += v.last[0]
		out[i][1] += v.last[1]
	}
	v.gain = target
}

func (v *Voice) ID() int                { return v.id }
func (v *Voice) Region() *region.Region { return v.region }
func (v *Voice) Note() uint8            { return v.note }
func (v *Voice) Velocity() uint8        { return v.velocity }
func (v *Voice) State() State           { return v.state }
func (v *Voice) Age() uint64            { return v.age }
func (v *Voice) Sustained() bool        { return v.sustained }

// Last is the final frame the voice added to the mix. It is zero for a
// voice that has not sounded since Start.
func (v *Voice) Last() [2]float32 { return v.last }
func (v *Voice) Underrun() bool         { return v.underrun }

// Released reports whether a note-off reached this voice.
func (v *Voice) Released() bool { return v.released }

// Level is the amplitude envelope output after the last block.
func (v *Voice) Level() float64 { return v.amp }

// Active reports a voice that is bound to a region and not yet offed.
func (v *Voice) Active() bool { return v.state == Playing || v.state == Releasing }

// Resolved returns the resolved parameter values in slot order. The slice is
// owned by the voice.
func (v *Voice) Resolved() []float64 { return v.resolved }

// Param returns the resolved value of k, or its default when the region
// does not drive it.
func (v *Voice) Param(k modkey.ModKey) float64 {
	if v.region != nil {
		if i := v.region.Slot(k); i >= 0 && i < len(v.resolved) {
			return v.resolved[i]
		}
	}
	return modkey.ParamDefault(k.ID)
}

// Envelope exposes the per-voice generator state for inspection.
func (v *Voice) Envelope(n int) *envelope.State { return &v.egs[n] }
func (v *Voice) AmpEnvelope() *envelope.State   { return &v.ampEG }
func (v *Voice) LFO(n int) *lfo.LFO             { return &v.lfos[n] }
