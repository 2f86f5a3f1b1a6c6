package engine

import (
	"github.com/cbegin/polysampler-go/internal/modkey"
	"github.com/cbegin/polysampler-go/internal/region"
	"github.com/cbegin/polysampler-go/internal/voice"
)

// Active voices are bound to a region and not yet offed; playing voices are
// the active ones that have not been released. A voice held by the sustain
// pedal still counts as playing.

func (s Snapshot) filter(keep func(VoiceInfo) bool) []VoiceInfo {
	var out []VoiceInfo
	for _, v := range s.Voices {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func isActive(v VoiceInfo) bool  { return v.State == voice.Playing || v.State == voice.Releasing }
func isPlaying(v VoiceInfo) bool { return v.State == voice.Playing }

func (s Snapshot) ActiveVoices() []VoiceInfo  { return s.filter(isActive) }
func (s Snapshot) PlayingVoices() []VoiceInfo { return s.filter(isPlaying) }
func (s Snapshot) NumActiveVoices() int       { return s.Counts.Active() }
func (s Snapshot) NumPlayingVoices() int      { return s.Counts.Playing }

func notes(vs []VoiceInfo) []uint8 {
	out := make([]uint8, len(vs))
	for i, v := range vs {
		out[i] = v.Note
	}
	return out
}

func velocities(vs []VoiceInfo) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v.Velocity) / 127
	}
	return out
}

func samples(vs []VoiceInfo) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Sample
	}
	return out
}

func (s Snapshot) PlayingNotes() []uint8        { return notes(s.PlayingVoices()) }
func (s Snapshot) ActiveNotes() []uint8         { return notes(s.ActiveVoices()) }
func (s Snapshot) PlayingVelocities() []float64 { return velocities(s.PlayingVoices()) }
func (s Snapshot) ActiveVelocities() []float64  { return velocities(s.ActiveVoices()) }
func (s Snapshot) PlayingSamples() []string     { return samples(s.PlayingVoices()) }
func (s Snapshot) ActiveSamples() []string      { return samples(s.ActiveVoices()) }

// The accessors below take a fresh snapshot each call. Use Snapshot directly
// when several values must agree with each other.

func (s *Synth) ActiveVoices() []VoiceInfo    { return s.Snapshot().ActiveVoices() }
func (s *Synth) PlayingVoices() []VoiceInfo   { return s.Snapshot().PlayingVoices() }
func (s *Synth) NumActiveVoices() int         { return s.Snapshot().NumActiveVoices() }
func (s *Synth) NumPlayingVoices() int        { return s.Snapshot().NumPlayingVoices() }
func (s *Synth) PlayingNotes() []uint8        { return s.Snapshot().PlayingNotes() }
func (s *Synth) ActiveNotes() []uint8         { return s.Snapshot().ActiveNotes() }
func (s *Synth) PlayingVelocities() []float64 { return s.Snapshot().PlayingVelocities() }
func (s *Synth) ActiveVelocities() []float64  { return s.Snapshot().ActiveVelocities() }
func (s *Synth) PlayingSamples() []string     { return s.Snapshot().PlayingSamples() }
func (s *Synth) ActiveSamples() []string      { return s.Snapshot().ActiveSamples() }

// RegionCCView returns the controller view of target for the region with
// the given ID. Regions are immutable once the engine runs, so this reads
// them directly.
func (s *Synth) RegionCCView(id int, target modkey.ModKey) (region.CCView, bool) {
	if id < 0 || id >= len(s.catalog.Regions) {
		return region.CCView{}, false
	}
	return s.catalog.Regions[id].CCView(target), true
}

// ModulationGraph renders every region's modulation edges as DOT.
func (s *Synth) ModulationGraph() string {
	return region.Graph(s.catalog.Regions)
}
