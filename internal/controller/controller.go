// Package controller holds the engine-wide performance controller state: CC
// values, pitch bend and aftertouch. One State is created with the engine
// and is written only by the render thread while it applies queued events.
package controller

const (
	NumCC = 128

	Sustain     = 64
	Sostenuto   = 66
	AllSoundOff = 120
	ResetAll    = 121
	AllNotesOff = 123
)

// State stores normalised controller values. CC values are in [0,1], pitch
// bend in [-1,1].
type State struct {
	cc        [NumCC]float64
	set       [NumCC]bool
	poly      [128]float64
	aftertch  float64
	pitchBend float64
}

// SetCC records a normalised value for controller n.
func (s *State) SetCC(n uint8, v float64) {
	if int(n) >= NumCC {
		return
	}
	s.cc[n] = clamp01(v)
	s.set[n] = true
}

// CC returns the value of controller n and whether any event ever set it.
func (s *State) CC(n uint8) (float64, bool) {
	if int(n) >= NumCC {
		return 0, false
	}
	return s.cc[n], s.set[n]
}

// CCOr returns controller n, or def when it was never set.
func (s *State) CCOr(n uint8, def float64) float64 {
	if v, ok := s.CC(n); ok {
		return v
	}
	return def
}

func (s *State) SetPitchBend(v float64) {
	s.pitchBend = min(max(v, -1), 1)
}

func (s *State) PitchBend() float64 { return s.pitchBend }

func (s *State) SetAftertouch(v float64) { s.aftertch = clamp01(v) }
func (s *State) Aftertouch() float64     { return s.aftertch }

func (s *State) SetPolyAftertouch(key uint8, v float64) {
	if key < 128 {
		s.poly[key] = clamp01(v)
	}
}

func (s *State) PolyAftertouch(key uint8) float64 {
	if key < 128 {
		return s.poly[key]
	}
	return 0
}

// SustainDown reports the sustain pedal position (CC64 at or above half).
func (s *State) SustainDown() bool { return s.cc[Sustain] >= 0.5 }

// SostenutoDown reports the sostenuto pedal position (CC66).
func (s *State) SostenutoDown() bool { return s.cc[Sostenuto] >= 0.5 }

// Reset returns every controller to its startup value.
func (s *State) Reset() { *s = State{} }

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
