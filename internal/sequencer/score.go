package sequencer

import (
	"slices"

	"github.com/cbegin/polysampler-go/internal/engine"
)

// Cue is an event scheduled at an absolute time in seconds.
type Cue struct {
	At    float64
	Event engine.Event
}

// Score is a time-ordered list of cues. Duration, when longer than the last
// cue, extends the score with silence; looping restarts at Duration.
type Score struct {
	Cues     []Cue
	Duration float64
}

// Add appends a cue. Call Sort after adding out of order.
func (s *Score) Add(at float64, e engine.Event) {
	s.Cues = append(s.Cues, Cue{At: max(at, 0), Event: e})
}

// Note adds a note-on at at and its note-off length seconds later.
func (s *Score) Note(at, length float64, key, velocity uint8) {
	s.Add(at, engine.NoteOnEvent(key, velocity))
	s.Add(at+max(length, 0), engine.NoteOffEvent(key))
}

// Sort orders cues by time. Cues at the same time keep their insertion
// order, except that note-offs go first so a repeated note is not cut by
// its own release.
func (s *Score) Sort() {
	slices.SortStableFunc(s.Cues, func(a, b Cue) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return rank(a.Event.Kind) - rank(b.Event.Kind)
	})
}

func rank(k engine.EventKind) int {
	if k == engine.NoteOff {
		return 0
	}
	return 1
}

// End is the later of Duration and the last cue.
func (s *Score) End() float64 {
	end := s.Duration
	if n := len(s.Cues); n > 0 {
		end = max(end, s.Cues[n-1].At)
	}
	return end
}

// Len is the number of cues.
func (s *Score) Len() int { return len(s.Cues) }
