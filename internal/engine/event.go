package engine

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

type EventKind uint8

const (
	NoteOn EventKind = iota
	NoteOff
	ControlChange
	PitchBend
	ChannelAftertouch
	PolyAftertouch
	AllNotesOff
	AllSoundOff
)

var kindNames = [...]string{"note-on", "note-off", "cc", "pitch-bend", "aftertouch", "poly-aftertouch", "all-notes-off", "all-sound-off"}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a performance event. Values are normalised: CC and aftertouch in
// [0,1], pitch bend in [-1,1]. Delay is the frame offset into the block in
// which the event is applied; it only affects when triggered voices start.
type Event struct {
	Kind     EventKind
	Delay    int
	Key      uint8
	Velocity uint8
	CC       uint8
	Value    float64
}

func NoteOnEvent(key, velocity uint8) Event { return Event{Kind: NoteOn, Key: key, Velocity: velocity} }
func NoteOffEvent(key uint8) Event          { return Event{Kind: NoteOff, Key: key} }
func CCEvent(cc uint8, v float64) Event     { return Event{Kind: ControlChange, CC: cc, Value: v} }
func PitchBendEvent(v float64) Event        { return Event{Kind: PitchBend, Value: v} }

// Validation errors. They are package values so rejecting an event on the
// render thread does not allocate.
var (
	ErrKind     = errors.New("unknown event kind")
	ErrKey      = errors.New("key out of range")
	ErrVelocity = errors.New("velocity out of range")
	ErrCC       = errors.New("controller out of range")
	ErrValue    = errors.New("value out of range")
	ErrDelay    = errors.New("negative delay")
)

// Validate reports why an event cannot be applied.
func (e Event) Validate() error {
	if e.Delay < 0 {
		return ErrDelay
	}
	switch e.Kind {
	case NoteOn, NoteOff:
		if e.Key > 127 {
			return ErrKey
		}
		if e.Velocity > 127 {
			return ErrVelocity
		}
	case ControlChange:
		if e.CC > 127 {
			return ErrCC
		}
		if !inRange(e.Value, 0, 1) {
			return ErrValue
		}
	case PitchBend:
		if !inRange(e.Value, -1, 1) {
			return ErrValue
		}
	case ChannelAftertouch:
		if !inRange(e.Value, 0, 1) {
			return ErrValue
		}
	case PolyAftertouch:
		if e.Key > 127 {
			return ErrKey
		}
		if !inRange(e.Value, 0, 1) {
			return ErrValue
		}
	case AllNotesOff, AllSoundOff:
	default:
		return ErrKind
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
