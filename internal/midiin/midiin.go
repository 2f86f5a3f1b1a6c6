// Package midiin turns MIDI messages into engine events, both live from a
// port and from Standard MIDI Files.
package midiin

import (
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cbegin/polysampler-go/internal/engine"
)

// AllChannels disables channel filtering.
const AllChannels = -1

// Filter selects which messages are translated.
type Filter struct {
	// Channel is the zero-based channel to accept, or AllChannels.
	Channel int
	// Transpose is added to note and poly aftertouch keys. Keys pushed out
	// of range are dropped.
	Transpose int
}

// Omni accepts every channel untransposed.
var Omni = Filter{Channel: AllChannels}

// Translate converts msg on any channel. It reports false for messages the
// engine has no use for: system, meta and sysex messages among others.
func Translate(msg midi.Message) (engine.Event, bool) {
	return Omni.Translate(msg)
}

// Translate converts msg if it passes the filter.
func (f Filter) Translate(msg midi.Message) (engine.Event, bool) {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16

	var e engine.Event
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		e = engine.NoteOnEvent(key, vel)
	case msg.GetNoteEnd(&ch, &key):
		// includes note-on with velocity zero
		e = engine.NoteOffEvent(key)
	case msg.GetControlChange(&ch, &cc, &val):
		e = engine.CCEvent(cc, float64(val)/127)
	case msg.GetPitchBend(&ch, &rel, &abs):
		e = engine.PitchBendEvent(min(max(float64(rel)/8192, -1), 1))
	case msg.GetAfterTouch(&ch, &val):
		e = engine.Event{Kind: engine.ChannelAftertouch, Value: float64(val) / 127}
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		e = engine.Event{Kind: engine.PolyAftertouch, Key: key, Value: float64(val) / 127}
	default:
		return engine.Event{}, false
	}
	if f.Channel != AllChannels && int(ch) != f.Channel {
		return engine.Event{}, false
	}
	if f.Transpose != 0 {
		switch e.Kind {
		case engine.NoteOn, engine.NoteOff, engine.PolyAftertouch:
			k := int(e.Key) + f.Transpose
			if k < 0 || k > 127 {
				return engine.Event{}, false
			}
			e.Key = uint8(k)
		}
	}
	return e, true
}

// Sink receives translated events; engine.Synth.Send is one.
type Sink func(engine.Event) bool

// Listen forwards messages from in to sink until the returned stop function
// is called. A driver must be registered by the caller.
func Listen(in drivers.In, f Filter, sink Sink) (stop func(), err error) {
	stop, err = midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		if e, ok := f.Translate(msg); ok {
			sink(e)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", in)
	}
	return stop, nil
}

// FindInput looks up an input port by name.
func FindInput(name string) (drivers.In, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, errors.Wrapf(err, "midi input %q", name)
	}
	return in, nil
}

// Inputs lists the names of the available input ports.
func Inputs() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}
