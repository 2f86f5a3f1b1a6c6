package midiin

import (
	"bytes"
	"math"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/polysampler-go/internal/engine"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		msg  midi.Message
		want engine.Event
		ok   bool
	}{
		{"note on", midi.NoteOn(0, 60, 100), engine.NoteOnEvent(60, 100), true},
		{"note off", midi.NoteOff(0, 60), engine.NoteOffEvent(60), true},
		{"zero velocity note on", midi.NoteOn(3, 61, 0), engine.NoteOffEvent(61), true},
		{"cc", midi.ControlChange(0, 1, 127), engine.CCEvent(1, 1), true},
		{"bend centre", midi.Pitchbend(0, 0), engine.PitchBendEvent(0), true},
		{"bend down", midi.Pitchbend(0, -8192), engine.PitchBendEvent(-1), true},
		{"aftertouch", midi.AfterTouch(0, 127), engine.Event{Kind: engine.ChannelAftertouch, Value: 1}, true},
		{"poly aftertouch", midi.PolyAfterTouch(0, 64, 0), engine.Event{Kind: engine.PolyAftertouch, Key: 64}, true},
		{"program change", midi.ProgramChange(0, 5), engine.Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.msg)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTranslatedEventsValidate(t *testing.T) {
	for _, msg := range []midi.Message{
		midi.Pitchbend(0, 8191),
		midi.ControlChange(0, 7, 64),
		midi.NoteOn(15, 127, 127),
	} {
		e, ok := Translate(msg)
		if !ok {
			t.Fatalf("%v not translated", msg)
		}
		if err := e.Validate(); err != nil {
			t.Errorf("%v: %v", msg, err)
		}
	}
}

func TestFilter(t *testing.T) {
	f := Filter{Channel: 2, Transpose: -12}
	if _, ok := f.Translate(midi.NoteOn(1, 60, 100)); ok {
		t.Error("other channel passed")
	}
	e, ok := f.Translate(midi.NoteOn(2, 60, 100))
	if !ok || e.Key != 48 {
		t.Errorf("got %+v %v, want key 48", e, ok)
	}
	if _, ok := f.Translate(midi.NoteOn(2, 5, 100)); ok {
		t.Error("note transposed below zero passed")
	}
	if e, ok := f.Translate(midi.ControlChange(2, 64, 127)); !ok || e.CC != 64 {
		t.Errorf("cc = %+v %v", e, ok)
	}
}

func testSMF(t *testing.T) *bytes.Buffer {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(480)

	// 120 bpm: 480 ticks per half second
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(1, 64, 90))
	tr.Add(240, midi.NoteOn(1, 64, 0))
	tr.Add(0, midi.ControlChange(0, 1, 127))
	tr.Add(0, midi.ProgramChange(0, 3))
	tr.Close(480)
	if err := sm.Add(tr); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestReadSMF(t *testing.T) {
	sc, err := ReadSMFReader(testSMF(t), Omni)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		at   float64
		kind engine.EventKind
		key  uint8
	}{
		{0, engine.NoteOn, 60},
		{0.5, engine.NoteOff, 60},
		{0.5, engine.NoteOn, 64},
		{0.75, engine.NoteOff, 64},
		{0.75, engine.ControlChange, 0},
	}
	if sc.Len() != len(want) {
		t.Fatalf("cues = %+v, want %d", sc.Cues, len(want))
	}
	for i, w := range want {
		c := sc.Cues[i]
		if math.Abs(c.At-w.at) > 1e-6 || c.Event.Kind != w.kind || c.Event.Key != w.key {
			t.Errorf("cue %d = %v %v key %d, want %v %v key %d", i, c.At, c.Event.Kind, c.Event.Key, w.at, w.kind, w.key)
		}
	}
	if sc.Duration < 0.75-1e-6 {
		t.Errorf("duration = %v, want at least the last cue", sc.Duration)
	}
}

func TestReadSMFChannel(t *testing.T) {
	sc, err := ReadSMFReader(testSMF(t), Filter{Channel: 1})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Len() != 2 {
		t.Fatalf("cues = %+v, want the two channel 1 events", sc.Cues)
	}
	for _, c := range sc.Cues {
		if c.Event.Key != 64 {
			t.Errorf("unexpected key %d", c.Event.Key)
		}
	}
}

func TestReadSMFGarbage(t *testing.T) {
	if _, err := ReadSMFReader(bytes.NewReader([]byte("not a midi file")), Omni); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ReadSMF("does-not-exist.mid"); err == nil {
		t.Fatal("expected error")
	}
}
