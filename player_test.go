package polysampler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/polysampler-go/internal/envelope"
	"github.com/cbegin/polysampler-go/internal/region"
	intseq "github.com/cbegin/polysampler-go/internal/sequencer"
	"github.com/cbegin/polysampler-go/internal/stream"
)

func testCatalog(t testing.TB) *region.Catalog {
	t.Helper()
	r := region.New(0, "tone")
	r.Sample = stream.Synth(stream.ToneSine, "sine", 48000, 48000, 440)
	r.AmpEG = envelope.Params{Attack: 0.001, Sustain: 1, Release: 0.02}
	cat := region.NewCatalog(r)
	if _, err := cat.Build(); err != nil {
		t.Fatal(err)
	}
	return cat
}

func shortScore() *intseq.Score {
	var sc intseq.Score
	sc.Note(0, 0.05, 60, 100)
	sc.Note(0.05, 0.05, 64, 100)
	return &sc
}

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl, err := NewPlayer(48000, WithBackend(BackendNull))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if got := pl.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	pl.SetMasterVolume(0.35)
	if got := pl.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	pl.SetMasterVolume(-2)
	if got := pl.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestPlayerNeedsInstrument(t *testing.T) {
	pl, err := NewPlayer(48000, WithBackend(BackendNull))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.PlayScore(shortScore()); !errors.Is(err, ErrNoInstrument) {
		t.Fatalf("err = %v, want ErrNoInstrument", err)
	}
	if pl.NoteOn(60, 100) {
		t.Error("note-on accepted without an engine")
	}
	if _, err := NewPlayer(0); err == nil {
		t.Error("zero sample rate accepted")
	}
}

func waitFor(t *testing.T, ch <-chan PlaybackEvent, kind int) PlaybackEvent {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event %d", kind)
		}
	}
}

func TestPlayerPlaysScoreToEnd(t *testing.T) {
	var tapped atomic.Int64
	pl, err := NewPlayer(48000,
		WithBackend(BackendNull),
		WithPolyphony(8),
		WithSampleTap(func(buf []float32) { tapped.Add(int64(len(buf))) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(testCatalog(t)); err != nil {
		t.Fatal(err)
	}
	defer pl.Stop()

	ch := pl.Watch()
	if err := pl.PlayScore(shortScore()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ch, EventPlaybackEnded)
	pl.Wait()

	if tapped.Load() == 0 {
		t.Error("sample tap never called")
	}
	if n := pl.Snapshot().NumActiveVoices(); n != 0 {
		t.Errorf("active voices after end = %d", n)
	}
	if st := pl.Stats(); st.Blocks == 0 || st.Dropped != 0 {
		t.Errorf("stats = %+v", st)
	}
	if pl.Synth().Params().MaxPolyphony != 8 {
		t.Errorf("polyphony = %d", pl.Synth().Params().MaxPolyphony)
	}
}

func TestPlayerLoops(t *testing.T) {
	pl, err := NewPlayer(48000, WithBackend(BackendNull), WithLoopPlayback(true))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(testCatalog(t)); err != nil {
		t.Fatal(err)
	}
	ch := pl.Watch()
	if err := pl.PlayScore(shortScore()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ch, EventLoopCompleted)
	ev := waitFor(t, ch, EventLoopCompleted)
	if ev.Loop < 2 {
		t.Errorf("loop = %d, want at least 2", ev.Loop)
	}
	if err := pl.Stop(); err != nil {
		t.Fatal(err)
	}
	pl.Wait() // returns once stopped
}

func TestPlayerLiveNotes(t *testing.T) {
	pl, err := NewPlayer(48000, WithBackend(BackendNull))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(testCatalog(t)); err != nil {
		t.Fatal(err)
	}
	defer pl.Stop()

	if !pl.NoteOn(67, 90) {
		t.Fatal("note-on rejected")
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if notes := pl.Snapshot().PlayingNotes(); len(notes) == 1 && notes[0] == 67 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if notes := pl.Snapshot().PlayingNotes(); len(notes) != 1 || notes[0] != 67 {
		t.Fatalf("playing notes = %v", notes)
	}
	pl.NoteOff(67)
	for time.Now().Before(deadline) && pl.Snapshot().NumActiveVoices() > 0 {
		time.Sleep(time.Millisecond)
	}
	if n := pl.Snapshot().NumActiveVoices(); n != 0 {
		t.Errorf("active voices after note-off = %d", n)
	}
}

func TestPlayerLoadFile(t *testing.T) {
	pl, err := NewPlayer(48000, WithBackend(BackendNull))
	if err != nil {
		t.Fatal(err)
	}
	defer pl.Stop()
	in, err := pl.LoadFile("testdata/tones.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if in.Name != "tones" || pl.Synth() == nil {
		t.Fatalf("loaded %q, synth %v", in.Name, pl.Synth())
	}
	if _, err := pl.LoadFile("testdata/missing.yaml"); err == nil {
		t.Error("missing file loaded")
	}
}
