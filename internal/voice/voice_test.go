package voice

import (
	"math"
	"testing"

	"github.com/cbegin/polysampler-go/internal/controller"
	"github.com/cbegin/polysampler-go/internal/envelope"
	"github.com/cbegin/polysampler-go/internal/lfo"
	"github.com/cbegin/polysampler-go/internal/modkey"
	"github.com/cbegin/polysampler-go/internal/region"
	"github.com/cbegin/polysampler-go/internal/stream"
)

const sr = 48000

var cutoff = modkey.TargetN(modkey.FilterCutoff, 0)

func newShared() *Shared {
	return &Shared{SampleRate: sr, Controllers: &controller.State{}, SilenceFloor: 1e-4}
}

func squareRegion() *region.Region {
	r := region.New(0, "square")
	r.Sample = stream.Synth(stream.ToneSquare, "square", sr, sr, 480)
	r.AmpEG = envelope.Params{Sustain: 1, Release: 0.01}
	return r
}

func TestCC1DrivesCutoff(t *testing.T) {
	tests := []struct {
		name   string
		static float64
		cc     float64
		want   float64
	}{
		{"cc0 keeps static", 1000, 0, 1000},
		{"cc127 adds depth", 1000, 1, 1000.5},
		{"clamped to range", 20000, 1, 20000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := squareRegion()
			r.Filters = 1
			r.SetStatic(cutoff, tt.static)
			r.Connect(modkey.CC(1), cutoff, modkey.Linear, 0.5)
			r.Build()

			sh := newShared()
			sh.Controllers.SetCC(1, tt.cc)
			v := New(0, r.NumTargets(), 64)
			v.Start(r, 60, 100, 1, 0, sh)
			if got := v.Param(cutoff); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("cutoff = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepthZeroIsSameAsOmitted(t *testing.T) {
	build := func(withZero bool) *region.Region {
		r := squareRegion()
		r.Filters = 1
		r.LFOs = []lfo.Params{{Freq: 3, Wave: lfo.WaveSine}}
		r.SetStatic(cutoff, 5000)
		r.Connect(modkey.LFOSource(0), cutoff, modkey.Linear, 800)
		if withZero {
			r.Connect(modkey.CC(74), cutoff, modkey.Saturate, 0)
			r.Connect(modkey.Target(modkey.Velocity), cutoff, modkey.Linear, 0)
		}
		r.Build()
		return r
	}
	sh := newShared()
	sh.Controllers.SetCC(74, 0.8)
	a, b := build(false), build(true)
	va, vb := New(0, 4, 128), New(1, 4, 128)
	va.Start(a, 60, 90, 1, 0, sh)
	vb.Start(b, 60, 90, 2, 0, sh)
	out := make([][2]float32, 128)
	for i := 0; i < 20; i++ {
		va.Render(out, sh)
		vb.Render(out, sh)
		if va.Param(cutoff) != vb.Param(cutoff) {
			t.Fatalf("block %d: %v != %v", i, va.Param(cutoff), vb.Param(cutoff))
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := squareRegion()
	r.LFOs = []lfo.Params{{Freq: 5, Wave: lfo.WaveRandom}}
	r.Envelopes = []envelope.Params{{Attack: 0.1, Sustain: 0.5}}
	r.Connect(modkey.LFOSource(0), modkey.Target(modkey.Pitch), modkey.Bipolar, 30)
	r.Connect(modkey.EnvSource(0), modkey.Target(modkey.Pan), modkey.SCurve, 0.7)
	r.Connect(modkey.CC(1), modkey.Target(modkey.Pan), modkey.Saturate, 0.5)
	r.Build()

	sh := newShared()
	sh.Controllers.SetCC(1, 0.6)
	v := New(0, r.NumTargets(), 256)
	v.Start(r, 64, 80, 1, 0, sh)
	v.Render(make([][2]float32, 256), sh)

	first := append([]float64(nil), v.Resolved()...)
	v.Resolve(sh)
	for i, x := range v.Resolved() {
		if x != first[i] {
			t.Fatalf("slot %d changed on re-resolve: %v -> %v", i, first[i], x)
		}
	}
}

func TestReusedVoiceCarriesNoResidue(t *testing.T) {
	r := squareRegion()
	r.Filters = 1
	r.LFOs = []lfo.Params{{Freq: 7, Wave: lfo.WaveTriangle, Phase: 0.25}}
	r.Envelopes = []envelope.Params{{Attack: 0.05, Decay: 0.1, Sustain: 0.3, Release: 0.2}}
	r.SetStatic(cutoff, 3000)
	r.Connect(modkey.EnvSource(0), cutoff, modkey.Linear, 2000)
	r.Connect(modkey.LFOSource(0), modkey.Target(modkey.Pitch), modkey.Linear, 20)
	r.Build()

	sh := newShared()
	used := New(0, 8, 128)
	used.Start(r, 48, 127, 1, 0, sh)
	out := make([][2]float32, 128)
	for i := 0; i < 30; i++ {
		used.Render(out, sh)
	}
	used.Release()
	used.Render(out, sh)
	used.Kill()
	used.Reclaim()
	if used.State() != Idle {
		t.Fatalf("state after reclaim = %v", used.State())
	}

	fresh := New(1, 8, 128)
	used.Start(r, 72, 40, 9, 0, sh)
	fresh.Start(r, 72, 40, 9, 0, sh)

	if used.ampEG != fresh.ampEG || used.egs != fresh.egs || used.lfos != fresh.lfos {
		t.Fatal("generator state leaked across notes")
	}
	if used.filters != fresh.filters || used.gain != fresh.gain || used.cursor.Position() != 0 {
		t.Fatal("DSP state leaked across notes")
	}
	for i := range fresh.Resolved() {
		if used.Resolved()[i] != fresh.Resolved()[i] {
			t.Fatalf("resolved[%d] = %v, want %v", i, used.Resolved()[i], fresh.Resolved()[i])
		}
	}
	if used.Released() || used.Sustained() {
		t.Fatal("note-off flags leaked across notes")
	}
}

func TestReleaseEndsInOff(t *testing.T) {
	r := squareRegion()
	r.Build()
	sh := newShared()
	v := New(0, 0, 256)
	v.Start(r, 60, 100, 1, 0, sh)
	out := make([][2]float32, 256)
	v.Render(out, sh)
	if v.State() != Playing {
		t.Fatalf("state = %v", v.State())
	}
	v.Release()
	if v.State() != Releasing {
		t.Fatalf("state = %v", v.State())
	}
	// 10ms release at 48kHz is under two blocks.
	for i := 0; i < 3 && v.State() == Releasing; i++ {
		v.Render(out, sh)
	}
	if v.State() != Off {
		t.Fatalf("state = %v after release", v.State())
	}
}

func TestSampleExhaustionEndsInOff(t *testing.T) {
	r := region.New(0, "short")
	r.Sample = stream.FromMono("short", sr, make([]float32, 100))
	r.Build()
	sh := newShared()
	v := New(0, 0, 256)
	v.Start(r, 60, 100, 1, 0, sh)
	v.Render(make([][2]float32, 256), sh)
	if v.State() != Off {
		t.Fatalf("state = %v", v.State())
	}
}

func TestUnderrunRendersSilence(t *testing.T) {
	r := region.New(0, "partial")
	b := stream.NewBuffer("partial", sr, 4096)
	b.Write([][2]float32{{1, 1}, {1, 1}})
	r.Sample = b
	r.Build()

	sh := newShared()
	v := New(0, 0, 128)
	v.Start(r, 60, 100, 1, 0, sh)
	out := make([][2]float32, 128)
	if !v.Render(out, sh) {
		t.Fatal("expected underrun")
	}
	for i, f := range out {
		if f != [2]float32{} {
			t.Fatalf("frame %d = %v", i, f)
		}
	}
	if v.State() != Playing {
		t.Fatalf("underrun must not end the voice, state = %v", v.State())
	}
}

func TestDelayedStart(t *testing.T) {
	r := squareRegion()
	r.AmpEG = envelope.Params{Sustain: 1}
	r.Build()
	sh := newShared()
	v := New(0, 0, 64)
	v.Start(r, 60, 127, 1, 10, sh)
	out := make([][2]float32, 64)
	v.Render(out, sh)
	for i := 0; i < 10; i++ {
		if out[i] != [2]float32{} {
			t.Fatalf("frame %d sounded before the delay: %v", i, out[i])
		}
	}
	if out[20][0] == 0 {
		t.Fatal("voice should sound after the delay")
	}
}

func TestPanIsConstantPower(t *testing.T) {
	tests := []struct {
		pan   float64
		wantL bool
		wantR bool
	}{
		{-1, true, false},
		{1, false, true},
		{0, true, true},
	}
	for _, tt := range tests {
		r := squareRegion()
		r.AmpEG = envelope.Params{Sustain: 1}
		r.SetStatic(modkey.Target(modkey.Pan), tt.pan)
		r.Build()
		sh := newShared()
		v := New(0, r.NumTargets(), 64)
		v.Start(r, 60, 127, 1, 0, sh)
		out := make([][2]float32, 64)
		v.Render(out, sh)
		v.Render(out, sh)
		l, rr := math.Abs(float64(out[40][0])) > 1e-4, math.Abs(float64(out[40][1])) > 1e-4
		if l != tt.wantL || rr != tt.wantR {
			t.Errorf("pan %v: left=%v right=%v", tt.pan, l, rr)
		}
	}
}

func TestRenderDoesNotAllocate(t *testing.T) {
	r := squareRegion()
	r.Filters = 1
	r.LFOs = []lfo.Params{{Freq: 4, Wave: lfo.WaveSine}}
	r.Connect(modkey.LFOSource(0), cutoff, modkey.Linear, 500)
	r.Connect(modkey.CC(1), cutoff, modkey.Saturate, 4000)
	r.Build()
	sh := newShared()
	v := New(0, r.NumTargets(), 128)
	out := make([][2]float32, 128)
	allocs := testing.AllocsPerRun(100, func() {
		v.Start(r, 60, 100, 1, 0, sh)
		v.Render(out, sh)
	})
	if allocs != 0 {
		t.Fatalf("allocs per block = %v", allocs)
	}
}

func TestLastIsFinalMixedFrame(t *testing.T) {
	r := squareRegion()
	r.Build()
	sh := newShared()
	v := New(0, r.NumTargets(), 64)
	v.Start(r, 60, 100, 1, 0, sh)
	out := make([][2]float32, 64)
	for i := 0; i < 4; i++ {
		clear(out)
		v.Render(out, sh)
	}
	if v.Last() != out[63] || v.Last() == ([2]float32{}) {
		t.Fatalf("last = %v, final frame = %v", v.Last(), out[63])
	}
	v.Start(r, 62, 100, 2, 0, sh)
	if v.Last() != ([2]float32{}) {
		t.Errorf("restarted voice keeps last frame %v", v.Last())
	}
}
