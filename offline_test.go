package polysampler

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/wav"

	"github.com/cbegin/polysampler-go/internal/catalog"
	"github.com/cbegin/polysampler-go/internal/engine"
	intseq "github.com/cbegin/polysampler-go/internal/sequencer"
)

func testParams() engine.Params {
	p := engine.DefaultParams()
	p.SampleRate = 48000
	return p
}

func TestRenderSamplesIsDeterministic(t *testing.T) {
	cat := testCatalog(t)
	a, err := RenderSamples(cat, shortScore(), testParams(), 0.2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RenderSamples(cat, shortScore(), testParams(), 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 48000/5*2 {
		t.Fatalf("len = %d", len(a))
	}
	var energy float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders differ at sample %d", i)
		}
		energy += float64(a[i] * a[i])
	}
	if energy == 0 {
		t.Fatal("render is silent")
	}
}

func TestRenderScoreStopsAfterTail(t *testing.T) {
	out, err := RenderScore(testCatalog(t), shortScore(), testParams(), 5)
	if err != nil {
		t.Fatal(err)
	}
	secs := float64(len(out)/2) / 48000
	// 0.1s of notes plus a 0.02s release, rounded up to whole blocks
	if secs < 0.1 || secs > 0.2 {
		t.Errorf("rendered %.3fs", secs)
	}
	last := out[len(out)-2:]
	if math.Abs(float64(last[0])) > 1e-3 {
		t.Errorf("last sample = %v, want silence", last[0])
	}
}

func TestWriteWAV(t *testing.T) {
	samples := make([]float32, 1000*2)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 10))
	}
	samples[0] = 3 // clipped

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteWAV(f, samples, 44100); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, format, err := wav.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if format.SampleRate != 44100 || format.NumChannels != 2 {
		t.Errorf("format = %+v", format)
	}
	if s.Len() != 1000 {
		t.Errorf("frames = %d, want 1000", s.Len())
	}
}

func TestRenderDemoInstrument(t *testing.T) {
	in, err := catalog.Load(filepath.Join("testdata", "tones.yaml"), catalog.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Diagnostics) != 0 {
		t.Errorf("diagnostics: %v", in.Diagnostics)
	}
	var score intseq.Score
	score.Note(0, 0.2, 36, 90)
	score.Note(0.1, 0.2, 72, 120)
	score.Add(0.15, engine.CCEvent(1, 0.5))
	out, err := RenderScore(in.Catalog, &score, testParams(), 3)
	if err != nil {
		t.Fatal(err)
	}
	var peak float64
	for _, v := range out {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak == 0 || peak > 1 {
		t.Errorf("peak = %v", peak)
	}
}
