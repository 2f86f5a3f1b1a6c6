package polysampler

import (
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"

	"github.com/cbegin/polysampler-go/internal/engine"
	"github.com/cbegin/polysampler-go/internal/region"
	intseq "github.com/cbegin/polysampler-go/internal/sequencer"
)

// RenderSamples plays score on a fresh engine for the given number of
// seconds and returns interleaved stereo.
func RenderSamples(cat *region.Catalog, score *intseq.Score, params engine.Params, seconds float64) ([]float32, error) {
	synth, err := engine.New(params, cat)
	if err != nil {
		return nil, err
	}
	seq := intseq.New(score, synth)
	frames := int(float64(synth.SampleRate()) * seconds)
	out := make([]float32, frames*2)
	seq.Process(out)
	return out, nil
}

// RenderScore renders until the score and every release tail have finished,
// stopping at maxSeconds regardless.
func RenderScore(cat *region.Catalog, score *intseq.Score, params engine.Params, maxSeconds float64) ([]float32, error) {
	synth, err := engine.New(params, cat)
	if err != nil {
		return nil, err
	}
	seq := intseq.NewWithOptions(score, synth, intseq.Options{ReleaseTailFrames: 1})
	limit := int(float64(synth.SampleRate()) * maxSeconds)
	block := make([]float32, synth.Params().BlockSize*2)
	var out []float32
	for frames := 0; frames < limit && !seq.Ended(); {
		n := min(len(block)/2, limit-frames)
		seq.Process(block[:n*2])
		out = append(out, block[:n*2]...)
		frames += n
	}
	return out, nil
}

// WriteWAV encodes interleaved stereo as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	if err := wav.Encode(w, interleaved(samples), format); err != nil {
		return errors.Wrap(err, "encoding wav")
	}
	return nil
}

// interleaved streams a float32 buffer to beep, clipping to [-1, 1].
func interleaved(samples []float32) beep.Streamer {
	return beep.StreamerFunc(func(dst [][2]float64) (int, bool) {
		n := min(len(dst), len(samples)/2)
		if n == 0 {
			return 0, false
		}
		for i := range n {
			dst[i][0] = clip(samples[2*i])
			dst[i][1] = clip(samples[2*i+1])
		}
		samples = samples[n*2:]
		return n, true
	})
}

func clip(v float32) float64 {
	return math.Max(-1, math.Min(1, float64(v)))
}
