package stream

import (
	"context"
	"math"

	"github.com/gopxl/beep"
	"github.com/pkg/errors"
)

// DefaultChunk is the number of frames a loader publishes per step.
const DefaultChunk = 4096

// Fill pulls frames from s into b in chunks until b is full, s runs dry or
// ctx is cancelled. It is meant to run on a loader goroutine while voices are
// already reading the published prefix.
func Fill(ctx context.Context, b *Buffer, s beep.Streamer, chunk int) error {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	in := make([][2]float64, chunk)
	out := make([][2]float32, chunk)
	for b.written < b.Frames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		want := min(int64(chunk), b.Frames()-b.written)
		n, ok := s.Stream(in[:want])
		for i := 0; i < n; i++ {
			out[i] = [2]float32{float32(in[i][0]), float32(in[i][1])}
		}
		b.Write(out[:n])
		if !ok || n == 0 {
			if err := s.Err(); err != nil {
				return errors.Wrapf(err, "stream %s", b.Name)
			}
			break
		}
	}
	if !b.Complete() {
		// Source was shorter than announced; shrink so voices do not wait
		// for frames that will never arrive.
		b.truncate()
	}
	return nil
}

// Load reads s completely, synchronously.
func Load(name string, format beep.Format, s beep.Streamer, frames int) (*Buffer, error) {
	b := NewBuffer(name, float64(format.SampleRate), frames)
	if err := Fill(context.Background(), b, s, DefaultChunk); err != nil {
		return nil, err
	}
	return b, nil
}

// Tone kinds understood by Synth.
const (
	ToneSine   = "sine"
	ToneSaw    = "saw"
	ToneSquare = "square"
	ToneNoise  = "noise"
)

// Synth renders a test tone of the given kind, useful for fixtures and demo
// instruments that ship without sample files. The tone is pitched at freq
// and can be looped over whole cycles.
func Synth(kind, name string, sampleRate float64, frames int, freq float64) *Buffer {
	mono := make([]float32, frames)
	var lfsr uint32 = 0x7FFF
	for i := range mono {
		ph := math.Mod(float64(i)*freq/sampleRate, 1)
		var v float64
		switch kind {
		case ToneSaw:
			v = 1 - 2*ph
		case ToneSquare:
			if ph < 0.5 {
				v = 1
			} else {
				v = -1
			}
		case ToneNoise:
			lfsr = (lfsr >> 1) ^ (-(lfsr & 1) & 0xB400)
			v = float64(lfsr)/float64(0x7FFF)*2 - 1
		default:
			v = math.Sin(2 * math.Pi * ph)
		}
		mono[i] = float32(v * 0.5)
	}
	b := FromMono(name, sampleRate, mono)
	if freq > 0 && kind != ToneNoise {
		period := sampleRate / freq
		cycles := math.Floor(float64(frames-1) / period)
		if cycles >= 1 {
			b.LoopStart = 0
			b.LoopEnd = int64(math.Round(cycles * period))
		}
	}
	return b
}
