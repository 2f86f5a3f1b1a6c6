// Package audio connects a sample source to the sound card. Ebiten and Oto
// both pull little-endian float32 stereo through an io.Reader; StreamReader
// adapts a SampleSource to that.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

const bytesPerFrame = 8 // two float32 channels

type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	frames atomic.Int64
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.buf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	r.frames.Add(int64(frames))
	n := frames * bytesPerFrame
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// Frames is the number of frames handed to the backend so far.
func (r *StreamReader) Frames() int64 { return r.frames.Load() }

func (r *StreamReader) Close() error { return nil }

// Output is a running audio stream.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	// Position is how much audio the listener has heard.
	Position() time.Duration
	Stop() error
}

// Backend names.
const (
	BackendEbiten = "ebiten"
	BackendOto    = "oto"
	BackendNull   = "null"
)

// Open starts a paused output on the named backend.
func Open(backend string, sampleRate int, source SampleSource) (Output, error) {
	switch backend {
	case "", BackendEbiten:
		return NewEbitenPlayer(sampleRate, source)
	case BackendOto:
		return NewOtoPlayer(sampleRate, source)
	case BackendNull:
		return NewNullPlayer(sampleRate, source), nil
	}
	return nil, errors.Errorf("unknown audio backend %q", backend)
}

func framesToDuration(frames int64, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
