// Package stream holds sample data for regions and the per-voice cursors that
// read it. A Buffer is written once, possibly progressively by a loader
// goroutine, and read concurrently by voices on the render thread; the number
// of frames readable so far is published atomically.
package stream

import (
	"sync/atomic"
)

// Buffer is stereo PCM storage. Mono sources are stored with both channels
// equal.
type Buffer struct {
	Name       string
	SampleRate float64

	// Loop points in frames; active when LoopEnd > LoopStart.
	LoopStart int64
	LoopEnd   int64

	*frames
}

// frames is the PCM behind a Buffer, shared by every view made with
// WithLoop.
type frames struct {
	data      [][2]float32
	total     atomic.Int64
	available atomic.Int64
	written   int64 // writer side only
}

// NewBuffer preallocates storage for frames. Nothing is readable until Write
// publishes it.
func NewBuffer(name string, sampleRate float64, n int) *Buffer {
	b := &Buffer{
		Name:       name,
		SampleRate: sampleRate,
		frames:     newFrames(make([][2]float32, n)),
	}
	b.total.Store(int64(n))
	return b
}

// FromFrames wraps fully loaded data.
func FromFrames(name string, sampleRate float64, data [][2]float32) *Buffer {
	b := &Buffer{Name: name, SampleRate: sampleRate, frames: newFrames(data)}
	b.written = int64(len(data))
	b.total.Store(b.written)
	b.available.Store(b.written)
	return b
}

func newFrames(data [][2]float32) *frames { return &frames{data: data} }

// WithLoop returns a view of the same sample data with its own loop points.
// Frames written through either buffer are visible in both.
func (b *Buffer) WithLoop(start, end int64) *Buffer {
	v := *b
	v.LoopStart, v.LoopEnd = start, end
	return &v
}

// FromMono wraps fully loaded mono data.
func FromMono(name string, sampleRate float64, mono []float32) *Buffer {
	frames := make([][2]float32, len(mono))
	for i, s := range mono {
		frames[i] = [2]float32{s, s}
	}
	return FromFrames(name, sampleRate, frames)
}

// Write appends frames and publishes them. Only one goroutine may write.
// It returns the number of frames accepted.
func (b *Buffer) Write(src [][2]float32) int {
	n := copy(b.data[b.written:], src)
	b.written += int64(n)
	b.available.Store(b.written)
	return n
}

// Frames is the total length of the sample.
func (b *Buffer) Frames() int64 { return b.total.Load() }

// truncate ends the buffer at what has been written so far. Loop points past
// the new end are ignored by Looping.
func (b *Buffer) truncate() { b.total.Store(b.written) }

// Available is the number of frames readable right now.
func (b *Buffer) Available() int64 { return b.available.Load() }

// Complete reports whether every frame has been written.
func (b *Buffer) Complete() bool { return b.Available() == b.Frames() }

// Looping reports whether the buffer declares a sustain loop.
func (b *Buffer) Looping() bool {
	return b.LoopEnd > b.LoopStart && b.LoopEnd <= b.Frames()
}

// Frame returns frame i; callers must stay below Available.
func (b *Buffer) Frame(i int64) [2]float32 { return b.data[i] }
