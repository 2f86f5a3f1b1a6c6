package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type rampSource struct {
	next     float32
	limit    int
	rendered atomic.Int64
}

func (s *rampSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = s.next
		s.next += 0.25
	}
	s.rendered.Add(int64(len(dst) / 2))
}

func (s *rampSource) Finished() bool {
	return s.limit > 0 && s.rendered.Load() >= int64(s.limit)
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	src := &rampSource{}
	r := NewStreamReader(src)
	p := make([]byte, 2*bytesPerFrame+3) // trailing partial frame is left alone
	n, err := r.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2*bytesPerFrame {
		t.Fatalf("n = %d", n)
	}
	for i, want := range []float32{0, 0.25, 0.5, 0.75} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != want {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
	if r.Frames() != 2 {
		t.Errorf("frames = %d", r.Frames())
	}
}

func TestStreamReaderEOF(t *testing.T) {
	src := &rampSource{limit: 4}
	r := NewStreamReader(src)
	p := make([]byte, 2*bytesPerFrame)
	if _, err := r.Read(p); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := r.Read(p); err != io.EOF {
		t.Fatalf("second read err = %v, want EOF", err)
	}
}

func TestNullPlayer(t *testing.T) {
	src := &rampSource{limit: 48000}
	p := NewNullPlayer(48000, src)
	if src.rendered.Load() != 0 {
		t.Fatal("rendered before Play")
	}
	p.Play()
	deadline := time.Now().Add(5 * time.Second)
	for p.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.IsPlaying() {
		t.Fatal("null player did not reach the end of the source")
	}
	if p.Position() < time.Second {
		t.Errorf("position = %v, want at least 1s", p.Position())
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal("second stop:", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("jack", 48000, &rampSource{}); err == nil {
		t.Fatal("expected error")
	}
	out, err := Open(BackendNull, 48000, &rampSource{})
	if err != nil {
		t.Fatal(err)
	}
	out.Stop()
}
