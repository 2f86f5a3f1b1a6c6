package engine

import (
	"sync"
	"sync/atomic"

	"github.com/cbegin/polysampler-go/internal/pool"
	"github.com/cbegin/polysampler-go/internal/voice"
)

// VoiceInfo describes one non-idle voice at the end of a block.
type VoiceInfo struct {
	Slot       int
	Note       uint8
	Velocity   uint8
	State      voice.State
	Age        uint64
	Region     int
	RegionName string
	Sample     string
	Level      float64
	Sustained  bool
}

// Snapshot is the engine state as of one completed block.
type Snapshot struct {
	Block  uint64
	Counts pool.Counts
	Voices []VoiceInfo
	Stats  Stats
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() Snapshot {
	c := *s
	c.Voices = append([]VoiceInfo(nil), s.Voices...)
	return c
}

const dirty = 4

// tripleBuffer hands completed snapshots from the render thread to readers.
// The render thread owns bufs[write] and publishes it with one atomic swap;
// readers take the latest published buffer under mu, which the render thread
// never touches.
type tripleBuffer struct {
	bufs   [3]Snapshot
	write  int
	shared atomic.Uint32 // index of the middle buffer, plus dirty bit

	mu   sync.Mutex
	read int
}

func newTripleBuffer(voices int) *tripleBuffer {
	t := &tripleBuffer{write: 0, read: 2}
	for i := range t.bufs {
		t.bufs[i].Voices = make([]VoiceInfo, 0, voices)
	}
	t.shared.Store(1)
	return t
}

// back returns the buffer the render thread may fill.
func (t *tripleBuffer) back() *Snapshot { return &t.bufs[t.write] }

// publish makes the back buffer visible and takes the middle one in its
// place.
func (t *tripleBuffer) publish() {
	old := t.shared.Swap(uint32(t.write) | dirty)
	t.write = int(old &^ dirty)
}

// latest copies out the newest published snapshot.
func (t *tripleBuffer) latest() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shared.Load()&dirty != 0 {
		old := t.shared.Swap(uint32(t.read))
		t.read = int(old &^ dirty)
	}
	return t.bufs[t.read].Clone()
}
