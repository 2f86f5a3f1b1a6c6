package sequencer

import (
	"github.com/cbegin/polysampler-go/internal/engine"
)

// MultiEngine layers several engines. Every event goes to all of them and
// their blocks are mixed. It implements Engine.
type MultiEngine struct {
	engines []Engine
	params  engine.Params
	mix     []float32
}

// NewMultiEngine layers engines. They should share a sample rate; the block
// size is the smallest of theirs.
func NewMultiEngine(engines ...Engine) *MultiEngine {
	m := &MultiEngine{engines: engines, params: engine.DefaultParams()}
	for i, e := range engines {
		p := e.Params()
		if i == 0 {
			m.params = p
			continue
		}
		m.params.BlockSize = min(m.params.BlockSize, p.BlockSize)
	}
	m.mix = make([]float32, m.params.BlockSize*2)
	return m
}

// Engines returns the layers in the order they were added.
func (m *MultiEngine) Engines() []Engine { return m.engines }

func (m *MultiEngine) Params() engine.Params { return m.params }

// Send offers e to every layer. It fails only when no layer took it, so a
// retry never doubles a note on the layers that did.
func (m *MultiEngine) Send(e engine.Event) bool {
	ok := false
	for _, eng := range m.engines {
		if eng.Send(e) {
			ok = true
		}
	}
	return ok
}

func (m *MultiEngine) RenderBlock(frames int) []float32 {
	frames = min(max(frames, 0), m.params.BlockSize)
	out := m.mix[:frames*2]
	clear(out)
	for _, eng := range m.engines {
		for i, v := range eng.RenderBlock(frames) {
			out[i] += v
		}
	}
	return out
}

func (m *MultiEngine) ActiveCount() int {
	n := 0
	for _, eng := range m.engines {
		n += eng.ActiveCount()
	}
	return n
}
