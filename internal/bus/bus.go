// Package bus holds the master stages applied to the mixed engine output.
package bus

import (
	"math"
	"sync/atomic"
)

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

// ProcessBlock runs the chain over an interleaved stereo block in place.
func (c *Chain) ProcessBlock(buf []float32) {
	if c == nil || len(c.effects) == 0 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = c.Process(buf[i], buf[i+1])
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Gain is a linear gain that other goroutines may change while audio runs.
type Gain struct {
	bits atomic.Uint64
}

func NewGain(g float64) *Gain {
	var x Gain
	x.Set(g)
	return &x
}

func (g *Gain) Set(v float64) { g.bits.Store(math.Float64bits(max(v, 0))) }
func (g *Gain) Get() float64  { return math.Float64frombits(g.bits.Load()) }

func (g *Gain) Process(l, r float32) (float32, float32) {
	k := float32(g.Get())
	return l * k, r * k
}

func (g *Gain) Reset() {}
