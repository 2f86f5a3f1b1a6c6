package engine

import "github.com/cbegin/polysampler-go/internal/pool"

// Params controls the engine.
type Params struct {
	SampleRate   int
	BlockSize    int // frames per control block
	MaxPolyphony int
	QueueSize    int // pending events between blocks
	SilenceFloor float64
	MasterGain   float64
	// LimiterCeilingDB enables the master limiter when below zero.
	LimiterCeilingDB float64
	Policy           pool.Policy
}

// DefaultParams returns sensible defaults for a 48 kHz host.
func DefaultParams() Params {
	return Params{
		SampleRate:       48000,
		BlockSize:        256,
		MaxPolyphony:     64,
		QueueSize:        1024,
		SilenceFloor:     1e-4,
		MasterGain:       0.7,
		LimiterCeilingDB: -0.3,
		Policy:           pool.DefaultPolicy(),
	}
}

func (p Params) normalized() Params {
	d := DefaultParams()
	if p.SampleRate <= 0 {
		p.SampleRate = d.SampleRate
	}
	if p.BlockSize <= 0 {
		p.BlockSize = d.BlockSize
	}
	if p.MaxPolyphony <= 0 {
		p.MaxPolyphony = d.MaxPolyphony
	}
	if p.QueueSize <= 0 {
		p.QueueSize = d.QueueSize
	}
	if p.SilenceFloor <= 0 {
		p.SilenceFloor = d.SilenceFloor
	}
	return p
}
