package lfo

import "math"

// Waveform constants.
const (
	WaveSaw      = 0
	WaveSquare   = 1
	WaveTriangle = 2
	WaveRandom   = 3
	WaveSine     = 4
)

var waveNames = [...]string{"saw", "square", "triangle", "random", "sine"}

// ParseWave maps a waveform name to its constant. Unknown names fall back to
// triangle.
func ParseWave(name string) int {
	for i, n := range waveNames {
		if n == name {
			return i
		}
	}
	return WaveTriangle
}

// Params describes one LFO as declared by a region.
type Params struct {
	Freq  float64 // Hz
	Wave  int
	Delay float64 // seconds before the LFO starts moving
	Phase float64 // initial phase [0, 1)
}

// LFO is a per-voice low-frequency oscillator running at control rate. The
// output is in [-1, 1]; depth is applied by the modulation connections.
type LFO struct {
	p       Params
	phase   float64 // current phase [0, 1)
	delay   float64 // seconds of delay left
	randVal float64 // held random value for sample-and-hold
	value   float64
	active  bool
}

// Start configures the LFO and rewinds it to its initial phase.
func (l *LFO) Start(p Params) {
	if p.Wave < WaveSaw || p.Wave > WaveSine {
		p.Wave = WaveTriangle
	}
	*l = LFO{p: p, delay: p.Delay, active: true}
	l.phase = p.Phase - math.Floor(p.Phase)
	l.randVal = hash(l.phase + 0.5)
	l.value = l.wave()
}

// AdvanceBlock moves the LFO forward by frames at sampleRate and returns its
// value at the end of the block. freqOffset is added to the declared rate.
func (l *LFO) AdvanceBlock(frames int, sampleRate float64, freqOffset float64) float64 {
	if !l.active || frames <= 0 || sampleRate <= 0 {
		return l.value
	}
	dt := float64(frames) / sampleRate
	if l.delay > 0 {
		if l.delay >= dt {
			l.delay -= dt
			return l.value
		}
		dt -= l.delay
		l.delay = 0
	}
	rate := l.p.Freq + freqOffset
	if rate <= 0 {
		return l.value
	}

	oldPhase := l.phase
	l.phase += rate * dt
	cycles := math.Floor(l.phase)
	l.phase -= cycles

	// For random waveform, update held value at each cycle boundary
	if l.p.Wave == WaveRandom && (cycles > 0 || l.phase < oldPhase) {
		l.randVal = hash(l.randVal*67890.1234 + cycles)
	}
	l.value = l.wave()
	return l.value
}

func (l *LFO) wave() float64 {
	switch l.p.Wave {
	case WaveSaw:
		return 1.0 - 2.0*l.phase
	case WaveSquare:
		if l.phase < 0.5 {
			return 1.0
		}
		return -1.0
	case WaveRandom:
		return l.randVal
	case WaveSine:
		return math.Sin(2 * math.Pi * l.phase)
	default: // WaveTriangle
		if l.phase < 0.5 {
			return 4.0*l.phase - 1.0
		}
		return 3.0 - 4.0*l.phase
	}
}

// Value returns the last computed output.
func (l *LFO) Value() float64 { return l.value }

// Phase returns the current phase in [0, 1).
func (l *LFO) Phase() float64 { return l.phase }

// Active returns true once Start has been called and until Reset.
func (l *LFO) Active() bool { return l.active }

// Reset zeros the LFO phase.
func (l *LFO) Reset() { *l = LFO{} }

// hash is a simple deterministic-ish random using a sine-based hash, mapped to
// [-1, 1). It keeps voices reproducible without a shared RNG.
func hash(x float64) float64 {
	v := math.Sin(x*12345.6789) * 43758.5453
	v -= math.Floor(v)
	return v*2.0 - 1.0
}
