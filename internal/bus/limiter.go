package bus

import "math"

// Limiter is the master safety stage: an envelope follower on the louder
// channel drives a common gain reduction so the stereo image does not shift.
type Limiter struct {
	ceiling float32
	attack  float32 // coefficient
	release float32 // coefficient
	env     float32
}

// NewLimiter creates a limiter.
// ceilingDB: output ceiling in dB (e.g., -1)
// attackMs: attack time in ms
// releaseMs: release time in ms
func NewLimiter(sampleRate int, ceilingDB, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		ceiling: float32(math.Pow(10, float64(ceilingDB)/20)),
		attack:  coeff(attackMs, sr),
		release: coeff(releaseMs, sr),
	}
}

func coeff(ms float32, sr float64) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1.0 - math.Exp(-1.0/(float64(ms)*sr/1000.0)))
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.Reduction()
	l, r = l*g, r*g
	// The follower lags transients; clip what gets through.
	return clampAbs(l, c.ceiling), clampAbs(r, c.ceiling)
}

// Reduction is the gain currently applied, 1 when below the ceiling.
func (c *Limiter) Reduction() float32 {
	if c.env <= c.ceiling || c.ceiling <= 0 {
		return 1
	}
	return c.ceiling / c.env
}

func (c *Limiter) Reset() { c.env = 0 }

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func clampAbs(x, lim float32) float32 {
	return min(max(x, -lim), lim)
}
