package modkey

import (
	"math"
	"strings"
)

// CurveID selects the shaping function applied to a source value before it
// is scaled by a connection's depth.
type CurveID uint8

const (
	Linear CurveID = iota
	Bipolar
	Inverse
	Square
	Sqrt
	SCurve
	Saturate
)

var curveNames = [...]string{"linear", "bipolar", "inverse", "square", "sqrt", "scurve", "saturate"}

func (c CurveID) String() string {
	if int(c) < len(curveNames) {
		return curveNames[c]
	}
	return "unknown"
}

// ParseCurve accepts the lower-case names printed by String.
func ParseCurve(name string) (CurveID, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Linear, true
	}
	for i, n := range curveNames {
		if n == name {
			return CurveID(i), true
		}
	}
	return Linear, false
}

// Saturating reports curves whose contribution is folded into the running
// modulation sum instead of being added to it.
func (c CurveID) Saturating() bool { return c == Saturate }

// Eval maps x through the curve. Unipolar sources are expected in [0,1],
// bipolar ones (LFO, pitch bend) in [-1,1]; the curves are odd-symmetric
// where that matters so bipolar input keeps its sign.
func (c CurveID) Eval(x float64) float64 {
	switch c {
	case Bipolar:
		return 2*x - 1
	case Inverse:
		return 1 - x
	case Square:
		return x * math.Abs(x)
	case Sqrt:
		if x < 0 {
			return -math.Sqrt(-x)
		}
		return math.Sqrt(x)
	case SCurve:
		if x < 0 {
			return -smoothstep(-x)
		}
		return smoothstep(x)
	case Saturate:
		return math.Tanh(x)
	default:
		return x
	}
}

func smoothstep(x float64) float64 {
	if x >= 1 {
		return 1
	}
	return x * x * (3 - 2*x)
}
