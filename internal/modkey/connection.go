package modkey

import "math"

// Connection is one edge of the modulation graph. Many connections may share
// a target and one source may feed many targets.
type Connection struct {
	Source ModKey
	Target ModKey
	Curve  CurveID
	Depth  float64
	// Step quantises the source value when positive.
	Step float64
	// Transform, when set, maps the source value before the curve.
	Transform func(float64) float64
}

// Shape applies step, transform and curve to a raw source value.
func (c *Connection) Shape(x float64) float64 {
	if c.Step > 0 {
		x = math.Floor(x/c.Step) * c.Step
	}
	if c.Transform != nil {
		x = c.Transform(x)
	}
	return c.Curve.Eval(x)
}

// Contribution is the amount this connection adds to its target.
func (c *Connection) Contribution(x float64) float64 {
	if c.Depth == 0 {
		return 0
	}
	return c.Depth * c.Shape(x)
}

// Accumulate folds the contribution of x into a running sum. Saturating
// curves soft-clip the sum to the connection depth, so their position in the
// declared order matters; everything else is a plain addition.
func (c *Connection) Accumulate(sum, x float64) float64 {
	if c.Depth == 0 {
		return sum
	}
	if !c.Curve.Saturating() {
		return sum + c.Depth*c.Shape(x)
	}
	d := math.Abs(c.Depth)
	return d * math.Tanh((sum+c.Depth*c.Shape(x))/d)
}
