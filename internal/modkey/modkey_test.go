package modkey

import (
	"math"
	"testing"
)

func TestModKeyEqualityAsMapKey(t *testing.T) {
	m := map[ModKey]int{}
	m[CC(1)] = 1
	m[CC(1)] = 2
	m[CC(2)] = 3
	m[TargetN(FilterCutoff, 0)] = 4
	m[TargetN(FilterCutoff, 1)] = 5
	if len(m) != 4 {
		t.Fatalf("expected 4 distinct keys, got %d", len(m))
	}
	if m[CC(1)] != 2 {
		t.Fatalf("CC(1) should have been overwritten, got %d", m[CC(1)])
	}
	if CC(1) == LFOSource(1) {
		t.Fatal("controller and LFO keys must differ")
	}
}

func TestModIDRoles(t *testing.T) {
	for _, tc := range []struct {
		id     ModID
		source bool
		target bool
	}{
		{None, false, false},
		{Controller, true, false},
		{PitchBend, true, false},
		{Amplitude, false, true},
		{LFODepth, false, true},
	} {
		if tc.id.IsSource() != tc.source || tc.id.IsTarget() != tc.target {
			t.Errorf("%v: source=%v target=%v", tc.id, tc.id.IsSource(), tc.id.IsTarget())
		}
	}
}

func TestParseIDRoundTrip(t *testing.T) {
	for id := Controller; id < numIDs; id++ {
		got, ok := ParseID(id.String())
		if !ok || got != id {
			t.Errorf("ParseID(%q) = %v, %v", id.String(), got, ok)
		}
	}
	if _, ok := ParseID("None"); ok {
		t.Error("None must not parse")
	}
}

func TestKeyString(t *testing.T) {
	if got := CC(7).String(); got != "Controller 7" {
		t.Errorf("got %q", got)
	}
	if got := TargetN(FilterCutoff, 1).String(); got != "FilterCutoff {1}" {
		t.Errorf("got %q", got)
	}
	if got := Target(Pan).String(); got != "Pan" {
		t.Errorf("got %q", got)
	}
}

func TestParamRangeClamp(t *testing.T) {
	r := ParamRange(Pan)
	if r.Clamp(3) != 1 || r.Clamp(-3) != -1 || r.Clamp(0.25) != 0.25 {
		t.Errorf("pan clamp wrong: %+v", r)
	}
	if !math.IsInf(ParamRange(Controller).Max, 1) {
		t.Error("source range should be unbounded")
	}
	if ParamDefault(Amplitude) != 1 {
		t.Error("amplitude default should be 1")
	}
}

func TestCurves(t *testing.T) {
	for _, tc := range []struct {
		curve CurveID
		in    float64
		want  float64
	}{
		{Linear, 0.5, 0.5},
		{Bipolar, 0, -1},
		{Bipolar, 1, 1},
		{Inverse, 0.25, 0.75},
		{Square, 0.5, 0.25},
		{Square, -0.5, -0.25},
		{Sqrt, 0.25, 0.5},
		{SCurve, 0.5, 0.5},
		{SCurve, 1, 1},
		{Saturate, 0, 0},
	} {
		t.Run(tc.curve.String(), func(t *testing.T) {
			if got := tc.curve.Eval(tc.in); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("%v(%v) = %v, want %v", tc.curve, tc.in, got, tc.want)
			}
		})
	}
}

func TestParseCurve(t *testing.T) {
	if c, ok := ParseCurve("SCurve"); !ok || c != SCurve {
		t.Errorf("got %v %v", c, ok)
	}
	if c, ok := ParseCurve(""); !ok || c != Linear {
		t.Errorf("empty should default to linear")
	}
	if _, ok := ParseCurve("zigzag"); ok {
		t.Error("unknown curve should fail")
	}
}

func TestConnectionDepthZeroContributesNothing(t *testing.T) {
	c := Connection{Source: CC(1), Target: Target(Pan), Depth: 0, Curve: Saturate}
	if c.Contribution(1) != 0 {
		t.Fatal("depth 0 must contribute 0")
	}
	if got := c.Accumulate(0.3, 1); got != 0.3 {
		t.Fatalf("depth 0 must leave the sum untouched, got %v", got)
	}
}

func TestConnectionStepAndTransform(t *testing.T) {
	c := Connection{Depth: 1, Step: 0.25}
	if got := c.Contribution(0.6); got != 0.5 {
		t.Errorf("stepped contribution = %v, want 0.5", got)
	}
	c = Connection{Depth: 2, Transform: func(x float64) float64 { return 1 - x }}
	if got := c.Contribution(0.25); got != 1.5 {
		t.Errorf("transformed contribution = %v, want 1.5", got)
	}
}

func TestSaturatingAccumulateIsBounded(t *testing.T) {
	c := Connection{Depth: 0.5, Curve: Saturate}
	sum := 0.0
	for i := 0; i < 100; i++ {
		sum = c.Accumulate(sum, 1)
	}
	if sum > 0.5 || sum <= 0 {
		t.Fatalf("saturating sum escaped its depth: %v", sum)
	}
}
