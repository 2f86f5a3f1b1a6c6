package envelope

import (
	"math"
	"testing"
)

const sr = 1000.0

func TestAttackDecaySustain(t *testing.T) {
	var e State
	e.Start(Params{Attack: 0.1, Decay: 0.1, Sustain: 0.5, Release: 0.1})

	if v := e.Advance(50, sr); math.Abs(v-0.5) > 1e-9 {
		t.Fatalf("half-way through attack: got %f, want 0.5", v)
	}
	if v := e.Advance(50, sr); v != 1 {
		t.Fatalf("end of attack: got %f, want 1", v)
	}
	if v := e.Advance(50, sr); math.Abs(v-0.75) > 1e-9 {
		t.Fatalf("half-way through decay: got %f, want 0.75", v)
	}
	e.Advance(500, sr)
	if e.Stage() != StageSustain || e.Value() != 0.5 {
		t.Fatalf("expected sustain at 0.5, got %v %f", e.Stage(), e.Value())
	}
}

func TestReleaseReachesDone(t *testing.T) {
	var e State
	e.Start(Params{Sustain: 1, Release: 0.1})
	e.Advance(10, sr)
	e.Release()
	if !e.Releasing() {
		t.Fatal("expected release stage")
	}
	if v := e.Advance(50, sr); math.Abs(v-0.5) > 1e-9 {
		t.Fatalf("half-way through release: got %f", v)
	}
	e.Advance(60, sr)
	if !e.Done() || e.Value() != 0 {
		t.Fatalf("expected done at 0, got %v %f", e.Stage(), e.Value())
	}
}

func TestBlockSizeIndependence(t *testing.T) {
	p := Params{Delay: 0.013, Attack: 0.037, Hold: 0.011, Decay: 0.05, Sustain: 0.3, Release: 0.2}
	var a, b State
	a.Start(p)
	b.Start(p)
	for i := 0; i < 64; i++ {
		a.Advance(1, sr)
	}
	for i := 0; i < 4; i++ {
		b.Advance(16, sr)
	}
	if math.Abs(a.Value()-b.Value()) > 1e-9 || a.Stage() != b.Stage() {
		t.Fatalf("block size changed the envelope: %f/%v vs %f/%v", a.Value(), a.Stage(), b.Value(), b.Stage())
	}
}

func TestReleaseDuringDelayIsDeferred(t *testing.T) {
	var e State
	e.Start(Params{Delay: 0.1, Attack: 0.1, Sustain: 1, Release: 0.05})
	e.Release()
	if e.Releasing() {
		t.Fatal("release must wait for the delay stage")
	}
	e.Advance(100, sr)
	if !e.Releasing() {
		t.Fatalf("expected release after delay, got %v", e.Stage())
	}
}

func TestZeroTimesJumpStraightToSustain(t *testing.T) {
	var e State
	e.Start(Params{Sustain: 0.8})
	if v := e.Advance(1, sr); v != 0.8 {
		t.Fatalf("got %f, want 0.8", v)
	}
}

func TestResetIsIdle(t *testing.T) {
	var e State
	e.Start(DefaultAmp())
	e.Advance(100, sr)
	e.Reset()
	if e.Stage() != StageIdle || e.Value() != 0 {
		t.Fatalf("reset left state behind: %v %f", e.Stage(), e.Value())
	}
}
