package controller

import "testing"

func TestCCStartsUnset(t *testing.T) {
	var s State
	if v, ok := s.CC(1); ok || v != 0 {
		t.Fatalf("fresh CC = %v, %v", v, ok)
	}
	if s.CCOr(1, 0.7) != 0.7 {
		t.Fatal("unset CC should report the default")
	}
	s.SetCC(1, 0)
	if s.CCOr(1, 0.7) != 0 {
		t.Fatal("an explicit 0 must override the default")
	}
}

func TestValuesAreClamped(t *testing.T) {
	var s State
	s.SetCC(7, 2)
	s.SetPitchBend(-3)
	s.SetAftertouch(-1)
	s.SetPolyAftertouch(60, 1.5)
	if v, _ := s.CC(7); v != 1 {
		t.Errorf("cc = %v", v)
	}
	if s.PitchBend() != -1 || s.Aftertouch() != 0 || s.PolyAftertouch(60) != 1 {
		t.Errorf("clamp failed: bend=%v at=%v poly=%v", s.PitchBend(), s.Aftertouch(), s.PolyAftertouch(60))
	}
	if s.PolyAftertouch(200) != 0 {
		t.Error("out of range key should read 0")
	}
}

func TestPedals(t *testing.T) {
	var s State
	if s.SustainDown() {
		t.Fatal("pedal should start up")
	}
	s.SetCC(Sustain, 1)
	if !s.SustainDown() {
		t.Fatal("pedal should be down")
	}
	s.Reset()
	if s.SustainDown() {
		t.Fatal("reset should lift the pedal")
	}
}
