// Package envelope implements the DAHDSR generators a voice owns. Generators
// run at control rate: they advance once per rendered block by the number of
// frames in that block, so their timing does not depend on block size.
package envelope

// Params describes one envelope. Times are in seconds, Sustain and Start are
// levels in [0,1].
type Params struct {
	Delay   float64
	Start   float64
	Attack  float64
	Hold    float64
	Decay   float64
	Sustain float64
	Release float64
}

// DefaultAmp is the amplitude envelope used when a region declares none.
func DefaultAmp() Params {
	return Params{
		Attack:  0.002,
		Sustain: 1,
		Release: 0.05,
	}
}

type Stage int

const (
	StageIdle Stage = iota
	StageDelay
	StageAttack
	StageHold
	StageDecay
	StageSustain
	StageRelease
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageDelay:
		return "delay"
	case StageAttack:
		return "attack"
	case StageHold:
		return "hold"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	case StageDone:
		return "done"
	default:
		return "idle"
	}
}

// State is the per-voice runtime of one envelope. The zero value is idle.
type State struct {
	p       Params
	stage   Stage
	elapsed float64 // seconds spent in the current stage
	value   float64
	relFrom float64 // level when release started
	pending bool    // release requested during delay/attack
}

func (e *State) Start(p Params) {
	*e = State{p: clampParams(p)}
	e.value = e.p.Start
	e.stage = StageDelay
}

// Release moves the envelope to its release stage. A release requested
// before the attack finished is honoured as soon as the delay has elapsed.
func (e *State) Release() {
	switch e.stage {
	case StageIdle, StageRelease, StageDone:
		return
	case StageDelay:
		e.pending = true
		return
	}
	e.enterRelease()
}

func (e *State) enterRelease() {
	e.relFrom = e.value
	e.stage = StageRelease
	e.elapsed = 0
	e.pending = false
}

func (e *State) Reset() { *e = State{} }

func (e *State) Value() float64 { return e.value }
func (e *State) Stage() Stage   { return e.stage }
func (e *State) Done() bool     { return e.stage == StageDone }
func (e *State) Releasing() bool {
	return e.stage == StageRelease
}

// Advance moves the envelope forward by frames at sampleRate and returns the
// level reached at the end of that span.
func (e *State) Advance(frames int, sampleRate float64) float64 {
	if frames <= 0 || sampleRate <= 0 || e.stage == StageIdle || e.stage == StageDone {
		return e.value
	}
	dt := float64(frames) / sampleRate
	// Each pass either consumes dt or finishes a stage; there are a fixed
	// number of stages so this terminates quickly.
	for dt > 0 {
		switch e.stage {
		case StageDelay:
			dt = e.spend(dt, e.p.Delay, StageAttack)
			if e.stage != StageDelay && e.pending {
				e.enterRelease()
			}
		case StageAttack:
			left := e.p.Attack - e.elapsed
			if left <= dt {
				e.value = 1
				dt -= max(left, 0)
				e.next(StageHold)
				continue
			}
			e.elapsed += dt
			e.value = e.p.Start + (1-e.p.Start)*e.elapsed/e.p.Attack
			dt = 0
		case StageHold:
			dt = e.spend(dt, e.p.Hold, StageDecay)
		case StageDecay:
			left := e.p.Decay - e.elapsed
			if left <= dt {
				e.value = e.p.Sustain
				dt -= max(left, 0)
				e.next(StageSustain)
				continue
			}
			e.elapsed += dt
			e.value = 1 - (1-e.p.Sustain)*e.elapsed/e.p.Decay
			dt = 0
		case StageSustain:
			e.value = e.p.Sustain
			dt = 0
		case StageRelease:
			left := e.p.Release - e.elapsed
			if left <= dt {
				e.value = 0
				e.stage = StageDone
				return 0
			}
			e.elapsed += dt
			e.value = e.relFrom * (1 - e.elapsed/e.p.Release)
			dt = 0
		default:
			return e.value
		}
	}
	return e.value
}

func (e *State) spend(dt, length float64, next Stage) float64 {
	left := length - e.elapsed
	if left <= dt {
		e.next(next)
		return dt - max(left, 0)
	}
	e.elapsed += dt
	return 0
}

func (e *State) next(s Stage) {
	e.stage = s
	e.elapsed = 0
}

func clampParams(p Params) Params {
	p.Delay = max(p.Delay, 0)
	p.Attack = max(p.Attack, 0)
	p.Hold = max(p.Hold, 0)
	p.Decay = max(p.Decay, 0)
	p.Release = max(p.Release, 0)
	p.Sustain = min(max(p.Sustain, 0), 1)
	p.Start = min(max(p.Start, 0), 1)
	return p
}
