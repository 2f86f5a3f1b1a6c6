// Package pool manages the fixed set of voices an engine renders with. All
// storage is allocated by New; allocation, stealing and reclamation work on
// slot indices and never touch the heap.
package pool

import (
	"github.com/cbegin/polysampler-go/internal/region"
	"github.com/cbegin/polysampler-go/internal/voice"
)

// Policy decides which sounding voices may be stolen.
type Policy struct {
	// Steal enables stealing when no idle slot is left. Without it a full
	// pool drops new notes.
	Steal bool
	// ProtectSustained keeps voices held by the sustain pedal from being
	// stolen.
	ProtectSustained bool
	// NonStealableGroups lists region groups whose voices are never stolen.
	NonStealableGroups []int
}

// DefaultPolicy steals freely.
func DefaultPolicy() Policy {
	return Policy{Steal: true}
}

// Pool is a preallocated arena of voices.
type Pool struct {
	voices []*voice.Voice
	policy Policy
	age    uint64
	steals uint64
	tail   [2]float32 // output of stolen voices, fading out
}

// tailDecay is the per-frame factor applied to a stolen voice's last output,
// about 1.5ms to -60dB at 48kHz.
const (
	tailDecay = 0.9
	tailFloor = 1e-6
)

// New builds a pool of capacity voices, each able to resolve maxTargets
// parameters over blocks of up to maxFrames frames.
func New(capacity, maxTargets, maxFrames int, policy Policy) *Pool {
	capacity = max(capacity, 1)
	p := &Pool{
		voices: make([]*voice.Voice, capacity),
		policy: policy,
	}
	for i := range p.voices {
		p.voices[i] = voice.New(i, maxTargets, maxFrames)
	}
	return p
}

func (p *Pool) Cap() int { return len(p.voices) }

// Voices returns the slots in index order.
func (p *Pool) Voices() []*voice.Voice { return p.voices }

func (p *Pool) Voice(i int) *voice.Voice { return p.voices[i] }

// Steals is the number of voices taken over since the pool was built.
func (p *Pool) Steals() uint64 { return p.steals }

// Policy returns the stealing policy in effect.
func (p *Pool) Policy() Policy { return p.policy }

// Allocate claims a slot for a new note and starts it. It prefers an idle
// slot, then steals in the order Off, oldest Releasing, oldest Playing. The
// victim is silenced before its slot is reused. It returns nil when every
// voice is busy and none may be stolen.
func (p *Pool) Allocate(r *region.Region, note, velocity uint8, delay int, sh *voice.Shared) *voice.Voice {
	v := p.find()
	if v == nil {
		return nil
	}
	p.age++
	v.Start(r, note, velocity, p.age, delay, sh)
	return v
}

func (p *Pool) find() *voice.Voice {
	for _, v := range p.voices {
		if v.State() == voice.Idle {
			return v
		}
	}
	if !p.policy.Steal {
		return nil
	}
	victim := p.victim()
	if victim == nil {
		return nil
	}
	last := victim.Last()
	p.tail[0] += last[0]
	p.tail[1] += last[1]
	victim.Kill()
	victim.Reclaim()
	p.steals++
	return victim
}

// Fade adds the decaying output of stolen voices to out so a steal ramps to
// silence instead of stepping there in one frame.
func (p *Pool) Fade(out [][2]float32) {
	if p.tail == ([2]float32{}) {
		return
	}
	for i := range out {
		out[i][0] += p.tail[0]
		out[i][1] += p.tail[1]
		p.tail[0] *= tailDecay
		p.tail[1] *= tailDecay
		if abs32(p.tail[0]) < tailFloor && abs32(p.tail[1]) < tailFloor {
			p.tail = [2]float32{}
			return
		}
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func (p *Pool) victim() *voice.Voice {
	for _, v := range p.voices {
		if v.State() == voice.Off {
			return v
		}
	}
	if v := p.oldest(voice.Releasing); v != nil {
		return v
	}
	return p.oldest(voice.Playing)
}

func (p *Pool) oldest(s voice.State) *voice.Voice {
	var best *voice.Voice
	for _, v := range p.voices {
		if v.State() != s || !p.stealable(v) {
			continue
		}
		if best == nil || v.Age() < best.Age() {
			best = v
		}
	}
	return best
}

func (p *Pool) stealable(v *voice.Voice) bool {
	if p.policy.ProtectSustained && v.Sustained() {
		return false
	}
	if r := v.Region(); r != nil {
		for _, g := range p.policy.NonStealableGroups {
			if r.Group == g {
				return false
			}
		}
	}
	return true
}

// Reclaim returns every Off voice to Idle. Call it between blocks only.
func (p *Pool) Reclaim() int {
	n := 0
	for _, v := range p.voices {
		if v.State() == voice.Off {
			v.Reclaim()
			n++
		}
	}
	return n
}

// Release moves every playing voice started by note to its release phase,
// or marks it sustained when hold is true. It returns the number of voices
// affected; zero means the note-off was a no-op.
func (p *Pool) Release(note uint8, hold bool) int {
	n := 0
	for _, v := range p.voices {
		if v.State() != voice.Playing || v.Note() != note || v.Sustained() {
			continue
		}
		if hold {
			v.Sustain()
		} else {
			v.Release()
		}
		n++
	}
	return n
}

// ReleaseSustained releases every voice held by the sustain pedal.
func (p *Pool) ReleaseSustained() int {
	n := 0
	for _, v := range p.voices {
		if v.State() == voice.Playing && v.Sustained() {
			v.Release()
			n++
		}
	}
	return n
}

// ReleaseAll releases every playing voice.
func (p *Pool) ReleaseAll() {
	for _, v := range p.voices {
		v.Release()
	}
}

// KillAll silences every voice immediately.
func (p *Pool) KillAll() {
	for _, v := range p.voices {
		v.Kill()
	}
	p.tail = [2]float32{}
}

// Choke silences the sounding voices whose regions are turned off by group.
// Group 0 never chokes.
func (p *Pool) Choke(group int) int {
	if group == 0 {
		return 0
	}
	n := 0
	for _, v := range p.voices {
		if v.Active() && v.Region() != nil && v.Region().OffBy == group {
			v.Kill()
			n++
		}
	}
	return n
}

// Playing returns the playing voice started by note on r, or nil.
func (p *Pool) Playing(r *region.Region, note uint8) *voice.Voice {
	for _, v := range p.voices {
		if v.State() == voice.Playing && v.Region() == r && v.Note() == note {
			return v
		}
	}
	return nil
}

// Counts tallies voices per state.
type Counts struct {
	Idle, Playing, Releasing, Off int
}

// Active is the number of sounding voices.
func (c Counts) Active() int { return c.Playing + c.Releasing }

func (p *Pool) Counts() Counts {
	var c Counts
	for _, v := range p.voices {
		switch v.State() {
		case voice.Idle:
			c.Idle++
		case voice.Playing:
			c.Playing++
		case voice.Releasing:
			c.Releasing++
		case voice.Off:
			c.Off++
		}
	}
	return c
}
