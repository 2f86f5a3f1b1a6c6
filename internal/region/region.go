// Package region describes the static side of an instrument: what triggers a
// region, its default parameter values and the modulation connections that
// may drive them. Regions are built once at load time and are read-only
// afterwards, so any number of voices and goroutines may share them.
package region

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cbegin/polysampler-go/internal/envelope"
	"github.com/cbegin/polysampler-go/internal/lfo"
	"github.com/cbegin/polysampler-go/internal/modkey"
	"github.com/cbegin/polysampler-go/internal/stream"
)

// Limits on per-region generators; voices preallocate this many.
const (
	MaxEnvelopes = 4
	MaxLFOs      = 4
	MaxFilters   = 2
)

// Range is an inclusive integer interval over MIDI values.
type Range struct {
	Lo, Hi uint8
}

// Full covers every MIDI value.
var Full = Range{0, 127}

func (r Range) Contains(v uint8) bool { return v >= r.Lo && v <= r.Hi }

// ContainsNorm tests a normalised controller value against the range.
func (r Range) ContainsNorm(v float64) bool {
	x := uint8(min(max(v*127+0.5, 0), 127))
	return r.Contains(x)
}

type TriggerKind int

const (
	TriggerAttack TriggerKind = iota
	TriggerRelease
)

// Trigger holds the conditions under which a region fires.
type Trigger struct {
	Key      Range
	Velocity Range
	CC       map[uint8]Range
	On       TriggerKind
}

// Controllers is the read side of the engine's controller state.
type Controllers interface {
	CCOr(n uint8, def float64) float64
}

// Region is one sample with its trigger conditions and performance
// parameters.
type Region struct {
	ID   int
	Name string

	Trigger Trigger

	// Static values per target; targets without an entry use
	// modkey.ParamDefault.
	Static map[modkey.ModKey]float64
	// Ranges overrides the declared range of a target.
	Ranges map[modkey.ModKey]modkey.Range
	// Connections in declaration order.
	Connections []modkey.Connection
	// CCDefaults are used for controllers that have not received an event.
	CCDefaults map[uint8]float64

	Sample         *stream.Buffer
	SampleOffset   int64
	PitchKeycenter uint8
	PitchKeytrack  float64 // cents per key
	AmpVelTrack    float64 // 0..1, how much velocity scales amplitude

	AmpEG     envelope.Params
	Envelopes []envelope.Params
	LFOs      []lfo.Params
	Filters   int // number of filters in the voice chain (0 = none)

	// Group and OffBy implement exclusive groups: a region whose OffBy
	// matches another region's Group is silenced when that region fires.
	Group int
	OffBy int
	// OverlapTriggers lets the same note start this region again while a
	// previous voice for it is still playing.
	OverlapTriggers bool

	built      bool
	targets    []Target
	slots      map[modkey.ModKey]int
	usedCC     []uint8
	ccDefaults [128]float64
}

// Target is one entry of the region's resolution table.
type Target struct {
	Key         modkey.ModKey
	Static      float64
	Range       modkey.Range
	Connections []modkey.Connection
}

// New returns a region with the usual defaults: full key and velocity range,
// keytracking at 100 cents per key around middle C and full velocity
// tracking.
func New(id int, name string) *Region {
	return &Region{
		ID:             id,
		Name:           name,
		Trigger:        Trigger{Key: Full, Velocity: Full},
		PitchKeycenter: 60,
		PitchKeytrack:  100,
		AmpVelTrack:    1,
		AmpEG:          envelope.DefaultAmp(),
	}
}

// Connect appends a connection.
func (r *Region) Connect(src, dst modkey.ModKey, curve modkey.CurveID, depth float64) *Region {
	r.Connections = append(r.Connections, modkey.Connection{Source: src, Target: dst, Curve: curve, Depth: depth})
	return r
}

// SetStatic sets the default value of a target.
func (r *Region) SetStatic(k modkey.ModKey, v float64) *Region {
	if r.Static == nil {
		r.Static = map[modkey.ModKey]float64{}
	}
	r.Static[k] = v
	return r
}

// Diagnostic describes a connection dropped while building a region.
type Diagnostic struct {
	Region     string
	Connection modkey.Connection
	Reason     string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("region %q: %s -> %s ignored: %s", d.Region, d.Connection.Source, d.Connection.Target, d.Reason)
}

// Build validates the connections and builds the direct target index used
// during resolution. Connections that do not make sense for this region are
// left out of the index and reported; they are never fatal. Build is
// idempotent.
func (r *Region) Build() []Diagnostic {
	var diags []Diagnostic
	r.targets = r.targets[:0]
	r.slots = make(map[modkey.ModKey]int)
	r.usedCC = r.usedCC[:0]
	if len(r.Envelopes) > MaxEnvelopes {
		r.Envelopes = r.Envelopes[:MaxEnvelopes]
	}
	if len(r.LFOs) > MaxLFOs {
		r.LFOs = r.LFOs[:MaxLFOs]
	}
	r.Filters = min(max(r.Filters, 0), MaxFilters)

	r.ccDefaults = [128]float64{}
	for n, v := range r.CCDefaults {
		if n < 128 {
			r.ccDefaults[n] = min(max(v, 0), 1)
		}
	}

	seenCC := map[uint8]bool{}
	for _, c := range r.Connections {
		if reason := r.check(c); reason != "" {
			diags = append(diags, Diagnostic{Region: r.Name, Connection: c, Reason: reason})
			continue
		}
		slot := r.slot(c.Target)
		r.targets[slot].Connections = append(r.targets[slot].Connections, c)
		if c.Source.ID == modkey.Controller && !seenCC[c.Source.CC] {
			seenCC[c.Source.CC] = true
			r.usedCC = append(r.usedCC, c.Source.CC)
		}
	}
	// Statically set targets get a slot too so their value reaches the DSP
	// chain even without modulation.
	statics := make([]modkey.ModKey, 0, len(r.Static))
	for k := range r.Static {
		if k.IsTarget() && r.checkTarget(k) == "" {
			statics = append(statics, k)
		}
	}
	slices.SortFunc(statics, compareKeys)
	for _, k := range statics {
		r.slot(k)
	}
	r.built = true
	return diags
}

func compareKeys(a, b modkey.ModKey) int {
	return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.N, b.N), cmp.Compare(a.CC, b.CC))
}

func (r *Region) slot(k modkey.ModKey) int {
	if i, ok := r.slots[k]; ok {
		return i
	}
	static, ok := r.Static[k]
	if !ok {
		static = modkey.ParamDefault(k.ID)
	}
	rng, ok := r.Ranges[k]
	if !ok {
		rng = modkey.ParamRange(k.ID)
	}
	r.targets = append(r.targets, Target{Key: k, Static: rng.Clamp(static), Range: rng})
	r.slots[k] = len(r.targets) - 1
	return len(r.targets) - 1
}

func (r *Region) check(c modkey.Connection) string {
	src, dst := c.Source, c.Target
	switch {
	case !src.IsSource():
		return "source is not a modulation source"
	case !dst.IsTarget():
		return "target is not a parameter"
	case src.ID == modkey.Controller && src.CC >= 128:
		return "controller out of range"
	case src.ID == modkey.Envelope && int(src.N) >= len(r.Envelopes):
		return "envelope not declared"
	case src.ID == modkey.LFO && int(src.N) >= len(r.LFOs):
		return "LFO not declared"
	}
	if src.ID == modkey.LFO && src.N == dst.N && (dst.ID == modkey.LFOFrequency || dst.ID == modkey.LFODepth) {
		return "LFO cannot modulate itself"
	}
	return r.checkTarget(dst)
}

func (r *Region) checkTarget(dst modkey.ModKey) string {
	switch dst.ID {
	case modkey.FilterCutoff, modkey.FilterResonance:
		if int(dst.N) >= r.Filters {
			return "region has no such filter"
		}
	case modkey.LFOFrequency, modkey.LFODepth:
		if int(dst.N) >= len(r.LFOs) {
			return "LFO not declared"
		}
	}
	return ""
}

// Built reports whether Build has run.
func (r *Region) Built() bool { return r.built }

// Targets returns the resolution table in slot order.
func (r *Region) Targets() []Target { return r.targets }

// NumTargets is the number of parameter slots a voice needs for this region.
func (r *Region) NumTargets() int { return len(r.targets) }

// Slot returns the slot of a target, or -1.
func (r *Region) Slot(k modkey.ModKey) int {
	if i, ok := r.slots[k]; ok {
		return i
	}
	return -1
}

// UsedCCs lists controllers referenced by the region's connections.
func (r *Region) UsedCCs() []uint8 { return r.usedCC }

// Matches reports whether a note event falls into the region's trigger
// ranges given the current controller values.
func (r *Region) Matches(key, velocity uint8, cc Controllers) bool {
	t := &r.Trigger
	if !t.Key.Contains(key) || !t.Velocity.Contains(velocity) {
		return false
	}
	for n, rng := range t.CC {
		if !rng.ContainsNorm(cc.CCOr(n, r.CCDefault(n))) {
			return false
		}
	}
	return true
}

// CCDefault is the value the region assumes for a controller that has not
// been set yet.
func (r *Region) CCDefault(n uint8) float64 {
	if !r.built {
		return r.CCDefaults[n]
	}
	if n < 128 {
		return r.ccDefaults[n]
	}
	return 0
}

// SampleName is the name of the bound sample, or "" without one.
func (r *Region) SampleName() string {
	if r.Sample == nil {
		return ""
	}
	return r.Sample.Name
}
