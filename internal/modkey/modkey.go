package modkey

import (
	"math"
	"strconv"
)

// ModID tags a ModKey as a modulation source or a modulation target.
type ModID uint8

const (
	None ModID = iota

	// Sources
	Controller
	Envelope
	AmpEnvelope
	LFO
	Velocity
	Keytrack
	ChannelAftertouch
	PolyAftertouch
	PitchBend

	// Targets
	Amplitude
	Volume
	Pan
	Pitch
	FilterCutoff
	FilterResonance
	LFOFrequency
	LFODepth

	numIDs
)

const firstTarget = Amplitude

func (id ModID) IsSource() bool { return id > None && id < firstTarget }
func (id ModID) IsTarget() bool { return id >= firstTarget && id < numIDs }

// Indexed reports whether the N field selects a generator (EG, LFO, filter).
func (id ModID) Indexed() bool {
	switch id {
	case Envelope, LFO, FilterCutoff, FilterResonance, LFOFrequency, LFODepth:
		return true
	}
	return false
}

var idNames = [numIDs]string{
	None:              "None",
	Controller:        "Controller",
	Envelope:          "Envelope",
	AmpEnvelope:       "AmpEnvelope",
	LFO:               "LFO",
	Velocity:          "Velocity",
	Keytrack:          "Keytrack",
	ChannelAftertouch: "ChannelAftertouch",
	PolyAftertouch:    "PolyAftertouch",
	PitchBend:         "PitchBend",
	Amplitude:         "Amplitude",
	Volume:            "Volume",
	Pan:               "Pan",
	Pitch:             "Pitch",
	FilterCutoff:      "FilterCutoff",
	FilterResonance:   "FilterResonance",
	LFOFrequency:      "LFOFrequency",
	LFODepth:          "LFODepth",
}

func (id ModID) String() string {
	if id < numIDs {
		return idNames[id]
	}
	return "ModID(" + strconv.Itoa(int(id)) + ")"
}

// ParseID maps a name as printed by String back to its ModID.
func ParseID(name string) (ModID, bool) {
	for i, n := range idNames {
		if n == name && ModID(i) != None {
			return ModID(i), true
		}
	}
	return None, false
}

// ModKey identifies a modulation source or target. It is a comparable value
// and can be used directly as a map key.
type ModKey struct {
	ID ModID
	N  uint8 // which EG, LFO or filter
	CC uint8 // controller number for Controller sources
}

func CC(n uint8) ModKey                { return ModKey{ID: Controller, CC: n} }
func LFOSource(n uint8) ModKey         { return ModKey{ID: LFO, N: n} }
func EnvSource(n uint8) ModKey         { return ModKey{ID: Envelope, N: n} }
func Target(id ModID) ModKey           { return ModKey{ID: id} }
func TargetN(id ModID, n uint8) ModKey { return ModKey{ID: id, N: n} }

func (k ModKey) IsSource() bool { return k.ID.IsSource() }
func (k ModKey) IsTarget() bool { return k.ID.IsTarget() }

func (k ModKey) String() string {
	switch {
	case k.ID == Controller:
		return "Controller " + strconv.Itoa(int(k.CC))
	case k.ID.Indexed():
		return k.ID.String() + " {" + strconv.Itoa(int(k.N)) + "}"
	default:
		return k.ID.String()
	}
}

// Range is a closed parameter interval.
type Range struct {
	Min, Max float64
}

func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

type paramInfo struct {
	rng Range
	def float64
}

var params = [numIDs]paramInfo{
	Amplitude:       {Range{0, 1}, 1},
	Volume:          {Range{-144, 48}, 0},
	Pan:             {Range{-1, 1}, 0},
	Pitch:           {Range{-9600, 9600}, 0},
	FilterCutoff:    {Range{0, 20000}, 20000},
	FilterResonance: {Range{0, 40}, 0},
	LFOFrequency:    {Range{0, 100}, 0},
	LFODepth:        {Range{0, 1}, 1},
}

// ParamRange returns the declared range of a target parameter. Sources and
// unknown ids report an unbounded range.
func ParamRange(id ModID) Range {
	if id.IsTarget() {
		return params[id].rng
	}
	return Range{math.Inf(-1), math.Inf(1)}
}

// ParamDefault returns the static value a target takes when a region does
// not declare one.
func ParamDefault(id ModID) float64 {
	if id.IsTarget() {
		return params[id].def
	}
	return 0
}
