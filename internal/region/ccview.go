package region

import (
	"slices"

	"github.com/cbegin/polysampler-go/internal/modkey"
)

// CCView lists the controller connections that drive one target of a
// region, ordered by controller number.
type CCView struct {
	target  modkey.ModKey
	entries []modkey.Connection
}

// CCView returns the controller view for target. Connections dropped by
// Build do not appear.
func (r *Region) CCView(target modkey.ModKey) CCView {
	v := CCView{target: target}
	slot := r.Slot(target)
	if slot < 0 {
		return v
	}
	for _, c := range r.targets[slot].Connections {
		if c.Source.ID == modkey.Controller {
			v.entries = append(v.entries, c)
		}
	}
	slices.SortStableFunc(v.entries, func(a, b modkey.Connection) int {
		return int(a.Source.CC) - int(b.Source.CC)
	})
	return v
}

func (v CCView) Target() modkey.ModKey { return v.target }
func (v CCView) Len() int              { return len(v.entries) }
func (v CCView) Empty() bool           { return len(v.entries) == 0 }

// At returns the first connection from controller cc.
func (v CCView) At(cc uint8) (modkey.Connection, bool) {
	for _, c := range v.entries {
		if c.Source.CC == cc {
			return c, true
		}
	}
	return modkey.Connection{}, false
}

// ValueAt returns the summed depth of every connection from controller cc.
func (v CCView) ValueAt(cc uint8) float64 {
	var d float64
	for _, c := range v.entries {
		if c.Source.CC == cc {
			d += c.Depth
		}
	}
	return d
}

// CCs returns the distinct controller numbers in ascending order.
func (v CCView) CCs() []uint8 {
	out := make([]uint8, 0, len(v.entries))
	for _, c := range v.entries {
		if n := len(out); n == 0 || out[n-1] != c.Source.CC {
			out = append(out, c.Source.CC)
		}
	}
	return out
}
