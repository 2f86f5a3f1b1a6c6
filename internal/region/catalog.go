package region

import "github.com/pkg/errors"

// Catalog is the ordered set of regions an engine plays. Order matters:
// note events scan it front to back.
type Catalog struct {
	Regions []*Region

	maxTargets int
	byName     map[string]*Region
}

// NewCatalog wraps regions. IDs are assigned by position in Build.
func NewCatalog(regions ...*Region) *Catalog {
	return &Catalog{Regions: regions}
}

// Add appends a region, giving it the next ID.
func (c *Catalog) Add(r *Region) *Region {
	r.ID = len(c.Regions)
	c.Regions = append(c.Regions, r)
	return r
}

// Build builds every region and records the widest resolution table so
// voices can be sized once. It fails only on structural problems: nil or
// duplicate names. Dropped connections come back as diagnostics.
func (c *Catalog) Build() ([]Diagnostic, error) {
	var diags []Diagnostic
	c.maxTargets = 0
	c.byName = make(map[string]*Region, len(c.Regions))
	for i, r := range c.Regions {
		if r == nil {
			return diags, errors.Errorf("region %d is nil", i)
		}
		r.ID = i
		if r.Name != "" {
			if _, dup := c.byName[r.Name]; dup {
				return diags, errors.Errorf("duplicate region name %q", r.Name)
			}
			c.byName[r.Name] = r
		}
		diags = append(diags, r.Build()...)
		c.maxTargets = max(c.maxTargets, r.NumTargets())
	}
	return diags, nil
}

// MaxTargets is the largest NumTargets over all regions.
func (c *Catalog) MaxTargets() int { return c.maxTargets }

func (c *Catalog) Len() int { return len(c.Regions) }

// Find looks a region up by name.
func (c *Catalog) Find(name string) (*Region, bool) {
	r, ok := c.byName[name]
	return r, ok
}
