package filter

import (
	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/tile"
)

// ComboFilter combines an ordered list of sub-filters with AND
// semantics on AcceptFeature and short-circuiting on AcceptTile: a
// NONE from any sub-filter skips the tile; an ALL from every
// sub-filter lets the caller skip per-feature testing entirely (spec
// §4.F). Grounded on
// original_source/include/geodesk/filter/ComboFilter.h, which holds
// the same flattened vector of sub-filters.
type ComboFilter struct {
	filters []Filter
}

// NewComboFilter builds a ComboFilter from a and b, flattening either
// argument if it is itself a *ComboFilter so chains never nest (spec
// §4.F: "added via add, which flattens nested ComboFilters to avoid
// deep chains"; spec §8 property: associativity of nested ComboFilters
// must produce identical acceptance).
func NewComboFilter(a, b Filter) *ComboFilter {
	c := &ComboFilter{}
	c.Add(a)
	c.Add(b)
	return c
}

// Add appends f to the combination, flattening it if it is itself a
// ComboFilter.
func (c *ComboFilter) Add(f Filter) {
	if f == nil {
		return
	}
	if sub, ok := f.(*ComboFilter); ok {
		c.filters = append(c.filters, sub.filters...)
		return
	}
	c.filters = append(c.filters, f)
}

func (c *ComboFilter) AcceptTile(t tile.Tile) TileAcceptance {
	sawSome := false
	for _, f := range c.filters {
		switch f.AcceptTile(t) {
		case None:
			return None
		case Some:
			sawSome = true
		}
	}
	if sawSome {
		return Some
	}
	return All
}

func (c *ComboFilter) AcceptFeature(feat feature.Ptr) bool {
	for _, f := range c.filters {
		if !f.AcceptFeature(feat) {
			return false
		}
	}
	return true
}
