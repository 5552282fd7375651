package filter

import "github.com/byjtew/libgeodesk/feature"

// Predicate wraps a user callback as a trailing sub-filter (spec §4.F:
// "Predicate filters (user lambdas) are trailing sub-filters; they are
// never evaluated on tiles, only on features"). The callback must be
// re-entrant: the query executor may invoke it concurrently from
// worker goroutines (spec §3, "multi-threaded").
type Predicate struct {
	alwaysSome
	fn func(feature.Ptr) bool
}

// NewPredicate wraps fn as a Filter.
func NewPredicate(fn func(feature.Ptr) bool) *Predicate {
	return &Predicate{fn: fn}
}

func (p *Predicate) AcceptFeature(feat feature.Ptr) bool { return p.fn(feat) }
