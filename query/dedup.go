package query

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// dedup suppresses a feature the executor has already yielded once
// for this query, which happens whenever two OR'd Selectors (spec §6:
// "comma denotes OR") both accept the same tile and the same feature
// inside it. Keyed by the feature-list blob's PageNum combined with the
// feature's position in that decoded list, packed into the 64-bit
// RoaringBitmap domain (see DESIGN.md's query/dedup.go entry).
type dedup struct {
	seen *roaring64.Bitmap
}

func newDedup() *dedup {
	return &dedup{seen: roaring64.New()}
}

func dedupKey(leafPage uint32, indexInList int) uint64 {
	return uint64(leafPage)<<32 | uint64(uint32(indexInList))
}

// markIfNew reports whether (leafPage, indexInList) has not been seen
// before, marking it seen as a side effect.
func (d *dedup) markIfNew(leafPage uint32, indexInList int) bool {
	return d.seen.CheckedAdd(dedupKey(leafPage, indexInList))
}
