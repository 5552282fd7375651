package tile

import (
	"github.com/byjtew/libgeodesk/store"
)

// TilePayload is what the walker yields for each matching leaf: the
// tile itself and the page of its feature list, for the caller to fetch
// through the BlobStore (spec §4.C data flow: C hands off to A+B).
type TilePayload struct {
	Tile            Tile
	FeatureListPage store.PageNum
}

type frame struct {
	tile Tile
	page store.PageNum
}

// Walker is a depth-first, pull-style iterator over the quadtree index,
// pruned against a query bounding box (spec §4.C). Order of emission is
// deterministic for a fixed box and index but otherwise unspecified.
type Walker struct {
	store *store.BlobStore
	box   BBox
	stack []frame
	err   error
}

// NewWalker starts a walk rooted at rootPage (typically header.indexPointer).
func NewWalker(s *store.BlobStore, rootPage store.PageNum, box BBox) *Walker {
	return &Walker{
		store: s,
		box:   box,
		stack: []frame{{tile: Root, page: rootPage}},
	}
}

// Err returns the first error encountered by Next, if any.
func (w *Walker) Err() error { return w.err }

// Next advances the walk and returns the next matching leaf tile, or
// ok=false when the walk is exhausted (check Err to distinguish
// exhaustion from failure).
func (w *Walker) Next() (payload TilePayload, ok bool) {
	if w.err != nil {
		return TilePayload{}, false
	}
	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		if !top.tile.Bounds().Intersects(w.box) {
			continue
		}

		raw, err := w.store.BlobPayload(top.page)
		if err != nil {
			w.err = err
			return TilePayload{}, false
		}
		node, err := decodeNode(raw)
		if err != nil {
			w.err = err
			return TilePayload{}, false
		}

		if node.IsLeaf {
			return TilePayload{Tile: top.tile, FeatureListPage: node.FeatureListPage}, true
		}

		if top.tile.Zoom >= MaxZoom {
			// Defensive: an inner node claiming children past the deepest
			// zoom is a corrupt index; skip it rather than panic.
			continue
		}
		children := top.tile.Children()
		for i := 3; i >= 0; i-- {
			if node.Occupancy&(1<<uint(i)) == 0 {
				continue
			}
			w.stack = append(w.stack, frame{tile: children[i], page: node.ChildPages[i]})
		}
	}
	return TilePayload{}, false
}
