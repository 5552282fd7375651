// Package query glues the tile walker, matcher VM, and filter layer
// into the streaming pipeline the root Features façade iterates (spec
// §2 "Data flow", §4.G).
package query

import (
	"golang.org/x/sync/errgroup"

	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/filter"
	"github.com/byjtew/libgeodesk/golerr"
	"github.com/byjtew/libgeodesk/match"
	"github.com/byjtew/libgeodesk/store"
	"github.com/byjtew/libgeodesk/taskqueue"
	"github.com/byjtew/libgeodesk/tile"
)

// View is the fully-resolved query a Features value compiles down to:
// a store, an accepted-type mask, the OR'd Selectors a GOQL query
// compiled into, an optional Filter, and an optional bounding box that
// restricts which tiles are walked at all (spec §4.G). Each Selector
// is evaluated against its own tile walk, rather than one shared walk
// with an internal OR. Selectors carry no index bits, so every walk
// visits the same tiles; the same feature can therefore surface from
// more than one walk, which is what dedup.go suppresses.
type View struct {
	Store     *store.BlobStore
	Types     feature.Type
	Selectors []*match.Selector
	Filter    filter.Filter
	Box       *tile.BBox
}

func (v View) box() tile.BBox {
	if v.Box != nil {
		return *v.Box
	}
	return tile.World
}

func (v View) rootPage() store.PageNum {
	return v.Store.IndexPointer()
}

// passesFilter applies the type mask, one selector's matcher program,
// and the Filter in that order (spec §2's pipeline order), returning
// false as soon as any stage rejects.
func (v View) passesFilter(sel *match.Selector, f feature.Ptr) bool {
	if f.Type&v.Types == 0 {
		return false
	}
	if sel != nil && !sel.Accept(f.Type, f.Tags) {
		return false
	}
	if v.Filter != nil && !v.Filter.AcceptFeature(f) {
		return false
	}
	return true
}

// selectorPasses runs Selectors, which is a no-op single pass over
// nil when the query has no GOQL predicate at all.
func (v View) selectorPasses() []*match.Selector {
	if len(v.Selectors) == 0 {
		return []*match.Selector{nil}
	}
	return v.Selectors
}

// Matches reports whether f itself passes this View's type mask,
// Selector OR, and Filter, without walking any tile. Used by the root
// façade to compose Features values by intersection and containment
// (spec §3 "Features & Features intersection", "Features.contains").
func (v View) Matches(f feature.Ptr) bool {
	for _, sel := range v.selectorPasses() {
		if v.passesFilter(sel, f) {
			return true
		}
	}
	return false
}

// Each streams every matching feature to yield in walk order, stopping
// early if yield returns false. This is the single-threaded path
// (spec §5): everything runs on the caller's goroutine.
func Each(v View, yield func(feature.Ptr) bool) error {
	d := newDedup()
	for _, sel := range v.selectorPasses() {
		stop, err := walkOne(v, sel, d, yield)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func walkOne(v View, sel *match.Selector, d *dedup, yield func(feature.Ptr) bool) (stop bool, err error) {
	w := tile.NewWalker(v.Store, v.rootPage(), v.box())
	for {
		payload, ok := w.Next()
		if !ok {
			break
		}
		if v.Filter != nil && v.Filter.AcceptTile(payload.Tile) == filter.None {
			continue
		}
		feats, err := decodeTile(v, payload)
		if err != nil {
			return false, err
		}
		for i, f := range feats {
			if !v.passesFilter(sel, f) {
				continue
			}
			if !d.markIfNew(uint32(payload.FeatureListPage), i) {
				continue
			}
			if !yield(f) {
				return true, w.Err()
			}
		}
	}
	return false, w.Err()
}

func decodeTile(v View, payload tile.TilePayload) ([]feature.Ptr, error) {
	raw, err := v.Store.BlobPayload(payload.FeatureListPage)
	if err != nil {
		return nil, golerr.Wrap(golerr.QueryMissingTile, payload.Tile.String(), err.Error())
	}
	return feature.DecodeFeatureList(raw, v.Store, payload.FeatureListPage)
}

// EachConcurrent is the multi-threaded dispatch path (spec §5): for
// each Selector, tiles are walked sequentially on the caller's
// goroutine (so per-selector result order is unaffected by
// concurrency), but each tile's decode/match/filter work is handed to
// a worker pool through a taskqueue.Queue; results are written into
// index-addressed slots so reassembly needs no locking, then merged
// and de-duplicated in walk order once every worker has finished.
func EachConcurrent(v View, workers int, yield func(feature.Ptr) bool) error {
	if workers < 1 {
		workers = 1
	}
	d := newDedup()
	for _, sel := range v.selectorPasses() {
		stop, err := dispatchOne(v, sel, workers, d, yield)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func dispatchOne(v View, sel *match.Selector, workers int, d *dedup, yield func(feature.Ptr) bool) (stop bool, err error) {
	w := tile.NewWalker(v.Store, v.rootPage(), v.box())
	var tiles []tile.TilePayload
	for {
		payload, ok := w.Next()
		if !ok {
			break
		}
		if v.Filter != nil && v.Filter.AcceptTile(payload.Tile) == filter.None {
			continue
		}
		tiles = append(tiles, payload)
	}
	if err := w.Err(); err != nil {
		return false, err
	}
	if len(tiles) == 0 {
		return false, nil
	}

	// kept pairs a surviving feature with its index in the tile's full
	// decoded list, so dedup keys stay stable across different
	// Selectors' independent filter passes over the same tile.
	type kept struct {
		idx int
		f   feature.Ptr
	}
	type outcome struct {
		feats []kept
		err   error
	}
	results := make([]outcome, len(tiles))

	q := taskqueue.New[int](len(tiles))
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			q.Process(func(idx int) {
				feats, err := decodeTile(v, tiles[idx])
				if err != nil {
					results[idx] = outcome{err: err}
					return
				}
				var survivors []kept
				for i, f := range feats {
					if v.passesFilter(sel, f) {
						survivors = append(survivors, kept{idx: i, f: f})
					}
				}
				results[idx] = outcome{feats: survivors}
			})
			return nil
		})
	}
	for i := range tiles {
		q.Submit(i)
	}
	q.AwaitCompletion()
	q.Shutdown()
	_ = g.Wait()

	for i, res := range results {
		if res.err != nil {
			return false, res.err
		}
		leafPage := uint32(tiles[i].FeatureListPage)
		for _, k := range res.feats {
			if !d.markIfNew(leafPage, k.idx) {
				continue
			}
			if !yield(k.f) {
				return true, nil
			}
		}
	}
	return false, nil
}
