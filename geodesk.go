// Package geodesk is the root Features façade over a Geographic Object
// Library store: the query executor (query/), matcher VM (match/), and
// filter layer (filter/) glued into the persistent-value-type API spec
// §4.G describes.
package geodesk

import (
	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/filter"
	"github.com/byjtew/libgeodesk/match"
	"github.com/byjtew/libgeodesk/query"
	"github.com/byjtew/libgeodesk/store"
	"github.com/byjtew/libgeodesk/tile"
	"github.com/byjtew/libgeodesk/units"
)

// Features carries a shared store handle, an accepted-type mask, the
// Selectors an earlier GOQL query compiled into, a composed Filter, and
// an optional bounding box (spec §4.G). Every filtering method returns
// a new Features value; the receiver is never mutated, which is what
// makes Features a persistent value type.
type Features struct {
	store     *store.BlobStore
	types     feature.Type
	selectors []*match.Selector
	filter    filter.Filter
	box       *tile.BBox
}

// Open opens an existing store and returns a Features handle over every
// node, way, and relation in it.
func Open(path string, opts store.OpenOptions) (Features, error) {
	s, err := store.Open(path, opts)
	if err != nil {
		return Features{}, err
	}
	return Features{store: s, types: feature.AnyType}, nil
}

// Create creates a new, empty store and returns a Features handle over it.
func Create(path string, opts store.CreateOptions) (Features, error) {
	s, err := store.Create(path, opts)
	if err != nil {
		return Features{}, err
	}
	return Features{store: s, types: feature.AnyType}, nil
}

// Close releases the underlying store. Every Features value copied from
// this one shares the same store handle and becomes invalid once Close
// returns (spec §5 "shared-resource policy").
func (f Features) Close() error { return f.store.Close() }

// Store returns the underlying BlobStore, for callers that need to
// perform a write transaction (spec §5: writing is outside Features'
// read-only surface; building an index is a maintenance-path concern).
func (f Features) Store() *store.BlobStore { return f.store }

func (f Features) view() query.View {
	return query.View{Store: f.store, Types: f.types, Selectors: f.selectors, Filter: f.filter, Box: f.box}
}

func (f Features) addFilter(add filter.Filter) Features {
	next := f
	next.filter = filter.NewComboFilter(f.filter, add)
	return next
}

// With compiles query and narrows the receiver by it. The first With
// call on a Features value with no Selectors yet installs query's
// Selectors directly, so the executor's tile walk (and cross-Selector
// de-duplication) runs against it; every subsequent call ANDs query in
// as a feature-level predicate, since composing two independently
// compiled Selector-OR groups by AND has no direct bytecode
// representation in this VM (spec §3 "Features(query) call-style
// filtering").
func (f Features) With(q string) (Features, error) {
	sels, err := match.Compile(q)
	if err != nil {
		return Features{}, err
	}
	if len(f.selectors) == 0 {
		next := f
		next.selectors = sels
		return next, nil
	}
	return f.addFilter(filter.NewPredicate(func(p feature.Ptr) bool {
		for _, s := range sels {
			if s.Accept(p.Type, p.Tags) {
				return true
			}
		}
		return false
	})), nil
}

// And intersects the receiver with other: a feature must pass both
// Features' full pipelines to survive (spec §3 "Features & Features
// intersection"). other's own store handle is not touched; only its
// compiled predicate is reused.
func (f Features) And(other Features) Features {
	otherView := other.view()
	return f.addFilter(filter.NewPredicate(otherView.Matches))
}

// Filter narrows the receiver by an arbitrary user predicate (spec
// §4.G "filter<P>"). pred must be safe to call concurrently from
// worker goroutines in multi-threaded mode (spec §5).
func (f Features) Filter(pred func(feature.Ptr) bool) Features {
	return f.addFilter(filter.NewPredicate(pred))
}

// Contains reports whether p itself passes the receiver's full
// pipeline, without walking the store (spec §3 "Features.contains").
func (f Features) Contains(p feature.Ptr) bool { return f.view().Matches(p) }

// Any reports whether the receiver has at least one matching feature
// (spec §3 "boolean truthiness" / operator bool).
func (f Features) Any() (bool, error) {
	_, ok, err := query.First(f.view())
	return ok, err
}

// IsEmpty is the complement of Any (spec §3 "operator!").
func (f Features) IsEmpty() (bool, error) {
	ok, err := f.Any()
	return !ok, err
}

// Count walks the full stream and returns its cardinality (spec §4.G).
func (f Features) Count() (int, error) { return query.Count(f.view()) }

// One requires exactly one match (spec §4.G "one() throws NotUnique").
func (f Features) One() (feature.Ptr, error) { return query.One(f.view()) }

// First yields the first matching feature, or ok=false if there are none.
func (f Features) First() (feature.Ptr, bool, error) { return query.First(f.view()) }

// Collect materializes every matching feature eagerly (spec §4.G
// "vector conversion collects eagerly"). Each call re-runs the query;
// queries are not cached.
func (f Features) Collect() ([]feature.Ptr, error) { return query.Collect(f.view()) }

// Each streams every matching feature to yield, stopping early if
// yield returns false, on the caller's goroutine.
func (f Features) Each(yield func(feature.Ptr) bool) error { return query.Each(f.view(), yield) }

// EachConcurrent is Each, but dispatches per-tile work across a worker
// pool (spec §5 "multi-threaded" scheduling mode).
func (f Features) EachConcurrent(workers int, yield func(feature.Ptr) bool) error {
	return query.EachConcurrent(f.view(), workers, yield)
}

// Within narrows the receiver to features whose bounding box lies
// entirely inside box (spec §6 "within").
func (f Features) Within(box tile.BBox) Features {
	return f.spatial(box, filter.RelWithin)
}

// Intersecting narrows the receiver to features whose bounding box
// overlaps box at all (spec §6 "intersecting").
func (f Features) Intersecting(box tile.BBox) Features {
	return f.spatial(box, filter.RelIntersects)
}

// Containing narrows the receiver to features whose bounding box
// entirely encloses box (spec §6 "containing").
func (f Features) Containing(box tile.BBox) Features {
	return f.spatial(box, filter.RelContains)
}

func (f Features) spatial(box tile.BBox, rel filter.Relation) Features {
	next := f.addFilter(filter.NewSpatialFilter(box, rel))
	next.box = intersectBox(f.box, box)
	return next
}

// MaxMetersFrom narrows the receiver to features within maxMeters of
// (lon, lat) (spec §6 "maxMetersFrom").
func (f Features) MaxMetersFrom(lon, lat, maxMeters float64) Features {
	return f.addFilter(filter.NewMaxMetersFilter(lon, lat, maxMeters))
}

func intersectBox(existing *tile.BBox, add tile.BBox) *tile.BBox {
	if existing == nil {
		b := add
		return &b
	}
	b := tile.BBox{
		MinLon: maxF(existing.MinLon, add.MinLon),
		MinLat: maxF(existing.MinLat, add.MinLat),
		MaxLon: minF(existing.MaxLon, add.MaxLon),
		MaxLat: minF(existing.MaxLat, add.MaxLat),
	}
	return &b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Key pre-resolves name against the store's global-key set (spec §3
// "Features.key(k) Key").
func (f Features) Key(name string) feature.Key { return feature.ResolveKey(name) }

// Length sums each matching feature's bounding-box perimeter, in unit
// (spec §3 "Features.length()"). Geometry beyond a representative point
// and bounding box is out of scope (spec §1 Non-goals), so this is a
// bounding-box approximation rather than a true line length.
func (f Features) Length(unit units.Unit) (float64, error) {
	var meters float64
	err := f.Each(func(p feature.Ptr) bool {
		meters += bboxPerimeterMeters(p.BoundsOf)
		return true
	})
	if err != nil {
		return 0, err
	}
	return units.FromMeters(meters, unit), nil
}

// Area sums each matching feature's bounding-box area, in unit squared
// (spec §3 "Features.area()"). Same bounding-box approximation as Length.
func (f Features) Area(unit units.Unit) (float64, error) {
	var sqMeters float64
	err := f.Each(func(p feature.Ptr) bool {
		sqMeters += bboxAreaMeters(p.BoundsOf)
		return true
	})
	if err != nil {
		return 0, err
	}
	factor := units.FromMeters(1, unit)
	return sqMeters * factor * factor, nil
}

func bboxPerimeterMeters(b feature.BBox) float64 {
	width := filter.HaversineMeters(b.MinLon, b.MinLat, b.MaxLon, b.MinLat)
	height := filter.HaversineMeters(b.MinLon, b.MinLat, b.MinLon, b.MaxLat)
	return 2 * (width + height)
}

func bboxAreaMeters(b feature.BBox) float64 {
	width := filter.HaversineMeters(b.MinLon, b.MinLat, b.MaxLon, b.MinLat)
	height := filter.HaversineMeters(b.MinLon, b.MinLat, b.MinLon, b.MaxLat)
	return width * height
}
