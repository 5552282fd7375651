// Package feature defines the feature types, tag tables, and store
// handle the matcher VM and filter layer operate against (spec §3.5,
// §3.6). It sits below match/ and filter/, and above store/.
package feature

import (
	"github.com/byjtew/libgeodesk/store"
)

// Type is a bitmask so a query can select any combination of node, way,
// and relation in one pass (spec §6: type selectors n/w/a/r, where "a"
// means "any").
type Type uint32

const (
	Node Type = 1 << iota
	Way
	Relation

	AnyType = Node | Way | Relation
)

// Tag is one key/value pair from a feature's tag table.
type Tag struct {
	Key   string
	Value string
}

// TagTable is a feature's tags. The on-disk format distinguishes global
// keys (short integer-indexed, interned strings) from local keys
// (inline string bytes); once decoded into a TagTable both look the
// same to the matcher, which only needs key/value lookup (spec §3.5,
// §4.D: "pTagTable_ and tagKey_ locate it lazily").
type TagTable struct {
	tags []Tag
}

// NewTagTable builds a TagTable from already-decoded tags.
func NewTagTable(tags []Tag) TagTable { return TagTable{tags: tags} }

// Get returns the value for key and whether it was present.
func (tt TagTable) Get(key string) (string, bool) {
	for _, t := range tt.tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Len returns the number of tags.
func (tt TagTable) Len() int { return len(tt.tags) }

// At returns the tag at index i.
func (tt TagTable) At(i int) Tag { return tt.tags[i] }

// Point is a projected coordinate, in the same Mercator space as
// tile.Tile.Bounds (spec §4.C/§4.F: spatial filters compare feature
// geometry against tile/query boxes). Geometry beyond a representative
// point and bounding box is out of scope (spec §1 Non-goals).
type Point struct {
	Lon, Lat float64
}

// Ptr is an opaque handle to a feature record living inside a blob; its
// lifetime is tied to the BlobStore mapping it came from (spec §3.5).
type Ptr struct {
	store *store.BlobStore
	page  store.PageNum

	Type     Type
	ID       int64
	Tags     TagTable
	Location Point
	BoundsOf BBox
}

// BBox is a feature's bounding box in the same units as tile.BBox
// (duplicated here rather than imported, to keep feature free of a
// dependency on tile; query/ reconciles the two where it fetches tiles).
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Store returns the FeatureStore this pointer was read from.
func (p Ptr) Store() *store.BlobStore { return p.store }

// Page returns the blob page this feature record lives in.
func (p Ptr) Page() store.PageNum { return p.page }

// New constructs a Ptr. Used by the feature-list decoder (DecodeFeatureList in codec.go) once
// a tile's leaf payload has been parsed into individual feature records.
func New(s *store.BlobStore, page store.PageNum, typ Type, id int64, tags TagTable, loc Point, bounds BBox) Ptr {
	return Ptr{store: s, page: page, Type: typ, ID: id, Tags: tags, Location: loc, BoundsOf: bounds}
}

// globalKeys are the small set of frequently-queried OSM tag keys a
// store interns as short integer-indexed global keys rather than
// inline local-key bytes (spec §3.5, §9 "global vs. local keys").
var globalKeys = map[string]bool{
	"highway": true, "name": true, "natural": true, "building": true,
	"landuse": true, "amenity": true, "waterway": true, "railway": true,
	"boundary": true, "place": true,
}

// IsGlobalKey reports whether key belongs to the store's global-key set.
func IsGlobalKey(key string) bool { return globalKeys[key] }

// Key is the metadata a caller gets back from pre-resolving a tag key
// name against a store's global-key set (`Features.h`'s Features.key(k),
// spec §3 supplemented features), letting repeated matcher compiles
// against the same key skip the lookup.
type Key struct {
	Name   string
	Global bool
}

// ResolveKey looks up name against the global-key set.
func ResolveKey(name string) Key {
	return Key{Name: name, Global: IsGlobalKey(name)}
}
