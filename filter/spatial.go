package filter

import (
	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/tile"
)

// Relation is the spatial relationship a SpatialFilter tests between a
// feature's bounding box and the filter's reference box.
type Relation int

const (
	// RelIntersects accepts a feature whose bbox overlaps the reference box at all.
	RelIntersects Relation = iota
	// RelWithin accepts a feature whose bbox lies entirely inside the reference box.
	RelWithin
	// RelContains accepts a feature whose bbox entirely encloses the reference box.
	RelContains
)

// SpatialFilter tests a feature's bounding box against a fixed
// reference box (spec §6: Features.within/intersecting/containing).
// Geometry beyond a representative point and bounding box is out of
// scope, so "contains"/"within" here mean bbox containment, not
// polygon containment.
type SpatialFilter struct {
	box tile.BBox
	rel Relation
}

// NewSpatialFilter builds a filter accepting features related to box
// by rel.
func NewSpatialFilter(box tile.BBox, rel Relation) *SpatialFilter {
	return &SpatialFilter{box: box, rel: rel}
}

func toTileBBox(b feature.BBox) tile.BBox {
	return tile.BBox{MinLon: b.MinLon, MinLat: b.MinLat, MaxLon: b.MaxLon, MaxLat: b.MaxLat}
}

func (f *SpatialFilter) AcceptTile(t tile.Tile) TileAcceptance {
	tb := t.Bounds()
	if !tb.Intersects(f.box) {
		return None
	}
	switch f.rel {
	case RelIntersects:
		if f.box.Contains(tb) {
			return All
		}
	case RelWithin:
		if f.box.Contains(tb) {
			return Some
		}
	case RelContains:
		if tb.Contains(f.box) {
			return Some
		}
	}
	return Some
}

func (f *SpatialFilter) AcceptFeature(feat feature.Ptr) bool {
	fb := toTileBBox(feat.BoundsOf)
	switch f.rel {
	case RelIntersects:
		return fb.Intersects(f.box)
	case RelWithin:
		return f.box.Contains(fb)
	case RelContains:
		return fb.Contains(f.box)
	default:
		return false
	}
}

// MaxMetersFilter accepts features whose representative point lies
// within a meters radius of a center point (spec §6: maxMetersFrom).
// It is not a SpatialFilter because its tile-level hint depends on a
// radius rather than a fixed box.
type MaxMetersFilter struct {
	centerLon, centerLat float64
	maxMeters            float64
	box                  tile.BBox
}

// NewMaxMetersFilter builds a filter centered at (lon, lat) accepting
// features within maxMeters, computing a conservative enclosing
// lon/lat box up front for the tile-level hint.
func NewMaxMetersFilter(lon, lat, maxMeters float64) *MaxMetersFilter {
	const metersPerDegreeLat = 111_320.0
	dLat := maxMeters / metersPerDegreeLat
	dLon := dLat / cosClamped(lat)
	return &MaxMetersFilter{
		centerLon: lon, centerLat: lat, maxMeters: maxMeters,
		box: tile.BBox{MinLon: lon - dLon, MinLat: lat - dLat, MaxLon: lon + dLon, MaxLat: lat + dLat},
	}
}

func (f *MaxMetersFilter) AcceptTile(t tile.Tile) TileAcceptance {
	if !t.Bounds().Intersects(f.box) {
		return None
	}
	return Some
}

func (f *MaxMetersFilter) AcceptFeature(feat feature.Ptr) bool {
	return HaversineMeters(f.centerLon, f.centerLat, feat.Location.Lon, feat.Location.Lat) <= f.maxMeters
}
