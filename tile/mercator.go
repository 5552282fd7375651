package tile

import "math"

// BBox is a longitude/latitude bounding box in degrees, min inclusive,
// max inclusive. Grounded on original_source's Mercator-projected
// Coordinate type (spec §4.C: "pruning uses the tile's Mercator
// bounding box versus the query box").
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// World covers the full extent a tile's Web Mercator projection is
// defined over.
var World = BBox{MinLon: -180, MinLat: -85.05112878, MaxLon: 180, MaxLat: 85.05112878}

// Intersects reports whether b and o overlap, including edge-touching.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLon <= o.MaxLon && b.MaxLon >= o.MinLon &&
		b.MinLat <= o.MaxLat && b.MaxLat >= o.MinLat
}

// Contains reports whether o lies entirely within b.
func (b BBox) Contains(o BBox) bool {
	return b.MinLon <= o.MinLon && b.MaxLon >= o.MaxLon &&
		b.MinLat <= o.MinLat && b.MaxLat >= o.MaxLat
}

// Bounds computes t's Web Mercator longitude/latitude bounding box.
func (t Tile) Bounds() BBox {
	n := math.Exp2(float64(t.Zoom))
	lon := func(x float64) float64 { return x/n*360 - 180 }
	lat := func(y float64) float64 {
		rad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
		return rad * 180 / math.Pi
	}
	minLon := lon(float64(t.Column))
	maxLon := lon(float64(t.Column) + 1)
	maxLat := lat(float64(t.Row))
	minLat := lat(float64(t.Row) + 1)
	return BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
}

// TileAt returns the tile at zoom containing the given longitude/latitude.
func TileAt(zoom int, lon, lat float64) Tile {
	n := math.Exp2(float64(zoom))
	x := (lon + 180) / 360 * n
	latRad := lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
	col := clampCoord(x, n)
	row := clampCoord(y, n)
	return Tile{Zoom: zoom, Column: col, Row: row}
}

func clampCoord(v float64, n float64) uint32 {
	if v < 0 {
		return 0
	}
	if v >= n {
		return uint32(n) - 1
	}
	return uint32(v)
}
