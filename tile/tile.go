// Package tile implements the quadtree tile index walker (spec §4.C):
// tile identity and string round-tripping, Mercator bounding-box
// pruning, and a depth-first pull iterator over the on-disk index.
package tile

import (
	"strconv"
	"strings"

	"github.com/byjtew/libgeodesk/golerr"
)

// MaxZoom is the deepest zoom level a Tile may name (spec §3.5).
const MaxZoom = 12

// Tile identifies a quadtree node by (zoom, column, row). Serialized
// form is decimal "z/c/r" (spec §3.5), grounded on
// original_source/src/geom/Tile.cpp's formatReverse/fromString.
type Tile struct {
	Zoom   int
	Column uint32
	Row    uint32
}

// Root is the single tile at zoom 0.
var Root = Tile{Zoom: 0, Column: 0, Row: 0}

// Valid reports whether t names an addressable tile: zoom in [0,12] and
// column/row within [0, 2^zoom).
func (t Tile) Valid() bool {
	if t.Zoom < 0 || t.Zoom > MaxZoom {
		return false
	}
	span := uint32(1) << uint(t.Zoom)
	return t.Column < span && t.Row < span
}

// String renders t as "zoom/column/row".
func (t Tile) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(t.Zoom))
	b.WriteByte('/')
	b.WriteString(strconv.FormatUint(uint64(t.Column), 10))
	b.WriteByte('/')
	b.WriteString(strconv.FormatUint(uint64(t.Row), 10))
	return b.String()
}

// ParseTile parses "zoom/column/row" and validates the result, per
// spec §8: "13/0/0" and "-1/0/0" are rejected, "12/0/0" is accepted.
func ParseTile(s string) (Tile, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Tile{}, golerr.Wrapf(golerr.InvalidFormat, s, "expected \"zoom/column/row\"")
	}
	zoom, err := strconv.Atoi(parts[0])
	if err != nil {
		return Tile{}, golerr.Wrap(golerr.InvalidFormat, s, "bad zoom")
	}
	col, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Tile{}, golerr.Wrap(golerr.InvalidFormat, s, "bad column")
	}
	row, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Tile{}, golerr.Wrap(golerr.InvalidFormat, s, "bad row")
	}
	t := Tile{Zoom: zoom, Column: uint32(col), Row: uint32(row)}
	if !t.Valid() {
		return Tile{}, golerr.Wrapf(golerr.InvalidFormat, s, "tile out of range at zoom %d", zoom)
	}
	return t, nil
}

// Children returns t's four quadrant children at zoom+1, in a fixed,
// deterministic order (NW, NE, SW, SE). Panics if t is already at
// MaxZoom; callers must check before recursing.
func (t Tile) Children() [4]Tile {
	if t.Zoom >= MaxZoom {
		panic("tile: Children called past MaxZoom")
	}
	z := t.Zoom + 1
	c, r := t.Column*2, t.Row*2
	return [4]Tile{
		{Zoom: z, Column: c, Row: r},
		{Zoom: z, Column: c + 1, Row: r},
		{Zoom: z, Column: c, Row: r + 1},
		{Zoom: z, Column: c + 1, Row: r + 1},
	}
}
