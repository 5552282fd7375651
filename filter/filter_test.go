package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/tile"
)

type fixedFilter struct {
	tileVerdict TileAcceptance
	accept      bool
}

func (f fixedFilter) AcceptTile(tile.Tile) TileAcceptance { return f.tileVerdict }
func (f fixedFilter) AcceptFeature(feature.Ptr) bool      { return f.accept }

func ptrWithBounds(b feature.BBox) feature.Ptr {
	return feature.New(nil, 0, feature.Node, 1, feature.NewTagTable(nil), feature.Point{}, b)
}

func TestComboFlattensNestedFilters(t *testing.T) {
	a := fixedFilter{tileVerdict: All, accept: true}
	b := fixedFilter{tileVerdict: All, accept: true}
	c := fixedFilter{tileVerdict: All, accept: true}

	left := NewComboFilter(a, NewComboFilter(b, c))
	right := NewComboFilter(NewComboFilter(a, b), c)

	assert.Len(t, left.filters, 3)
	assert.Len(t, right.filters, 3)
}

func TestComboAssociativity(t *testing.T) {
	samples := []fixedFilter{
		{tileVerdict: All, accept: true},
		{tileVerdict: Some, accept: false},
		{tileVerdict: None, accept: true},
	}
	tt := tile.Tile{Zoom: 4, Column: 3, Row: 2}
	ft := ptrWithBounds(feature.BBox{})

	for _, a := range samples {
		for _, b := range samples {
			for _, c := range samples {
				left := NewComboFilter(a, NewComboFilter(b, c))
				right := NewComboFilter(NewComboFilter(a, b), c)
				assert.Equal(t, left.AcceptTile(tt), right.AcceptTile(tt))
				assert.Equal(t, left.AcceptFeature(ft), right.AcceptFeature(ft))
			}
		}
	}
}

func TestComboShortCircuitsOnNone(t *testing.T) {
	combo := NewComboFilter(
		fixedFilter{tileVerdict: All, accept: true},
		fixedFilter{tileVerdict: None, accept: true},
	)
	assert.Equal(t, None, combo.AcceptTile(tile.Tile{}))
}

func TestComboAllOnlyWhenEverySubfilterIsAll(t *testing.T) {
	combo := NewComboFilter(
		fixedFilter{tileVerdict: All, accept: true},
		fixedFilter{tileVerdict: Some, accept: true},
	)
	assert.Equal(t, Some, combo.AcceptTile(tile.Tile{}))

	combo2 := NewComboFilter(
		fixedFilter{tileVerdict: All, accept: true},
		fixedFilter{tileVerdict: All, accept: true},
	)
	assert.Equal(t, All, combo2.AcceptTile(tile.Tile{}))
}

func TestComboFeatureIsAnd(t *testing.T) {
	combo := NewComboFilter(
		fixedFilter{tileVerdict: All, accept: true},
		fixedFilter{tileVerdict: All, accept: false},
	)
	assert.False(t, combo.AcceptFeature(ptrWithBounds(feature.BBox{})))
}

func TestSpatialFilterWithin(t *testing.T) {
	box := tile.BBox{MinLon: -10, MinLat: -10, MaxLon: 10, MaxLat: 10}
	f := NewSpatialFilter(box, RelWithin)

	inside := ptrWithBounds(feature.BBox{MinLon: -1, MinLat: -1, MaxLon: 1, MaxLat: 1})
	outside := ptrWithBounds(feature.BBox{MinLon: 20, MinLat: 20, MaxLon: 21, MaxLat: 21})
	straddling := ptrWithBounds(feature.BBox{MinLon: 9, MinLat: 9, MaxLon: 11, MaxLat: 11})

	assert.True(t, f.AcceptFeature(inside))
	assert.False(t, f.AcceptFeature(outside))
	assert.False(t, f.AcceptFeature(straddling))
}

func TestMemberFilter(t *testing.T) {
	f := NewMemberFilter([]int64{1, 2, 3})
	member := ptrWithBounds(feature.BBox{})
	nonMember := feature.New(nil, 0, feature.Node, 99, feature.NewTagTable(nil), feature.Point{}, feature.BBox{})

	assert.True(t, f.AcceptFeature(member))
	assert.False(t, f.AcceptFeature(nonMember))
}

func TestPredicateAppliesCallbackToFeaturesOnly(t *testing.T) {
	p := NewPredicate(func(f feature.Ptr) bool { return f.ID%2 == 0 })
	assert.Equal(t, Some, p.AcceptTile(tile.Tile{}))
	assert.True(t, p.AcceptFeature(feature.New(nil, 0, feature.Node, 2, feature.NewTagTable(nil), feature.Point{}, feature.BBox{})))
	assert.False(t, p.AcceptFeature(feature.New(nil, 0, feature.Node, 3, feature.NewTagTable(nil), feature.Point{}, feature.BBox{})))
}
