package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureListRoundTrip(t *testing.T) {
	in := []Ptr{
		New(nil, 0, Node, 42, NewTagTable([]Tag{{Key: "highway", Value: "primary"}}),
			Point{Lon: 1.5, Lat: 2.5}, BBox{MinLon: 1, MinLat: 2, MaxLon: 3, MaxLat: 4}),
		New(nil, 0, Way, -7, NewTagTable(nil), Point{Lon: 0, Lat: 0}, BBox{}),
	}

	encoded := EncodeFeatureList(in)
	out, err := DecodeFeatureList(encoded, nil, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, int64(42), out[0].ID)
	assert.Equal(t, Node, out[0].Type)
	assert.InDelta(t, 1.5, out[0].Location.Lon, 1e-12)
	v, ok := out[0].Tags.Get("highway")
	assert.True(t, ok)
	assert.Equal(t, "primary", v)

	assert.Equal(t, int64(-7), out[1].ID)
	assert.Equal(t, 0, out[1].Tags.Len())
}

func TestDecodeFeatureListRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeFeatureList([]byte{0xFF}, nil, 0)
	assert.Error(t, err)
}
