package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byjtew/libgeodesk/store"
)

func TestTileRoundTrip(t *testing.T) {
	cases := []Tile{
		{Zoom: 0, Column: 0, Row: 0},
		{Zoom: 5, Column: 17, Row: 9},
		{Zoom: 12, Column: 0, Row: 0},
		{Zoom: 12, Column: 4095, Row: 4095},
	}
	for _, tile := range cases {
		s := tile.String()
		got, err := ParseTile(s)
		require.NoError(t, err)
		assert.Equal(t, tile, got)
	}
}

func TestParseTileBoundary(t *testing.T) {
	_, err := ParseTile("12/0/0")
	require.NoError(t, err)

	_, err = ParseTile("13/0/0")
	require.Error(t, err)

	_, err = ParseTile("-1/0/0")
	require.Error(t, err)
}

func TestParseTileFromString(t *testing.T) {
	got, err := ParseTile("5/17/9")
	require.NoError(t, err)
	assert.Equal(t, Tile{Zoom: 5, Column: 17, Row: 9}, got)
}

func TestChildrenOverlapParentBounds(t *testing.T) {
	parent := Tile{Zoom: 3, Column: 2, Row: 2}
	pb := parent.Bounds()
	for _, c := range parent.Children() {
		cb := c.Bounds()
		assert.True(t, pb.Contains(cb) || pb.Intersects(cb))
	}
}

func TestNodeEncodeDecodeRoundTrip(t *testing.T) {
	leaf := EncodeLeaf(store.PageNum(42))
	n, err := decodeNode(leaf)
	require.NoError(t, err)
	assert.True(t, n.IsLeaf)
	assert.EqualValues(t, 42, n.FeatureListPage)

	var children [4]store.PageNum
	children[0] = 10
	children[2] = 30
	inner := EncodeInner(0b0101, children)
	n2, err := decodeNode(inner)
	require.NoError(t, err)
	assert.False(t, n2.IsLeaf)
	assert.EqualValues(t, 10, n2.ChildPages[0])
	assert.EqualValues(t, 30, n2.ChildPages[2])
	assert.EqualValues(t, 0, n2.ChildPages[1])
}

func TestWalkerYieldsIntersectingLeavesOnly(t *testing.T) {
	path := t.TempDir() + "/idx.gol"
	s, err := store.Create(path, store.CreateOptions{})
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.Begin()
	require.NoError(t, err)

	leafPage, err := txn.Alloc(uint32(len(EncodeLeaf(999))))
	require.NoError(t, err)
	leafPayload, err := s.BlobPayload(leafPage)
	require.NoError(t, err)
	copy(leafPayload, EncodeLeaf(999))

	var children [4]store.PageNum
	children[0] = leafPage
	innerBytes := EncodeInner(0b0001, children)
	rootPage, err := txn.Alloc(uint32(len(innerBytes)))
	require.NoError(t, err)
	rootPayload, err := s.BlobPayload(rootPage)
	require.NoError(t, err)
	copy(rootPayload, innerBytes)

	require.NoError(t, txn.Commit())

	w := NewWalker(s, rootPage, World)
	payload, ok := w.Next()
	require.True(t, ok)
	require.NoError(t, w.Err())
	assert.EqualValues(t, 999, payload.FeatureListPage)

	_, ok = w.Next()
	assert.False(t, ok)
	assert.NoError(t, w.Err())
}
