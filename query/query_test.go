package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/match"
	"github.com/byjtew/libgeodesk/store"
	"github.com/byjtew/libgeodesk/tile"
)

// buildFixture writes a store containing one tile index leaf whose
// feature list holds the given features, and returns the opened store.
func buildFixture(t *testing.T, feats []feature.Ptr) *store.BlobStore {
	t.Helper()
	path := t.TempDir() + "/fixture.gol"
	s, err := store.Create(path, store.CreateOptions{})
	require.NoError(t, err)

	txn, err := s.Begin()
	require.NoError(t, err)

	listBytes := feature.EncodeFeatureList(feats)
	listPage, err := txn.Alloc(uint32(len(listBytes)))
	require.NoError(t, err)
	listPayload, err := s.BlobPayload(listPage)
	require.NoError(t, err)
	copy(listPayload, listBytes)

	leafBytes := tile.EncodeLeaf(listPage)
	leafPage, err := txn.Alloc(uint32(len(leafBytes)))
	require.NoError(t, err)
	leafPayload, err := s.BlobPayload(leafPage)
	require.NoError(t, err)
	copy(leafPayload, leafBytes)

	var children [4]store.PageNum
	children[0] = leafPage
	innerBytes := tile.EncodeInner(0b0001, children)
	rootPage, err := txn.Alloc(uint32(len(innerBytes)))
	require.NoError(t, err)
	rootPayload, err := s.BlobPayload(rootPage)
	require.NoError(t, err)
	copy(rootPayload, innerBytes)

	require.NoError(t, txn.SetIndexPointer(rootPage))
	require.NoError(t, txn.Commit())

	return s
}

func sampleFeatures() []feature.Ptr {
	return []feature.Ptr{
		feature.New(nil, 0, feature.Way, 1,
			feature.NewTagTable([]feature.Tag{{Key: "highway", Value: "primary"}}),
			feature.Point{Lon: 0, Lat: 0}, feature.BBox{}),
		feature.New(nil, 0, feature.Way, 2,
			feature.NewTagTable([]feature.Tag{{Key: "highway", Value: "secondary"}}),
			feature.Point{Lon: 0, Lat: 0}, feature.BBox{}),
		feature.New(nil, 0, feature.Node, 3,
			feature.NewTagTable([]feature.Tag{{Key: "amenity", Value: "cafe"}}),
			feature.Point{Lon: 0, Lat: 0}, feature.BBox{}),
	}
}

func TestEachStreamsMatchingFeatures(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	sels, err := match.Compile("w[highway=primary]")
	require.NoError(t, err)

	v := View{Store: s, Types: feature.AnyType, Selectors: sels}
	out, err := Collect(v)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 1, out[0].ID)
}

func TestCountMatchesCollectLength(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	v := View{Store: s, Types: feature.AnyType}
	n, err := Count(v)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOneFailsOnMultipleResults(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	v := View{Store: s, Types: feature.Way}
	_, err := One(v)
	assert.Error(t, err)
}

func TestOneSucceedsOnSingleResult(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	v := View{Store: s, Types: feature.Node}
	f, err := One(v)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.ID)
}

func TestFirstReturnsFalseOnNoMatch(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	v := View{Store: s, Types: feature.Relation}
	_, ok, err := First(v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeduplicatesAcrossOrSelectors(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	// Both selectors match feature 1 (a primary highway way); the
	// result must still only contain it once.
	sels, err := match.Compile("w[highway=primary], w[highway]")
	require.NoError(t, err)

	v := View{Store: s, Types: feature.AnyType, Selectors: sels}
	out, err := Collect(v)
	require.NoError(t, err)

	ids := map[int64]int{}
	for _, f := range out {
		ids[f.ID]++
	}
	assert.Equal(t, 1, ids[1])
	assert.LessOrEqual(t, ids[1], 1)
}

func TestEachConcurrentMatchesEachSequential(t *testing.T) {
	s := buildFixture(t, sampleFeatures())
	defer s.Close()

	sels, err := match.Compile("a[highway]")
	require.NoError(t, err)
	v := View{Store: s, Types: feature.AnyType, Selectors: sels}

	sequential, err := Collect(v)
	require.NoError(t, err)

	var concurrent []feature.Ptr
	err = EachConcurrent(v, 4, func(f feature.Ptr) bool {
		concurrent = append(concurrent, f)
		return true
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, idsOf(sequential), idsOf(concurrent))
}

func idsOf(fs []feature.Ptr) []int64 {
	out := make([]int64, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}
