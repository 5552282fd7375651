package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagTableGet(t *testing.T) {
	tt := NewTagTable([]Tag{{Key: "highway", Value: "primary"}, {Key: "name", Value: "Main St"}})
	v, ok := tt.Get("highway")
	assert.True(t, ok)
	assert.Equal(t, "primary", v)

	_, ok = tt.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, tt.Len())
	assert.Equal(t, "name", tt.At(1).Key)
}

func TestTypeBitmask(t *testing.T) {
	assert.Equal(t, AnyType, Node|Way|Relation)
	assert.NotZero(t, Node&AnyType)
}

func TestVisitedSetDetectsCycle(t *testing.T) {
	v := NewVisitedSet()

	assert.False(t, v.Visit(1))
	assert.False(t, v.Visit(2))
	assert.True(t, v.Visit(1))
}

func TestVisitedSetTerminatesTraversal(t *testing.T) {
	// Simulates a relation graph 1 -> 2 -> 3 -> 1 (a cycle); a naive
	// recursive walk without a visited-set would never terminate.
	graph := map[int64][]int64{
		1: {2},
		2: {3},
		3: {1},
	}
	v := NewVisitedSet()
	visitedOrder := []int64{}

	var walk func(id int64)
	walk = func(id int64) {
		if v.Visit(id) {
			return
		}
		visitedOrder = append(visitedOrder, id)
		for _, child := range graph[id] {
			walk(child)
		}
	}
	walk(1)

	assert.Equal(t, []int64{1, 2, 3}, visitedOrder)
}
