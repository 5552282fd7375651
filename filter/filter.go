// Package filter implements the composable feature/tile acceptance
// tests that sit between the matcher VM and the query executor (spec
// §4.F): spatial and topological predicates, user lambdas, and the
// ComboFilter that combines them with short-circuiting.
package filter

import (
	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/tile"
)

// TileAcceptance is the coarse, tile-granularity verdict a Filter can
// give before any feature inside the tile has been decoded.
type TileAcceptance int

const (
	// All means every feature in the tile is guaranteed to pass
	// AcceptFeature, so per-feature testing can be skipped.
	All TileAcceptance = iota
	// Some means the tile may contain a mix of accepted and rejected
	// features; each must be tested individually.
	Some
	// None means the tile can be skipped entirely.
	None
)

// Filter is a reference-counted (via ordinary Go GC — no explicit
// counting is needed once a Filter is immutable after construction)
// acceptance test, composed of a coarse tile-level hint and a
// per-feature test (spec §4.F: "accept(store, feature, hint) -> bool
// and acceptTile(tile) -> {ALL, SOME, NONE}").
type Filter interface {
	AcceptTile(t tile.Tile) TileAcceptance
	AcceptFeature(f feature.Ptr) bool
}

// alwaysSome is embedded by filters that have no useful tile-level
// hint (e.g. user predicates), so they never claim ALL or NONE without
// evidence.
type alwaysSome struct{}

func (alwaysSome) AcceptTile(tile.Tile) TileAcceptance { return Some }
