package match

import "github.com/byjtew/libgeodesk/feature"

// clauseKind distinguishes the shapes of clause a Selector can hold
// (spec §6: key presence, key absence, value comparisons, regex).
type clauseKind uint8

const (
	clauseHasKey clauseKind = iota
	clauseNoKey
	clauseStrEq
	clauseStrNe
	clauseDouble
	clauseRegex
)

// keyOp orders clauses so clauses sharing a key sit adjacent to each
// other (grounded on Selector.cpp's keyOp.compareTo, which the
// original uses to detect and absorb same-key clauses into one
// load-once, test-many-times chain).
type keyOp struct {
	key string
}

func (a keyOp) compareTo(b keyOp) int {
	switch {
	case a.key < b.key:
		return -1
	case a.key > b.key:
		return 1
	default:
		return 0
	}
}

// tagClause is one parsed GOQL clause, e.g. `[highway=primary]` or
// `[!oneway]`.
type tagClause struct {
	keyOp  keyOp
	kind   clauseKind
	negate bool
	str    string
	dblOp  DoubleOp
	dbl    float64
	regex  string
	next   *tagClause
}

// absorb merges an additional test for the same key onto this clause
// by chaining it after this one; addClause already guarantees they
// share a key, so the emitted code reuses a single LOAD_*_KEY.
func (c *tagClause) absorb(other *tagClause) {
	tail := c
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = other
}

// selector is one compiled top-level clause group: an accepted
// feature-type mask plus an ordered chain of tagClauses, all of which
// must match (conjunction via adjacency, spec §6).
type selector struct {
	acceptedTypes feature.Type
	firstClause   *tagClause
}

func newSelector(types feature.Type) *selector {
	return &selector{acceptedTypes: types}
}

// addClause inserts clause in key order, absorbing it into an existing
// clause for the same key if one is already present (Selector.cpp).
func (s *selector) addClause(clause *tagClause) {
	pNext := &s.firstClause
	var current *tagClause
	for {
		current = *pNext
		if current == nil {
			break
		}
		comp := current.keyOp.compareTo(clause.keyOp)
		if comp < 0 {
			pNext = &current.next
			continue
		}
		if comp == 0 {
			current.absorb(clause)
			return
		}
		break
	}
	clause.next = current
	*pNext = clause
}
