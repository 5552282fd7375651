package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byjtew/libgeodesk/feature"
)

func tags(pairs ...string) feature.TagTable {
	var ts []feature.Tag
	for i := 0; i+1 < len(pairs); i += 2 {
		ts = append(ts, feature.Tag{Key: pairs[i], Value: pairs[i+1]})
	}
	return feature.NewTagTable(ts)
}

func TestCompileSimpleEquality(t *testing.T) {
	sels, err := Compile("w[highway=primary]")
	require.NoError(t, err)
	require.Len(t, sels, 1)

	assert.True(t, sels[0].Accept(feature.Way, tags("highway", "primary")))
	assert.False(t, sels[0].Accept(feature.Way, tags("highway", "secondary")))
	assert.False(t, sels[0].Accept(feature.Node, tags("highway", "primary")))
}

func TestCompileKeyPresenceAndAbsence(t *testing.T) {
	sels, err := Compile("n[name]")
	require.NoError(t, err)
	assert.True(t, sels[0].Accept(feature.Node, tags("name", "")))
	assert.False(t, sels[0].Accept(feature.Node, tags("highway", "x")))

	sels, err = Compile("n[!oneway]")
	require.NoError(t, err)
	assert.True(t, sels[0].Accept(feature.Node, tags("name", "x")))
	assert.False(t, sels[0].Accept(feature.Node, tags("oneway", "yes")))
}

func TestCompileConjunctionOfClauses(t *testing.T) {
	sels, err := Compile("w[highway=primary][name]")
	require.NoError(t, err)
	assert.True(t, sels[0].Accept(feature.Way, tags("highway", "primary", "name", "Main St")))
	assert.False(t, sels[0].Accept(feature.Way, tags("highway", "primary")))
}

func TestCompileNumericComparison(t *testing.T) {
	sels, err := Compile("a[maxspeed>=50]")
	require.NoError(t, err)
	assert.True(t, sels[0].Accept(feature.AnyType, tags("maxspeed", "60")))
	assert.False(t, sels[0].Accept(feature.AnyType, tags("maxspeed", "40")))
	assert.False(t, sels[0].Accept(feature.AnyType, tags("maxspeed", "not-a-number")))
}

func TestCompileRegex(t *testing.T) {
	sels, err := Compile(`a[name~"^Main"]`)
	require.NoError(t, err)
	assert.True(t, sels[0].Accept(feature.AnyType, tags("name", "Main Street")))
	assert.False(t, sels[0].Accept(feature.AnyType, tags("name", "Side Street")))
}

func TestCompileTopLevelOr(t *testing.T) {
	sels, err := Compile("n[amenity=cafe], n[amenity=restaurant]")
	require.NoError(t, err)
	require.Len(t, sels, 2)

	matches := func(t2 feature.Type, tt feature.TagTable) bool {
		for _, s := range sels {
			if s.Accept(t2, tt) {
				return true
			}
		}
		return false
	}
	assert.True(t, matches(feature.Node, tags("amenity", "cafe")))
	assert.True(t, matches(feature.Node, tags("amenity", "restaurant")))
	assert.False(t, matches(feature.Node, tags("amenity", "bank")))
}

func TestCompileSyntaxErrorIsColumnIndexed(t *testing.T) {
	_, err := Compile("n[highway")
	require.Error(t, err)
}

// TestMatcherIsDeterministic runs the same program many times against
// the same tag table and asserts every run agrees.
func TestMatcherIsDeterministic(t *testing.T) {
	sels, err := Compile("w[highway=primary][maxspeed<=60][name~\"Ave$\"]")
	require.NoError(t, err)

	tt := tags("highway", "primary", "maxspeed", "45", "name", "5th Ave")
	first := sels[0].Accept(feature.Way, tt)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, sels[0].Accept(feature.Way, tt))
	}
	assert.True(t, first)
}

func TestUnknownOpcodeFailsClosed(t *testing.T) {
	prog := &Program{
		code: []Instruction{{Op: Op(255)}},
		pool: newPool(),
	}
	m := newMatcher(prog)
	assert.False(t, m.Accept(feature.Node, tags()))
}

func TestEmptyProgramFallsOffEndAndRejects(t *testing.T) {
	prog := &Program{pool: newPool()}
	m := newMatcher(prog)
	assert.False(t, m.Accept(feature.Node, tags()))
}
