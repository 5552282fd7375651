package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReciprocalRoundTrip(t *testing.T) {
	for u := Meters; u <= Miles; u++ {
		got := metersToUnit[u] * unitToMeters[u]
		assert.InDelta(t, 1.0, got, 1e-9)
	}
}

func TestParseAllAcceptedStrings(t *testing.T) {
	names := map[string]Unit{
		"m": Meters, "meters": Meters, "Meters": Meters,
		"km": Kilometers, "kilometers": Kilometers,
		"ft": Feet, "feet": Feet,
		"yd": Yards, "yards": Yards,
		"mi": Miles, "miles": Miles,
	}
	for s, want := range names {
		got, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := Parse("furlongs")
	assert.Error(t, err)
}

func TestFromMetersToMeters(t *testing.T) {
	assert.InDelta(t, 3.28084, FromMeters(1, Feet), 1e-9)
	assert.InDelta(t, 1, ToMeters(3.28084, Feet), 1e-6)
}
