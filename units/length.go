// Package units provides the length-unit conversion table used by
// Features.Length/Area (spec §6 "Length units").
package units

import (
	"strings"

	"github.com/byjtew/libgeodesk/golerr"
)

// Unit is a length unit accepted by the query API.
type Unit int

const (
	Meters Unit = iota
	Kilometers
	Feet
	Yards
	Miles

	numUnits = int(Miles) + 1
)

// metersToUnit[i] converts a value in meters to Unit(i); unitToMeters is
// its reciprocal (spec §6, §8 property 5: round-trips within 1e-9).
var metersToUnit = [numUnits]float64{
	Meters:     1,
	Kilometers: 0.001,
	Feet:       3.28084,
	Yards:      1.093613,
	Miles:      6.213711922373339e-4,
}

var unitToMeters [numUnits]float64

func init() {
	for i, f := range metersToUnit {
		unitToMeters[i] = 1 / f
	}
}

var byName = map[string]Unit{
	"m": Meters, "meters": Meters,
	"km": Kilometers, "kilometers": Kilometers,
	"ft": Feet, "feet": Feet,
	"yd": Yards, "yards": Yards,
	"mi": Miles, "miles": Miles,
}

// Parse resolves one of the accepted unit strings (m, meters, km,
// kilometers, ft, feet, yd, yards, mi, miles), case-insensitively.
func Parse(s string) (Unit, error) {
	u, ok := byName[strings.ToLower(s)]
	if !ok {
		return 0, golerr.Wrapf(golerr.InvalidFormat, s, "unrecognized length unit %q", s)
	}
	return u, nil
}

// FromMeters converts a value in meters to u.
func FromMeters(meters float64, u Unit) float64 { return meters * metersToUnit[u] }

// ToMeters converts a value in u to meters.
func ToMeters(value float64, u Unit) float64 { return value * unitToMeters[u] }
