package query

import (
	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/golerr"
)

// Collect materializes every matching feature eagerly (spec §4.G
// "Vector conversion collects eagerly").
func Collect(v View) ([]feature.Ptr, error) {
	var out []feature.Ptr
	err := Each(v, func(f feature.Ptr) bool {
		out = append(out, f)
		return true
	})
	return out, err
}

// Count walks the full stream and returns its cardinality. Per spec
// §4.G, queries are not cached, so calling Count then iterating pays
// the query cost twice.
func Count(v View) (int, error) {
	n := 0
	err := Each(v, func(feature.Ptr) bool {
		n++
		return true
	})
	return n, err
}

// First yields the first matching feature, or ok=false if there are none.
func First(v View) (f feature.Ptr, ok bool, err error) {
	err = Each(v, func(found feature.Ptr) bool {
		f, ok = found, true
		return false
	})
	return f, ok, err
}

// One requires exactly one match, returning QueryError.Empty or
// QueryError.NotUnique otherwise (spec §4.G "one() throws NotUnique on
// 0 or >=2 results").
func One(v View) (feature.Ptr, error) {
	var first feature.Ptr
	count := 0
	err := Each(v, func(f feature.Ptr) bool {
		count++
		if count == 1 {
			first = f
		}
		return count < 2
	})
	if err != nil {
		return feature.Ptr{}, err
	}
	switch {
	case count == 0:
		return feature.Ptr{}, golerr.Wrap(golerr.QueryEmpty, "query", "one() called with zero results")
	case count >= 2:
		return feature.Ptr{}, golerr.Wrap(golerr.QueryNotUnique, "query", "one() called with more than one result")
	default:
		return first, nil
	}
}
