// Package golerr defines the error kinds a Geographic Object Library
// store or query can raise (spec §7) and wraps them with path/context
// information so a caller can both pattern-match on kind (via errors.Is)
// and print a useful diagnostic.
package golerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind sentinels. Use errors.Is(err, golerr.InvalidFormat) etc. to
// classify a wrapped error; Wrap/Wrapf preserve the sentinel chain.
var (
	// FileNotFound is returned when a store path does not exist.
	FileNotFound = errors.New("file not found")

	// IoError wraps an underlying syscall failure (mmap, read, write, fsync).
	IoError = errors.New("i/o error")

	// InvalidFormat indicates a magic/version mismatch, a truncated
	// header, or a blob whose size bounds are inconsistent.
	InvalidFormat = errors.New("invalid store format")

	// StoreFull indicates that extending the store would exceed the
	// 4 TiB addressable limit (4096 segments of 1 GiB each).
	StoreFull = errors.New("store full")

	// QuerySyntax indicates a GOQL parse failure.
	QuerySyntax = errors.New("query syntax error")

	// QueryEmpty indicates One() was called against zero results.
	QueryEmpty = errors.New("query returned no results")

	// QueryNotUnique indicates One() was called against 2+ results.
	QueryNotUnique = errors.New("query returned more than one result")

	// QueryMissingTile indicates geometry resolution needed a tile that
	// is not present in the store.
	QueryMissingTile = errors.New("required tile is missing from store")

	// StoreClosed indicates an operation was attempted against a store
	// whose last handle has already dropped.
	StoreClosed = errors.New("store is closed")
)

// Wrap attaches a path/context string to a sentinel error kind, and
// returns an error that is still classifiable via errors.Is(result, kind).
func Wrap(kind error, path string, context string) error {
	if context == "" {
		return errors.Wrapf(kind, "%s", path)
	}
	return errors.Wrapf(kind, "%s: %s", path, context)
}

// Wrapf is like Wrap but with printf-style context formatting.
func Wrapf(kind error, path string, format string, args ...any) error {
	return Wrap(kind, path, fmt.Sprintf(format, args...))
}

// Is reports whether err is (or wraps) the given kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// QuerySyntaxError carries the column at which a GOQL parse failed,
// per spec §7 ("QueryError::Syntax — GOQL parse failure (column-indexed)").
type QuerySyntaxError struct {
	Query  string
	Column int
	Reason string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("goql syntax error at column %d: %s (in %q)", e.Column, e.Reason, e.Query)
}

func (e *QuerySyntaxError) Unwrap() error { return QuerySyntax }

// NewQuerySyntaxError constructs a column-indexed syntax error.
func NewQuerySyntaxError(query string, column int, reason string) error {
	return &QuerySyntaxError{Query: query, Column: column, Reason: reason}
}
