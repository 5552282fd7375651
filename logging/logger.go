// Package logging wires the store and query subsystems to a single
// structured logger so that a host application can pick between a
// human-readable console and a machine-readable JSON stream without the
// rest of the module caring which one is active.
package logging

import (
	"os"

	"github.com/phuslu/log"
)

// CreateDebugLogger returns a verbose, colorless console logger, suitable
// for local development.
func CreateDebugLogger() *log.Logger {
	return &log.Logger{
		Level:  log.DebugLevel,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}

// CreateProductionLogger returns an Info-level JSON logger writing to
// stderr, for embedding inside a service that aggregates logs centrally.
func CreateProductionLogger() *log.Logger {
	return &log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.IOWriter{Writer: os.Stderr},
	}
}

// Discard returns a logger that drops everything; used as the default
// when a caller opens a store without supplying a logger.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel + 1,
		Writer: &log.IOWriter{Writer: nopWriter{}},
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
