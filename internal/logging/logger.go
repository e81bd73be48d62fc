// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a zerolog logger for the given level. Development mode writes
// human readable console output, otherwise JSON lines are written to stdout.
// The levels "silent" and "off" discard all output.
func New(level string, development bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, development)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(out io.Writer, level string, development bool) zerolog.Logger {
	lvl := ParseLevel(level)
	if lvl == zerolog.Disabled {
		return zerolog.Nop()
	}

	if development {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps LOG_LEVEL values to zerolog levels, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return zerolog.Disabled
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
