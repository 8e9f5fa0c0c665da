// Package logging builds the process root logger. Library packages never log
// through a global; they receive a zerolog.Logger via their Options struct and
// default to a no-op logger when none is given.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format names for New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a root logger writing to stderr. Level is one of zerolog's
// level names (debug, info, warn, error); format selects JSON or a
// human-readable console rendering.
func New(level, format string) (zerolog.Logger, error) {
	return NewWithOutput(level, format, os.Stderr)
}

// NewWithOutput is New with an explicit sink.
func NewWithOutput(level, format string, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch format {
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON, "":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q: want %s or %s", format, FormatJSON, FormatConsole)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return logger, nil
}
