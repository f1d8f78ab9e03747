// Package logging builds the zerolog.Logger threaded explicitly through the
// client and peer packages (the components that log); there is no
// package-level global logger anywhere in this module.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a console-writer logger at level, writing to w. Callers pass
// os.Stderr in production and a bytes.Buffer in tests.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// Default returns the process's stderr logger at info level, debug if
// BITLET_DEBUG is set to any non-empty value.
func Default() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("BITLET_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	return New(os.Stderr, level)
}
