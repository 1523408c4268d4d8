// Package logging builds the single process-wide zerolog.Logger used
// by every other package, toggling between an interactive console
// writer and structured JSON depending on how the daemon was started.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures New.
type Options struct {
	Format Format
	Debug  bool
	Output io.Writer // defaults to os.Stderr
}

// New builds a zerolog.Logger per Options. Backgrounded (--silent)
// runs use FormatJSON since there's no terminal to color; interactive
// runs default to FormatConsole.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer = out
	if opts.Format == FormatConsole {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: false}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	if opts.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}
