// Package logging provides structured logging for chunkcsv using zerolog.
package logging

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var logger *zerolog.Logger

var prettyMode atomic.Bool

// IsPrettyMode reports whether completion events should include
// human-readable companion fields (e.g. "1.2 GiB" alongside a raw byte
// count) in addition to their machine-readable values.
func IsPrettyMode() bool {
	return prettyMode.Load()
}

// SetPrettyMode toggles human-readable companion fields on CompletionEvent
// output. Init enables it automatically when human console output is
// requested.
func SetPrettyMode(on bool) {
	prettyMode.Store(on)
}

// IsTTY reports whether stderr is attached to a terminal.
func IsTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// ConsoleOut wraps stderr with ANSI color support on platforms (notably
// Windows) that need it, and is a no-op passthrough elsewhere.
func ConsoleOut() io.Writer {
	return colorable.NewColorableStderr()
}

func init() {
	// Default to JSON logging at info level
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the global logger.
// If debug is true, sets log level to Debug.
// If human is true, uses a human-friendly console writer.
func Init(debug bool, human bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        ConsoleOut(),
			TimeFormat: time.RFC3339,
			NoColor:    !IsTTY(),
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: os.Stderr}
	}
	SetPrettyMode(human)

	l := zerolog.New(output).With().Timestamp().Logger()
	logger = &l
}

// L returns the base logger.
func L() *zerolog.Logger {
	return logger
}

// WithPhase returns a logger with the phase field set.
func WithPhase(phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

// SetLogger allows overriding the global logger (useful for testing).
func SetLogger(l zerolog.Logger) {
	logger = &l
}
