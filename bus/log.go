package bus

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level names a logging verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// LogConfig configures the bus's logger.
type LogConfig struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// NewLogger builds a zerolog.Logger from cfg. Unlike a package-global
// logger, each Bus owns its own instance so multiple buses in the same
// process (e.g. one per test) don't share global state.
func NewLogger(cfg LogConfig) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).Level(level).With().Timestamp().Logger()
}

// withComponent returns a child logger tagged with a component field,
// the way every subsystem logger in this package identifies itself.
func withComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
