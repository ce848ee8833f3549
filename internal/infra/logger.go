package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the studio binaries.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, os.Stdout)
}

// NewCLILogger writes to errOut (stderr for studioctl) so command output on
// stdout stays clean.
func NewCLILogger(appEnv string, errOut io.Writer) zerolog.Logger {
	return newLogger(appEnv, errOut)
}

func newLogger(appEnv string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger
}

// DiscardLogger returns a logger for components constructed without one.
func DiscardLogger() *Logger {
	l := Logger(zerolog.New(io.Discard))
	return &l
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger
