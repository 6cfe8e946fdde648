// Package logging constructs the process-wide structured logger. It is
// built once at startup and passed down explicitly — no package outside
// cmd/marketpulse mutates the global zerolog logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to stderr at the given level. An
// unparseable level falls back to info rather than failing startup over a
// cosmetic misconfiguration.
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
}
