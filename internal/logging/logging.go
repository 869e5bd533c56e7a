// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a logger for the given application environment. Dev gets
// human-readable console output; everything else emits JSON lines.
func New(appEnv string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if appEnv == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
