// Package logging builds the process-wide zerolog logger used by every
// cmd/ entry point and library package, following the level/format
// conventions of the original hub server (LOG_LEVEL debug|info|warn|error,
// human console output in development, JSON in production).
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger at the given level, writing JSON unless pretty is
// requested (pretty is meant for local/dev runs, mirroring the teacher's
// "[WS] "-prefixed bootstrap logger before structured logging comes up).
func New(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out zerolog.ConsoleWriter
	var logger zerolog.Logger
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
		logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	logger = logger.Level(parseLevel(level))
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
