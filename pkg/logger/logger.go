package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "facility-sync"

// New creates a zerolog logger writing to stdout.
// format "pretty" selects the console writer, anything else emits JSON.
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "pretty") || os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			Level(ParseLevel(level)).
			With().
			Timestamp().
			Caller().
			Str("service", serviceName).
			Logger()
	}

	// JSON output for production
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
