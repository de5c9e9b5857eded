// internal/diag/logger.go
package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogConfig selects the level and output format of the diagnostic logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// NewLogger builds the zerolog logger used for the diagnostic channel.
// Every logger carries a session id so concurrent renders can be told apart.
func NewLogger(cfg LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("session", uuid.NewString()).
		Logger()
}

// ParseLevel converts a config level name; unknown names fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Contained logs a streaming failure that was recovered by passing frames through.
func Contained(log zerolog.Logger, comp string, err error) *zerolog.Event {
	return log.Warn().
		Err(err).
		Str("comp", comp).
		Str("code", string(Classify(err)))
}
