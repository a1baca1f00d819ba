// Package logger builds the zerolog loggers used by every binary and threads
// them through context.Context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New creates a console logger at info level.
func New() zerolog.Logger {
	return NewWithLevel(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}, "info")
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// NewWithLevel creates a logger writing to w at the named level.
// Unknown or empty levels fall back to info.
func NewWithLevel(w io.Writer, level string) zerolog.Logger {
	return NewWithWriter(w).Level(ParseLevel(level))
}

// Output formats accepted by NewWithFormat.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// NewWithFormat is NewWithLevel with a LOG_FORMAT switch: "console" renders
// human-readable lines for local runs, anything else writes JSON.
func NewWithFormat(w io.Writer, level, format string) zerolog.Logger {
	if strings.EqualFold(strings.TrimSpace(format), FormatConsole) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return NewWithLevel(w, level)
}

// ParseLevel maps LOG_LEVEL values such as "debug" or "WARN" to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored by WithContext. Code reached without
// one, such as tests calling services directly, gets New().
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return New()
}
