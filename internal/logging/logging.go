// Package logging adapts zerolog to the key/value logger the volume service
// writes to.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Logger wraps a zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds a logger writing to w at level in the given format.
func New(w io.Writer, app string, level zerolog.Level, format Format) *Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("app", app).Logger()
	return &Logger{zl: zl}
}

// FromEnv builds a logger writing to w, configured by SEEM_LOG_LEVEL
// (default info) and SEEM_LOG_FORMAT (console|json, default console).
func FromEnv(w io.Writer, app string) (*Logger, error) {
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("SEEM_LOG_LEVEL")); raw != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("SEEM_LOG_LEVEL: %w", err)
		}
		level = parsed
	}
	format := FormatConsole
	switch raw := Format(strings.ToLower(strings.TrimSpace(os.Getenv("SEEM_LOG_FORMAT")))); raw {
	case "", FormatConsole:
	case FormatJSON:
		format = FormatJSON
	default:
		return nil, fmt.Errorf("SEEM_LOG_FORMAT: unknown format %q", raw)
	}
	return New(w, app, level, format), nil
}

// Zerolog exposes the wrapped logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

func (l *Logger) Debug(msg string, args ...any) { emit(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { emit(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { emit(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { emit(l.zl.Error(), msg, args) }

// emit attaches alternating key/value args. A trailing key without a value
// is logged under "!BADKEY".
func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			e = e.Interface("!BADKEY", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
