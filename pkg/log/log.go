package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

// Log levels, lowest to highest severity.
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// Format selects the output encoding.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// ParseFormat parses a format name ("text" or "json").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return TextFormat, fmt.Errorf("log: unknown format %q", s)
	}
}

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value any
}

// F creates a generic field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Str creates a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Dur creates a duration field.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err creates an "error" field. A nil error renders as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is the leveled, structured logging interface used across DriftQ.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger carrying the extra fields on every message.
	With(fields ...Field) Logger
	// WithComponent tags messages with a component name.
	WithComponent(component string) Logger
}

// Option configures NewLogger.
type Option func(*options)

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// WithLevel sets the minimum level.
func WithLevel(level Level) Option { return func(o *options) { o.level = level } }

// WithFormat sets the output encoding.
func WithFormat(format Format) Option { return func(o *options) { o.format = format } }

// WithWriter sets the output writer. Defaults to stderr.
func WithWriter(w io.Writer) Option { return func(o *options) { o.out = w } }

type baseLogger struct {
	sl *slog.Logger
}

// NewLogger builds a Logger. Defaults: InfoLevel, text format, stderr.
func NewLogger(opts ...Option) Logger {
	o := options{level: InfoLevel, format: TextFormat, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	ho := &slog.HandlerOptions{Level: toSlogLevel(o.level)}
	var h slog.Handler
	if o.format == JSONFormat {
		h = slog.NewJSONHandler(o.out, ho)
	} else {
		h = slog.NewTextHandler(o.out, ho)
	}
	return &baseLogger{sl: slog.New(h)}
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() Logger {
	return &baseLogger{sl: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))}
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.sl.Debug(msg, attrs(fields)...) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.sl.Info(msg, attrs(fields)...) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.sl.Warn(msg, attrs(fields)...) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.sl.Error(msg, attrs(fields)...) }

func (l *baseLogger) With(fields ...Field) Logger {
	return &baseLogger{sl: l.sl.With(attrs(fields)...)}
}

func (l *baseLogger) WithComponent(component string) Logger {
	return l.With(Str("component", component))
}
