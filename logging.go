package raytracer

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

const (
	LevelTrace    = slog.Level(-8)
	LevelDebug    = slog.LevelDebug
	LevelInfo     = slog.LevelInfo
	LevelWarn     = slog.LevelWarn
	LevelError    = slog.LevelError
	LevelCritical = slog.Level(12)
)

// Logger is a leveled logger with the trace and critical levels slog lacks.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// NewLogger writes text records at or above level to w.
func NewLogger(w io.Writer, level slog.Level) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	})
	return &Logger{Logger: slog.New(h)}
}

// OpenLogger appends to the file at path, or writes to stderr when path is empty.
func OpenLogger(path string, level slog.Level) (*Logger, error) {
	if path == "" {
		return NewLogger(os.Stderr, level), nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}
	l := NewLogger(file, level)
	l.closer = file
	return l, nil
}

// DiscardLogger drops every record.
func DiscardLogger() *Logger {
	return NewLogger(io.Discard, LevelCritical+1)
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case level < LevelDebug:
		a.Value = slog.StringValue("TRACE")
	case level >= LevelCritical:
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

func (l *Logger) Trace(msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

func (l *Logger) Critical(msg string, args ...any) {
	l.Log(context.Background(), LevelCritical, msg, args...)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "trace", "TRACE":
		return LevelTrace, nil
	case "critical", "CRITICAL":
		return LevelCritical, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return LevelInfo, errors.Wrapf(err, "parse log level %q", name)
	}
	return level, nil
}
