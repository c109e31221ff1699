// Package logger provides structured logging for the zoo server.
// Every command and scheduler decision should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides leveled, structured logging with context.
type Logger struct {
	slog *slog.Logger
}

// NewLogger creates a logger writing text records to stdout at info level.
func NewLogger() *Logger {
	return NewWithWriter(os.Stdout, slog.LevelInfo)
}

// NewWithWriter creates a logger writing to w at the given level.
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{slog: slog.New(h).With("component", "zoo")}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, slog.LevelError+4)
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// With returns a logger that adds attrs to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Debug logs verbose diagnostics.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs informational messages.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs error messages.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Event logs a specific simulation event for oversight.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.slog.Info(details, "event", eventType, "actor", actorID)
}
