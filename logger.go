package idgo

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hupe1980/idgo/coldstore"
)

// Logger wraps slog.Logger with idgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithID adds an id field to the logger (useful for tagging operations).
func (l *Logger) WithID(id uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithGeneration adds an archive generation field to the logger.
func (l *Logger) WithGeneration(generation uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("generation", generation),
	}
}

// LogAllocate logs an allocate operation.
func (l *Logger) LogAllocate(ctx context.Context, id uint32, attempts int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "allocate failed",
			"attempts", attempts,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "allocate completed",
			"id", id,
			"attempts", attempts,
		)
	}
}

// LogRelease logs a release operation.
func (l *Logger) LogRelease(ctx context.Context, id uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "release failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "release completed",
			"id", id,
		)
	}
}

// LogFlush logs a flush of the hot tier into the archive.
func (l *Logger) LogFlush(ctx context.Context, count int, generation uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "flush completed",
			"count", count,
			"generation", generation,
		)
	}
}

// LogRecovery logs the archive recovery performed on open.
func (l *Logger) LogRecovery(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed",
			"ids_recovered", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery completed",
			"ids_recovered", count,
		)
	}
}

// forwardLogger adapts Logger to the minimal printf-style interface the
// coldstore package accepts.
type forwardLogger struct {
	l *Logger
}

var _ coldstore.Logger = forwardLogger{}

func (f forwardLogger) Infof(format string, args ...interface{}) {
	f.l.Info(fmt.Sprintf(format, args...))
}

func (f forwardLogger) Errorf(format string, args ...interface{}) {
	f.l.Error(fmt.Sprintf(format, args...))
}
