// Package logger provides structured logging utilities.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Logger wraps slog.Logger with additional context.
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level and format writing to stdout.
func New(level, format string) *Logger {
	return NewWithWriter(level, format, os.Stdout)
}

// NewWithWriter creates a logger that writes to w. The CLI uses stderr so
// that rendered tables on stdout stay clean.
func NewWithWriter(level, format string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// ContextWithRequestID stores a request ID for WithContext to pick up.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns a logger with context values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID, ok := RequestIDFromContext(ctx); ok {
		return &Logger{
			Logger: l.With("request_id", reqID),
		}
	}
	return l
}

// WithRun returns a logger tagged with an evaluation run ID.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.With("run_id", runID),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the default logger.
func Default() *Logger {
	return New("info", "text")
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
