// Package log provides structured logging for the IronShield client.
// It wraps log/slog with helpers for the solve pipeline.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with service context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a logger writing to stderr so command output on stdout stays clean
func New(service, version, level, format string) *Logger {
	return NewWithWriter(os.Stderr, service, version, level, format)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, service, version, level, format string) *Logger {
	logLevel := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger:  slog.New(handler).With("service", service, "version", version),
		service: service,
		version: version,
	}
}

// Nop returns a logger that discards everything. Used by tests and library callers
// that do not care about output.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithChallenge returns a logger tagged with the challenge being solved
func (l *Logger) WithChallenge(websiteID string, expiresAt int64) *Logger {
	return l.WithFields("website_id", websiteID, "expiration_ms", expiresAt)
}

// WithWorker returns a logger tagged with a worker's partition
func (l *Logger) WithWorker(index int, offset, stride uint64) *Logger {
	return l.WithFields("worker", index, "offset", offset, "stride", stride)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// LogDuration logs the duration of an operation
func (l *Logger) LogDuration(operation string, duration time.Duration) {
	l.Info("operation completed",
		"operation", operation,
		"duration_ms", float64(duration.Nanoseconds())/1e6,
	)
}

// LogThroughput logs throughput metrics
func (l *Logger) LogThroughput(operation string, count uint64, duration time.Duration) {
	var throughput float64
	if duration > 0 {
		throughput = float64(count) / duration.Seconds()
	}
	l.Info("throughput metrics",
		"operation", operation,
		"count", count,
		"duration_ms", float64(duration.Nanoseconds())/1e6,
		"throughput_ops_sec", throughput,
	)
}

// LogSolveProgress logs a worker's cumulative attempt count (debug level)
func (l *Logger) LogSolveProgress(attempts uint64, elapsed time.Duration) {
	var rate float64
	if elapsed > 0 {
		rate = float64(attempts) / elapsed.Seconds()
	}
	l.Debug("solve progress",
		"attempts", attempts,
		"elapsed_ms", elapsed.Milliseconds(),
		"hash_rate", rate,
	)
}

// LogSolveCompleted logs the outcome of a successful solve
func (l *Logger) LogSolveCompleted(nonce int64, attempts, hashRate uint64, elapsed time.Duration, threads int) {
	l.Info("challenge solved",
		"nonce", nonce,
		"estimated_attempts", attempts,
		"hash_rate", hashRate,
		"elapsed_ms", elapsed.Milliseconds(),
		"threads", threads,
	)
}

// LogRequest logs an outbound API call
func (l *Logger) LogRequest(method, url string, status int, duration time.Duration) {
	l.Debug("api request",
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)
}
