// Package logger provides a structured, module-aware logging system built on Go's standard log/slog.
//
// Components receive a Logger scoped to their module and log with typed fields:
//
//	log := centralLogger.Module("analysis")
//	log.Info("Capture analyzed",
//	    logger.String("capture_id", id.String()),
//	    logger.Float64("confidence", 0.93))
//
// Console output is human-readable text, file output is JSON:
//
//	{"time":"2025-01-12T10:30:00Z","level":"INFO","msg":"Capture analyzed","module":"analysis","capture_id":"..."}
//
// For tests use NewSlogLogger with a buffer or io.Discard.
package logger

import (
	"context"
	"time"
)

// LogLevel is a severity name as used in configuration.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const (
	errorKey     = "error"
	moduleKey    = "module"
	batchIDField = "batch_id"
)

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value any
}

// Logger is injected into every component that logs.
type Logger interface {
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	Flush() error
}

func String(key, value string) Field { return Field{key, value} }
func Int(key string, value int) Field { return Field{key, value} }
func Int64(key string, value int64) Field { return Field{key, value} }
func Bool(key string, value bool) Field { return Field{key, value} }
func Time(key string, value time.Time) Field { return Field{key, value} }
func Any(key string, value any) Field { return Field{key, value} }

// Float64 values are rounded to three decimals on output.
func Float64(key string, value float64) Field { return Field{key, value} }

// Duration renders as "1.5s" rather than nanoseconds.
func Duration(key string, value time.Duration) Field { return Field{key, value} }

// Error always uses the "error" key.
//
//	if err := store.MarkCompleted(ctx, id); err != nil {
//	    log.Error("Failed to mark queue entry completed", logger.Error(err))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{errorKey, nil}
	}
	return Field{errorKey, err.Error()}
}
