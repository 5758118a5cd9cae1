// Package logging provides the structured, field-scoped logger used across
// the store directory, archive, registry, index, ingest, query, hierarchy
// and duplicate-analysis packages. It wraps logrus the same way the
// teacher package's ContextLogger does: a base set of fields is attached
// once, then narrowed per call site with With/WithFields.
package logging

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Level names the standard logging levels accepted by Config.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config configures a root logger.
type Config struct {
	Level      Level
	JSON       bool
	Component  string // e.g. "weather" or "fsview"
	AddCaller  bool
	TimeFormat string
}

// DefaultConfig returns sensible defaults for a CLI tool: text output,
// info level, RFC3339 timestamps.
func DefaultConfig(component string) Config {
	return Config{
		Level:      LevelInfo,
		JSON:       false,
		Component:  component,
		TimeFormat: time.RFC3339,
	}
}

// New builds a *logrus.Logger from Config.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}
	logger.SetReportCaller(cfg.AddCaller)

	return logger
}

// Logger is a field-scoped wrapper around a *logrus.Logger.
type Logger struct {
	base   *logrus.Logger
	fields logrus.Fields
}

// NewLogger wraps a base logrus logger with an initial field set, typically
// {"component": "weather"} or {"component": "fsview"}.
func NewLogger(base *logrus.Logger, fields map[string]interface{}) *Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	merged := make(logrus.Fields, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{base: base, fields: merged}
}

// With returns a derived Logger carrying an additional field.
func (l *Logger) With(key string, value interface{}) *Logger {
	merged := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		merged[k] = v
	}
	merged[key] = value
	return &Logger{base: l.base, fields: merged}
}

// WithFields returns a derived Logger carrying additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{base: l.base, fields: merged}
}

// WithError attaches an error to the field set.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err.Error())
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.base.WithFields(l.fields).Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.base.WithFields(l.fields).Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.base.WithFields(l.fields).Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.base.WithFields(l.fields).Errorf(format, args...)
}

// Timed logs the start and end of operation, including duration, and
// returns a func to call at the end (typically via defer).
func Timed(l *Logger, operation string) func(err *error) {
	start := time.Now()
	l.With("operation", operation).Infof("operation started")
	return func(err *error) {
		duration := time.Since(start)
		scoped := l.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration_ms": duration.Milliseconds(),
		})
		if err != nil && *err != nil {
			scoped.WithError(*err).Errorf("operation failed")
			return
		}
		scoped.Infof("operation completed")
	}
}

// RecoverPanic recovers a panic, logs it with a stack trace, and re-panics
// only if rethrow is true. It is intended to be deferred.
func RecoverPanic(l *Logger, rethrow bool) {
	r := recover()
	if r == nil {
		return
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	l.WithFields(map[string]interface{}{
		"panic":      fmt.Sprintf("%v", r),
		"stacktrace": string(buf[:n]),
	}).Errorf("panic recovered")
	if rethrow {
		panic(r)
	}
}
