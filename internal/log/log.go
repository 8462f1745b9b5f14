// Package log builds the zap loggers used by domain-email-records.
// Engines receive their own *zap.SugaredLogger; the package-level Logger
// and helpers exist for the command-line entry point only.
package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger used by cmd/ before (and after) an
// engine is constructed. Its level follows the LOG_LEVEL environment variable.
var Logger = newLogger()

// levels maps the accepted verbosity names onto zap levels. "critical"
// silences everything below fatal engine faults, which is what --quiet wants.
var levels = map[string]zapcore.Level{
	"debug":    zapcore.DebugLevel,
	"info":     zapcore.InfoLevel,
	"warn":     zapcore.WarnLevel,
	"warning":  zapcore.WarnLevel,
	"error":    zapcore.ErrorLevel,
	"critical": zapcore.DPanicLevel,
}

// ParseLevel converts a verbosity name (case-insensitive) into a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// New builds a logger writing ISO8601-stamped JSON events to stderr at the
// given verbosity. Stdout is left alone; it carries lookup results.
func New(level string) (*zap.SugaredLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l, err := config(lvl).Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l.Sugar(), nil
}

// SetLevel replaces the package-level Logger with one at the given verbosity.
func SetLevel(level string) error {
	l, err := New(level)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

func config(lvl zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	return cfg
}

func newLogger() *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := ParseLevel(env); err == nil {
			lvl = parsed
		}
	}

	l, err := config(lvl).Build()
	if err != nil {
		// should never happen with the static config above
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Warn logs a message at warn level with optional key-value pairs.
func Warn(msg string, kv ...any) { Logger.Warnw(msg, kv...) }

// Error logs a message at error level with optional key-value pairs.
func Error(msg string, kv ...any) { Logger.Errorw(msg, kv...) }

// Debug logs a message at debug level with optional key-value pairs.
func Debug(msg string, kv ...any) { Logger.Debugw(msg, kv...) }

// Sync flushes any buffered events; errors from syncing stderr are ignored.
func Sync() { _ = Logger.Sync() }
