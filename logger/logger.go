package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the process-wide logger; nil until Initialize succeeds
	Logger *zap.Logger

	// level is shared with the built logger so SetLevel applies without a rebuild
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize builds the process logger. Debug gets zap's development preset
// (caller, stack traces on warn), everything else the production one.
// format picks "json" or "console"; any other value keeps the preset's.
func Initialize(lvl, format string) error {
	parsed, err := parseLevel(lvl)
	if err != nil {
		return err
	}

	built, err := newConfig(parsed, format).Build(zap.Fields(zap.String("app", "hotspot")))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	level.SetLevel(parsed)
	Logger = built
	zap.ReplaceGlobals(built)
	return nil
}

// SetLevel changes the minimum level of the running logger
func SetLevel(lvl string) error {
	parsed, err := parseLevel(lvl)
	if err != nil {
		return err
	}
	if level.Level() != parsed {
		level.SetLevel(parsed)
		Info("Log level changed", zap.Stringer("level", parsed))
	}
	return nil
}

func parseLevel(lvl string) (zapcore.Level, error) {
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(lvl)); err != nil {
		return parsed, fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	return parsed, nil
}

func newConfig(lvl zapcore.Level, format string) zap.Config {
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	switch format {
	case "json", "console":
		cfg.Encoding = format
	}
	cfg.Level = level
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// current never returns nil so the helpers below work before Initialize
func current() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

// Sync flushes buffered entries
func Sync() {
	_ = current().Sync()
}

// WithContext returns a child logger carrying fields
func WithContext(fields ...zap.Field) *zap.Logger {
	return current().With(fields...)
}

func Debug(msg string, fields ...zap.Field) { current().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { current().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { current().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { current().Error(msg, fields...) }

// Fatal logs and exits. Before Initialize it exits silently.
func Fatal(msg string, fields ...zap.Field) {
	current().Fatal(msg, fields...)
}

// GetLogger returns the process logger, nil before Initialize
func GetLogger() *zap.Logger {
	return Logger
}
