// Package logging provides the structured logger used across the experiment:
// a thin wrapper over zap that tees human-readable console output and JSON
// file output, with size-based rotation of the log file.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap.Logger that remembers where its file output goes.
//
//	logger, err := NewLogger(true, "experiment.log")
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Info("trial solved", zap.String("image", "r0a1b2c3.png"))
type Logger struct {
	zap  *zap.Logger
	path string
}

// NewLogger logs at debug level in development and info level otherwise,
// rotating the file with DefaultRotation.
func NewLogger(isDevelopment bool, path string) (*Logger, error) {
	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}
	return NewLoggerWithConfig(level, isDevelopment, path, DefaultRotation())
}

// NewLoggerWithConfig builds the console and file tee at level. Development
// mode switches the console to colored text; the file is always JSON.
func NewLoggerWithConfig(level zapcore.Level, isDevelopment bool, path string, rotation RotationConfig) (*Logger, error) {
	core, err := newMultiCore(level, path, rotation, isDevelopment)
	if err != nil {
		return nil, fmt.Errorf("failed to create log core: %w", err)
	}
	return &Logger{zap: build(core), path: path}, nil
}

// NewFromCore wraps core, typically a zaptest observer.
func NewFromCore(core zapcore.Core) *Logger {
	return &Logger{zap: build(core)}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return NewFromCore(zapcore.NewNopCore())
}

func build(core zapcore.Core) *zap.Logger {
	// skip the wrapper frame so callers are reported
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func (l *Logger) derive(z *zap.Logger) *Logger {
	return &Logger{zap: z, path: l.path}
}

// Sync flushes buffered entries. Safe on a nil Logger.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Enabled reports whether entries at level would be written. Use it to skip
// building expensive field sets.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return l.derive(l.zap.With(fields...))
}

// Named adds a sub-logger name such as "search" or "oracle".
func (l *Logger) Named(name string) *Logger {
	return l.derive(l.zap.Named(name))
}

// Path returns the log file path, empty for observer and nop loggers.
func (l *Logger) Path() string {
	return l.path
}
