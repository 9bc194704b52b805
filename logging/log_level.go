package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar overrides the minimum log level.
const LogLevelEnvVar = "JPEGSIZE_LOG_LEVEL"

// ParseLogLevel reads the level from envVarName, falling back to def when the
// variable is unset or not a level. Parsing is case-insensitive.
//
// Valid levels: debug, info, warn (or warning), error, dpanic, panic, fatal.
//
// Example:
//
//	level := ParseLogLevel(LogLevelEnvVar, zapcore.InfoLevel)
//	logger, err := NewLoggerWithConfig(level, false, "experiment.log", DefaultRotation())
func ParseLogLevel(envVarName string, def zapcore.Level) zapcore.Level {
	return ParseLogLevelString(os.Getenv(envVarName), def)
}

// ParseLogLevelString parses any level zap understands, case-insensitively,
// plus "warning" as an alias for warn.
func ParseLogLevelString(s string, def zapcore.Level) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zapcore.WarnLevel
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil || s == "" {
		return def
	}
	return level
}
