package logging

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults. One experiment run rarely produces more than a few MB of
// JSON, so a handful of small backups covers many runs.
const (
	DefaultMaxSizeMB  = 20
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 14
)

// RotationConfig controls rotation of the JSON log file. Zero sizes and
// counts mean "use the default"; Compress is taken as given.
type RotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// DefaultRotation returns the defaults with compression on.
func DefaultRotation() RotationConfig {
	return RotationConfig{Compress: true}.withDefaults()
}

func (c RotationConfig) withDefaults() RotationConfig {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = DefaultMaxBackups
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = DefaultMaxAgeDays
	}
	return c
}

// RotatingFile returns a lumberjack-backed WriteSyncer for path. Zero fields
// of rotation take the package defaults.
//
// Example:
//
//	ws := RotatingFile("results/experiment.log", RotationConfig{MaxSizeMB: 50})
//	core := NewMultiCoreWithWriters(zapcore.InfoLevel, zapcore.Lock(os.Stdout), ws, false)
func RotatingFile(path string, rotation RotationConfig) zapcore.WriteSyncer {
	r := rotation.withDefaults()
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
	})
}
