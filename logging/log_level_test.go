package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevelString(t *testing.T) {
	tests := []struct {
		in   string
		def  zapcore.Level
		want zapcore.Level
	}{
		{"debug", zapcore.InfoLevel, zapcore.DebugLevel},
		{"INFO", zapcore.DebugLevel, zapcore.InfoLevel},
		{"Warning", zapcore.InfoLevel, zapcore.WarnLevel},
		{" error ", zapcore.InfoLevel, zapcore.ErrorLevel},
		{"fatal", zapcore.InfoLevel, zapcore.FatalLevel},
		{"verbose", zapcore.WarnLevel, zapcore.WarnLevel},
		{"", zapcore.ErrorLevel, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevelString(tt.in, tt.def); got != tt.want {
				t.Errorf("ParseLogLevelString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")
	if got := ParseLogLevel(LogLevelEnvVar, zapcore.InfoLevel); got != zapcore.DebugLevel {
		t.Errorf("ParseLogLevel() = %v, want debug", got)
	}

	t.Setenv(LogLevelEnvVar, "")
	if got := ParseLogLevel(LogLevelEnvVar, zapcore.WarnLevel); got != zapcore.WarnLevel {
		t.Errorf("ParseLogLevel() with empty env = %v, want warn", got)
	}
}
