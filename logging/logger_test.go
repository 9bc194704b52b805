package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// syncLogger ignores the "invalid argument" error Linux returns when syncing stdout.
func syncLogger(t testing.TB, logger *Logger) {
	t.Helper()
	if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		t.Logf("Sync() warning: %v", err)
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "experiment.log")

	logger, err := NewLogger(false, logPath)
	if err != nil {
		t.Fatalf("NewLogger() returned error: %v", err)
	}
	if logger.Path() != logPath {
		t.Errorf("Path() = %q, want %q", logger.Path(), logPath)
	}

	logger.Info("trial solved", zap.String("image", "a.png"))
	syncLogger(t, logger)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]interface{}
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	if entry[FieldMessage] != "trial solved" {
		t.Errorf("message = %v, want %q", entry[FieldMessage], "trial solved")
	}
	if entry["image"] != "a.png" {
		t.Errorf("image = %v, want a.png", entry["image"])
	}
}

func TestNewLogger_InvalidPath(t *testing.T) {
	if _, err := NewLogger(true, "/nonexistent/deeply/nested/experiment.log"); err == nil {
		t.Fatal("expected error for invalid path, got nil")
	}
}

func TestNewLoggerWithConfig_RequiresPath(t *testing.T) {
	if _, err := NewLoggerWithConfig(zapcore.InfoLevel, false, "", DefaultRotation()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewLoggerWithConfig_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := NewLoggerWithConfig(zapcore.WarnLevel, false, path, RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLoggerWithConfig: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Errorf("log file = %s", data)
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromCore(core).Named("search").With(zap.String("trial_id", "t1"))

	logger.Debug("placement search complete", zap.Int("best_size", 42))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "search" {
		t.Errorf("LoggerName = %q, want search", e.LoggerName)
	}
	ctx := e.ContextMap()
	if ctx["trial_id"] != "t1" {
		t.Errorf("trial_id = %v, want t1", ctx["trial_id"])
	}
	if ctx["best_size"] != int64(42) {
		t.Errorf("best_size = %v, want 42", ctx["best_size"])
	}
}

func TestLogger_Enabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	logger := NewFromCore(core).Named("search")
	if logger.Enabled(zapcore.DebugLevel) {
		t.Error("Enabled(Debug) = true on an info logger")
	}
	if !logger.Enabled(zapcore.WarnLevel) {
		t.Error("Enabled(Warn) = false on an info logger")
	}
	if logger.Path() != "" {
		t.Errorf("Path() = %q, want empty", logger.Path())
	}
}

func TestNewNop_Discards(t *testing.T) {
	logger := NewNop()
	logger.Info("ignored")
	logger.Error("ignored")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() on nop logger: %v", err)
	}
}

func TestLogger_SyncNil(t *testing.T) {
	var logger *Logger
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() on nil logger = %v, want nil", err)
	}
}

func TestNewMultiCoreWithWriters(t *testing.T) {
	tests := []struct {
		name        string
		isDev       bool
		consoleJSON bool
	}{
		{"development console is plain text", true, false},
		{"production console is JSON", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var consoleBuf, fileBuf bytes.Buffer
			core := NewMultiCoreWithWriters(zapcore.InfoLevel,
				zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), tt.isDev)
			zap.New(core).Info("hello", zap.Int("n", 1))

			if !json.Valid(bytes.TrimSpace(fileBuf.Bytes())) {
				t.Errorf("file output is not JSON: %q", fileBuf.String())
			}
			if got := json.Valid(bytes.TrimSpace(consoleBuf.Bytes())); got != tt.consoleJSON {
				t.Errorf("console JSON = %v, want %v (%q)", got, tt.consoleJSON, consoleBuf.String())
			}
		})
	}
}

func TestNewMultiCoreWithWriters_LevelFilter(t *testing.T) {
	var fileBuf bytes.Buffer
	core := NewMultiCoreWithWriters(zapcore.WarnLevel,
		zapcore.AddSync(io.Discard), zapcore.AddSync(&fileBuf), false)
	logger := zap.New(core)
	logger.Info("dropped")
	logger.Warn("kept")

	if strings.Contains(fileBuf.String(), "dropped") {
		t.Error("info entry written below warn level")
	}
	if !strings.Contains(fileBuf.String(), "kept") {
		t.Error("warn entry missing")
	}
}
