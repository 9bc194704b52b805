package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// LogEntry is one trial as written to log.yaml.
type LogEntry struct {
	Correct bool   `yaml:"correct"`
	ID      string `yaml:"id"`
	Image   string `yaml:"image"`
	Found   [2]int `yaml:"found,flow"`
	Truth   [2]int `yaml:"truth,flow"`
	Size    int    `yaml:"size"`
	Mode    string `yaml:"mode"`
	Error   string `yaml:"error,omitempty"`

	// Donor is persisted to the database only.
	Donor string `yaml:"-"`
}

// TrialLog accumulates entries and rewrites the whole file on Flush, so the
// file on disk is always a complete YAML document.
type TrialLog struct {
	path    string
	mu      sync.Mutex
	entries []LogEntry
}

// NewTrialLog returns a log that writes to path.
func NewTrialLog(path string) *TrialLog {
	return &TrialLog{path: path}
}

// Path returns the file the log is written to.
func (l *TrialLog) Path() string {
	return l.path
}

// Append adds an entry without touching the file.
func (l *TrialLog) Append(e LogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Len returns the number of entries held.
func (l *TrialLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Flush writes every entry to a sibling temp file and renames it over path.
func (l *TrialLog) Flush() error {
	l.mu.Lock()
	data, err := yaml.Marshal(l.entries)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal trial log: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create trial log directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".log-*.yaml")
	if err != nil {
		return fmt.Errorf("create trial log: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write trial log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close trial log: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace trial log: %w", err)
	}
	return nil
}

// ReadTrialLog parses a log written by Flush.
func ReadTrialLog(path string) ([]LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []LogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse trial log %s: %w", path, err)
	}
	return entries, nil
}
