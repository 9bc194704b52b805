package metrics

import (
	"sync"
	"time"
)

// Store is a thread-safe in-memory trial statistics store. It keeps totals,
// per-mode aggregates and a bounded history of recent trials.
//
// Usage:
//
//	store := NewStore(DefaultStoreConfig(), time.Now())
//	store.RecordTrial(trial)
//	m := store.GetTrialMetrics()
type Store struct {
	mu sync.RWMutex

	// Recent trials, circular
	history []TrialRecord
	histCap int
	head    int
	size    int

	total   int64
	correct int64
	wrong   int64
	failed  int64
	byMode  map[string]*modeStats

	runID     string
	startTime time.Time
	version   string
}

type modeStats struct {
	count         int64
	correctCount  int64
	totalDuration time.Duration
	oracleCalls   int64
}

// StoreConfig configures the Store.
type StoreConfig struct {
	// HistoryCapacity is the max number of trials retained for GetRecentTrials.
	HistoryCapacity int
	RunID           string
	Version         string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "0.0.0",
	}
}

// NewStore creates a Store. startTime is used for uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}
	return &Store{
		history:   make([]TrialRecord, capacity),
		histCap:   capacity,
		byMode:    make(map[string]*modeStats),
		runID:     config.RunID,
		startTime: startTime,
		version:   config.Version,
	}
}

// RecordTrial adds a finished trial. Unknown statuses count toward Total only.
func (s *Store) RecordTrial(trial TrialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = trial
	s.head = (s.head + 1) % s.histCap
	if s.size < s.histCap {
		s.size++
	}

	s.total++
	switch trial.Status {
	case TrialCorrect:
		s.correct++
	case TrialWrong:
		s.wrong++
	case TrialFailed:
		s.failed++
	}

	stats, ok := s.byMode[trial.Mode]
	if !ok {
		stats = &modeStats{}
		s.byMode[trial.Mode] = stats
	}
	stats.count++
	if trial.Status == TrialCorrect {
		stats.correctCount++
	}
	stats.totalDuration += trial.Duration
	stats.oracleCalls += trial.OracleCalls
}

// GetTrialMetrics returns aggregated statistics.
func (s *Store) GetTrialMetrics() TrialMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := TrialMetrics{
		Total:       s.total,
		Correct:     s.correct,
		Wrong:       s.wrong,
		Failed:      s.failed,
		SuccessRate: percent(s.correct, s.total),
		ByMode:      make(map[string]*ModeMetrics, len(s.byMode)),
	}
	for mode, stats := range s.byMode {
		var avg time.Duration
		if stats.count > 0 {
			avg = stats.totalDuration / time.Duration(stats.count)
		}
		m.ByMode[mode] = &ModeMetrics{
			Count:       stats.count,
			SuccessRate: percent(stats.correctCount, stats.count),
			AvgDuration: avg,
			OracleCalls: stats.oracleCalls,
		}
	}
	return m
}

// GetRecentTrials returns up to limit trials, oldest first.
func (s *Store) GetRecentTrials(limit int) []TrialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []TrialRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	result := make([]TrialRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - limit + i + s.histCap) % s.histCap
		result[i] = s.history[idx]
	}
	return result
}

// GetRunStatus returns run identity and uptime.
func (s *Store) GetRunStatus() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RunStatus{
		RunID:   s.runID,
		Version: s.version,
		Uptime:  time.Since(s.startTime),
	}
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

var _ Collector = (*Store)(nil)
