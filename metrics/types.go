// Package metrics keeps in-memory statistics for an experiment run.
package metrics

import "time"

// Trial outcomes.
const (
	// TrialCorrect means the search returned the true placement.
	TrialCorrect = "correct"
	// TrialWrong means the search completed but chose another placement.
	TrialWrong = "wrong"
	// TrialFailed means the trial aborted before producing a placement.
	TrialFailed = "failed"
)

// TrialRecord is one completed trial.
type TrialRecord struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	// Mode is the canonicalisation mode ("fit" or "crop").
	Mode   string `json:"mode"`
	Status string `json:"status"`

	Duration time.Duration `json:"duration"`
	// OracleCalls is the number of encodings the search made.
	OracleCalls int64  `json:"oracle_calls"`
	ErrorMsg    string `json:"error_msg,omitempty"`
}

// TrialMetrics aggregates every trial recorded so far.
type TrialMetrics struct {
	Total   int64 `json:"total"`
	Correct int64 `json:"correct"`
	Wrong   int64 `json:"wrong"`
	Failed  int64 `json:"failed"`

	// SuccessRate is Correct over Total as a percentage (0-100).
	SuccessRate float64 `json:"success_rate"`

	ByMode map[string]*ModeMetrics `json:"by_mode"`
}

// ModeMetrics holds per-mode aggregation.
type ModeMetrics struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	OracleCalls int64         `json:"oracle_calls"`
}

// RunStatus describes the run as a whole.
type RunStatus struct {
	RunID   string        `json:"run_id"`
	Version string        `json:"version"`
	Uptime  time.Duration `json:"uptime"`
}

// Collector is implemented by Store.
type Collector interface {
	RecordTrial(trial TrialRecord)
	GetTrialMetrics() TrialMetrics
	GetRecentTrials(limit int) []TrialRecord
	GetRunStatus() RunStatus
}
