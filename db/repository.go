package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// RunRecord is a row in the runs table: one invocation of the experiment.
type RunRecord struct {
	RunID      string
	CorpusDir  string
	Mode       string // "fit" or "crop"
	Codec      string // oracle codec name
	Quality    int
	Stride     int
	Seed       int64
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time // zero until FinishRun
}

// TrialRecord is a row in the trials table.
type TrialRecord struct {
	ID           int64
	RunID        string
	ChallengeID  string
	Image        string
	Donor        string
	Mode         string
	Status       string // "correct", "wrong" or "failed"
	Correct      bool
	FoundX       int
	FoundY       int
	TruthX       int
	TruthY       int
	SizeBytes    int
	OracleCalls  int64
	DurationMS   int64
	ErrorMessage string
	CreatedAt    time.Time
}

// RunSummary aggregates the trials of one run.
type RunSummary struct {
	RunID       string
	Total       int64
	Correct     int64
	Failed      int64
	SuccessRate float64
}

// Repository stores runs and trials. After StartAsync, trial inserts are
// queued and fall back to synchronous writes when the queue is full.
type Repository struct {
	db    *Database
	async *AsyncWriter[TrialRecord]
}

// NewRepository creates a Repository that writes synchronously.
func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

// StartAsync routes subsequent InsertTrial calls through a background writer.
// The caller must Close the returned writer before closing the database.
func (r *Repository) StartAsync(config AsyncWriterConfig) *AsyncWriter[TrialRecord] {
	r.async = NewAsyncWriter(func(trial TrialRecord) error {
		_, err := r.insertTrial(context.Background(), trial)
		return err
	}, config)
	r.async.Start()
	return r.async
}

// InsertRun records the start of a run.
func (r *Repository) InsertRun(ctx context.Context, run RunRecord) error {
	conn, err := r.conn()
	if err != nil {
		return err
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, corpus_dir, mode, codec, quality, stride, seed, version, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CorpusDir, run.Mode, run.Codec, run.Quality, run.Stride, run.Seed,
		nullString(run.Version), run.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's finish time.
func (r *Repository) FinishRun(ctx context.Context, runID string, at time.Time) error {
	conn, err := r.conn()
	if err != nil {
		return err
	}
	res, err := conn.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		at.UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun loads a run by ID.
func (r *Repository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	conn, err := r.conn()
	if err != nil {
		return nil, err
	}

	var run RunRecord
	var version, finished sql.NullString
	var started string
	err = conn.QueryRowContext(ctx, `
		SELECT run_id, corpus_dir, mode, codec, quality, stride, seed, version, started_at, finished_at
		FROM runs WHERE run_id = ?`, runID).Scan(
		&run.RunID, &run.CorpusDir, &run.Mode, &run.Codec, &run.Quality, &run.Stride, &run.Seed,
		&version, &started, &finished)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	run.Version = version.String
	run.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(timeLayout, finished.String)
	}
	return &run, nil
}

const insertTrialQuery = `
	INSERT INTO trials (
		run_id, challenge_id, image, donor, mode, status, correct,
		found_x, found_y, truth_x, truth_y, size_bytes, oracle_calls,
		duration_ms, error_message, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertTrial records a trial. Returns the row ID, or 0 when the write was
// queued.
func (r *Repository) InsertTrial(ctx context.Context, trial TrialRecord) (int64, error) {
	if trial.CreatedAt.IsZero() {
		trial.CreatedAt = time.Now()
	}
	if r.async != nil && r.async.Write(trial) {
		return 0, nil
	}
	return r.insertTrial(ctx, trial)
}

func (r *Repository) insertTrial(ctx context.Context, trial TrialRecord) (int64, error) {
	conn, err := r.conn()
	if err != nil {
		return 0, err
	}
	correct := 0
	if trial.Correct {
		correct = 1
	}
	result, err := conn.ExecContext(ctx, insertTrialQuery,
		trial.RunID, trial.ChallengeID, trial.Image, nullString(trial.Donor), trial.Mode,
		trial.Status, correct,
		trial.FoundX, trial.FoundY, trial.TruthX, trial.TruthY,
		trial.SizeBytes, trial.OracleCalls, trial.DurationMS,
		nullString(trial.ErrorMessage), trial.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trial %s: %w", trial.ChallengeID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// ListTrials returns up to limit trials of a run in insertion order.
// limit <= 0 returns all of them.
func (r *Repository) ListTrials(ctx context.Context, runID string, limit int) ([]TrialRecord, error) {
	conn, err := r.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, run_id, challenge_id, image, COALESCE(donor, ''), mode, status, correct,
		       COALESCE(found_x, 0), COALESCE(found_y, 0), COALESCE(truth_x, 0), COALESCE(truth_y, 0),
		       COALESCE(size_bytes, 0), COALESCE(oracle_calls, 0), COALESCE(duration_ms, 0),
		       COALESCE(error_message, ''), created_at
		FROM trials
		WHERE run_id = ?
		ORDER BY id ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var trials []TrialRecord
	for rows.Next() {
		var t TrialRecord
		var correct int
		var createdAt string
		if err := rows.Scan(
			&t.ID, &t.RunID, &t.ChallengeID, &t.Image, &t.Donor, &t.Mode, &t.Status, &correct,
			&t.FoundX, &t.FoundY, &t.TruthX, &t.TruthY,
			&t.SizeBytes, &t.OracleCalls, &t.DurationMS,
			&t.ErrorMessage, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trial row: %w", err)
		}
		t.Correct = correct != 0
		t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trial rows: %w", err)
	}
	return trials, nil
}

// Summary aggregates the trials of a run.
func (r *Repository) Summary(ctx context.Context, runID string) (RunSummary, error) {
	s := RunSummary{RunID: runID}
	conn, err := r.conn()
	if err != nil {
		return s, err
	}

	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(correct), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM trials WHERE run_id = ?`, runID).Scan(&s.Total, &s.Correct, &s.Failed)
	if err != nil {
		return s, fmt.Errorf("failed to summarise run %s: %w", runID, err)
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Correct) / float64(s.Total) * 100
	}
	return s, nil
}

// CountTrials returns the number of stored trials across all runs.
func (r *Repository) CountTrials(ctx context.Context) (int64, error) {
	conn, err := r.conn()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM trials").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trials: %w", err)
	}
	return count, nil
}

func (r *Repository) conn() (*sql.DB, error) {
	return r.db.conn()
}

// nullString stores empty strings as NULL.
func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
