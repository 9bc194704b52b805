// Package experiment drives the placement attack over an image corpus: one
// generated challenge per target image, solved by the searcher and scored
// against the ground truth.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jpegsize/challenge"
	"jpegsize/db"
	"jpegsize/logging"
	"jpegsize/metrics"
	"jpegsize/oracle"
	"jpegsize/puzzle"
	"jpegsize/vision"

	"go.uber.org/zap"
)

// DefaultReportEvery is how many trials pass between progress reports.
const DefaultReportEvery = 50

// LogFileName is the trial log written under the output directory.
const LogFileName = "log.yaml"

// ChallengesDir holds the per-trial PNG artifacts under the output directory.
const ChallengesDir = "challenges"

// MaxRecentFailures bounds Summary.RecentFailures.
const MaxRecentFailures = 5

// Options configures a Runner.
type Options struct {
	RunID     string
	OutputDir string
	Mode      vision.Mode
	Quality   int
	// Limit caps the number of trials; 0 runs the whole corpus.
	Limit         int
	ReportEvery   int
	SaveArtifacts bool
}

// Runner plays one trial per corpus image.
type Runner struct {
	opts      Options
	generator *challenge.Generator
	searcher  *puzzle.Searcher
	oracle    *oracle.Counting
	store     metrics.Collector
	repo      *db.Repository
	log       *TrialLog
	logger    *logging.Logger
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithRepository records every trial in repo under Options.RunID.
func WithRepository(repo *db.Repository) RunnerOption {
	return func(r *Runner) {
		r.repo = repo
	}
}

// WithStore replaces the in-memory statistics store. Progress reports and
// the Summary are read back from it.
func WithStore(store metrics.Collector) RunnerOption {
	return func(r *Runner) {
		if store != nil {
			r.store = store
		}
	}
}

// WithRunnerLogger sets the logger for progress and per-trial output.
func WithRunnerLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner wires a runner. The searcher must measure through counter so the
// runner can report oracle calls per trial.
func NewRunner(opts Options, generator *challenge.Generator, searcher *puzzle.Searcher, counter *oracle.Counting, ro ...RunnerOption) (*Runner, error) {
	if generator == nil || searcher == nil || counter == nil {
		return nil, errors.New("experiment: generator, searcher and oracle are required")
	}
	if generator.Geometry() != searcher.Geometry() {
		return nil, fmt.Errorf("%w: generator and searcher geometries differ", puzzle.ErrInvalidGeometry)
	}
	if opts.OutputDir == "" {
		return nil, errors.New("experiment: output directory is required")
	}
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = DefaultReportEvery
	}
	if opts.Mode == "" {
		opts.Mode = vision.ModeFit
	}

	r := &Runner{
		opts:      opts,
		generator: generator,
		searcher:  searcher,
		oracle:    counter,
		store:     metrics.NewStore(metrics.StoreConfig{RunID: opts.RunID}, time.Now()),
		log:       NewTrialLog(filepath.Join(opts.OutputDir, LogFileName)),
		logger:    logging.NewNop(),
	}
	for _, o := range ro {
		o(r)
	}
	return r, nil
}

// Store returns the statistics store the runner records into.
func (r *Runner) Store() metrics.Collector {
	return r.store
}

// TrialLog returns the YAML trial log.
func (r *Runner) TrialLog() *TrialLog {
	return r.log
}

// Summary is the outcome of Run, read back from the statistics store.
type Summary struct {
	RunID   string
	Version string
	Total   int
	Correct int
	Wrong   int
	Failed  int
	// OracleCalls is the number of encodings across every trial.
	OracleCalls int64
	Duration    time.Duration
	// ByMode breaks the run down by canonicalisation mode.
	ByMode map[string]*metrics.ModeMetrics
	// RecentFailures holds up to MaxRecentFailures of the latest failed
	// trials, oldest first.
	RecentFailures []metrics.TrialRecord
	// Stored is the database's view of the run, when one is configured.
	Stored *db.RunSummary
	// Interrupted is set when ctx was cancelled before the corpus was done.
	Interrupted bool
}

// Run plays one trial for each corpus image in order. Trial failures are
// recorded and the run continues; cancellation of ctx stops after the trial
// in flight and is reported through Summary.Interrupted, not as an error.
// The trial log is written on every report and once more at the end.
func (r *Runner) Run(ctx context.Context, corpus *challenge.Corpus) (*Summary, error) {
	if corpus == nil || corpus.Len() < 2 {
		return nil, challenge.ErrCorpusTooSmall
	}

	names := corpus.Names
	if r.opts.Limit > 0 && r.opts.Limit < len(names) {
		names = names[:r.opts.Limit]
	}

	start := time.Now()
	interrupted := false
	r.logger.Info("experiment started",
		zap.String("run_id", r.opts.RunID),
		zap.Int("trials", len(names)),
		zap.String("mode", string(r.opts.Mode)),
		zap.Int("quality", r.opts.Quality))

	done := 0
	for _, name := range names {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		entry, rec, err := r.trial(ctx, corpus, name)
		if err != nil {
			// Only cancellation reaches here; the trial is dropped, not scored.
			interrupted = true
			break
		}
		r.record(ctx, entry, rec)

		done++
		if done%r.opts.ReportEvery == 0 {
			r.reportProgress()
			if err := r.log.Flush(); err != nil {
				r.logger.Warn("failed to write trial log", zap.Error(err))
			}
		}
	}

	summary := r.summarize()
	summary.Duration = time.Since(start)
	summary.Interrupted = interrupted
	if err := r.log.Flush(); err != nil {
		return summary, err
	}
	r.logger.Info("experiment finished",
		zap.Int("total", summary.Total),
		zap.Int("correct", summary.Correct),
		zap.Int("failed", summary.Failed),
		zap.Int64("oracle_calls", summary.OracleCalls),
		zap.Bool("interrupted", summary.Interrupted),
		zap.Duration("elapsed", summary.Duration))
	return summary, nil
}

// reportProgress logs the running success ratio together with the current
// mode's average trial time and encoding count.
func (r *Runner) reportProgress() {
	m := r.store.GetTrialMetrics()
	fields := logging.ProgressFields(int(m.Correct), int(m.Total))
	if mode, ok := m.ByMode[string(r.opts.Mode)]; ok {
		fields = append(fields,
			zap.Duration("avg_trial", mode.AvgDuration),
			zap.Int64("oracle_calls", mode.OracleCalls))
	}
	r.logger.Info("progress", fields...)
}

// summarize builds a Summary from the statistics store.
func (r *Runner) summarize() *Summary {
	m := r.store.GetTrialMetrics()
	status := r.store.GetRunStatus()

	s := &Summary{
		RunID:   r.opts.RunID,
		Version: status.Version,
		Total:   int(m.Total),
		Correct: int(m.Correct),
		Wrong:   int(m.Wrong),
		Failed:  int(m.Failed),
		ByMode:  m.ByMode,
	}
	if s.RunID == "" {
		s.RunID = status.RunID
	}
	for _, mode := range m.ByMode {
		s.OracleCalls += mode.OracleCalls
	}
	if m.Failed > 0 {
		for _, t := range r.store.GetRecentTrials(int(m.Total)) {
			if t.Status == metrics.TrialFailed {
				s.RecentFailures = append(s.RecentFailures, t)
			}
		}
		if n := len(s.RecentFailures); n > MaxRecentFailures {
			s.RecentFailures = s.RecentFailures[n-MaxRecentFailures:]
		}
	}
	return s
}

// trial generates and solves one challenge. The returned error is non-nil
// only when ctx was cancelled; every other failure becomes a failed record.
func (r *Runner) trial(ctx context.Context, corpus *challenge.Corpus, name string) (LogEntry, metrics.TrialRecord, error) {
	start := time.Now()
	r.oracle.Reset()

	entry := LogEntry{Image: name, Mode: string(r.opts.Mode)}
	rec := metrics.TrialRecord{Image: name, Mode: string(r.opts.Mode)}
	fail := func(err error) (LogEntry, metrics.TrialRecord, error) {
		if ctx.Err() != nil {
			return entry, rec, ctx.Err()
		}
		rec.Status = metrics.TrialFailed
		rec.ErrorMsg = err.Error()
		rec.Duration = time.Since(start)
		rec.OracleCalls = r.oracle.Calls()
		entry.Error = err.Error()
		return entry, rec, nil
	}

	ch, err := r.generator.Generate(ctx, corpus, name)
	if err != nil {
		return fail(fmt.Errorf("generate: %w", err))
	}
	entry.ID, rec.ID = ch.ID, ch.ID
	entry.Donor = ch.DonorName
	entry.Truth = [2]int{ch.Truth.X, ch.Truth.Y}

	res, err := r.searcher.FindBestPlacement(ctx, ch.Background, ch.Piece, r.opts.Quality)
	if err != nil {
		return fail(fmt.Errorf("search: %w", err))
	}

	entry.Correct = res.Placement == ch.Truth
	entry.Found = [2]int{res.Placement.X, res.Placement.Y}
	entry.Size = res.Size
	rec.Status = metrics.TrialWrong
	if entry.Correct {
		rec.Status = metrics.TrialCorrect
	}
	rec.Duration = time.Since(start)
	rec.OracleCalls = r.oracle.Calls()

	if r.opts.SaveArtifacts {
		if err := r.saveArtifacts(name, ch, res); err != nil {
			r.logger.Warn("failed to save artifacts", zap.String("image", name), zap.Error(err))
		}
	}
	return entry, rec, nil
}

// record fans a finished trial out to the store, the trial log, the
// repository and the logger.
func (r *Runner) record(ctx context.Context, entry LogEntry, rec metrics.TrialRecord) {
	r.store.RecordTrial(rec)
	r.log.Append(entry)

	if rec.Status == metrics.TrialFailed {
		r.logger.Warn("trial failed", zap.String("image", rec.Image), zap.String("error", rec.ErrorMsg))
	} else {
		r.logger.Debug("trial finished", logging.TrialFields(entry.ID, entry.Image, entry.Correct, entry.Found, entry.Truth)...)
	}

	if r.repo == nil {
		return
	}
	_, err := r.repo.InsertTrial(ctx, db.TrialRecord{
		RunID:        r.opts.RunID,
		ChallengeID:  entry.ID,
		Image:        entry.Image,
		Donor:        entry.Donor,
		Mode:         entry.Mode,
		Status:       rec.Status,
		Correct:      entry.Correct,
		FoundX:       entry.Found[0],
		FoundY:       entry.Found[1],
		TruthX:       entry.Truth[0],
		TruthY:       entry.Truth[1],
		SizeBytes:    entry.Size,
		OracleCalls:  rec.OracleCalls,
		DurationMS:   rec.Duration.Milliseconds(),
		ErrorMessage: rec.ErrorMsg,
	})
	if err != nil {
		r.logger.Warn("failed to persist trial", zap.String("image", rec.Image), zap.Error(err))
	}
}

// saveArtifacts writes the challenge background, the piece and the composite
// at the found placement.
func (r *Runner) saveArtifacts(name string, ch *challenge.Challenge, res *puzzle.SearchResult) error {
	dir := filepath.Join(r.opts.OutputDir, ChallengesDir)
	stem := ArtifactStem(name)
	if err := vision.SavePNG(filepath.Join(dir, stem+"-challenge.png"), ch.Background); err != nil {
		return err
	}
	if err := vision.SavePNG(filepath.Join(dir, stem+"-puzzle-piece.png"), ch.Piece); err != nil {
		return err
	}
	return vision.SavePNG(filepath.Join(dir, stem+"-solution.png"), res.Image)
}

// ArtifactStem is the corpus file name without its extension.
func ArtifactStem(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}
