package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"jpegsize/challenge"
	"jpegsize/core"
	"jpegsize/core/validation"
	"jpegsize/db"
	"jpegsize/experiment"
	"jpegsize/logging"
	"jpegsize/metrics"
	"jpegsize/oracle"
	"jpegsize/puzzle"
	"jpegsize/shutdown"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one experiment and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags := newFlags("jpegsize", stderr)
	if err := flags.parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return core.ExitCodeSuccess
		}
		fmt.Fprintln(stderr, err)
		return core.ExitCodeConfig
	}
	if flags.showVersion {
		fmt.Fprintln(stdout, "jpegsize", core.GetVersionInfo())
		return core.ExitCodeSuccess
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		printConfigError(stderr, err)
		return core.ExitCodeConfig
	}

	level := logging.ParseLogLevel(logging.LogLevelEnvVar, zapcore.InfoLevel)
	if cfg.Development {
		level = logging.ParseLogLevel(logging.LogLevelEnvVar, zapcore.DebugLevel)
	}
	logger, err := logging.NewLoggerWithConfig(level, cfg.Development, cfg.LogFile, cfg.LogRotation)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer logger.Sync()

	corpus, err := challenge.LoadCorpus(cfg.CorpusDir)
	if err != nil {
		logger.Error("Failed to read corpus", zap.String("dir", cfg.CorpusDir), zap.Error(err))
		return core.ExitCodeError
	}

	if result := preflight(cfg, corpus, stdout).Run(); !result.Success {
		logger.Error("Preflight checks failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Error(result.FirstError()))
		return core.ExitCodeError
	}

	ctx, handler := shutdown.NewHandler(context.Background(), logger, 2, func(sig os.Signal) {
		logger.Warn("Second signal received, exiting immediately", zap.String("signal", sig.String()))
		logger.Sync()
		os.Exit(core.ExitCodeForSignal(sig))
	})
	handler.Start(os.Interrupt, syscall.SIGTERM)
	defer handler.Stop()

	summary, err := runExperiment(ctx, cfg, corpus, logger)
	if err != nil {
		logger.Error("Experiment failed", zap.Error(err))
	} else {
		printSummary(stdout, summary)
	}
	return core.ExitCode(err, handler.Signal())
}

// loadConfig layers the dotenv file, YAML file, environment and flags, then
// validates the result.
func loadConfig(flags *cliFlags) (*core.Config, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil {
			return nil, core.ErrEnvFileMissing(flags.envFile)
		}
	} else {
		// .env is optional
		_ = godotenv.Load()
	}

	cfg, err := core.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// preflight checks the filesystem before any trial runs.
func preflight(cfg *core.Config, corpus *challenge.Corpus, out io.Writer) *validation.Suite {
	suite := validation.NewSuite("Preflight").WithOutput(out)

	suite.Add("Corpus", func() (string, error) {
		if corpus.Len() < 2 {
			return "", fmt.Errorf("%w: %d images in %s", challenge.ErrCorpusTooSmall, corpus.Len(), corpus.Dir)
		}
		return fmt.Sprintf("%d images in %s", corpus.Len(), corpus.Dir), nil
	})
	suite.Add("Output directory", func() (string, error) {
		if err := validation.CheckDirWritable(cfg.OutputDir); err != nil {
			return "", err
		}
		return cfg.OutputDir, nil
	})
	if cfg.SaveArtifacts {
		suite.Add("Disk space", func() (string, error) {
			trials := int64(corpus.Len())
			if cfg.Limit > 0 && int64(cfg.Limit) < trials {
				trials = int64(cfg.Limit)
			}
			need := trials * validation.ArtifactBytesPerTrial
			if err := validation.CheckDiskSpace(cfg.OutputDir, need); err != nil {
				return "", &validation.Warning{Message: err.Error()}
			}
			return core.FormatBytes(need) + " estimated", nil
		})
	}
	if cfg.Oracle == core.OracleTempFile {
		suite.Add("Temp directory", func() (string, error) {
			dir := cfg.TempDir
			if dir == "" {
				dir = os.TempDir()
			}
			if err := validation.CheckDirWritable(dir); err != nil {
				return "", err
			}
			return dir, nil
		})
	}
	if cfg.DatabasePath != "" {
		suite.Add("Database directory", func() (string, error) {
			dir := filepath.Dir(cfg.DatabasePath)
			if err := validation.CheckDirWritable(dir); err != nil {
				return "", err
			}
			return cfg.DatabasePath, nil
		})
	}
	return suite
}

// runExperiment wires the oracle, searcher, generator and optional database
// and runs the corpus.
func runExperiment(ctx context.Context, cfg *core.Config, corpus *challenge.Corpus, logger *logging.Logger) (summary *experiment.Summary, err error) {
	runID := uuid.NewString()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	codec, err := cfg.NewCodec()
	if err != nil {
		return nil, err
	}
	var base oracle.Oracle = oracle.NewJPEG(codec)
	if cfg.Oracle == core.OracleTempFile {
		base = oracle.NewTempFile(codec, cfg.TempDir, oracle.WithTempLogger(logger.Named("oracle")))
	}
	counter := oracle.NewCounting(base)

	searcher, err := puzzle.NewSearcher(cfg.Geometry, counter,
		puzzle.WithWorkers(cfg.Workers),
		puzzle.WithLogger(logger.Named("search")))
	if err != nil {
		return nil, err
	}
	generator, err := challenge.NewGenerator(cfg.Geometry,
		challenge.FileLoader{Geometry: cfg.Geometry, Mode: cfg.VisionMode()},
		rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("run_id", runID),
		zap.String("corpus", cfg.CorpusDir),
		zap.String("mode", cfg.Mode),
		zap.String("oracle", cfg.Oracle),
		zap.String("codec", codec.Name()),
		zap.Int("quality", cfg.Quality),
		zap.String("geometry", fmt.Sprintf("%dx%d piece %dx%d stride %d",
			cfg.Geometry.CanvasWidth, cfg.Geometry.CanvasHeight,
			cfg.Geometry.PieceWidth, cfg.Geometry.PieceHeight, cfg.Geometry.Stride)),
		zap.Int("workers", cfg.Workers),
		zap.Int64("seed", seed))

	opts := []experiment.RunnerOption{
		experiment.WithRunnerLogger(logger),
		experiment.WithStore(metrics.NewStore(metrics.StoreConfig{
			RunID:   runID,
			Version: core.GetVersion(),
		}, time.Now())),
	}

	if cfg.DatabasePath != "" {
		database, repo, writer, err := openDatabase(ctx, cfg, runID, seed, codec.Name(), logger)
		if err != nil {
			return nil, err
		}
		defer database.Close()
		defer func() {
			if !writer.Close(10 * time.Second) {
				logger.Warn("Timed out flushing trial records", zap.Int("pending", writer.Pending()))
			}
			// The run context may already be cancelled; record the finish regardless.
			bg := context.Background()
			if err := repo.FinishRun(bg, runID, time.Now()); err != nil {
				logger.Warn("Failed to mark run finished", zap.Error(err))
			}
			if summary != nil {
				attachStoredSummary(bg, repo, summary, logger)
			}
		}()
		opts = append(opts, experiment.WithRepository(repo))
	}

	runner, err := experiment.NewRunner(experiment.Options{
		RunID:         runID,
		OutputDir:     cfg.OutputDir,
		Mode:          cfg.VisionMode(),
		Quality:       cfg.Quality,
		Limit:         cfg.Limit,
		ReportEvery:   cfg.ReportEvery,
		SaveArtifacts: cfg.SaveArtifacts,
	}, generator, searcher, counter, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, corpus)
}

// attachStoredSummary reads the run back from the database and warns when it
// disagrees with what the runner counted.
func attachStoredSummary(ctx context.Context, repo *db.Repository, summary *experiment.Summary, logger *logging.Logger) {
	stored, err := repo.Summary(ctx, summary.RunID)
	if err != nil {
		logger.Warn("Failed to read stored run summary", zap.Error(err))
		return
	}
	summary.Stored = &stored
	logger.Info("Run persisted",
		zap.String("run_id", stored.RunID),
		zap.Int64("trials", stored.Total),
		zap.Int64("correct", stored.Correct),
		zap.Int64("failed", stored.Failed),
		zap.Float64("success_pct", stored.SuccessRate))
	if stored.Total != int64(summary.Total) {
		logger.Warn("Stored trial count differs from the run",
			zap.Int64("stored", stored.Total),
			zap.Int("run", summary.Total))
	}
}

// openDatabase opens and migrates the trial database, prunes old runs and
// records this one.
func openDatabase(ctx context.Context, cfg *core.Config, runID string, seed int64, codec string, logger *logging.Logger) (*db.Database, *db.Repository, *db.AsyncWriter[db.TrialRecord], error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.KeepRuns > 0 {
		// Prune before inserting so the new run always survives.
		pruned, err := database.PruneRuns(ctx, cfg.KeepRuns-1)
		if err != nil {
			logger.Warn("Failed to prune old runs", zap.Error(err))
		} else if pruned > 0 {
			logger.Info("Pruned old runs", zap.Int64("removed", pruned))
		}
	}

	repo := db.NewRepository(database)
	err = repo.InsertRun(ctx, db.RunRecord{
		RunID:     runID,
		CorpusDir: cfg.CorpusDir,
		Mode:      cfg.Mode,
		Codec:     codec,
		Quality:   cfg.Quality,
		Stride:    cfg.Geometry.Stride,
		Seed:      seed,
		Version:   core.GetVersion(),
	})
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}
	writer := repo.StartAsync(db.AsyncWriterConfig{
		QueueSize: db.DefaultQueueSize,
		OnError: func(err error) {
			logger.Warn("Async trial write failed", zap.Error(err))
		},
	})

	logger.Info("Recording trials", zap.String("database", database.Path()))
	return database, repo, writer, nil
}

func printConfigError(w io.Writer, err error) {
	if cfgErr, ok := core.IsConfigError(err); ok {
		fmt.Fprintf(w, "Configuration error [%s]: %s\n", cfgErr.Code, cfgErr.Message)
		if cfgErr.Action != "" {
			fmt.Fprintf(w, "  %s\n", cfgErr.Action)
		}
		return
	}
	fmt.Fprintf(w, "Configuration error: %v\n", err)
}
