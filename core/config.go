package core

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"jpegsize/logging"
	"jpegsize/oracle"
	"jpegsize/puzzle"
	"jpegsize/vision"

	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig. JPEGSIZE_LOG_LEVEL is read by
// the logging package.
const (
	EnvCorpusDir     = "JPEGSIZE_CORPUS_DIR"
	EnvOutputDir     = "JPEGSIZE_OUTPUT_DIR"
	EnvMode          = "JPEGSIZE_MODE"
	EnvCodec         = "JPEGSIZE_CODEC"
	EnvChroma        = "JPEGSIZE_CHROMA"
	EnvQuality       = "JPEGSIZE_QUALITY"
	EnvCanvasWidth   = "JPEGSIZE_CANVAS_WIDTH"
	EnvCanvasHeight  = "JPEGSIZE_CANVAS_HEIGHT"
	EnvPieceWidth    = "JPEGSIZE_PIECE_WIDTH"
	EnvPieceHeight   = "JPEGSIZE_PIECE_HEIGHT"
	EnvStride        = "JPEGSIZE_STRIDE"
	EnvWorkers       = "JPEGSIZE_WORKERS"
	EnvSeed          = "JPEGSIZE_SEED"
	EnvLimit         = "JPEGSIZE_LIMIT"
	EnvReportEvery   = "JPEGSIZE_REPORT_EVERY"
	EnvSaveArtifacts = "JPEGSIZE_SAVE_ARTIFACTS"
	EnvOracle        = "JPEGSIZE_ORACLE"
	EnvTempDir       = "JPEGSIZE_TEMP_DIR"
	EnvDatabasePath  = "JPEGSIZE_DB_PATH"
	EnvKeepRuns      = "JPEGSIZE_KEEP_RUNS"
	EnvLogFile       = "JPEGSIZE_LOG_FILE"
	EnvDevelopment   = "JPEGSIZE_DEVELOPMENT"
)

// Oracle kinds.
const (
	OracleMemory   = "memory"
	OracleTempFile = "tempfile"
)

// Config holds every experiment setting. Values are layered: defaults, then
// the YAML file, then environment variables, then command-line flags.
type Config struct {
	CorpusDir string `yaml:"corpus_dir"`
	OutputDir string `yaml:"output_dir"`
	// Mode is "fit" (resize and center crop) or "crop" (center crop only).
	Mode string `yaml:"mode"`

	// Oracle settings
	Oracle  string `yaml:"oracle"` // memory or tempfile
	Codec   string `yaml:"codec"`  // stdlib or jpegli
	Chroma  string `yaml:"chroma"` // 444, 422 or 420 (jpegli only)
	Quality int    `yaml:"quality"`
	TempDir string `yaml:"temp_dir"`

	Geometry puzzle.Geometry `yaml:"geometry"`
	Workers  int             `yaml:"workers"`

	// Seed drives the challenge generator; 0 picks a random seed.
	Seed int64 `yaml:"seed"`
	// Limit caps the number of trials; 0 runs the whole corpus.
	Limit         int  `yaml:"limit"`
	ReportEvery   int  `yaml:"report_every"`
	SaveArtifacts bool `yaml:"save_artifacts"`

	// DatabasePath enables SQLite trial recording when set.
	DatabasePath string `yaml:"database_path"`
	// KeepRuns prunes older runs from the database; 0 keeps everything.
	KeepRuns int `yaml:"keep_runs"`

	LogFile     string                 `yaml:"log_file"`
	LogRotation logging.RotationConfig `yaml:"log_rotation"`
	Development bool                   `yaml:"development"`
}

// DefaultConfig returns the settings of the reference experiment.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:     "results",
		Mode:          string(vision.ModeFit),
		Oracle:        OracleMemory,
		Codec:         oracle.CodecStdlib,
		Chroma:        "420",
		Quality:       puzzle.DefaultQuality,
		Geometry:      puzzle.DefaultGeometry(),
		Workers:       1,
		ReportEvery:   50,
		SaveArtifacts: true,
		LogFile:       "jpegsize.log",
		LogRotation:   logging.DefaultRotation(),
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path (skipped
// when path is empty) and JPEGSIZE_* environment variables. It does not
// validate; call Validate after applying flag overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrConfigFile(path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return ErrConfigFile(path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvCorpusDir, &c.CorpusDir},
		{EnvOutputDir, &c.OutputDir},
		{EnvMode, &c.Mode},
		{EnvOracle, &c.Oracle},
		{EnvCodec, &c.Codec},
		{EnvChroma, &c.Chroma},
		{EnvTempDir, &c.TempDir},
		{EnvDatabasePath, &c.DatabasePath},
		{EnvLogFile, &c.LogFile},
	}
	for _, s := range strs {
		*s.dst = GetEnvOrDefault(s.key, *s.dst)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvQuality, &c.Quality},
		{EnvCanvasWidth, &c.Geometry.CanvasWidth},
		{EnvCanvasHeight, &c.Geometry.CanvasHeight},
		{EnvPieceWidth, &c.Geometry.PieceWidth},
		{EnvPieceHeight, &c.Geometry.PieceHeight},
		{EnvStride, &c.Geometry.Stride},
		{EnvWorkers, &c.Workers},
		{EnvLimit, &c.Limit},
		{EnvReportEvery, &c.ReportEvery},
		{EnvKeepRuns, &c.KeepRuns},
	}
	for _, i := range ints {
		v, ok, err := LookupIntEnv(i.key)
		if err != nil {
			return err
		}
		if ok {
			*i.dst = v
		}
	}

	if v, ok, err := LookupInt64Env(EnvSeed); err != nil {
		return err
	} else if ok {
		c.Seed = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvSaveArtifacts, &c.SaveArtifacts},
		{EnvDevelopment, &c.Development},
	}
	for _, b := range bools {
		v, ok, err := LookupBoolEnv(b.key)
		if err != nil {
			return err
		}
		if ok {
			*b.dst = v
		}
	}
	return nil
}

// Validate checks every setting and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if c.CorpusDir == "" {
		return ErrMissingConfig(EnvCorpusDir)
	}
	info, err := os.Stat(c.CorpusDir)
	if err != nil {
		return ErrCorpusNotFound(c.CorpusDir, err.Error())
	}
	if !info.IsDir() {
		return ErrCorpusNotFound(c.CorpusDir, "not a directory")
	}
	if c.OutputDir == "" {
		return ErrMissingConfig(EnvOutputDir)
	}

	if _, err := vision.ParseMode(c.Mode); err != nil || c.Mode == "" {
		return ErrInvalidValue("mode", c.Mode, "fit or crop")
	}
	switch c.Oracle {
	case OracleMemory, OracleTempFile:
	default:
		return ErrInvalidValue("oracle", c.Oracle, "memory or tempfile")
	}
	if _, err := c.NewCodec(); err != nil {
		return err
	}
	if c.Quality < 0 || c.Quality > 100 {
		return ErrInvalidValue("quality", strconv.Itoa(c.Quality), "a value between 0 and 100")
	}
	if err := c.Geometry.Validate(); err != nil {
		return ErrInvalidGeometry(err.Error())
	}
	if c.Workers < 1 {
		return ErrInvalidValue("workers", strconv.Itoa(c.Workers), "1 or more")
	}
	if c.Limit < 0 {
		return ErrInvalidValue("limit", strconv.Itoa(c.Limit), "0 (all images) or more")
	}
	if c.ReportEvery < 1 {
		return ErrInvalidValue("report_every", strconv.Itoa(c.ReportEvery), "1 or more")
	}
	if c.KeepRuns < 0 {
		return ErrInvalidValue("keep_runs", strconv.Itoa(c.KeepRuns), "0 (keep all) or more")
	}
	return nil
}

// VisionMode returns Mode as a vision.Mode. Call after Validate.
func (c *Config) VisionMode() vision.Mode {
	mode, _ := vision.ParseMode(c.Mode)
	return mode
}

// NewCodec resolves the configured oracle codec.
func (c *Config) NewCodec() (oracle.Codec, error) {
	chroma, err := oracle.ParseChroma(c.Chroma)
	if err != nil {
		return nil, ErrInvalidValue("chroma", c.Chroma, "444, 422 or 420")
	}
	codec, err := oracle.NewCodec(c.Codec, chroma)
	if err != nil {
		return nil, ErrInvalidValue("codec", c.Codec, fmt.Sprintf("%s or %s", oracle.CodecStdlib, oracle.CodecJpegli))
	}
	return codec, nil
}
