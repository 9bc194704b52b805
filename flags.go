package main

import (
	"io"

	"jpegsize/core"

	"github.com/spf13/pflag"
)

// cliFlags holds raw flag values. Only flags the user actually set override
// the loaded configuration.
type cliFlags struct {
	fs *pflag.FlagSet

	configPath  string
	envFile     string
	showVersion bool

	corpusDir     string
	outputDir     string
	mode          string
	oracle        string
	codec         string
	chroma        string
	quality       int
	tempDir       string
	canvasWidth   int
	canvasHeight  int
	pieceWidth    int
	pieceHeight   int
	stride        int
	workers       int
	seed          int64
	limit         int
	reportEvery   int
	noArtifacts   bool
	databasePath  string
	keepRuns      int
	logFile       string
	development   bool
}

func newFlags(name string, output io.Writer) *cliFlags {
	f := &cliFlags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	fs := f.fs
	fs.SetOutput(output)
	fs.SortFlags = false
	fs.Usage = func() {
		io.WriteString(output, "Usage: "+name+" [flags] [corpus-dir]\n\n")
		fs.PrintDefaults()
	}

	d := core.DefaultConfig()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&f.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	fs.BoolVarP(&f.showVersion, "version", "v", false, "print version and exit")

	fs.StringVar(&f.corpusDir, "corpus", "", "directory of corpus images")
	fs.StringVarP(&f.outputDir, "out", "o", d.OutputDir, "output directory for artifacts and log.yaml")
	fs.StringVarP(&f.mode, "mode", "m", d.Mode, "canonicalisation mode: fit or crop")
	fs.StringVar(&f.oracle, "oracle", d.Oracle, "size oracle: memory or tempfile")
	fs.StringVar(&f.codec, "codec", d.Codec, "JPEG encoder: stdlib or jpegli")
	fs.StringVar(&f.chroma, "chroma", d.Chroma, "jpegli chroma subsampling: 444, 422 or 420")
	fs.IntVarP(&f.quality, "quality", "q", d.Quality, "JPEG quality (0-100)")
	fs.StringVar(&f.tempDir, "temp-dir", d.TempDir, "directory for the tempfile oracle")
	fs.IntVar(&f.canvasWidth, "canvas-width", d.Geometry.CanvasWidth, "canvas width in pixels")
	fs.IntVar(&f.canvasHeight, "canvas-height", d.Geometry.CanvasHeight, "canvas height in pixels")
	fs.IntVar(&f.pieceWidth, "piece-width", d.Geometry.PieceWidth, "piece width in pixels")
	fs.IntVar(&f.pieceHeight, "piece-height", d.Geometry.PieceHeight, "piece height in pixels")
	fs.IntVarP(&f.stride, "stride", "s", d.Geometry.Stride, "search grid stride in pixels")
	fs.IntVarP(&f.workers, "workers", "w", d.Workers, "concurrent oracle workers per search")
	fs.Int64Var(&f.seed, "seed", d.Seed, "challenge generator seed (0 picks one)")
	fs.IntVarP(&f.limit, "limit", "n", d.Limit, "maximum number of trials (0 for the whole corpus)")
	fs.IntVar(&f.reportEvery, "report-every", d.ReportEvery, "trials between progress reports")
	fs.BoolVar(&f.noArtifacts, "no-artifacts", !d.SaveArtifacts, "skip writing challenge PNGs")
	fs.StringVar(&f.databasePath, "db", d.DatabasePath, "SQLite database for trial records")
	fs.IntVar(&f.keepRuns, "keep-runs", d.KeepRuns, "prune the database to this many runs (0 keeps all)")
	fs.StringVar(&f.logFile, "log-file", d.LogFile, "JSON log file")
	fs.BoolVar(&f.development, "dev", d.Development, "development logging")
	return f
}

func (f *cliFlags) parse(args []string) error {
	return f.fs.Parse(args)
}

// apply copies every changed flag onto cfg. A positional argument names the
// corpus directory unless --corpus was given.
func (f *cliFlags) apply(cfg *core.Config) {
	set := f.fs.Changed
	if set("corpus") {
		cfg.CorpusDir = f.corpusDir
	} else if f.fs.NArg() > 0 {
		cfg.CorpusDir = f.fs.Arg(0)
	}

	strs := []struct {
		name string
		src  string
		dst  *string
	}{
		{"out", f.outputDir, &cfg.OutputDir},
		{"mode", f.mode, &cfg.Mode},
		{"oracle", f.oracle, &cfg.Oracle},
		{"codec", f.codec, &cfg.Codec},
		{"chroma", f.chroma, &cfg.Chroma},
		{"temp-dir", f.tempDir, &cfg.TempDir},
		{"db", f.databasePath, &cfg.DatabasePath},
		{"log-file", f.logFile, &cfg.LogFile},
	}
	for _, s := range strs {
		if set(s.name) {
			*s.dst = s.src
		}
	}

	ints := []struct {
		name string
		src  int
		dst  *int
	}{
		{"quality", f.quality, &cfg.Quality},
		{"canvas-width", f.canvasWidth, &cfg.Geometry.CanvasWidth},
		{"canvas-height", f.canvasHeight, &cfg.Geometry.CanvasHeight},
		{"piece-width", f.pieceWidth, &cfg.Geometry.PieceWidth},
		{"piece-height", f.pieceHeight, &cfg.Geometry.PieceHeight},
		{"stride", f.stride, &cfg.Geometry.Stride},
		{"workers", f.workers, &cfg.Workers},
		{"limit", f.limit, &cfg.Limit},
		{"report-every", f.reportEvery, &cfg.ReportEvery},
		{"keep-runs", f.keepRuns, &cfg.KeepRuns},
	}
	for _, i := range ints {
		if set(i.name) {
			*i.dst = i.src
		}
	}

	if set("seed") {
		cfg.Seed = f.seed
	}
	if set("no-artifacts") {
		cfg.SaveArtifacts = !f.noArtifacts
	}
	if set("dev") {
		cfg.Development = f.development
	}
}
