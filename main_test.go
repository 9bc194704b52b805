package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"jpegsize/core"
	"jpegsize/db"
	"jpegsize/experiment"
	"jpegsize/vision"
)

func TestFlags_OnlyChangedOverride(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *core.Config)
	}{
		{
			name: "unset flags keep file values",
			args: []string{"--stride=5"},
			check: func(t *testing.T, cfg *core.Config) {
				if cfg.Quality != 80 {
					t.Errorf("Quality = %d, want 80 from file", cfg.Quality)
				}
				if cfg.Geometry.Stride != 5 {
					t.Errorf("Stride = %d, want 5", cfg.Geometry.Stride)
				}
			},
		},
		{
			name: "positional corpus",
			args: []string{"images", "-q", "90"},
			check: func(t *testing.T, cfg *core.Config) {
				if cfg.CorpusDir != "images" || cfg.Quality != 90 {
					t.Errorf("CorpusDir = %q Quality = %d", cfg.CorpusDir, cfg.Quality)
				}
			},
		},
		{
			name: "corpus flag wins over positional",
			args: []string{"--corpus", "flagged", "positional"},
			check: func(t *testing.T, cfg *core.Config) {
				if cfg.CorpusDir != "flagged" {
					t.Errorf("CorpusDir = %q, want flagged", cfg.CorpusDir)
				}
			},
		},
		{
			name: "no-artifacts",
			args: []string{"--no-artifacts", "--mode", "crop", "--codec", "jpegli", "--seed", "9"},
			check: func(t *testing.T, cfg *core.Config) {
				if cfg.SaveArtifacts {
					t.Error("SaveArtifacts = true")
				}
				if cfg.Mode != "crop" || cfg.Codec != "jpegli" || cfg.Seed != 9 {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlags("test", io.Discard)
			if err := f.parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}
			cfg := core.DefaultConfig()
			cfg.Quality = 80
			f.apply(cfg)
			tt.check(t, cfg)
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if code := run([]string{"--version"}, &stdout, io.Discard); code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), core.GetVersion()) {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"missing corpus", []string{"--out", t.TempDir()}},
		{"bad mode", []string{t.TempDir(), "--mode", "stretch"}},
		{"missing env file", []string{t.TempDir(), "--env-file", filepath.Join(t.TempDir(), "none.env")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := run(tt.args, io.Discard, &stderr); code != core.ExitCodeConfig {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, core.ExitCodeConfig, stderr.String())
			}
		})
	}
}

func TestRun_EndToEnd(t *testing.T) {
	corpusDir := t.TempDir()
	for i := 0; i < 3; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 80, 60))
		for y := 0; y < 60; y++ {
			for x := 0; x < 80; x++ {
				img.Set(x, y, color.RGBA{uint8(x * 3), uint8(y * 4), uint8((x*y + i*50) % 256), 255})
			}
		}
		if err := vision.SavePNG(filepath.Join(corpusDir, fmt.Sprintf("g%d.png", i)), img); err != nil {
			t.Fatal(err)
		}
	}

	out := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	args := []string{
		corpusDir,
		"--out", out,
		"--canvas-width=64", "--canvas-height=48",
		"--piece-width=16", "--piece-height=16", "--stride=8",
		"--workers=2",
		"--seed=3",
		"--db", dbPath,
		"--log-file", filepath.Join(t.TempDir(), "run.log"),
	}
	var stdout, stderr bytes.Buffer
	if code := run(args, &stdout, &stderr); code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}
	for _, want := range []string{"/3", "fit   3 trials", "stored 3 trials"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, stdout.String())
		}
	}

	entries, err := experiment.ReadTrialLog(filepath.Join(out, experiment.LogFileName))
	if err != nil {
		t.Fatalf("ReadTrialLog: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("log entries = %d, want 3", len(entries))
	}

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	count, err := db.NewRepository(database).CountTrials(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("stored trials = %d, want 3", count)
	}
}
