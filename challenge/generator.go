// Package challenge builds synthetic puzzle challenges with known solutions:
// a piece cut from one corpus image and a hole filled from another.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"

	"jpegsize/puzzle"

	"github.com/google/uuid"
)

// ErrCorpusTooSmall is returned when no donor distinct from the target exists.
var ErrCorpusTooSmall = errors.New("challenge: corpus needs at least two images")

// Challenge is one generated puzzle and its ground truth.
type Challenge struct {
	ID string
	// Background is the canonical target with the hole at Truth filled from
	// the donor.
	Background *image.RGBA
	// Piece is the canonical target cropped at Truth.
	Piece       *image.RGBA
	Truth       puzzle.Placement
	DonorOffset puzzle.Placement
	TargetName  string
	DonorName   string
}

// Generator creates challenges for a fixed geometry. Random choices come from
// the injected source so runs are reproducible for a seed.
type Generator struct {
	geometry puzzle.Geometry
	grid     []puzzle.Placement
	loader   Loader

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator validates geometry. A nil rng is seeded from uuid entropy.
func NewGenerator(geometry puzzle.Geometry, loader Loader, rng *rand.Rand) (*Generator, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, fmt.Errorf("challenge: loader is required")
	}
	if rng == nil {
		id := uuid.New()
		var seed int64
		for _, b := range id[:8] {
			seed = seed<<8 | int64(b)
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return &Generator{
		geometry: geometry,
		grid:     geometry.Grid(),
		loader:   loader,
		rng:      rng,
	}, nil
}

// Geometry returns the generator's geometry.
func (g *Generator) Geometry() puzzle.Geometry {
	return g.geometry
}

// Generate builds a challenge whose piece comes from target. The donor is
// drawn uniformly from the other corpus images. Both the donor offset and the
// truth are drawn from the search grid, so every truth is reachable by the
// searcher.
func (g *Generator) Generate(ctx context.Context, corpus *Corpus, target string) (*Challenge, error) {
	donorName, donorOffset, truth, err := g.draw(corpus, target)
	if err != nil {
		return nil, err
	}

	canvas, err := g.loader.Load(ctx, corpus, target)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	donor, err := g.loader.Load(ctx, corpus, donorName)
	if err != nil {
		return nil, fmt.Errorf("load donor: %w", err)
	}
	if canvas.Bounds().Size() != g.geometry.Canvas() || donor.Bounds().Size() != g.geometry.Canvas() {
		return nil, fmt.Errorf("%w: loader returned %v and %v for canvas %v",
			puzzle.ErrInvalidGeometry, canvas.Bounds().Size(), donor.Bounds().Size(), g.geometry.Canvas())
	}

	pieceRect := image.Rectangle{Max: g.geometry.Piece()}
	patch := puzzle.Crop(donor, pieceRect.Add(donorOffset.Point()))

	return &Challenge{
		ID:          uuid.NewString(),
		Background:  puzzle.Composite(canvas, patch, truth),
		Piece:       puzzle.Crop(canvas, pieceRect.Add(truth.Point())),
		Truth:       truth,
		DonorOffset: donorOffset,
		TargetName:  target,
		DonorName:   donorName,
	}, nil
}

// draw makes every random choice for one challenge under the lock, keeping the
// sequence for a seed independent of image loading.
func (g *Generator) draw(corpus *Corpus, target string) (string, puzzle.Placement, puzzle.Placement, error) {
	donors := make([]string, 0, corpus.Len())
	for _, name := range corpus.Names {
		if name != target {
			donors = append(donors, name)
		}
	}
	if len(donors) == 0 {
		return "", puzzle.Placement{}, puzzle.Placement{}, ErrCorpusTooSmall
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	donor := donors[g.rng.Intn(len(donors))]
	offset := g.grid[g.rng.Intn(len(g.grid))]
	truth := g.grid[g.rng.Intn(len(g.grid))]
	return donor, offset, truth, nil
}
