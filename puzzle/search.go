package puzzle

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"jpegsize/logging"

	"go.uber.org/zap/zapcore"
)

// SizeOracle measures how many bytes an image occupies once encoded at the
// given quality. Implementations must be deterministic for a fixed input and
// safe for concurrent use when the searcher runs more than one worker.
type SizeOracle interface {
	EncodedSize(img image.Image, quality int) (int, error)
}

// SearchResult is the placement whose composite encoded smallest.
type SearchResult struct {
	Placement Placement
	Size      int
	// Image is the winning composite, kept from the scan rather than rebuilt.
	Image *image.RGBA
	// Evaluated is the number of placements measured.
	Evaluated int
	Duration  time.Duration
}

// Searcher runs the placement attack for a fixed geometry and oracle.
type Searcher struct {
	geometry Geometry
	oracle   SizeOracle
	workers  int
	logger   *logging.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithWorkers sets how many goroutines measure candidates concurrently.
// Values below 1 are treated as 1.
func WithWorkers(n int) SearcherOption {
	return func(s *Searcher) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithLogger attaches a logger for search summaries.
func WithLogger(logger *logging.Logger) SearcherOption {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher validates geometry and returns a Searcher measuring with oracle.
func NewSearcher(geometry Geometry, oracle SizeOracle, opts ...SearcherOption) (*Searcher, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("puzzle: size oracle is required")
	}
	s := &Searcher{
		geometry: geometry,
		oracle:   oracle,
		workers:  1,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Geometry returns the searcher's geometry.
func (s *Searcher) Geometry() Geometry {
	return s.geometry
}

// FindBestPlacement is a convenience wrapper that searches using the actual
// image sizes and a single worker.
func FindBestPlacement(ctx context.Context, background, piece image.Image, oracle SizeOracle, quality, stride int) (*SearchResult, error) {
	s, err := NewSearcher(GeometryFor(background, piece, stride), oracle)
	if err != nil {
		return nil, err
	}
	return s.FindBestPlacement(ctx, background, piece, quality)
}

// FindBestPlacement composites piece at every grid placement, measures each
// composite and returns the smallest. On equal sizes the placement first in
// scan order wins, regardless of the number of workers. Any measurement error
// aborts the search.
func (s *Searcher) FindBestPlacement(ctx context.Context, background, piece image.Image, quality int) (*SearchResult, error) {
	if err := s.checkInputs(background, piece); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	grid := s.geometry.Grid()

	workers := s.workers
	if workers > len(grid) {
		workers = len(grid)
	}

	var best *candidate
	var evaluated atomic.Int64
	var err error
	if workers == 1 {
		best, err = s.scan(ctx, background, piece, quality, grid, &evaluated)
	} else {
		best, err = s.scanParallel(ctx, background, piece, quality, grid, workers, &evaluated)
	}
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Placement: best.placement,
		Size:      best.size,
		Image:     best.image,
		Evaluated: int(evaluated.Load()),
		Duration:  time.Since(start),
	}
	if s.logger.Enabled(zapcore.DebugLevel) {
		s.logger.Debug("placement search complete", logging.SearchFields(
			result.Placement.X, result.Placement.Y, result.Size, result.Evaluated, result.Duration)...)
	}
	return result, nil
}

func (s *Searcher) checkInputs(background, piece image.Image) error {
	if background == nil || piece == nil {
		return fmt.Errorf("%w: background and piece are required", ErrInvalidGeometry)
	}
	got := GeometryFor(background, piece, s.geometry.Stride)
	if got != s.geometry {
		return fmt.Errorf("%w: images are canvas %v piece %v, searcher expects canvas %v piece %v",
			ErrInvalidGeometry, got.Canvas(), got.Piece(), s.geometry.Canvas(), s.geometry.Piece())
	}
	return nil
}

// candidate is one measured placement; index is its position in scan order.
type candidate struct {
	index     int
	placement Placement
	size      int
	image     *image.RGBA
}

// beats reports whether c should replace other as the running minimum.
func (c *candidate) beats(other *candidate) bool {
	if other == nil {
		return true
	}
	if c.size != other.size {
		return c.size < other.size
	}
	return c.index < other.index
}

func (s *Searcher) measure(background, piece image.Image, quality, index int, p Placement) (*candidate, error) {
	img := Composite(background, piece, p)
	size, err := s.oracle.EncodedSize(img, quality)
	if err != nil {
		return nil, fmt.Errorf("measure placement %s: %w", p, err)
	}
	return &candidate{index: index, placement: p, size: size, image: img}, nil
}

func (s *Searcher) scan(ctx context.Context, background, piece image.Image, quality int, grid []Placement, evaluated *atomic.Int64) (*candidate, error) {
	var best *candidate
	for i, p := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.measure(background, piece, quality, i, p)
		if err != nil {
			return nil, err
		}
		evaluated.Add(1)
		if c.beats(best) {
			best = c
		}
	}
	return best, nil
}

// scanParallel hands scan indices to workers. Each worker keeps its own
// minimum; the final reduction orders by size then scan index, which selects
// the same candidate as the sequential scan.
func (s *Searcher) scanParallel(ctx context.Context, background, piece image.Image, quality int, grid []Placement, workers int, evaluated *atomic.Int64) (*candidate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indices := make(chan int)
	locals := make([]*candidate, workers)
	errs := make([]*indexedError, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range indices {
				c, err := s.measure(background, piece, quality, i, grid[i])
				if err != nil {
					if errs[w] == nil || i < errs[w].index {
						errs[w] = &indexedError{index: i, err: err}
					}
					cancel()
					continue
				}
				evaluated.Add(1)
				if c.beats(locals[w]) {
					locals[w] = c
				}
			}
		}(w)
	}

feed:
	for i := range grid {
		select {
		case indices <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indices)
	wg.Wait()

	var firstErr *indexedError
	for _, e := range errs {
		if e != nil && (firstErr == nil || e.index < firstErr.index) {
			firstErr = e
		}
	}
	if firstErr != nil {
		return nil, firstErr.err
	}
	// Cancellation from the caller, not from a failed measurement.
	if err := ctx.Err(); err != nil && int(evaluated.Load()) < len(grid) {
		return nil, err
	}

	var best *candidate
	for _, c := range locals {
		if c != nil && c.beats(best) {
			best = c
		}
	}
	return best, nil
}

type indexedError struct {
	index int
	err   error
}
