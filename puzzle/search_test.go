package puzzle

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"testing"

	"jpegsize/oracle"
)

// noisePatch returns a deterministic high-frequency RGB patch.
func noisePatch(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// plantedChallenge is a flat canvas with a noise patch at truth, plus the piece
// that exactly matches the patch.
func plantedChallenge(g Geometry, truth Placement) (background, piece *image.RGBA) {
	piece = noisePatch(g.PieceWidth, g.PieceHeight, 42)
	flat := solid(g.CanvasWidth, g.CanvasHeight, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	return Composite(flat, piece, truth), piece
}

func TestFindBestPlacement_PlantedCase(t *testing.T) {
	g := DefaultGeometry()
	truth := Placement{X: 120, Y: 50}
	background, piece := plantedChallenge(g, truth)

	result, err := FindBestPlacement(context.Background(), background, piece, oracle.NewJPEG(nil), DefaultQuality, DefaultStride)
	if err != nil {
		t.Fatalf("FindBestPlacement: %v", err)
	}
	if result.Placement != truth {
		t.Errorf("placement = %v, want %v", result.Placement, truth)
	}
	if result.Evaluated != len(g.Grid()) {
		t.Errorf("evaluated = %d, want %d", result.Evaluated, len(g.Grid()))
	}
	if !samePixels(result.Image, background) {
		t.Error("winning composite should equal the background when the piece fills its own hole")
	}

	want, err := oracle.NewJPEG(nil).EncodedSize(result.Image, DefaultQuality)
	if err != nil {
		t.Fatal(err)
	}
	if result.Size != want {
		t.Errorf("size = %d, want size of winning image %d", result.Size, want)
	}
}

func TestFindBestPlacement_ParallelMatchesSequential(t *testing.T) {
	g := DefaultGeometry()
	background, piece := plantedChallenge(g, Placement{X: 250, Y: 120})
	o := oracle.NewJPEG(nil)

	seq, err := NewSearcher(g, o)
	if err != nil {
		t.Fatal(err)
	}
	par, err := NewSearcher(g, o, WithWorkers(8))
	if err != nil {
		t.Fatal(err)
	}

	want, err := seq.FindBestPlacement(context.Background(), background, piece, 90)
	if err != nil {
		t.Fatal(err)
	}
	got, err := par.FindBestPlacement(context.Background(), background, piece, 90)
	if err != nil {
		t.Fatal(err)
	}
	if got.Placement != want.Placement || got.Size != want.Size {
		t.Errorf("parallel = %v/%d, sequential = %v/%d", got.Placement, got.Size, want.Placement, want.Size)
	}
	if got.Evaluated != want.Evaluated {
		t.Errorf("parallel evaluated %d, sequential %d", got.Evaluated, want.Evaluated)
	}
}

func TestFindBestPlacement_TieBreakIsFirstInScanOrder(t *testing.T) {
	g := Geometry{CanvasWidth: 120, CanvasHeight: 100, PieceWidth: 40, PieceHeight: 30, Stride: 10}
	gray := color.RGBA{R: 77, G: 77, B: 77, A: 255}
	background := solid(g.CanvasWidth, g.CanvasHeight, gray)
	piece := solid(g.PieceWidth, g.PieceHeight, gray)

	for _, workers := range []int{1, 3, 16} {
		s, err := NewSearcher(g, oracle.NewJPEG(nil), WithWorkers(workers))
		if err != nil {
			t.Fatal(err)
		}
		for run := 0; run < 3; run++ {
			result, err := s.FindBestPlacement(context.Background(), background, piece, 100)
			if err != nil {
				t.Fatal(err)
			}
			if result.Placement != (Placement{0, 0}) {
				t.Errorf("workers=%d run=%d placement = %v, want (0, 0)", workers, run, result.Placement)
			}
		}
	}
}

// markerOracle finds the piece's marker pixel to learn which placement was
// composited, and returns a size looked up from sizes (default 1000).
type markerOracle struct {
	marker color.RGBA
	sizes  map[Placement]int
	fail   map[Placement]bool

	mu   sync.Mutex
	seen map[Placement]int
}

func newMarkerOracle(marker color.RGBA) *markerOracle {
	return &markerOracle{marker: marker, sizes: map[Placement]int{}, fail: map[Placement]bool{}, seen: map[Placement]int{}}
}

func (m *markerOracle) EncodedSize(img image.Image, _ int) (int, error) {
	rgba := img.(*image.RGBA)
	b := rgba.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgba.RGBAAt(x, y) != m.marker {
				continue
			}
			p := Placement{X: x, Y: y}
			m.mu.Lock()
			m.seen[p]++
			m.mu.Unlock()
			if m.fail[p] {
				return 0, oracle.ErrEncodingFailure
			}
			if size, ok := m.sizes[p]; ok {
				return size, nil
			}
			return 1000, nil
		}
	}
	return 0, errors.New("marker not found")
}

func markedPiece(w, h int, marker color.RGBA) *image.RGBA {
	piece := solid(w, h, color.RGBA{G: 200, A: 255})
	piece.SetRGBA(0, 0, marker)
	return piece
}

func TestFindBestPlacement_EvaluatesExactlyTheGrid(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
	}{
		{"default", DefaultGeometry()},
		{"divisible bound", Geometry{CanvasWidth: 100, CanvasHeight: 60, PieceWidth: 40, PieceHeight: 20, Stride: 10}},
		{"odd stride", Geometry{CanvasWidth: 64, CanvasHeight: 48, PieceWidth: 17, PieceHeight: 9, Stride: 7}},
	}

	marker := color.RGBA{R: 255, A: 255}
	for _, tt := range tests {
		for _, workers := range []int{1, 4} {
			t.Run(tt.name, func(t *testing.T) {
				mo := newMarkerOracle(marker)
				counting := oracle.NewCounting(mo)
				s, err := NewSearcher(tt.g, counting, WithWorkers(workers))
				if err != nil {
					t.Fatal(err)
				}
				background := solid(tt.g.CanvasWidth, tt.g.CanvasHeight, color.RGBA{B: 200, A: 255})
				piece := markedPiece(tt.g.PieceWidth, tt.g.PieceHeight, marker)

				if _, err := s.FindBestPlacement(context.Background(), background, piece, 100); err != nil {
					t.Fatal(err)
				}

				var want []Placement
				for x := 0; x < tt.g.CanvasWidth-tt.g.PieceWidth; x += tt.g.Stride {
					for y := 0; y < tt.g.CanvasHeight-tt.g.PieceHeight; y += tt.g.Stride {
						want = append(want, Placement{x, y})
					}
				}
				if int(counting.Calls()) != len(want) {
					t.Errorf("oracle calls = %d, want %d", counting.Calls(), len(want))
				}
				if len(mo.seen) != len(want) {
					t.Errorf("distinct placements = %d, want %d", len(mo.seen), len(want))
				}
				for _, p := range want {
					if mo.seen[p] != 1 {
						t.Errorf("placement %v evaluated %d times, want 1", p, mo.seen[p])
					}
				}
			})
		}
	}
}

func TestFindBestPlacement_StrictMinimumAndTies(t *testing.T) {
	g := Geometry{CanvasWidth: 100, CanvasHeight: 60, PieceWidth: 40, PieceHeight: 20, Stride: 10}
	marker := color.RGBA{R: 255, A: 255}
	background := solid(g.CanvasWidth, g.CanvasHeight, color.RGBA{B: 200, A: 255})
	piece := markedPiece(g.PieceWidth, g.PieceHeight, marker)

	for _, workers := range []int{1, 2, 5} {
		mo := newMarkerOracle(marker)
		// (10, 30) and (50, 0) tie at the minimum; (10, 30) comes first in x-outer order.
		mo.sizes[Placement{50, 0}] = 10
		mo.sizes[Placement{10, 30}] = 10
		mo.sizes[Placement{30, 20}] = 11

		s, err := NewSearcher(g, mo, WithWorkers(workers))
		if err != nil {
			t.Fatal(err)
		}
		result, err := s.FindBestPlacement(context.Background(), background, piece, 100)
		if err != nil {
			t.Fatal(err)
		}
		if result.Placement != (Placement{10, 30}) || result.Size != 10 {
			t.Errorf("workers=%d result = %v/%d, want (10, 30)/10", workers, result.Placement, result.Size)
		}
		if got := result.Image.RGBAAt(10, 30); got != marker {
			t.Errorf("workers=%d winning image does not hold the piece at (10, 30)", workers)
		}
	}
}

func TestFindBestPlacement_OracleFailureAborts(t *testing.T) {
	g := Geometry{CanvasWidth: 100, CanvasHeight: 60, PieceWidth: 40, PieceHeight: 20, Stride: 10}
	marker := color.RGBA{R: 255, A: 255}
	background := solid(g.CanvasWidth, g.CanvasHeight, color.RGBA{B: 200, A: 255})
	piece := markedPiece(g.PieceWidth, g.PieceHeight, marker)

	for _, workers := range []int{1, 4} {
		mo := newMarkerOracle(marker)
		mo.fail[Placement{20, 10}] = true

		s, err := NewSearcher(g, mo, WithWorkers(workers))
		if err != nil {
			t.Fatal(err)
		}
		result, err := s.FindBestPlacement(context.Background(), background, piece, 100)
		if !errors.Is(err, oracle.ErrEncodingFailure) {
			t.Errorf("workers=%d err = %v, want ErrEncodingFailure", workers, err)
		}
		if result != nil {
			t.Errorf("workers=%d result = %+v, want nil on failure", workers, result)
		}
	}
}

func TestFindBestPlacement_InvalidGeometry(t *testing.T) {
	o := oracle.NewCounting(oracle.NewJPEG(nil))
	ctx := context.Background()

	tests := []struct {
		name       string
		background image.Image
		piece      image.Image
		stride     int
	}{
		{"piece wider than canvas", solid(50, 50, color.RGBA{A: 255}), solid(60, 10, color.RGBA{A: 255}), 10},
		{"piece equals canvas", solid(50, 50, color.RGBA{A: 255}), solid(50, 50, color.RGBA{A: 255}), 10},
		{"zero stride", solid(50, 50, color.RGBA{A: 255}), solid(10, 10, color.RGBA{A: 255}), 0},
		{"empty piece", solid(50, 50, color.RGBA{A: 255}), image.NewRGBA(image.Rectangle{}), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindBestPlacement(ctx, tt.background, tt.piece, o, 100, tt.stride)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("err = %v, want ErrInvalidGeometry", err)
			}
		})
	}
	if o.Calls() != 0 {
		t.Errorf("oracle called %d times before geometry was rejected", o.Calls())
	}
}

func TestSearcher_RejectsMismatchedImages(t *testing.T) {
	s, err := NewSearcher(DefaultGeometry(), oracle.NewJPEG(nil))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.FindBestPlacement(context.Background(),
		solid(400, 270, color.RGBA{A: 255}), solid(80, 90, color.RGBA{A: 255}), 100)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("err = %v, want ErrInvalidGeometry", err)
	}
}

func TestNewSearcher_RequiresOracle(t *testing.T) {
	if _, err := NewSearcher(DefaultGeometry(), nil); err == nil {
		t.Error("expected error for nil oracle")
	}
}

func TestFindBestPlacement_CancelledContext(t *testing.T) {
	g := DefaultGeometry()
	background, piece := plantedChallenge(g, Placement{X: 0, Y: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		s, err := NewSearcher(g, oracle.NewJPEG(nil), WithWorkers(workers))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.FindBestPlacement(ctx, background, piece, 100); !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d err = %v, want context.Canceled", workers, err)
		}
	}
}
