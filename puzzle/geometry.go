// Package puzzle implements the placement attack against jigsaw-piece CAPTCHAs:
// compositing a piece onto a background, enumerating grid placements, and
// selecting the placement whose composite compresses to the fewest bytes.
package puzzle

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidGeometry is returned when a canvas, piece or stride cannot produce
// a single grid placement.
var ErrInvalidGeometry = errors.New("puzzle: invalid geometry")

// Default geometry matching the Capy-style challenges the attack targets.
const (
	DefaultCanvasWidth  = 405
	DefaultCanvasHeight = 270
	DefaultPieceWidth   = 80
	DefaultPieceHeight  = 90
	DefaultStride       = 10
	DefaultQuality      = 100
)

// Placement is a top-left offset of a piece on the canvas.
type Placement struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Point returns the placement as an image.Point.
func (p Placement) Point() image.Point {
	return image.Pt(p.X, p.Y)
}

func (p Placement) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Geometry holds the canvas and piece sizes plus the grid stride shared by the
// challenge generator and the searcher.
type Geometry struct {
	CanvasWidth  int `yaml:"canvas_width"`
	CanvasHeight int `yaml:"canvas_height"`
	PieceWidth   int `yaml:"piece_width"`
	PieceHeight  int `yaml:"piece_height"`
	Stride       int `yaml:"stride"`
}

// DefaultGeometry returns the 405x270 canvas, 80x90 piece, 10px grid.
func DefaultGeometry() Geometry {
	return Geometry{
		CanvasWidth:  DefaultCanvasWidth,
		CanvasHeight: DefaultCanvasHeight,
		PieceWidth:   DefaultPieceWidth,
		PieceHeight:  DefaultPieceHeight,
		Stride:       DefaultStride,
	}
}

// GeometryFor derives a geometry from the actual image sizes.
func GeometryFor(background, piece image.Image, stride int) Geometry {
	bb, pb := background.Bounds(), piece.Bounds()
	return Geometry{
		CanvasWidth:  bb.Dx(),
		CanvasHeight: bb.Dy(),
		PieceWidth:   pb.Dx(),
		PieceHeight:  pb.Dy(),
		Stride:       stride,
	}
}

// Canvas returns the canvas size.
func (g Geometry) Canvas() image.Point {
	return image.Pt(g.CanvasWidth, g.CanvasHeight)
}

// Piece returns the piece size.
func (g Geometry) Piece() image.Point {
	return image.Pt(g.PieceWidth, g.PieceHeight)
}

// Validate reports whether the geometry yields at least one grid placement.
func (g Geometry) Validate() error {
	switch {
	case g.CanvasWidth <= 0 || g.CanvasHeight <= 0:
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidGeometry, g.CanvasWidth, g.CanvasHeight)
	case g.PieceWidth <= 0 || g.PieceHeight <= 0:
		return fmt.Errorf("%w: piece %dx%d", ErrInvalidGeometry, g.PieceWidth, g.PieceHeight)
	case g.Stride <= 0:
		return fmt.Errorf("%w: stride %d", ErrInvalidGeometry, g.Stride)
	case g.PieceWidth >= g.CanvasWidth || g.PieceHeight >= g.CanvasHeight:
		// The grid bound is half-open, so a piece as wide as the canvas has no placement.
		return fmt.Errorf("%w: piece %dx%d leaves no placement on canvas %dx%d",
			ErrInvalidGeometry, g.PieceWidth, g.PieceHeight, g.CanvasWidth, g.CanvasHeight)
	}
	return nil
}

// Grid returns every candidate placement in scan order: x in the outer loop,
// y in the inner loop, both increasing. Coordinates are multiples of Stride
// strictly below CanvasSize-PieceSize.
func (g Geometry) Grid() []Placement {
	if g.Validate() != nil {
		return nil
	}
	xs := gridLine(g.CanvasWidth-g.PieceWidth, g.Stride)
	ys := gridLine(g.CanvasHeight-g.PieceHeight, g.Stride)

	grid := make([]Placement, 0, len(xs)*len(ys))
	for _, x := range xs {
		for _, y := range ys {
			grid = append(grid, Placement{X: x, Y: y})
		}
	}
	return grid
}

// GridPlacements is Geometry.Grid for loose dimensions.
func GridPlacements(canvasWidth, canvasHeight, pieceWidth, pieceHeight, stride int) []Placement {
	return Geometry{
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		PieceWidth:   pieceWidth,
		PieceHeight:  pieceHeight,
		Stride:       stride,
	}.Grid()
}

// OnGrid reports whether p is one of the placements returned by Grid.
func (g Geometry) OnGrid(p Placement) bool {
	if g.Validate() != nil {
		return false
	}
	return p.X >= 0 && p.Y >= 0 &&
		p.X < g.CanvasWidth-g.PieceWidth && p.Y < g.CanvasHeight-g.PieceHeight &&
		p.X%g.Stride == 0 && p.Y%g.Stride == 0
}

// gridLine returns 0, stride, 2*stride, ... below limit.
func gridLine(limit, stride int) []int {
	line := make([]int, 0, (limit+stride-1)/stride)
	for v := 0; v < limit; v += stride {
		line = append(line, v)
	}
	return line
}
