package puzzle

import (
	"image"

	"golang.org/x/image/draw"
)

// Composite returns a copy of background with piece pasted at the given
// offset. The offset may be negative or run past the right/bottom edges; only
// the part of the piece that overlaps the background is copied. If nothing
// overlaps, the result equals background. Neither argument is modified and the
// result always has the background's size with its origin at (0, 0).
func Composite(background, piece image.Image, at Placement) *image.RGBA {
	bb := background.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	draw.Draw(out, out.Bounds(), background, bb.Min, draw.Src)

	pb := piece.Bounds()
	target := image.Rectangle{Min: at.Point(), Max: at.Point().Add(pb.Size())}
	clip := target.Intersect(out.Bounds())
	if clip.Empty() {
		return out
	}

	// Source offset skips the rows/columns clipped off the top/left edge.
	src := pb.Min.Add(clip.Min.Sub(target.Min))
	draw.Draw(out, clip, piece, src, draw.Src)
	return out
}

// Crop copies the rectangle r of img into a new image with origin (0, 0).
// r is expressed relative to img's own origin.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
