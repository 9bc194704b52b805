// Package vision loads corpus images and brings them to the canonical canvas
// size used by the challenge generator.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/jpegn"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Image loading errors
var (
	ErrEmptyImage        = errors.New("vision: empty image data")
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrInvalidDimensions = errors.New("vision: invalid dimensions")
	ErrImageTooSmall     = errors.New("vision: image smaller than target size")
	ErrUnknownMode       = errors.New("vision: unknown canonicalisation mode")
)

// Mode selects how a corpus image is brought to the canvas size.
type Mode string

const (
	// ModeFit scales the image to cover the canvas and crops the overflow
	// around the center.
	ModeFit Mode = "fit"
	// ModeCrop cuts the canvas from the center without scaling.
	ModeCrop Mode = "crop"
)

// ParseMode accepts "fit" (also "resize") and "crop".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fit", "resize", "":
		return ModeFit, nil
	case "crop":
		return ModeCrop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// jpegMagic is the SOI marker.
var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// DecodeImage decodes PNG, GIF, BMP, TIFF or JPEG data. JPEG goes through
// jpegn and is returned as RGBA.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	if bytes.HasPrefix(data, jpegMagic) {
		img, err := jpegn.Decode(bytes.NewReader(data), &jpegn.Options{ToRGBA: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// LoadImage reads and decodes the file at path.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vision: read %s: %w", path, err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// ToRGBA copies img into an RGBA image with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Canonicalize brings img to width x height using mode.
func Canonicalize(img image.Image, width, height int, mode Mode) (*image.RGBA, error) {
	switch mode {
	case ModeFit:
		return Fit(img, width, height)
	case ModeCrop:
		return CenterCrop(img, width, height)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Fit crops img to the target aspect ratio around its center, then scales the
// crop to width x height with Catmull-Rom resampling.
func Fit(img image.Image, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("%w: source %dx%d", ErrInvalidDimensions, srcW, srcH)
	}

	cropW, cropH := srcW, srcH
	// Compare srcW/srcH with width/height without floating point.
	if srcW*height > width*srcH {
		cropW = max(1, (srcH*width+height/2)/height)
	} else {
		cropH = max(1, (srcW*height+width/2)/width)
	}
	x0 := b.Min.X + (srcW-cropW)/2
	y0 := b.Min.Y + (srcH-cropH)/2
	crop := image.Rect(x0, y0, x0+cropW, y0+cropH)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst, nil
}

// CenterCrop cuts width x height from the center of img.
func CenterCrop(img image.Image, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	b := img.Bounds()
	if b.Dx() < width || b.Dy() < height {
		return nil, fmt.Errorf("%w: %dx%d < %dx%d", ErrImageTooSmall, b.Dx(), b.Dy(), width, height)
	}
	x0 := b.Min.X + (b.Dx()-width)/2
	y0 := b.Min.Y + (b.Dy()-height)/2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return dst, nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("vision: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// SavePNG writes img to path as PNG, creating parent directories.
func SavePNG(path string, img image.Image) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("vision: create %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0644)
}
