// Package oracle measures the encoded size of an image under a fixed lossy
// JPEG configuration. The size is the continuity signal the placement search
// minimises, so every measurement in one search must use identical settings.
package oracle

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"sync/atomic"

	"github.com/gen2brain/jpegli"
)

// Oracle errors.
var (
	ErrEncodingFailure = errors.New("oracle: encoding failed")
	ErrInvalidQuality  = errors.New("oracle: quality must be between 0 and 100")
	ErrResourceCleanup = errors.New("oracle: failed to release temporary storage")
	ErrUnknownCodec    = errors.New("oracle: unknown codec")
)

// EncodingError reports which codec and quality failed.
type EncodingError struct {
	Codec   string
	Quality int
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("oracle: %s encode at quality %d: %v", e.Codec, e.Quality, e.Err)
}

// Is makes errors.Is(err, ErrEncodingFailure) hold for every EncodingError.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncodingFailure
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Oracle returns the encoded byte size of img at the given quality.
type Oracle interface {
	EncodedSize(img image.Image, quality int) (int, error)
}

// Codec writes img as a lossy JPEG stream.
type Codec interface {
	Name() string
	Encode(w io.Writer, img image.Image, quality int) error
}

// Codec names accepted by NewCodec.
const (
	CodecStdlib = "stdlib"
	CodecJpegli = "jpegli"
)

// NewCodec resolves a codec by name. chroma applies to jpegli only; the
// standard library encoder always uses 4:2:0.
func NewCodec(name string, chroma image.YCbCrSubsampleRatio) (Codec, error) {
	switch name {
	case "", CodecStdlib:
		return StdlibCodec{}, nil
	case CodecJpegli:
		return JpegliCodec{ChromaSubsampling: chroma}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ParseChroma maps "444", "422" and "420" to subsampling ratios.
func ParseChroma(s string) (image.YCbCrSubsampleRatio, error) {
	switch s {
	case "444":
		return image.YCbCrSubsampleRatio444, nil
	case "422":
		return image.YCbCrSubsampleRatio422, nil
	case "", "420":
		return image.YCbCrSubsampleRatio420, nil
	default:
		return 0, fmt.Errorf("oracle: unsupported chroma subsampling %q", s)
	}
}

// StdlibCodec uses image/jpeg: baseline, 4:2:0, standard quantisation tables.
type StdlibCodec struct{}

func (StdlibCodec) Name() string { return CodecStdlib }

func (StdlibCodec) Encode(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// JpegliCodec uses the jpegli encoder with a fixed chroma subsampling.
type JpegliCodec struct {
	ChromaSubsampling image.YCbCrSubsampleRatio
}

func (JpegliCodec) Name() string { return CodecJpegli }

func (c JpegliCodec) Encode(w io.Writer, img image.Image, quality int) error {
	return jpegli.Encode(w, img, &jpegli.EncodingOptions{
		Quality:           quality,
		ChromaSubsampling: c.ChromaSubsampling,
	})
}

// JPEG encodes in memory into a buffer local to each call, so it is safe for
// concurrent use and leaves nothing behind.
type JPEG struct {
	codec Codec
}

// NewJPEG returns an in-memory oracle. A nil codec selects StdlibCodec.
func NewJPEG(codec Codec) *JPEG {
	if codec == nil {
		codec = StdlibCodec{}
	}
	return &JPEG{codec: codec}
}

// Codec returns the codec used for measurements.
func (o *JPEG) Codec() Codec {
	return o.codec
}

// EncodedSize encodes img and returns the number of bytes produced.
func (o *JPEG) EncodedSize(img image.Image, quality int) (int, error) {
	if err := checkQuality(o.codec, quality); err != nil {
		return 0, err
	}
	if img == nil || img.Bounds().Empty() {
		return 0, &EncodingError{Codec: o.codec.Name(), Quality: quality, Err: errors.New("empty image")}
	}

	var buf bytes.Buffer
	if err := o.codec.Encode(&buf, img, quality); err != nil {
		return 0, &EncodingError{Codec: o.codec.Name(), Quality: quality, Err: err}
	}
	return buf.Len(), nil
}

func checkQuality(codec Codec, quality int) error {
	if quality < 0 || quality > 100 {
		return &EncodingError{Codec: codec.Name(), Quality: quality, Err: ErrInvalidQuality}
	}
	return nil
}

// Counting wraps an Oracle and counts calls. It is safe for concurrent use.
type Counting struct {
	Oracle
	calls atomic.Int64
}

// NewCounting wraps o.
func NewCounting(o Oracle) *Counting {
	return &Counting{Oracle: o}
}

// EncodedSize forwards to the wrapped oracle.
func (c *Counting) EncodedSize(img image.Image, quality int) (int, error) {
	c.calls.Add(1)
	return c.Oracle.EncodedSize(img, quality)
}

// Calls returns the number of measurements made so far.
func (c *Counting) Calls() int64 {
	return c.calls.Load()
}

// Reset zeroes the call counter.
func (c *Counting) Reset() {
	c.calls.Store(0)
}
