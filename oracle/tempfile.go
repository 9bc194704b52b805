package oracle

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"jpegsize/logging"

	"go.uber.org/zap"
)

// Release retry policy for temporary files.
const (
	DefaultReleaseAttempts = 5
	DefaultReleaseBackoff  = 100 * time.Millisecond
)

// TempFile measures size by writing the encoded image to a uniquely named
// file and reading its length back. Prefer JPEG; this exists for codecs that
// can only target a path and to compare against on-disk measurements.
//
// Each call creates its own file through os.CreateTemp, so concurrent calls
// never collide. The file is removed before EncodedSize returns on every path.
// A removal that still fails after the retries is logged as a leak and does
// not invalidate the measurement.
type TempFile struct {
	codec    Codec
	dir      string
	attempts int
	backoff  time.Duration
	logger   *logging.Logger

	// remove is os.Remove, swapped in tests.
	remove func(string) error
}

// TempFileOption configures a TempFile oracle.
type TempFileOption func(*TempFile)

// WithReleasePolicy overrides the removal retry count and backoff.
func WithReleasePolicy(attempts int, backoff time.Duration) TempFileOption {
	return func(t *TempFile) {
		if attempts < 1 {
			attempts = 1
		}
		t.attempts = attempts
		t.backoff = backoff
	}
}

// WithTempLogger sets the logger used to report leaked files.
func WithTempLogger(logger *logging.Logger) TempFileOption {
	return func(t *TempFile) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTempFile returns a file-backed oracle writing into dir ("" means
// os.TempDir()). A nil codec selects StdlibCodec.
func NewTempFile(codec Codec, dir string, opts ...TempFileOption) *TempFile {
	if codec == nil {
		codec = StdlibCodec{}
	}
	t := &TempFile{
		codec:    codec,
		dir:      dir,
		attempts: DefaultReleaseAttempts,
		backoff:  DefaultReleaseBackoff,
		logger:   logging.NewNop(),
		remove:   os.Remove,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// EncodedSize writes img to a temporary file and returns the file size.
func (t *TempFile) EncodedSize(img image.Image, quality int) (int, error) {
	if err := checkQuality(t.codec, quality); err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(t.dir, "jpegsize-*.jpg")
	if err != nil {
		return 0, &EncodingError{Codec: t.codec.Name(), Quality: quality, Err: err}
	}
	path := f.Name()
	defer func() {
		if releaseErr := t.release(path); releaseErr != nil {
			t.logger.Warn("temporary file leaked",
				zap.String("path", path),
				zap.Int("attempts", t.attempts),
				zap.Error(releaseErr))
		}
	}()

	w := bufio.NewWriter(f)
	encodeErr := t.codec.Encode(w, img, quality)
	if encodeErr == nil {
		encodeErr = w.Flush()
	}
	closeErr := f.Close()
	if err := errors.Join(encodeErr, closeErr); err != nil {
		return 0, &EncodingError{Codec: t.codec.Name(), Quality: quality, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, &EncodingError{Codec: t.codec.Name(), Quality: quality, Err: err}
	}
	return int(info.Size()), nil
}

// release removes path, retrying with a fixed backoff.
func (t *TempFile) release(path string) error {
	var err error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		err = t.remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if attempt < t.attempts {
			time.Sleep(t.backoff)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrResourceCleanup, path, err)
}
