package challenge

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jpegsize/puzzle"
	"jpegsize/vision"
)

// imageExtensions are the corpus file types vision can decode.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Corpus is an ordered set of image names inside one directory.
type Corpus struct {
	Dir   string
	Names []string
}

// LoadCorpus lists the decodable images directly inside dir, sorted by name.
// Subdirectories and other files are skipped.
func LoadCorpus(dir string) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("challenge: read corpus: %w", err)
	}
	c := &Corpus{Dir: dir}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			c.Names = append(c.Names, e.Name())
		}
	}
	sort.Strings(c.Names)
	return c, nil
}

// Len returns the number of images.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Names)
}

// Path returns the file path of name.
func (c *Corpus) Path(name string) string {
	return filepath.Join(c.Dir, name)
}

// Loader returns the canonical canvas-sized image for a corpus entry.
type Loader interface {
	Load(ctx context.Context, corpus *Corpus, name string) (*image.RGBA, error)
}

// FileLoader decodes corpus files from disk and canonicalises them to the
// geometry's canvas with Mode.
type FileLoader struct {
	Geometry puzzle.Geometry
	Mode     vision.Mode
}

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context, corpus *Corpus, name string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := vision.LoadImage(corpus.Path(name))
	if err != nil {
		return nil, err
	}
	canvas, err := vision.Canonicalize(img, l.Geometry.CanvasWidth, l.Geometry.CanvasHeight, l.Mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return canvas, nil
}
