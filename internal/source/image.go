package source

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/img2shorts/internal/failure"
)

// Extensions lists the accepted image file types.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

type ImageSource struct {
	paths []string
}

// NewImageSource lists a directory (sorted by name, non-images ignored) or
// wraps a single image file.
func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failure.AssetMissing(path)
		}
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && IsImageFile(entry.Name()) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		if !IsImageFile(path) {
			return nil, failure.UnsupportedFormat(path, filepath.Ext(path))
		}
		paths = []string{path}
	}

	return &ImageSource{paths: paths}, nil
}

// NewImageSourceFromPaths keeps the given order. Paths are checked when
// rendered, so a missing file only skips that page.
func NewImageSourceFromPaths(paths []string) *ImageSource {
	return &ImageSource{paths: append([]string(nil), paths...)}
}

func (s *ImageSource) PageCount() int {
	return len(s.paths)
}

func (s *ImageSource) Name(index int) string {
	return filepath.Base(s.paths[index])
}

func (s *ImageSource) GetPageDimensions(index int) (float64, float64, error) {
	f, err := s.open(index)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	img, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return float64(img.Width), float64(img.Height), nil
}

// RenderPage decodes the image; dpi is ignored for raster files.
func (s *ImageSource) RenderPage(index int, dpi int) (image.Image, error) {
	f, err := s.open(index)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *ImageSource) open(index int) (*os.File, error) {
	path := s.paths[index]
	if !IsImageFile(path) {
		return nil, failure.UnsupportedFormat(path, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, failure.AssetMissing(path)
	}
	return f, err
}

func (s *ImageSource) Close() error {
	return nil
}
