package source

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/failure"
	"github.com/ivlev/img2shorts/internal/scene"
)

// Loader is the image side of the AssetLoader: it turns every page of a
// source into a frame-sized, color-corrected image.
type Loader struct {
	width, height int
	dpi           int
	method        ResizeMethod
	enhance       Enhancement
	workers       int
	logger        *slog.Logger
}

func NewLoader(video config.VideoConfig, img config.ImageConfig, workers int, logger *slog.Logger) (*Loader, error) {
	method, err := ParseResizeMethod(img.ResizeMethod)
	if err != nil {
		return nil, err
	}
	enhance, err := EnhancementFor(img.Template, img.Enhance)
	if err != nil {
		return nil, err
	}
	return &Loader{
		width:   video.Width,
		height:  video.Height,
		dpi:     img.DPI,
		method:  method,
		enhance: enhance,
		workers: max(workers, 1),
		logger:  logger,
	}, nil
}

// LoadAll renders pages in a bounded pool and keeps source order. A page
// that fails is skipped with a warning; if none succeed LoadAll fails with
// an empty-input error.
func (l *Loader) LoadAll(ctx context.Context, src Source) ([]scene.Image, error) {
	n := src.PageCount()
	if n == 0 {
		return nil, failure.EmptyInput("source has no images")
	}

	results := make([]*scene.Image, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := src.RenderPage(i, l.dpi)
			if err != nil {
				l.logger.Warn("image skipped", "index", i, "name", src.Name(i), "error", err)
				return nil
			}
			results[i] = &scene.Image{
				Name:  src.Name(i),
				Image: l.enhance.Apply(Resize(img, l.width, l.height, l.method)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make([]scene.Image, 0, n)
	for _, r := range results {
		if r != nil {
			images = append(images, *r)
		}
	}
	if len(images) == 0 {
		return nil, failure.EmptyInput("none of %d images could be loaded", n)
	}
	if skipped := n - len(images); skipped > 0 {
		l.logger.Warn("some images were skipped", "loaded", len(images), "skipped", skipped)
	}
	return images, nil
}
