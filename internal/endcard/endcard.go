// Package endcard builds the optional closing scene: a QR code for a link
// centered on a plain background.
package endcard

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/skip2/go-qrcode"

	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/frames"
	"github.com/ivlev/img2shorts/internal/scene"
)

// Enabled reports whether an end card was configured.
func Enabled(cfg config.EndCardConfig) bool {
	return cfg.URL != "" && cfg.Duration > 0
}

// Build renders the end card at the video frame size. The QR code is
// shrunk to fit when the configured size exceeds the frame.
func Build(cfg config.EndCardConfig, width, height int) (scene.Image, error) {
	bg, err := frames.ParseColor(cfg.Background)
	if err != nil {
		return scene.Image{}, err
	}

	size := cfg.Size
	if size <= 0 || size > min(width, height) {
		size = min(width, height) * 2 / 3
	}

	qr, err := qrcode.New(cfg.URL, qrcode.Medium)
	if err != nil {
		return scene.Image{}, fmt.Errorf("qr code: %w", err)
	}
	code := qr.Image(size)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	cb := code.Bounds()
	x0 := (width - cb.Dx()) / 2
	y0 := (height - cb.Dy()) / 2
	draw.Draw(img, image.Rect(x0, y0, x0+cb.Dx(), y0+cb.Dy()), code, cb.Min, draw.Src)

	return scene.Image{Name: "endcard", Image: img}, nil
}
