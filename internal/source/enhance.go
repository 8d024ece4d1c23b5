package source

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/ivlev/img2shorts/internal/config"
)

// Enhancement is a color correction applied to a resized image, in this
// order: brightness, contrast (around the image mean), saturation, tint.
// Factors of 1 and a zero TintAmount leave the image untouched.
type Enhancement struct {
	Brightness float64
	Contrast   float64
	Saturation float64
	Tint       color.NRGBA
	TintAmount float64
}

var noEnhancement = Enhancement{Brightness: 1, Contrast: 1, Saturation: 1}

// EnhancementFor resolves a template preset and multiplies the explicit
// factors on top of it.
func EnhancementFor(template string, cfg config.EnhanceConfig) (Enhancement, error) {
	e := noEnhancement
	switch template {
	case "", "basic", "news", "story", "product":
	case "modern":
		e.Brightness, e.Contrast, e.Saturation = 1.1, 1.1, 1.2
	case "vintage":
		// выцветшие цвета с теплым оттенком
		e.Contrast, e.Saturation = 0.9, 0.7
		e.Tint, e.TintAmount = color.NRGBA{R: 255, G: 240, B: 200, A: 255}, 0.1
	default:
		return e, fmt.Errorf("unknown template %q", template)
	}

	e.Brightness *= orOne(cfg.Brightness)
	e.Contrast *= orOne(cfg.Contrast)
	e.Saturation *= orOne(cfg.Saturation)
	return e, nil
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

func (e Enhancement) IsIdentity() bool {
	return e.Brightness == 1 && e.Contrast == 1 && e.Saturation == 1 && e.TintAmount <= 0
}

// Apply returns the corrected copy of img, or img itself for the identity.
func (e Enhancement) Apply(img *image.RGBA) *image.RGBA {
	if e.IsIdentity() {
		return img
	}

	mean := e.Brightness * meanLuma(img)
	tr, tg, tb := float64(e.Tint.R), float64(e.Tint.G), float64(e.Tint.B)

	adjusted := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R)*e.Brightness, float64(c.G)*e.Brightness, float64(c.B)*e.Brightness

		r, g, b = mean+(r-mean)*e.Contrast, mean+(g-mean)*e.Contrast, mean+(b-mean)*e.Contrast

		l := luma(clamp255(r), clamp255(g), clamp255(b))
		r, g, b = l+(r-l)*e.Saturation, l+(g-l)*e.Saturation, l+(b-l)*e.Saturation

		if a := e.TintAmount; a > 0 {
			r, g, b = r*(1-a)+tr*a, g*(1-a)+tg*a, b*(1-a)+tb*a
		}
		return color.NRGBA{R: u8(r), G: u8(g), B: u8(b), A: c.A}
	})

	out := image.NewRGBA(img.Rect)
	draw.Draw(out, out.Rect, adjusted, adjusted.Rect.Min, draw.Src)
	return out
}

func luma(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

func meanLuma(img *image.RGBA) float64 {
	b := img.Rect
	if b.Empty() {
		return 0
	}
	sum := 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			sum += luma(float64(row[i]), float64(row[i+1]), float64(row[i+2]))
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

func clamp255(v float64) float64 {
	return min(max(v, 0), 255)
}

func u8(v float64) uint8 {
	return uint8(clamp255(v) + 0.5)
}
