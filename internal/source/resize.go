package source

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

type ResizeMethod int

const (
	// ResizeCover fills the frame and crops the overflow around the centre.
	ResizeCover ResizeMethod = iota
	// ResizeFit letterboxes the whole picture on black.
	ResizeFit
	// ResizeStretch ignores the aspect ratio.
	ResizeStretch
	// ResizeBlurBackground letterboxes on a blurred, cropped copy of the
	// picture instead of black.
	ResizeBlurBackground
)

// blurDownscale is how much smaller the background is blurred before it is
// scaled back up.
const (
	blurDownscale = 8
	blurSigma     = 2.5
)

func ParseResizeMethod(s string) (ResizeMethod, error) {
	switch strings.ToLower(s) {
	case "", "cover":
		return ResizeCover, nil
	case "fit":
		return ResizeFit, nil
	case "stretch":
		return ResizeStretch, nil
	case "blur_background":
		return ResizeBlurBackground, nil
	}
	return ResizeCover, fmt.Errorf("unknown resize method %q", s)
}

// Resize returns a width x height RGBA copy of img.
func Resize(img image.Image, width, height int, method ResizeMethod) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	src := img.Bounds()
	if src.Empty() {
		return dst
	}

	sw, sh := float64(src.Dx()), float64(src.Dy())
	dw, dh := float64(width), float64(height)

	switch method {
	case ResizeStretch:
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	case ResizeFit:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		fitInto(dst, img)

	case ResizeBlurBackground:
		draw.Draw(dst, dst.Bounds(), blurredBackground(img, width, height), image.Point{}, draw.Src)
		fitInto(dst, img)

	default:
		// Обрезаем исходник до пропорций кадра по центру
		scale := max(dw/sw, dh/sh)
		cw, ch := int(dw/scale+0.5), int(dh/scale+0.5)
		cw, ch = min(cw, src.Dx()), min(ch, src.Dy())
		x0 := src.Min.X + (src.Dx()-cw)/2
		y0 := src.Min.Y + (src.Dy()-ch)/2
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)
	}
	return dst
}

// fitInto scales img to fit dst whole, centred, over what dst already holds.
func fitInto(dst *image.RGBA, img image.Image) {
	src := img.Bounds()
	sw, sh := float64(src.Dx()), float64(src.Dy())
	dw, dh := float64(dst.Rect.Dx()), float64(dst.Rect.Dy())

	scale := min(dw/sw, dh/sh)
	w, h := int(sw*scale+0.5), int(sh*scale+0.5)
	x0, y0 := (dst.Rect.Dx()-w)/2, (dst.Rect.Dy()-h)/2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), img, src, draw.Over, nil)
}

// blurredBackground: обрезка под кадр, размытие на уменьшенной копии и
// обратное растяжение до размера кадра.
func blurredBackground(img image.Image, width, height int) image.Image {
	sw, sh := max(width/blurDownscale, 1), max(height/blurDownscale, 1)
	small := Resize(img, sw, sh, ResizeCover)
	blurred := imaging.Blur(small, blurSigma)

	bg := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(bg, bg.Bounds(), blurred, blurred.Bounds(), draw.Src, nil)
	return bg
}
