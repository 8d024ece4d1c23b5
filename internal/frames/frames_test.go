package frames

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/img2shorts/internal/caption"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/effects"
	"github.com/ivlev/img2shorts/internal/scene"
	"github.com/ivlev/img2shorts/internal/transition"
)

var (
	red  = color.RGBA{255, 0, 0, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func twoScenes(t *testing.T, w, h int, tr scene.Transition) transition.Timeline {
	t.Helper()
	scenes := []scene.Scene{
		{Index: 0, Image: solid(w, h, red), Duration: 2, Transition: tr},
		{Index: 1, Image: solid(w, h, blue), Duration: 2, Transition: tr},
	}
	tl, err := transition.NewCompositor(discard()).Compose(scenes)
	require.NoError(t, err)
	return tl
}

func newRenderer(t *testing.T, w, h int, tl transition.Timeline) *Renderer {
	t.Helper()
	video := config.VideoConfig{Width: w, Height: h, FPS: 10}
	text := config.Default().Text
	text.Margin = 10
	r, err := NewRenderer(video, text, tl, discard())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func render(r *Renderer, at float64) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: r.Size()})
	r.RenderAt(at, dst)
	return dst
}

func TestRenderer_FadeWindow(t *testing.T) {
	tl := twoScenes(t, 20, 40, scene.Transition{Kind: scene.TransitionFade, Duration: 1})
	r := newRenderer(t, 20, 40, tl)

	assert.Equal(t, 30, r.FrameCount())
	assert.Equal(t, red, render(r, 0).RGBAAt(10, 20))
	assert.Equal(t, blue, render(r, 3.0).RGBAAt(10, 20), "last instant shows the final scene")

	mid := render(r, 1.5).RGBAAt(10, 20)
	assert.InDelta(t, 64, int(mid.R), 8)
	assert.InDelta(t, 128, int(mid.B), 8)
}

func TestRenderer_Wipe(t *testing.T) {
	tl := twoScenes(t, 20, 40, scene.Transition{Kind: scene.TransitionWipe, Duration: 1})
	r := newRenderer(t, 20, 40, tl)

	frame := render(r, 1.5)
	assert.Equal(t, blue, frame.RGBAAt(2, 20), "revealed part")
	assert.Equal(t, red, frame.RGBAAt(15, 20), "covered part")
}

func TestRenderer_SlideLeft(t *testing.T) {
	tl := twoScenes(t, 20, 40, scene.Transition{Kind: scene.TransitionSlide, Direction: scene.DirectionLeft, Duration: 1})
	r := newRenderer(t, 20, 40, tl)

	frame := render(r, 1.5)
	assert.Equal(t, red, frame.RGBAAt(3, 20))
	assert.Equal(t, blue, frame.RGBAAt(16, 20))
}

func TestRenderer_KenBurnsKeepsFrameCovered(t *testing.T) {
	scenes := []scene.Scene{{
		Image:    solid(20, 40, red),
		Duration: 2,
		Motion:   effects.Motion{Mode: effects.ModeZoomIn, Anchor: effects.AnchorTopLeft, Ratio: 1.5},
	}}
	tl, err := transition.NewCompositor(discard()).Compose(scenes)
	require.NoError(t, err)
	r := newRenderer(t, 20, 40, tl)

	frame := render(r, 1.0)
	assert.Equal(t, red, frame.RGBAAt(1, 1))
	assert.Equal(t, red, frame.RGBAAt(18, 38))
}

func TestRenderer_Caption(t *testing.T) {
	cp := &caption.Caption{
		Text:              "Hi",
		Duration:          2,
		Position:          caption.PositionBottom,
		Style:             caption.Style{FontSize: 40, Color: "#FFFFFF", StrokeColor: "#000000", StrokeWidth: 2},
		Animation:         caption.AnimationFade,
		AnimationDuration: 0.5,
	}
	scenes := []scene.Scene{{Image: solid(200, 400, blue), Duration: 2, Caption: cp}}
	tl, err := transition.NewCompositor(discard()).Compose(scenes)
	require.NoError(t, err)
	r := newRenderer(t, 200, 400, tl)

	countWhite := func(img *image.RGBA) int {
		n := 0
		for y := 0; y < 400; y++ {
			for x := 0; x < 200; x++ {
				c := img.RGBAAt(x, y)
				if c.R > 200 && c.G > 200 && c.B > 200 {
					n++
				}
			}
		}
		return n
	}

	assert.Zero(t, countWhite(render(r, 0)), "fade starts invisible")
	assert.Positive(t, countWhite(render(r, 1.0)))
}

// captionedScenes: 200x400 red then blue, only the first scene has a green
// caption in the middle of the frame.
func captionedScenes(t *testing.T, tr scene.Transition) *Renderer {
	t.Helper()
	cp := &caption.Caption{
		Text:      "HELLO",
		Duration:  2,
		Position:  caption.PositionCenter,
		Style:     caption.Style{FontSize: 40, Color: "#00FF00"},
		Animation: caption.AnimationNone,
	}
	scenes := []scene.Scene{
		{Index: 0, Image: solid(200, 400, red), Duration: 2, Transition: tr, Caption: cp},
		{Index: 1, Image: solid(200, 400, blue), Duration: 2, Transition: tr},
	}
	tl, err := transition.NewCompositor(discard()).Compose(scenes)
	require.NoError(t, err)
	return newRenderer(t, 200, 400, tl)
}

func countGreen(img *image.RGBA, area image.Rectangle) int {
	n := 0
	area = area.Intersect(img.Rect)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.G > 200 && c.R < 60 && c.B < 60 {
				n++
			}
		}
	}
	return n
}

func TestRenderer_CaptionMovesWithSlide(t *testing.T) {
	r := captionedScenes(t, scene.Transition{Kind: scene.TransitionSlide, Direction: scene.DirectionLeft, Duration: 1})
	whole := image.Rect(0, 0, 200, 400)

	before := render(r, 0.5)
	require.Positive(t, countGreen(before, whole))
	assert.Positive(t, countGreen(before, image.Rect(100, 0, 200, 400)), "caption is centered at rest")

	// на середине сдвига подпись уехала вместе с картинкой на полкадра влево
	half := render(r, 1.5)
	assert.Positive(t, countGreen(half, image.Rect(0, 0, 100, 400)))
	assert.Zero(t, countGreen(half, image.Rect(100, 0, 200, 400)))

	late := render(r, 1.95)
	assert.Equal(t, blue, late.RGBAAt(100, 200))
	assert.Zero(t, countGreen(late, image.Rect(20, 0, 200, 400)))
}

func TestRenderer_CaptionStaysUnderWipe(t *testing.T) {
	r := captionedScenes(t, scene.Transition{Kind: scene.TransitionWipe, Duration: 1})

	half := render(r, 1.5)
	assert.Zero(t, countGreen(half, image.Rect(0, 0, 100, 400)), "revealed part is only the next scene")
	assert.Positive(t, countGreen(half, image.Rect(100, 0, 200, 400)))

	late := render(r, 1.95)
	assert.Zero(t, countGreen(late, image.Rect(0, 0, 190, 400)))
	for _, x := range []int{5, 100, 185} {
		assert.Equal(t, blue, late.RGBAAt(x, 200))
	}
}

func TestRenderFrame_RejectsWrongBuffer(t *testing.T) {
	tl := twoScenes(t, 20, 40, scene.Transition{})
	r := newRenderer(t, 20, 40, tl)

	assert.Error(t, r.RenderFrame(0, image.NewRGBA(image.Rect(0, 0, 10, 10))))
	assert.NoError(t, r.RenderFrame(5, image.NewRGBA(image.Rect(0, 0, 20, 40))))
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#FFFFFF", color.NRGBA{255, 255, 255, 255}},
		{"#f00", color.NRGBA{255, 0, 0, 255}},
		{"#00000080", color.NRGBA{0, 0, 0, 128}},
		{"White", color.NRGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}
