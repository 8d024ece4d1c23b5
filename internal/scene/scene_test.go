package scene

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
	"github.com/ivlev/img2shorts/internal/failure"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func images(n int) []Image {
	out := make([]Image, n)
	for i := range out {
		out[i] = Image{Name: "img", Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	}
	return out
}

func newBuilder(mut func(*config.ImageConfig)) *Builder {
	cfg := config.Default().Image
	if mut != nil {
		mut(&cfg)
	}
	return NewBuilder(cfg, discardLogger())
}

func TestBuild_DurationsFromCaptions(t *testing.T) {
	caps := []caption.Caption{{Text: "a", Duration: 2.0}, {Text: "b", Duration: 3.0}}

	scenes, err := newBuilder(nil).Build(images(3), caps, 4.0)
	require.NoError(t, err)
	require.Len(t, scenes, 3)

	assert.Equal(t, 2.0, scenes[0].Duration)
	assert.Equal(t, 3.0, scenes[1].Duration)
	assert.Equal(t, 4.0, scenes[2].Duration, "uncaptioned scene uses default")
	require.NotNil(t, scenes[1].Caption)
	assert.Equal(t, "b", scenes[1].Caption.Text)
	assert.Nil(t, scenes[2].Caption)
	assert.Equal(t, 9.0, TotalDuration(scenes))
}

func TestBuild_ExtraCaptionsDropped(t *testing.T) {
	caps := []caption.Caption{{Text: "a", Duration: 1}, {Text: "b", Duration: 1}, {Text: "c", Duration: 1}}

	scenes, err := newBuilder(nil).Build(images(2), caps, 3.0)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "b", scenes[1].Caption.Text)
}

func TestBuild_CaptionDoesNotAlias(t *testing.T) {
	caps := []caption.Caption{{Text: "a", Duration: 1}}
	scenes, err := newBuilder(nil).Build(images(1), caps, 3.0)
	require.NoError(t, err)

	caps[0].Text = "changed"
	assert.Equal(t, "a", scenes[0].Caption.Text)
}

func TestBuild_Transitions(t *testing.T) {
	caps := []caption.Caption{{Text: "a", Duration: 2}, {Text: "b", Duration: 2, Transition: "slide_up"}}
	scenes, err := newBuilder(func(c *config.ImageConfig) {
		c.Transition = "wipe"
		c.TransitionDuration = 0.4
	}).Build(images(2), caps, 3.0)
	require.NoError(t, err)

	assert.Equal(t, Transition{Kind: TransitionWipe, Duration: 0.4}, scenes[0].Transition)
	assert.Equal(t, Transition{Kind: TransitionSlide, Direction: DirectionUp, Duration: 0.4}, scenes[1].Transition)
}

func TestBuild_Motion(t *testing.T) {
	scenes, err := newBuilder(func(c *config.ImageConfig) {
		c.KenBurns = "out"
		c.KenBurnsRatio = 1.4
		c.KenBurnsAnchor = "top-left"
	}).Build(images(1), nil, 3.0)
	require.NoError(t, err)
	assert.Equal(t, effects.Motion{Mode: effects.ModeZoomOut, Anchor: effects.AnchorTopLeft, Ratio: 1.4}, scenes[0].Motion)
}

func TestBuild_AutoFocus(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 400))
	// светлый квадрат в правом нижнем углу
	for y := 280; y < 360; y++ {
		for x := 120; x < 180; x++ {
			img.Set(x, y, color.White)
		}
	}

	scenes, err := newBuilder(func(c *config.ImageConfig) {
		c.KenBurns = "in"
		c.KenBurnsAnchor = "auto"
	}).Build([]Image{{Name: "a", Image: img}}, nil, 3.0)
	require.NoError(t, err)

	fx, fy := scenes[0].Motion.Focus()
	assert.Equal(t, effects.AnchorAuto, scenes[0].Motion.Anchor)
	assert.InDelta(t, 0.75, fx, 0.05)
	assert.InDelta(t, 0.8, fy, 0.05)
}

func TestBuild_Errors(t *testing.T) {
	_, err := newBuilder(nil).Build(nil, nil, 3.0)
	assert.ErrorIs(t, err, failure.ErrEmptyInput)

	_, err = newBuilder(nil).Build(images(1), nil, 0)
	assert.ErrorIs(t, err, failure.ErrInvalidScene)

	_, err = newBuilder(nil).Build(images(1), []caption.Caption{{Text: "x", Duration: -1}}, 3)
	assert.ErrorIs(t, err, failure.ErrInvalidScene)

	_, err = newBuilder(nil).Build(images(1), []caption.Caption{{Text: "x", Duration: 1, Transition: "spin"}}, 3)
	assert.ErrorIs(t, err, failure.ErrInvalidScene)
}

func TestParseTransition(t *testing.T) {
	tests := []struct {
		name string
		want Transition
	}{
		{"none", Transition{Kind: TransitionNone}},
		{"fade", Transition{Kind: TransitionFade, Duration: 0.5}},
		{"Zoom", Transition{Kind: TransitionZoom, Duration: 0.5}},
		{"slide_left", Transition{Kind: TransitionSlide, Direction: DirectionLeft, Duration: 0.5}},
		{"slide_down", Transition{Kind: TransitionSlide, Direction: DirectionDown, Duration: 0.5}},
	}
	for _, tt := range tests {
		got, err := ParseTransition(tt.name, 0.5)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseTransition("crossfade", 0.5)
	assert.Error(t, err)
	_, err = ParseTransition("fade", -1)
	assert.Error(t, err)
}

func TestTransitionName(t *testing.T) {
	assert.Equal(t, "slide_right", Transition{Kind: TransitionSlide, Direction: DirectionRight}.Name())
	assert.Equal(t, "wipe", Transition{Kind: TransitionWipe}.Name())
}
