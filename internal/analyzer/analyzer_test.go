package analyzer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(w, h int, r image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestContrastDetector(t *testing.T) {
	img := square(200, 200, image.Rect(50, 50, 150, 150))

	blocks, err := NewContrastDetector().Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	// блок примерно совпадает с белым квадратом
	r := blocks[0].Rect
	assert.GreaterOrEqual(t, r.Dx(), 80)
	assert.GreaterOrEqual(t, r.Dy(), 80)
	assert.True(t, r.In(img.Bounds()))
}

func TestContrastDetector_ScalesBack(t *testing.T) {
	// 1000px по длинной стороне, анализ идет на копии 256px
	img := square(500, 1000, image.Rect(300, 600, 450, 800))

	blocks, err := NewContrastDetector().Detect(img)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	r := blocks[0].Rect
	assert.InDelta(t, 375, (r.Min.X+r.Max.X)/2, 15)
	assert.InDelta(t, 700, (r.Min.Y+r.Max.Y)/2, 15)
}

func TestContrastDetector_Flat(t *testing.T) {
	blocks, err := NewContrastDetector().Detect(image.NewGray(image.Rect(0, 0, 64, 64)))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

type stubDetector struct {
	blocks []Block
	err    error
}

func (s stubDetector) Detect(image.Image) ([]Block, error) { return s.blocks, s.err }

func TestFocus(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 200))

	fx, fy := Focus(stubDetector{}, img)
	assert.Equal(t, 0.5, fx)
	assert.Equal(t, 0.5, fy)

	fx, fy = Focus(stubDetector{err: errors.New("boom")}, img)
	assert.Equal(t, 0.5, fx)
	assert.Equal(t, 0.5, fy)

	fx, fy = Focus(stubDetector{blocks: []Block{
		{Rect: image.Rect(0, 0, 10, 10), Confidence: 1},
		{Rect: image.Rect(60, 100, 100, 200), Confidence: 0.8},
	}}, img)
	assert.InDelta(t, 0.8, fx, 1e-9)
	assert.InDelta(t, 0.75, fy, 1e-9)
}
