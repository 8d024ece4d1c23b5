package frames

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/img2shorts/internal/caption"
)

// fontCache hands out one face per size. opentype faces keep internal
// buffers, so the cache must not be shared between goroutines drawing at
// the same time; each Renderer owns its own.
type fontCache struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

func newFontCache(path string) (*fontCache, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &fontCache{font: f, faces: make(map[float64]font.Face)}, nil
}

func (c *fontCache) face(size float64) (font.Face, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	c.faces[size] = f
	return f, nil
}

func (c *fontCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for size, f := range c.faces {
		f.Close()
		delete(c.faces, size)
	}
}

// textBlock is a laid-out caption: lines plus the box they occupy.
type textBlock struct {
	lines      []string
	widths     []int
	lineHeight int
	ascent     int
}

func layout(face font.Face, text string) textBlock {
	m := face.Metrics()
	b := textBlock{
		lines:      strings.Split(text, "\n"),
		lineHeight: m.Height.Ceil(),
		ascent:     m.Ascent.Ceil(),
	}
	for _, line := range b.lines {
		b.widths = append(b.widths, font.MeasureString(face, line).Ceil())
	}
	return b
}

func (b textBlock) height() int {
	return len(b.lines) * b.lineHeight
}

// top returns the y of the first line's top edge for the caption position.
func (b textBlock) top(pos caption.Position, frameHeight, margin int) int {
	switch pos {
	case caption.PositionTop:
		return margin
	case caption.PositionCenter:
		return (frameHeight - b.height()) / 2
	default:
		return frameHeight - margin - b.height()
	}
}

// drawText draws every line centered horizontally. The stroke is drawn by
// stamping the text in the stroke color at offsets inside a disc of radius
// strokeWidth, then the fill goes on top.
func drawText(dst draw.Image, face font.Face, b textBlock, top int, fill, stroke image.Image, strokeWidth int) {
	width := dst.Bounds().Dx()
	d := &font.Drawer{Dst: dst, Face: face}

	for i, line := range b.lines {
		x := (width - b.widths[i]) / 2
		y := top + i*b.lineHeight + b.ascent

		if stroke != nil && strokeWidth > 0 {
			d.Src = stroke
			for dy := -strokeWidth; dy <= strokeWidth; dy++ {
				for dx := -strokeWidth; dx <= strokeWidth; dx++ {
					if dx*dx+dy*dy > strokeWidth*strokeWidth || (dx == 0 && dy == 0) {
						continue
					}
					d.Dot = fixed.P(x+dx, y+dy)
					d.DrawString(line)
				}
			}
		}
		d.Src = fill
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
}
