// Package frames draws the composited picture of a transition timeline at
// any instant: scene images with motion and blend applied, plus captions.
package frames

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/img2shorts/internal/caption"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/transition"
)

// Renderer is the frame source handed to the encoder. It is not safe for
// concurrent use: font faces and the scratch caption layer are shared
// between calls.
type Renderer struct {
	width, height int
	fps           int
	timeline      transition.Timeline
	text          config.TextConfig
	fonts         *fontCache
	logger        *slog.Logger
}

func NewRenderer(video config.VideoConfig, text config.TextConfig, tl transition.Timeline, logger *slog.Logger) (*Renderer, error) {
	if video.Width <= 0 || video.Height <= 0 || video.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d@%d", video.Width, video.Height, video.FPS)
	}
	fonts, err := newFontCache(text.FontFile)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		width:    video.Width,
		height:   video.Height,
		fps:      video.FPS,
		timeline: tl,
		text:     text,
		fonts:    fonts,
		logger:   logger,
	}, nil
}

func (r *Renderer) Size() image.Point {
	return image.Pt(r.width, r.height)
}

func (r *Renderer) FPS() int {
	return r.fps
}

// FrameCount is the number of frames covering the timeline duration.
func (r *Renderer) FrameCount() int {
	return int(math.Round(r.timeline.Duration * float64(r.fps)))
}

// RenderFrame draws frame i (time i/fps) into dst, which must be Size().
func (r *Renderer) RenderFrame(i int, dst *image.RGBA) error {
	if dst.Rect.Size() != r.Size() {
		return fmt.Errorf("frame buffer %v, want %v", dst.Rect.Size(), r.Size())
	}
	r.RenderAt(float64(i)/float64(r.fps), dst)
	return nil
}

// RenderAt draws the timeline at time t into dst.
func (r *Renderer) RenderAt(t float64, dst *image.RGBA) {
	draw.Draw(dst, dst.Rect, image.NewUniform(color.Black), image.Point{}, draw.Src)

	// подпись принадлежит сцене: рисуется сразу после неё, в той же
	// геометрии и под той же маской шторки
	for _, l := range r.timeline.LayersAt(t) {
		target := r.revealed(dst, l.State)
		if target == nil {
			continue
		}
		c := r.timeline.Clips[l.Clip]
		r.drawClip(target, c, l.State)
		r.drawCaption(target, c, l.State)
	}
}

// revealed returns the part of dst where a clip in state st may paint, or
// nil when the clip is fully masked.
func (r *Renderer) revealed(dst *image.RGBA, st transition.State) *image.RGBA {
	if st.Reveal <= 0 {
		return nil
	}
	if st.Reveal >= 1 {
		return dst
	}
	// маска шторки: видна только левая часть кадра шириной Reveal
	cut := int(math.Round(st.Reveal * float64(r.width)))
	return dst.SubImage(image.Rect(0, 0, cut, r.height)).(*image.RGBA)
}

func (r *Renderer) Close() {
	r.fonts.Close()
}

// clipTransform builds the source-to-frame matrix: motion zoom around the
// anchor, then transition zoom around the frame center, then the slide offset.
func (r *Renderer) clipTransform(c transition.Clip, st transition.State) (f64.Aff3, bool) {
	p := 0.0
	if c.Scene.Duration > 0 {
		p = st.Local / c.Scene.Duration
	}
	fx, fy := c.Scene.Motion.Focus()
	return r.placement(st, c.Scene.Motion.Scale(p), fx, fy)
}

// placement maps frame coordinates of a resting clip to the output frame.
// ms is the motion zoom around (fx, fy), given as fractions of the frame.
func (r *Renderer) placement(st transition.State, ms, fx, fy float64) (f64.Aff3, bool) {
	w, h := float64(r.width), float64(r.height)
	fx, fy = fx*w, fy*h
	cx, cy := w/2, h/2
	ts := st.Scale

	s := ts * ms
	tx := ts*(1-ms)*fx + (1-ts)*cx + st.OffsetX*w
	ty := ts*(1-ms)*fy + (1-ts)*cy + st.OffsetY*h

	identity := s == 1 && tx == 0 && ty == 0
	return f64.Aff3{s, 0, tx, 0, s, ty}, identity
}

// drawClip paints the clip image into target, which is already cut to the
// clip's reveal region.
func (r *Renderer) drawClip(target *image.RGBA, c transition.Clip, st transition.State) {
	img := c.Scene.Image
	if img == nil || st.Alpha <= 0 {
		return
	}
	mask := alphaMask(st.Alpha)

	m, identity := r.clipTransform(c, st)
	if identity {
		draw.DrawMask(target, target.Rect, img, img.Bounds().Min.Add(target.Rect.Min), mask, image.Point{}, draw.Over)
		return
	}
	draw.ApproxBiLinear.Transform(target, m, img, img.Bounds(), draw.Over, &draw.Options{SrcMask: mask})
}

func alphaMask(a float64) image.Image {
	if a >= 1 {
		return nil
	}
	return image.NewUniform(color.Alpha{A: uint8(a*255 + 0.5)})
}

// drawCaption lays the caption out on the resting frame and moves it with the
// clip's transition placement. Ken Burns motion does not apply to text.
func (r *Renderer) drawCaption(target *image.RGBA, c transition.Clip, st transition.State) {
	cp := c.Scene.Caption
	if cp == nil || cp.Text == "" {
		return
	}

	p := 0.0
	if c.Scene.Duration > 0 {
		p = st.Local / c.Scene.Duration
	}
	alpha := cp.Alpha(p) * st.Alpha
	if alpha <= 0 {
		return
	}

	face, err := r.fonts.face(cp.Style.FontSize)
	if err != nil {
		r.logger.Warn("caption font unavailable", "scene", c.Scene.Index, "error", err)
		return
	}
	fill, err := ParseColor(cp.Style.Color)
	if err != nil {
		r.logger.Warn("caption color", "scene", c.Scene.Index, "error", err)
		fill = color.NRGBA{255, 255, 255, 255}
	}
	var stroke image.Image
	if cp.Style.StrokeWidth > 0 {
		sc, err := ParseColor(cp.Style.StrokeColor)
		if err != nil {
			r.logger.Warn("caption stroke color", "scene", c.Scene.Index, "error", err)
			sc = color.NRGBA{0, 0, 0, 255}
		}
		stroke = image.NewUniform(sc)
	}

	b := layout(face, cp.Text)
	top := b.top(cp.Position, r.height, r.text.Margin)
	if cp.Animation == caption.AnimationSlide {
		// въезжает снизу на высоту шрифта
		top += int((1 - cp.Alpha(p)) * cp.Style.FontSize)
	}

	sw := cp.Style.StrokeWidth
	frame := image.Rect(0, 0, r.width, r.height)
	box := image.Rect(0, top-sw, r.width, top+b.height()+sw).Intersect(frame)
	if box.Empty() {
		return
	}

	// Текст рисуется непрозрачным на отдельном слое и накладывается целиком,
	// чтобы обводка не темнела там, где штампы перекрываются.
	layer := image.NewRGBA(box)
	drawText(layer, face, b, top, image.NewUniform(fill), stroke, sw)

	mask := alphaMask(alpha)
	m, identity := r.placement(st, 1, 0, 0)
	if identity {
		draw.DrawMask(target, box, layer, box.Min, mask, image.Point{}, draw.Over)
		return
	}
	draw.ApproxBiLinear.Transform(target, m, layer, layer.Bounds(), draw.Over, &draw.Options{SrcMask: mask})
}
