// Package effects describes per-scene camera motion (Ken Burns) as a pure
// function of scene progress.
package effects

import (
	"fmt"
	"math/rand"
	"strings"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeZoomIn
	ModeZoomOut
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ModeNone, nil
	case "in":
		return ModeZoomIn, nil
	case "out":
		return ModeZoomOut, nil
	}
	return ModeNone, fmt.Errorf("unknown ken burns mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeZoomIn:
		return "in"
	case ModeZoomOut:
		return "out"
	default:
		return "none"
	}
}

// Anchor is the point of the frame that stays fixed while zooming.
type Anchor int

const (
	AnchorCenter Anchor = iota
	AnchorTopLeft
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
	// AnchorAuto zooms towards Motion.Point, found by image analysis.
	AnchorAuto
)

var anchorNames = []string{"center", "top-left", "top-right", "bottom-left", "bottom-right", "auto"}

func (a Anchor) String() string {
	if int(a) < len(anchorNames) {
		return anchorNames[a]
	}
	return "center"
}

// ParseAnchor resolves an anchor name. "random" picks one per scene index,
// deterministically, so repeated renders of the same input match.
func ParseAnchor(s string, sceneIndex int) (Anchor, error) {
	s = strings.ToLower(s)
	if s == "random" {
		r := rand.New(rand.NewSource(int64(sceneIndex*99 + 1)))
		return Anchor(r.Intn(int(AnchorAuto))), nil
	}
	if s == "" {
		return AnchorCenter, nil
	}
	for i, name := range anchorNames {
		if name == s {
			return Anchor(i), nil
		}
	}
	return AnchorCenter, fmt.Errorf("unknown ken burns anchor %q", s)
}

// Motion is the camera movement over one scene.
type Motion struct {
	Mode   Mode
	Anchor Anchor
	// Ratio is the peak zoom, >= 1.
	Ratio float64
	// Point is the focus for AnchorAuto, as fractions of the frame size.
	Point [2]float64
}

// Scale returns the zoom factor at scene progress p in [0,1].
func (m Motion) Scale(p float64) float64 {
	if m.Mode == ModeNone || m.Ratio <= 1 {
		return 1
	}
	p = min(max(p, 0), 1)
	e := easeInOutCubic(p)
	switch m.Mode {
	case ModeZoomIn:
		return lerp(1, m.Ratio, e)
	case ModeZoomOut:
		return lerp(m.Ratio, 1, e)
	}
	return 1
}

// Focus returns the fixed point of the zoom as fractions of the frame size.
func (m Motion) Focus() (fx, fy float64) {
	switch m.Anchor {
	case AnchorTopLeft:
		return 0, 0
	case AnchorTopRight:
		return 1, 0
	case AnchorBottomLeft:
		return 0, 1
	case AnchorBottomRight:
		return 1, 1
	case AnchorAuto:
		return min(max(m.Point[0], 0), 1), min(max(m.Point[1], 0), 1)
	default:
		return 0.5, 0.5
	}
}

func (m Motion) String() string {
	if m.Mode == ModeNone {
		return "none"
	}
	return fmt.Sprintf("%s x%.2f @%s", m.Mode, m.Ratio, m.Anchor)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic сглаживает начало и конец движения камеры
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}
