package transition

import (
	"fmt"

	"github.com/ivlev/img2shorts/internal/scene"
)

// State is how a clip is drawn at one instant. Offsets are in frame units
// (1.0 = one full frame width or height). Reveal is the fraction of the frame,
// from the left edge, where the clip is visible; 1 means unmasked.
type State struct {
	Visible bool
	Alpha   float64
	Scale   float64
	OffsetX float64
	OffsetY float64
	Reveal  float64
	// Local is seconds since the clip started.
	Local float64
}

var identity = State{Visible: true, Alpha: 1, Scale: 1, Reveal: 1}

// compose applies o on top of s. Alpha and scale multiply, offsets add and
// the reveal mask narrows.
func (s State) compose(o State) State {
	s.Alpha *= o.Alpha
	s.Scale *= o.Scale
	s.OffsetX += o.OffsetX
	s.OffsetY += o.OffsetY
	s.Reveal = min(s.Reveal, o.Reveal)
	return s
}

func (s State) String() string {
	if !s.Visible {
		return "hidden"
	}
	return fmt.Sprintf("a=%.3f s=%.3f off=(%.3f,%.3f) reveal=%.3f", s.Alpha, s.Scale, s.OffsetX, s.OffsetY, s.Reveal)
}

// StateAt evaluates the clip's blend at timeline time t. Outside
// [Start, End) the clip is not visible, except that the last instant of the
// timeline still shows the final clip.
func (c Clip) StateAt(t float64) State {
	local := t - c.Start
	if local < 0 || local > c.Scene.Duration {
		return State{}
	}

	st := identity
	st.Local = local

	if d := c.In.Duration; d > 0 && local < d {
		st = st.compose(Incoming(c.In, local/d))
	}
	if d := c.Out.Duration; d > 0 {
		if winStart := c.Scene.Duration - d; local > winStart {
			st = st.compose(Outgoing(c.Out, (local-winStart)/d))
		}
	}
	return st
}

// Outgoing is the blend of the scene being left at window progress p.
func Outgoing(tr scene.Transition, p float64) State {
	p = clamp01(p)
	st := identity
	switch tr.Kind {
	case scene.TransitionNone:
	case scene.TransitionFade:
		st.Alpha = 1 - p
	case scene.TransitionSlide:
		dx, dy := tr.Direction.Vector()
		st.OffsetX, st.OffsetY = dx*p, dy*p
	case scene.TransitionZoom:
		st.Scale = lerp(1.0, 1.5, p)
		st.Alpha = 1 - p
	case scene.TransitionWipe:
		// уходящая сцена не меняется, её перекрывает маска следующей
	default:
		panic(fmt.Sprintf("transition: unhandled kind %v", tr.Kind))
	}
	return st
}

// Incoming is the blend of the scene being entered at window progress p.
func Incoming(tr scene.Transition, p float64) State {
	p = clamp01(p)
	st := identity
	switch tr.Kind {
	case scene.TransitionNone:
	case scene.TransitionFade:
		st.Alpha = p
	case scene.TransitionSlide:
		dx, dy := tr.Direction.Vector()
		st.OffsetX, st.OffsetY = -dx*(1-p), -dy*(1-p)
	case scene.TransitionZoom:
		st.Scale = lerp(0.5, 1.0, p)
		st.Alpha = p
	case scene.TransitionWipe:
		st.Reveal = p
	default:
		panic(fmt.Sprintf("transition: unhandled kind %v", tr.Kind))
	}
	return st
}

// Layer is one visible clip at an instant, in draw order.
type Layer struct {
	Clip  int
	State State
}

// LayersAt returns the visible clips at time t, bottom first. Later clips
// are drawn on top of earlier ones.
func (t Timeline) LayersAt(at float64) []Layer {
	var layers []Layer
	for i, c := range t.Clips {
		if at >= c.End() && i < len(t.Clips)-1 {
			continue
		}
		st := c.StateAt(at)
		if !st.Visible {
			continue
		}
		layers = append(layers, Layer{Clip: i, State: st})
	}
	return layers
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
