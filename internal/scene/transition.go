package scene

import (
	"fmt"
	"strings"
)

// TransitionKind selects how a scene hands over to the next one.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionFade
	TransitionSlide
	TransitionZoom
	TransitionWipe
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionNone:
		return "none"
	case TransitionFade:
		return "fade"
	case TransitionSlide:
		return "slide"
	case TransitionZoom:
		return "zoom"
	case TransitionWipe:
		return "wipe"
	}
	panic(fmt.Sprintf("scene: unknown transition kind %d", int(k)))
}

// Direction is the movement direction of a slide transition.
type Direction int

const (
	DirectionLeft Direction = iota
	DirectionRight
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	}
	panic(fmt.Sprintf("scene: unknown direction %d", int(d)))
}

// Vector returns the unit displacement of d in frame units (x right, y down).
func (d Direction) Vector() (dx, dy float64) {
	switch d {
	case DirectionLeft:
		return -1, 0
	case DirectionRight:
		return 1, 0
	case DirectionUp:
		return 0, -1
	case DirectionDown:
		return 0, 1
	}
	panic(fmt.Sprintf("scene: unknown direction %d", int(d)))
}

// Transition is the hand-over from a scene into its successor. Direction is
// meaningful only for TransitionSlide.
type Transition struct {
	Kind      TransitionKind
	Direction Direction
	Duration  float64
}

// Name returns the configuration spelling, e.g. "slide_left".
func (t Transition) Name() string {
	if t.Kind == TransitionSlide {
		return "slide_" + t.Direction.String()
	}
	return t.Kind.String()
}

func (t Transition) String() string {
	return fmt.Sprintf("%s(%.3fs)", t.Name(), t.Duration)
}

// ParseTransition maps a configuration name to a Transition. "none" always
// yields a zero duration.
func ParseTransition(name string, duration float64) (Transition, error) {
	if duration < 0 {
		return Transition{}, fmt.Errorf("negative transition duration %v", duration)
	}

	var tr Transition
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return Transition{Kind: TransitionNone}, nil
	case "fade":
		tr.Kind = TransitionFade
	case "zoom":
		tr.Kind = TransitionZoom
	case "wipe":
		tr.Kind = TransitionWipe
	case "slide_left":
		tr.Kind, tr.Direction = TransitionSlide, DirectionLeft
	case "slide_right":
		tr.Kind, tr.Direction = TransitionSlide, DirectionRight
	case "slide_up":
		tr.Kind, tr.Direction = TransitionSlide, DirectionUp
	case "slide_down":
		tr.Kind, tr.Direction = TransitionSlide, DirectionDown
	default:
		return Transition{}, fmt.Errorf("unknown transition %q", name)
	}
	tr.Duration = duration
	return tr, nil
}
