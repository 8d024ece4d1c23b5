// Package transition places scenes on the timeline so that neighbours
// overlap by their transition window, and defines how each clip is blended
// at any moment of that timeline.
package transition

import (
	"fmt"
	"log/slog"

	"github.com/ivlev/img2shorts/internal/failure"
	"github.com/ivlev/img2shorts/internal/scene"
)

// Clip is a scene positioned on the timeline. In is the (clamped) hand-over
// from the previous clip, Out the hand-over to the next one; both are zero
// for the first and last clip respectively.
type Clip struct {
	Scene scene.Scene
	Start float64
	In    scene.Transition
	Out   scene.Transition
}

func (c Clip) End() float64 {
	return c.Start + c.Scene.Duration
}

// Timeline is the ordered clip list and the overall video duration.
type Timeline struct {
	Clips    []Clip
	Duration float64
}

// Compositor is the TransitionCompositor.
type Compositor struct {
	logger *slog.Logger
}

func NewCompositor(logger *slog.Logger) *Compositor {
	return &Compositor{logger: logger}
}

// Compose positions scenes so that clip i+1 starts t_i seconds before clip i
// ends, where t_i is the clamped transition duration of boundary i.
//
// A transition that is not strictly shorter than both neighbouring scenes is
// reduced to half of the shorter one. The kind "none" never overlaps.
func (c *Compositor) Compose(scenes []scene.Scene) (Timeline, error) {
	if len(scenes) == 0 {
		return Timeline{}, failure.EmptyInput("no scenes to compose")
	}
	for i, s := range scenes {
		if s.Duration <= 0 {
			return Timeline{}, failure.InvalidScene("scene %d: duration must be positive, got %v", i, s.Duration)
		}
		if s.Transition.Duration < 0 {
			return Timeline{}, failure.InvalidScene("scene %d: negative transition duration %v", i, s.Transition.Duration)
		}
	}

	clips := make([]Clip, len(scenes))
	start := 0.0
	for i, s := range scenes {
		clips[i] = Clip{Scene: s, Start: start}
		if i == len(scenes)-1 {
			break
		}

		tr := c.clamp(i, s.Transition, s.Duration, scenes[i+1].Duration)
		clips[i].Out = tr
		start += s.Duration - tr.Duration
	}

	// входящий переход клипа совпадает с исходящим переходом предыдущего
	for i := 1; i < len(clips); i++ {
		clips[i].In = clips[i-1].Out
	}

	last := clips[len(clips)-1]
	return Timeline{Clips: clips, Duration: last.End()}, nil
}

func (c *Compositor) clamp(boundary int, tr scene.Transition, cur, next float64) scene.Transition {
	if tr.Kind == scene.TransitionNone {
		tr.Duration = 0
		return tr
	}
	limit := min(cur, next)
	if tr.Duration >= limit {
		clamped := limit / 2
		c.logger.Warn("transition longer than adjacent scene, clamped",
			"boundary", boundary,
			"transition", tr.Name(),
			"configured", tr.Duration,
			"clamped", clamped)
		tr.Duration = clamped
	}
	return tr
}

// Validate checks the timeline for negative starts and for clips that begin
// earlier than their predecessor's end minus the declared overlap.
func (t Timeline) Validate() error {
	const eps = 1e-9
	for i, c := range t.Clips {
		if c.Start < -eps {
			return failure.InvalidScene("clip %d starts at negative time %.3f", i, c.Start)
		}
		if c.Scene.Duration <= 0 {
			return failure.InvalidScene("clip %d has non-positive duration", i)
		}
		if i == 0 {
			continue
		}
		prev := t.Clips[i-1]
		if earliest := prev.End() - prev.Out.Duration; c.Start < earliest-eps {
			return failure.InvalidScene("clip %d starts at %.3f, before %.3f", i, c.Start, earliest)
		}
	}
	if n := len(t.Clips); n > 0 {
		if end := t.Clips[n-1].End(); abs(end-t.Duration) > 1e-6 {
			return failure.InvalidScene("timeline duration %.3f does not match last clip end %.3f", t.Duration, end)
		}
	}
	return nil
}

func (t Timeline) String() string {
	return fmt.Sprintf("%d clips, %.3fs", len(t.Clips), t.Duration)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
