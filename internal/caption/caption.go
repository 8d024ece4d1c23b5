// Package caption turns script entries into timed, styled caption intervals.
package caption

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/failure"
)

type Position int

const (
	PositionBottom Position = iota
	PositionCenter
	PositionTop
)

func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(s) {
	case "bottom":
		return PositionBottom, nil
	case "center":
		return PositionCenter, nil
	case "top":
		return PositionTop, nil
	}
	return 0, fmt.Errorf("unknown caption position %q", s)
}

func (p Position) String() string {
	switch p {
	case PositionCenter:
		return "center"
	case PositionTop:
		return "top"
	default:
		return "bottom"
	}
}

type Animation int

const (
	AnimationNone Animation = iota
	AnimationFade
	AnimationSlide
	AnimationTypewriter
)

func ParseAnimation(s string) (Animation, error) {
	switch strings.ToLower(s) {
	case "none":
		return AnimationNone, nil
	case "fade":
		return AnimationFade, nil
	case "slide":
		return AnimationSlide, nil
	case "typewriter":
		return AnimationTypewriter, nil
	}
	return 0, fmt.Errorf("unknown caption animation %q", s)
}

func (a Animation) String() string {
	switch a {
	case AnimationFade:
		return "fade"
	case AnimationSlide:
		return "slide"
	case AnimationTypewriter:
		return "typewriter"
	default:
		return "none"
	}
}

type Style struct {
	FontSize    float64
	Color       string
	StrokeColor string
	StrokeWidth int
}

// Caption is one timed text overlay. Text is already line-wrapped.
type Caption struct {
	Text              string
	StartTime         float64
	Duration          float64
	Position          Position
	Style             Style
	Animation         Animation
	AnimationDuration float64
	// Transition and Voice carry per-entry overrides for the scene and the
	// narration built from the same script entry; empty means default.
	Transition string
	Voice      string
}

func (c Caption) End() float64 {
	return c.StartTime + c.Duration
}

// Alpha returns the caption opacity at progress p of its own duration.
func (c Caption) Alpha(p float64) float64 {
	p = clamp01(p)
	if c.Animation == AnimationNone || c.Duration <= 0 {
		return 1
	}

	frac := c.AnimationDuration / c.Duration

	switch c.Animation {
	case AnimationFade:
		if frac <= 0 {
			return 1
		}
		if p < frac {
			return p / frac
		}
		if p > 1-frac {
			return (1 - p) / frac
		}
		return 1
	case AnimationSlide:
		if frac <= 0 {
			return 1
		}
		if p < frac {
			return p / frac
		}
		return 1
	case AnimationTypewriter:
		return min(1, 2*p)
	}
	return 1
}

// Timeline is the CaptionTimeline: it accumulates start times and applies
// configured defaults to missing entry fields.
type Timeline struct {
	defaults        config.TextConfig
	defaultDuration float64
}

func NewTimeline(defaults config.TextConfig, defaultDuration float64) *Timeline {
	return &Timeline{defaults: defaults, defaultDuration: defaultDuration}
}

// Build converts entries into back-to-back captions starting at offset.
func (t *Timeline) Build(entries []Entry, offset float64) ([]Caption, error) {
	if len(entries) == 0 {
		return nil, failure.EmptyInput("script has no entries")
	}
	if offset < 0 {
		offset = 0
	}

	captions := make([]Caption, 0, len(entries))
	current := offset

	for i, e := range entries {
		c, err := t.caption(e, current)
		if err != nil {
			return nil, failure.ScriptFormat(err, "entry %d", i+1)
		}
		captions = append(captions, c)
		current += c.Duration
	}
	return captions, nil
}

func (t *Timeline) caption(e Entry, start float64) (Caption, error) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return Caption{}, fmt.Errorf("missing text")
	}

	duration := t.defaultDuration
	if e.Duration != nil {
		duration = *e.Duration
	}
	if duration <= 0 {
		return Caption{}, fmt.Errorf("duration must be positive, got %v", duration)
	}

	posName := orDefault(e.Position, t.defaults.Position)
	pos, err := ParsePosition(posName)
	if err != nil {
		return Caption{}, err
	}
	anim, err := ParseAnimation(orDefault(e.Animation, t.defaults.Animation))
	if err != nil {
		return Caption{}, err
	}

	style := Style{
		FontSize:    t.defaults.FontSize,
		Color:       orDefault(e.Color, t.defaults.Color),
		StrokeColor: orDefault(e.StrokeColor, t.defaults.StrokeColor),
		StrokeWidth: t.defaults.StrokeWidth,
	}
	if e.FontSize != nil && *e.FontSize > 0 {
		style.FontSize = *e.FontSize
	}
	if e.StrokeWidth != nil && *e.StrokeWidth >= 0 {
		style.StrokeWidth = *e.StrokeWidth
	}

	animDur := t.defaults.AnimationDuration
	if e.AnimationDuration != nil && *e.AnimationDuration >= 0 {
		animDur = *e.AnimationDuration
	}
	animDur = min(animDur, duration/2)

	return Caption{
		Text:              Wrap(text, t.defaults.MaxCharsPerLine),
		StartTime:         start,
		Duration:          duration,
		Position:          pos,
		Style:             style,
		Animation:         anim,
		AnimationDuration: animDur,
		Transition:        e.Transition,
		Voice:             e.Voice,
	}, nil
}

// Wrap breaks text on word boundaries so no line exceeds maxChars runes.
// A word longer than maxChars gets a line of its own and is not split.
func Wrap(text string, maxChars int) string {
	words := strings.Fields(text)
	if maxChars <= 0 || len(words) == 0 {
		return strings.Join(words, " ")
	}

	var lines []string
	var line []string
	lineLen := 0

	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		// lineLen counts runes of words already on the line; len(line) is the
		// number of separating spaces the new word would add.
		if len(line) > 0 && lineLen+len(line)+wl > maxChars {
			lines = append(lines, strings.Join(line, " "))
			line, lineLen = nil, 0
		}
		line = append(line, w)
		lineLen += wl
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}
	return strings.Join(lines, "\n")
}

// TotalDuration sums caption durations.
func TotalDuration(captions []Caption) float64 {
	total := 0.0
	for _, c := range captions {
		total += c.Duration
	}
	return total
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
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
