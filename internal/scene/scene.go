// Package scene pairs images with captions and durations.
package scene

import (
	"image"
	"log/slog"

	"github.com/ivlev/img2shorts/internal/analyzer"
	"github.com/ivlev/img2shorts/internal/caption"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/effects"
	"github.com/ivlev/img2shorts/internal/failure"
)

// Scene is one image on screen. It is not modified after Build returns.
type Scene struct {
	Index    int
	Name     string
	Image    image.Image
	Duration float64
	Caption  *caption.Caption
	// Transition is the hand-over into the next scene; ignored on the last one.
	Transition Transition
	Motion     effects.Motion
}

// Image is a decoded input picture with the name it came from.
type Image struct {
	Name  string
	Image image.Image
}

type Builder struct {
	cfg      config.ImageConfig
	detector analyzer.Detector
	logger   *slog.Logger
}

func NewBuilder(cfg config.ImageConfig, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, detector: analyzer.NewContrastDetector(), logger: logger}
}

// Build creates one scene per image. A scene takes its caption's duration,
// or defaultDuration when there is no caption at its index. Captions beyond
// the image count are dropped.
func (b *Builder) Build(images []Image, captions []caption.Caption, defaultDuration float64) ([]Scene, error) {
	if len(images) == 0 {
		return nil, failure.EmptyInput("no images")
	}
	if defaultDuration <= 0 {
		return nil, failure.InvalidScene("default duration must be positive, got %v", defaultDuration)
	}

	if len(captions) > len(images) {
		b.logger.Warn("more captions than images, extra captions dropped",
			"images", len(images), "captions", len(captions))
		captions = captions[:len(images)]
	} else if len(captions) > 0 && len(captions) < len(images) {
		b.logger.Info("fewer captions than images, trailing scenes have no caption",
			"images", len(images), "captions", len(captions))
	}

	mode, err := effects.ParseMode(b.cfg.KenBurns)
	if err != nil {
		return nil, failure.InvalidScene("%v", err)
	}

	scenes := make([]Scene, len(images))
	for i, img := range images {
		sc := Scene{
			Index:    i,
			Name:     img.Name,
			Image:    img.Image,
			Duration: defaultDuration,
		}

		transitionName := b.cfg.Transition
		if i < len(captions) {
			c := captions[i]
			sc.Caption = &c
			sc.Duration = c.Duration
			if c.Transition != "" {
				transitionName = c.Transition
			}
		}
		if sc.Duration <= 0 {
			return nil, failure.InvalidScene("scene %d: duration must be positive, got %v", i, sc.Duration)
		}

		sc.Transition, err = ParseTransition(transitionName, b.cfg.TransitionDuration)
		if err != nil {
			return nil, failure.InvalidScene("scene %d: %v", i, err)
		}

		anchor, err := effects.ParseAnchor(b.cfg.KenBurnsAnchor, i)
		if err != nil {
			return nil, failure.InvalidScene("scene %d: %v", i, err)
		}
		sc.Motion = effects.Motion{Mode: mode, Anchor: anchor, Ratio: b.cfg.KenBurnsRatio}
		if anchor == effects.AnchorAuto && mode != effects.ModeNone {
			fx, fy := analyzer.Focus(b.detector, img.Image)
			sc.Motion.Point = [2]float64{fx, fy}
			b.logger.Debug("ken burns focus", "scene", i, "x", fx, "y", fy)
		}

		scenes[i] = sc
	}
	return scenes, nil
}

// TotalDuration sums scene durations without accounting for overlaps.
func TotalDuration(scenes []Scene) float64 {
	total := 0.0
	for _, s := range scenes {
		total += s.Duration
	}
	return total
}
