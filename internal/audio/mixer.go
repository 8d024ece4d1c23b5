package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ivlev/img2shorts/internal/config"
)

// LayerKind orders the layers of a track. Layers are always applied in this
// order regardless of how they were supplied.
type LayerKind int

const (
	LayerNarration LayerKind = iota
	LayerMusic
	LayerEffect
)

func (k LayerKind) String() string {
	switch k {
	case LayerNarration:
		return "narration"
	case LayerMusic:
		return "music"
	default:
		return "effect"
	}
}

// Layer records one overlay applied to the base track.
type Layer struct {
	Kind     LayerKind `yaml:"kind"`
	Offset   float64   `yaml:"offset"`
	GainDB   float64   `yaml:"gain_db"`
	Duration float64   `yaml:"duration"`
}

// Track is the mixed result. PCM is exactly BaseDuration long.
type Track struct {
	BaseDuration float64
	Layers       []Layer
	PCM          *Segment
}

func (t *Track) Duration() float64 {
	if t == nil {
		return 0
	}
	return t.PCM.Duration()
}

// Effect is a one-shot sound placed at Offset seconds.
type Effect struct {
	Segment *Segment
	Offset  float64
}

// MixInput collects everything that goes into one track. Target <= 0 means
// the length follows the narration.
type MixInput struct {
	Narration []*Segment
	Music     *Segment
	Effects   []Effect
	Target    float64
}

// Mixer is the AudioMixer.
type Mixer struct {
	cfg    config.AudioConfig
	logger *slog.Logger
}

func NewMixer(cfg config.AudioConfig, logger *slog.Logger) *Mixer {
	return &Mixer{cfg: cfg, logger: logger}
}

func (m *Mixer) pause() float64 {
	return float64(m.cfg.NarrationPauseMs) / 1000
}

// Narration trims each segment and joins them with the configured pause.
func (m *Mixer) Narration(segs []*Segment) (*Segment, error) {
	trimmed := make([]*Segment, len(segs))
	minSilence := float64(m.cfg.MinSilenceMs) / 1000
	for i, s := range segs {
		if err := m.checkFormat(s); err != nil {
			return nil, fmt.Errorf("narration %d: %w", i, err)
		}
		trimmed[i] = s.TrimSilence(m.cfg.SilenceThresholdDB, minSilence)
	}
	return Concat(trimmed, m.pause())
}

// Mix builds the track. Inputs are not modified, so mixing the same input
// twice yields identical output.
func (m *Mixer) Mix(in MixInput) (*Track, error) {
	var narration *Segment
	if len(in.Narration) > 0 {
		var err error
		narration, err = m.Narration(in.Narration)
		if err != nil {
			return nil, err
		}
	}

	base := in.Target
	if base <= 0 && narration != nil {
		base = narration.Duration()
	}
	if base <= 0 {
		base = 1.0
	}

	track := &Track{
		BaseDuration: base,
		PCM:          Silent(m.cfg.SampleRate, m.cfg.Channels, base),
	}

	if narration != nil {
		gain := GainToDB(m.cfg.TTS.Volume)
		if err := track.PCM.Overlay(narration.Gain(gain), 0); err != nil {
			return nil, err
		}
		track.Layers = append(track.Layers, Layer{Kind: LayerNarration, GainDB: gain, Duration: narration.Duration()})
	}

	if in.Music != nil {
		if err := m.checkFormat(in.Music); err != nil {
			return nil, fmt.Errorf("music: %w", err)
		}
		gain := GainToDB(m.cfg.Music.Volume)
		music := in.Music.Loop(base).Truncate(base).Fade(m.cfg.Music.Fade, m.cfg.Music.Fade).Gain(gain)
		if err := track.PCM.Overlay(music, 0); err != nil {
			return nil, err
		}
		track.Layers = append(track.Layers, Layer{Kind: LayerMusic, GainDB: gain, Duration: music.Duration()})
	}

	for i, fx := range in.Effects {
		if err := m.checkFormat(fx.Segment); err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		if fx.Offset < 0 {
			return nil, fmt.Errorf("effect %d: negative offset %v", i, fx.Offset)
		}
		if fx.Offset >= base {
			m.logger.Warn("effect starts after the end of the track", "index", i, "offset", fx.Offset, "base", base)
		}
		gain := GainToDB(m.cfg.Effects.Volume)
		if err := track.PCM.Overlay(fx.Segment.Gain(gain), fx.Offset); err != nil {
			return nil, err
		}
		track.Layers = append(track.Layers, Layer{Kind: LayerEffect, Offset: fx.Offset, GainDB: gain, Duration: fx.Segment.Duration()})
	}

	track.PCM = track.PCM.Normalize(m.cfg.NormalizeHeadroomDB)

	m.logger.Debug("audio mixed",
		"base_duration", base,
		"layers", len(track.Layers),
		"peak_dbfs", track.PCM.PeakDB())
	return track, nil
}

func (m *Mixer) checkFormat(s *Segment) error {
	if s == nil {
		return fmt.Errorf("nil segment")
	}
	if s.SampleRate != m.cfg.SampleRate || s.Channels != m.cfg.Channels {
		return fmt.Errorf("segment is %dHz/%dch, mixer expects %dHz/%dch",
			s.SampleRate, s.Channels, m.cfg.SampleRate, m.cfg.Channels)
	}
	return nil
}

// EffectFile is an effect referenced by path.
type EffectFile struct {
	Path   string  `yaml:"path" json:"path"`
	Offset float64 `yaml:"offset" json:"offset"`
}

// FileInput is MixInput with paths in place of decoded audio.
type FileInput struct {
	// Voice is narration already in memory; it goes before the Narration files.
	Voice     []*Segment
	Narration []string
	Music     string
	Effects   []EffectFile
	Target    float64
}

// MixFiles loads every referenced file through the loader and mixes them.
// Paths are checked before any decoding so that a missing asset fails fast.
func (m *Mixer) MixFiles(ctx context.Context, loader *Loader, in FileInput) (*Track, error) {
	paths := append([]string(nil), in.Narration...)
	if in.Music != "" {
		paths = append(paths, in.Music)
	}
	for _, fx := range in.Effects {
		paths = append(paths, fx.Path)
	}
	for _, p := range paths {
		if err := Check(p); err != nil {
			return nil, err
		}
	}

	mi := MixInput{Narration: append([]*Segment(nil), in.Voice...), Target: in.Target}
	for _, p := range in.Narration {
		seg, err := loader.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		mi.Narration = append(mi.Narration, seg)
	}
	if in.Music != "" {
		seg, err := loader.Load(ctx, in.Music)
		if err != nil {
			return nil, err
		}
		mi.Music = seg
	}
	for _, fx := range in.Effects {
		seg, err := loader.Load(ctx, fx.Path)
		if err != nil {
			return nil, err
		}
		mi.Effects = append(mi.Effects, Effect{Segment: seg, Offset: fx.Offset})
	}
	return m.Mix(mi)
}
