// Package config holds the read-only settings shared by every pipeline stage.
// A Config is built once by Load and never mutated afterwards; components
// receive the section they need by value.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Video   VideoConfig   `yaml:"video"`
	Image   ImageConfig   `yaml:"image"`
	Text    TextConfig    `yaml:"text"`
	Audio   AudioConfig   `yaml:"audio"`
	Output  OutputConfig  `yaml:"output"`
	EndCard EndCardConfig `yaml:"endcard"`
	Log     LogConfig     `yaml:"log"`

	// Workers bounds CPU-bound pools; 0 sizes from the host.
	Workers int `yaml:"workers" validate:"gte=0"`

	BuildVersion string `yaml:"-"`
}

type VideoConfig struct {
	Width   int    `yaml:"width" validate:"gt=0"`
	Height  int    `yaml:"height" validate:"gt=0"`
	FPS     int    `yaml:"fps" validate:"gt=0,lte=120"`
	Encoder string `yaml:"encoder"` // empty = autodetect
	Quality string `yaml:"quality" validate:"oneof=ultra high medium low"`
	Bitrate string `yaml:"bitrate"`
}

type ImageConfig struct {
	DefaultDuration    float64 `yaml:"default_duration" validate:"gt=0"`
	Transition         string  `yaml:"transition" validate:"oneof=none fade slide_left slide_right slide_up slide_down zoom wipe"`
	TransitionDuration float64 `yaml:"transition_duration" validate:"gte=0"`
	ResizeMethod       string  `yaml:"resize_method" validate:"oneof=cover fit stretch blur_background"`
	KenBurns           string  `yaml:"ken_burns" validate:"oneof=none in out"`
	KenBurnsRatio      float64 `yaml:"ken_burns_ratio" validate:"gte=1"`
	KenBurnsAnchor     string  `yaml:"ken_burns_anchor" validate:"oneof=center top-left top-right bottom-left bottom-right random auto"`
	DPI                int     `yaml:"dpi" validate:"gt=0"`

	// Template picks a color preset applied to every image after resize.
	Template string        `yaml:"template" validate:"oneof=basic modern vintage news story product"`
	Enhance  EnhanceConfig `yaml:"enhance"`
}

// EnhanceConfig multiplies on top of the template; 1 leaves a channel as is.
type EnhanceConfig struct {
	Brightness float64 `yaml:"brightness" validate:"gt=0"`
	Contrast   float64 `yaml:"contrast" validate:"gt=0"`
	Saturation float64 `yaml:"saturation" validate:"gt=0"`
}

type TextConfig struct {
	FontSize          float64 `yaml:"font_size" validate:"gt=0"`
	Color             string  `yaml:"color"`
	StrokeColor       string  `yaml:"stroke_color"`
	StrokeWidth       int     `yaml:"stroke_width" validate:"gte=0"`
	Position          string  `yaml:"position" validate:"oneof=top center bottom"`
	Animation         string  `yaml:"animation" validate:"oneof=none fade slide typewriter"`
	AnimationDuration float64 `yaml:"animation_duration" validate:"gte=0"`
	MaxCharsPerLine   int     `yaml:"max_chars_per_line" validate:"gt=0"`
	Margin            int     `yaml:"margin" validate:"gte=0"`
	// FontFile is a TTF/OTF path; empty uses the built-in Go font.
	FontFile string `yaml:"font_file"`
}

type AudioConfig struct {
	SampleRate          int           `yaml:"sample_rate" validate:"gt=0"`
	Channels            int           `yaml:"channels" validate:"oneof=1 2"`
	NarrationPauseMs    int           `yaml:"narration_pause_ms" validate:"gte=0"`
	SilenceThresholdDB  float64       `yaml:"silence_threshold_db" validate:"lt=0"`
	MinSilenceMs        int           `yaml:"min_silence_ms" validate:"gte=0"`
	NormalizeHeadroomDB float64       `yaml:"normalize_headroom_db" validate:"gte=0"`
	TTS                 TTSConfig     `yaml:"tts"`
	Music               MusicConfig   `yaml:"background_music"`
	Effects             EffectsConfig `yaml:"effects"`
}

type TTSConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Required    bool    `yaml:"required"`
	Voice       string  `yaml:"voice"`
	Rate        float64 `yaml:"rate" validate:"gt=0"`
	Pitch       float64 `yaml:"pitch" validate:"gt=0"`
	Volume      float64 `yaml:"volume" validate:"gte=0"`
	Concurrency int     `yaml:"concurrency" validate:"gt=0"`
	Command     string  `yaml:"command"`
}

type MusicConfig struct {
	Volume float64 `yaml:"volume" validate:"gte=0"`
	Fade   float64 `yaml:"fade" validate:"gte=0"`
}

type EffectsConfig struct {
	Volume float64 `yaml:"volume" validate:"gte=0"`
}

type OutputConfig struct {
	MaxFileSizeMB float64 `yaml:"max_file_size_mb" validate:"gte=0"`
	Subtitles     string  `yaml:"subtitles" validate:"omitempty,oneof=srt vtt"`
	DumpPlan      bool    `yaml:"dump_plan"`
	// Thumbnail writes <output>.jpg with the frame at ThumbnailAt seconds.
	Thumbnail   bool    `yaml:"thumbnail"`
	ThumbnailAt float64 `yaml:"thumbnail_at" validate:"gte=0"`
}

type EndCardConfig struct {
	URL        string  `yaml:"url"`
	Duration   float64 `yaml:"duration" validate:"gte=0"`
	Size       int     `yaml:"size" validate:"gte=0"`
	Background string  `yaml:"background"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the settings used when no file or environment override is given.
func Default() Config {
	return Config{
		Video: VideoConfig{
			Width:   1080,
			Height:  1920,
			FPS:     30,
			Quality: "high",
			Bitrate: "5M",
		},
		Image: ImageConfig{
			DefaultDuration:    3.0,
			Transition:         "fade",
			TransitionDuration: 0.5,
			ResizeMethod:       "cover",
			KenBurns:           "none",
			KenBurnsRatio:      1.2,
			KenBurnsAnchor:     "center",
			DPI:                150,
			Template:           "basic",
			Enhance:            EnhanceConfig{Brightness: 1, Contrast: 1, Saturation: 1},
		},
		Text: TextConfig{
			FontSize:          48,
			Color:             "#FFFFFF",
			StrokeColor:       "#000000",
			StrokeWidth:       2,
			Position:          "bottom",
			Animation:         "fade",
			AnimationDuration: 0.5,
			MaxCharsPerLine:   30,
			Margin:            100,
		},
		Audio: AudioConfig{
			SampleRate:          44100,
			Channels:            2,
			NarrationPauseMs:    500,
			SilenceThresholdDB:  -40,
			MinSilenceMs:        500,
			NormalizeHeadroomDB: 0.1,
			TTS: TTSConfig{
				Enabled:     true,
				Voice:       "ko-KR-SunHiNeural",
				Rate:        1.0,
				Pitch:       1.0,
				Volume:      0.8,
				Concurrency: 4,
				Command:     "edge-tts",
			},
			Music:   MusicConfig{Volume: 0.3, Fade: 2.0},
			Effects: EffectsConfig{Volume: 0.5},
		},
		Output: OutputConfig{MaxFileSizeMB: 50},
		EndCard: EndCardConfig{
			Duration:   2.0,
			Size:       640,
			Background: "#000000",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// envOverrides lists the variables that may override the file settings.
// noinit keeps unset variables nil so they do not clobber file values.
type envOverrides struct {
	Width         *int     `env:"SHORTS_WIDTH, noinit"`
	Height        *int     `env:"SHORTS_HEIGHT, noinit"`
	FPS           *int     `env:"SHORTS_FPS, noinit"`
	Encoder       *string  `env:"SHORTS_ENCODER, noinit"`
	Quality       *string  `env:"SHORTS_QUALITY, noinit"`
	Transition    *string  `env:"SHORTS_TRANSITION, noinit"`
	ResizeMethod  *string  `env:"SHORTS_RESIZE_METHOD, noinit"`
	Template      *string  `env:"SHORTS_TEMPLATE, noinit"`
	TTSEnabled    *bool    `env:"SHORTS_TTS_ENABLED, noinit"`
	TransitionDur *float64 `env:"SHORTS_TRANSITION_DURATION, noinit"`
	Voice         *string  `env:"SHORTS_TTS_VOICE, noinit"`
	TTSCommand    *string  `env:"SHORTS_TTS_COMMAND, noinit"`
	TTSRequired   *bool    `env:"SHORTS_TTS_REQUIRED, noinit"`
	MaxFileSizeMB *float64 `env:"SHORTS_MAX_FILE_SIZE_MB, noinit"`
	Workers       *int     `env:"SHORTS_WORKERS, noinit"`
	LogLevel      *string  `env:"LOG_LEVEL, noinit"`
	LogFormat     *string  `env:"LOG_FORMAT, noinit"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then SHORTS_* environment overrides, then validation.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(ctx, &env); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	env.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	setInt(&cfg.Video.Width, e.Width)
	setInt(&cfg.Video.Height, e.Height)
	setInt(&cfg.Video.FPS, e.FPS)
	setString(&cfg.Video.Encoder, e.Encoder)
	setString(&cfg.Video.Quality, e.Quality)
	setString(&cfg.Image.Transition, e.Transition)
	setFloat(&cfg.Image.TransitionDuration, e.TransitionDur)
	setString(&cfg.Image.ResizeMethod, e.ResizeMethod)
	setString(&cfg.Image.Template, e.Template)
	setBool(&cfg.Audio.TTS.Enabled, e.TTSEnabled)
	setString(&cfg.Audio.TTS.Voice, e.Voice)
	setString(&cfg.Audio.TTS.Command, e.TTSCommand)
	setBool(&cfg.Audio.TTS.Required, e.TTSRequired)
	setFloat(&cfg.Output.MaxFileSizeMB, e.MaxFileSizeMB)
	setInt(&cfg.Workers, e.Workers)
	setString(&cfg.Log.Level, e.LogLevel)
	setString(&cfg.Log.Format, e.LogFormat)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

var validate = validator.New()

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: invalid %s (%s=%s)", verrs[0].Namespace(), verrs[0].Tag(), verrs[0].Param())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger creates a structured logger from the log section.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.Log.Level)}

	var handler slog.Handler
	if strings.ToLower(c.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
