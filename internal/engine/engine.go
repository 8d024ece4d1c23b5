// Package engine runs one generation request end to end and fans out
// batches of independent requests.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/img2shorts/internal/audio"
	"github.com/ivlev/img2shorts/internal/caption"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/endcard"
	"github.com/ivlev/img2shorts/internal/render"
	"github.com/ivlev/img2shorts/internal/scene"
	"github.com/ivlev/img2shorts/internal/source"
	"github.com/ivlev/img2shorts/internal/subtitle"
	"github.com/ivlev/img2shorts/internal/system"
	"github.com/ivlev/img2shorts/internal/transition"
	"github.com/ivlev/img2shorts/internal/tts"
	"github.com/ivlev/img2shorts/internal/video"
)

// Request describes one output video.
type Request struct {
	ID      string             `yaml:"id,omitempty" json:"id,omitempty"`
	Images  string             `yaml:"images" json:"images"`
	Script  string             `yaml:"script,omitempty" json:"script,omitempty"`
	Music   string             `yaml:"music,omitempty" json:"music,omitempty"`
	Effects []audio.EffectFile `yaml:"effects,omitempty" json:"effects,omitempty"`
	Output  string             `yaml:"output" json:"output"`
	// Duration stretches or shrinks scene durations so the video lasts
	// exactly this long; 0 keeps them.
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"`
	// FitToNarration does the same with the narration length as target.
	FitToNarration bool `yaml:"fit_to_narration,omitempty" json:"fit_to_narration,omitempty"`
	// Template overrides image.template for this video.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`
}

type Result struct {
	RequestID string        `yaml:"request_id" json:"request_id"`
	Scenes    int           `yaml:"scenes" json:"scenes"`
	Narrated  bool          `yaml:"narrated" json:"narrated"`
	Subtitles string        `yaml:"subtitles,omitempty" json:"subtitles,omitempty"`
	Elapsed   time.Duration `yaml:"elapsed" json:"elapsed"`

	render.Result `yaml:",inline"`
}

type Generator struct {
	cfg        config.Config
	workers    int
	synth      tts.Synthesizer
	encoder    video.Encoder
	decoder    audio.Decoder
	writeAudio render.AudioWriter
	logger     *slog.Logger
}

type Option func(*Generator)

// WithSynthesizer replaces the edge-tts backend.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(g *Generator) { g.synth = s }
}

func WithEncoder(e video.Encoder) Option {
	return func(g *Generator) { g.encoder = e }
}

func WithDecoder(d audio.Decoder) Option {
	return func(g *Generator) { g.decoder = d }
}

func WithAudioWriter(w render.AudioWriter) Option {
	return func(g *Generator) { g.writeAudio = w }
}

func NewGenerator(cfg config.Config, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:     cfg,
		workers: system.ResolveWorkers(cfg.Workers),
		decoder: audio.FFmpegDecoder{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.encoder == nil {
		g.encoder = video.NewFFmpegEncoder(logger)
	}
	return g
}

// Generate runs the whole pipeline for one request. Partial state lives in
// a per-request temp dir that is removed on return.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := g.logger.With("request_id", req.ID)
	res := Result{RequestID: req.ID}

	if req.Output == "" {
		return res, fmt.Errorf("output path is required")
	}

	workDir, err := os.MkdirTemp("", "img2shorts_req_")
	if err != nil {
		return res, err
	}
	defer os.RemoveAll(workDir)

	// 1. Сценарий -> тайминги подписей
	var captions []caption.Caption
	if req.Script != "" {
		entries, err := caption.ParseScript(req.Script)
		if err != nil {
			return res, err
		}
		captions, err = caption.NewTimeline(g.cfg.Text, g.cfg.Image.DefaultDuration).Build(entries, 0)
		if err != nil {
			return res, err
		}
		log.Info("script parsed", "entries", len(captions), "duration", caption.TotalDuration(captions))
	}

	// 2. Изображения
	images, err := g.loadImages(ctx, req, log)
	if err != nil {
		return res, err
	}

	// 3. Сцены
	scenes, err := scene.NewBuilder(g.cfg.Image, log).Build(images, captions, g.cfg.Image.DefaultDuration)
	if err != nil {
		return res, err
	}
	captions = captions[:min(len(captions), len(scenes))]

	// 4. Озвучка
	audioLoader := audio.NewLoader(g.cfg.Audio, g.decoder, log)
	mixer := audio.NewMixer(g.cfg.Audio, log)

	segments, err := g.narrate(ctx, captions, workDir, audioLoader, log)
	if err != nil {
		return res, err
	}
	res.Narrated = len(segments) > 0

	// 5. Подгонка длительностей
	target := req.Duration
	if target <= 0 && req.FitToNarration && len(segments) > 0 {
		narration, err := mixer.Narration(segments)
		if err != nil {
			return res, err
		}
		target = narration.Duration()
	}
	if target > 0 {
		fitDurations(scenes, target)
		log.Info("scene durations fitted", "target", target)
	}

	// 6. Финальная карточка
	if endcard.Enabled(g.cfg.EndCard) {
		card, err := endcard.Build(g.cfg.EndCard, g.cfg.Video.Width, g.cfg.Video.Height)
		if err != nil {
			return res, err
		}
		scenes = append(scenes, scene.Scene{
			Index:    len(scenes),
			Name:     card.Name,
			Image:    card.Image,
			Duration: g.cfg.EndCard.Duration,
		})
	}
	res.Scenes = len(scenes)

	// 7. Переходы
	tl, err := transition.NewCompositor(log).Compose(scenes)
	if err != nil {
		return res, err
	}
	log.Info("timeline composed", "clips", len(tl.Clips), "duration", tl.Duration)

	// 8. Аудиодорожка
	track, err := g.mix(ctx, req, segments, tl.Duration, audioLoader, mixer)
	if err != nil {
		return res, err
	}

	// 9. Рендер
	rendered, err := render.NewCoordinator(g.cfg, g.encoder, g.writeAudio, log).Render(ctx, tl, track, req.Output)
	if err != nil {
		return res, err
	}
	res.Result = rendered

	// 10. Субтитры
	if g.cfg.Output.Subtitles != "" && len(captions) > 0 {
		path, err := g.writeSubtitles(tl, req.Output)
		if err != nil {
			log.Warn("subtitles not written", "error", err)
		} else {
			res.Subtitles = path
		}
	}

	res.Elapsed = time.Since(start)
	log.Info("video generated", "output", res.Output, "duration", res.Duration, "elapsed", res.Elapsed)
	return res, nil
}

func (g *Generator) loadImages(ctx context.Context, req Request, log *slog.Logger) ([]scene.Image, error) {
	imgCfg := g.cfg.Image
	if req.Template != "" {
		imgCfg.Template = req.Template
	}
	loader, err := source.NewLoader(g.cfg.Video, imgCfg, g.workers, log)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(req.Images)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	images, err := loader.LoadAll(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Info("images loaded", "count", len(images), "source", req.Images, "template", imgCfg.Template)
	return images, nil
}

func (g *Generator) narrate(ctx context.Context, captions []caption.Caption, workDir string, loader *audio.Loader, log *slog.Logger) ([]*audio.Segment, error) {
	if len(captions) == 0 || !g.cfg.Audio.TTS.Enabled {
		return nil, nil
	}
	synth := g.synth
	if synth == nil {
		synth = tts.NewEdgeTTS(g.cfg.Audio.TTS.Command, workDir, loader)
	}
	return tts.NewNarrator(synth, g.cfg.Audio.TTS, log).Narrate(ctx, captions)
}

// mix returns nil when there is nothing to hear; the video is then silent.
func (g *Generator) mix(ctx context.Context, req Request, narration []*audio.Segment, duration float64, loader *audio.Loader, mixer *audio.Mixer) (*audio.Track, error) {
	if len(narration) == 0 && req.Music == "" && len(req.Effects) == 0 {
		return nil, nil
	}

	return mixer.MixFiles(ctx, loader, audio.FileInput{
		Voice:   narration,
		Music:   req.Music,
		Effects: req.Effects,
		Target:  duration,
	})
}

// writeSubtitles times each caption by its clip on the composed timeline:
// from the clip start to the next clip start, so cues never overlap.
func (g *Generator) writeSubtitles(tl transition.Timeline, output string) (string, error) {
	f, err := subtitle.ParseFormat(g.cfg.Output.Subtitles)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(output, filepath.Ext(output)) + "." + g.cfg.Output.Subtitles
	if err := subtitle.WriteFile(path, SceneCaptions(tl), f); err != nil {
		return "", err
	}
	return path, nil
}

// SceneCaptions returns the captions of tl retimed to when their scenes are
// the foreground clip.
func SceneCaptions(tl transition.Timeline) []caption.Caption {
	var out []caption.Caption
	for i, c := range tl.Clips {
		if c.Scene.Caption == nil {
			continue
		}
		end := c.End()
		if i+1 < len(tl.Clips) {
			end = tl.Clips[i+1].Start
		}
		cp := *c.Scene.Caption
		cp.StartTime = c.Start
		cp.Duration = end - c.Start
		out = append(out, cp)
	}
	return out
}

// fitDurations масштабирует длительности сцен так, чтобы итоговое видео
// (с учётом перекрытий переходов) длилось ровно target секунд.
func fitDurations(scenes []scene.Scene, target float64) {
	if len(scenes) == 0 || target <= 0 {
		return
	}
	overlap := 0.0
	for _, s := range scenes[:len(scenes)-1] {
		if s.Transition.Kind != scene.TransitionNone {
			overlap += s.Transition.Duration
		}
	}
	sum := scene.TotalDuration(scenes)
	scale := (target + overlap) / sum
	for i := range scenes {
		scenes[i].Duration *= scale
	}
}
