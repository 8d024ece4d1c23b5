// Package render is the RenderCoordinator: it turns a composed timeline and
// a mixed track into a checked plan and drives the encoder to a file.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ivlev/img2shorts/internal/audio"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/frames"
	"github.com/ivlev/img2shorts/internal/system"
	"github.com/ivlev/img2shorts/internal/transition"
	"github.com/ivlev/img2shorts/internal/video"
)

// AudioWriter stores a PCM segment as a file the encoder can read.
type AudioWriter func(ctx context.Context, seg *audio.Segment, path string) error

type Result struct {
	Output    string  `yaml:"output" json:"output"`
	Duration  float64 `yaml:"duration" json:"duration"`
	Frames    int     `yaml:"frames" json:"frames"`
	SizeBytes int64   `yaml:"size_bytes" json:"size_bytes"`
	// OverSize is set when the file exceeds output.max_file_size_mb.
	OverSize  bool   `yaml:"over_size" json:"over_size"`
	PlanPath  string `yaml:"plan_path,omitempty" json:"plan_path,omitempty"`
	Thumbnail string `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
}

type Coordinator struct {
	cfg         config.Config
	encoder     video.Encoder
	writeAudio  AudioWriter
	encoderName string
	logger      *slog.Logger
}

func NewCoordinator(cfg config.Config, enc video.Encoder, writeAudio AudioWriter, logger *slog.Logger) *Coordinator {
	if writeAudio == nil {
		writeAudio = audio.Export
	}
	return &Coordinator{
		cfg:         cfg,
		encoder:     enc,
		writeAudio:  writeAudio,
		encoderName: cfg.Video.Encoder,
		logger:      logger,
	}
}

func (c *Coordinator) Plan(tl transition.Timeline, track *audio.Track) (Plan, error) {
	v := c.cfg.Video
	return BuildPlan(tl, track, v.Width, v.Height, v.FPS)
}

// FitAudio makes the track exactly as long as the video: longer tracks are
// cut, shorter ones padded with silence.
func FitAudio(track *audio.Track, duration float64) *audio.Segment {
	if track == nil || track.PCM == nil {
		return nil
	}
	return track.PCM.Pad(duration)
}

// Render validates the plan, encodes to a temporary file next to output and
// renames it into place only on success.
func (c *Coordinator) Render(ctx context.Context, tl transition.Timeline, track *audio.Track, output string) (Result, error) {
	plan, err := c.Plan(tl, track)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("render plan", "plan", plan.String())
	if track != nil && track.PCM != nil {
		if diff := track.Duration() - tl.Duration; diff > 0.001 || diff < -0.001 {
			c.logger.Warn("audio length differs from video, fitting", "audio", track.Duration(), "video", tl.Duration)
		}
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Result{}, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "img2shorts_")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(tmpDir)

	audioPath := ""
	if seg := FitAudio(track, tl.Duration); seg != nil {
		audioPath = filepath.Join(tmpDir, "track.wav")
		if err := c.writeAudio(ctx, seg, audioPath); err != nil {
			return Result{}, fmt.Errorf("write audio track: %w", err)
		}
	}

	renderer, err := frames.NewRenderer(c.cfg.Video, c.cfg.Text, tl, c.logger)
	if err != nil {
		return Result{}, err
	}
	defer renderer.Close()

	params := video.Params{
		Encoder:  c.encoder264(),
		Quality:  c.cfg.Video.Quality,
		Bitrate:  c.cfg.Video.Bitrate,
		Duration: tl.Duration,
	}

	tmpOut := tempOutput(output)
	if err := c.encoder.Encode(ctx, renderer, audioPath, params, tmpOut); err != nil {
		os.Remove(tmpOut)
		return Result{}, fmt.Errorf("encode: %w", err)
	}
	if err := os.Rename(tmpOut, output); err != nil {
		os.Remove(tmpOut)
		return Result{}, err
	}

	res := Result{Output: output, Duration: tl.Duration, Frames: plan.Frames}
	if fi, err := os.Stat(output); err == nil {
		res.SizeBytes = fi.Size()
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, err
	}

	if limit := c.cfg.Output.MaxFileSizeMB; limit > 0 {
		mb := float64(res.SizeBytes) / (1024 * 1024)
		if mb > limit {
			res.OverSize = true
			c.logger.Warn("output exceeds size ceiling", "size_mb", fmt.Sprintf("%.2f", mb), "limit_mb", limit)
		}
	}

	if c.cfg.Output.DumpPlan {
		res.PlanPath = strings.TrimSuffix(output, filepath.Ext(output)) + ".plan.yaml"
		if err := WritePlan(plan, res.PlanPath); err != nil {
			c.logger.Warn("plan dump failed", "path", res.PlanPath, "error", err)
			res.PlanPath = ""
		}
	}

	if c.cfg.Output.Thumbnail {
		res.Thumbnail = strings.TrimSuffix(output, filepath.Ext(output)) + ".jpg"
		if err := writeThumbnail(renderer, thumbnailTime(c.cfg.Output.ThumbnailAt, tl.Duration, c.cfg.Video.FPS), res.Thumbnail); err != nil {
			c.logger.Warn("thumbnail failed", "path", res.Thumbnail, "error", err)
			res.Thumbnail = ""
		}
	}
	return res, nil
}

// thumbnailTime keeps the requested moment inside the last frame.
func thumbnailTime(at, duration float64, fps int) float64 {
	last := duration - 1/float64(max(fps, 1))
	return max(min(at, last), 0)
}

func writeThumbnail(r *frames.Renderer, t float64, path string) error {
	size := r.Size()
	frame := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	r.RenderAt(t, frame)
	return imaging.Save(frame, path, imaging.JPEGQuality(90))
}

func (c *Coordinator) encoder264() string {
	if c.encoderName == "" {
		c.encoderName = system.GetBestH264Encoder()
		c.logger.Info("encoder detected", "encoder", c.encoderName)
	}
	return c.encoderName
}

// tempOutput keeps the extension so ffmpeg picks the same container.
func tempOutput(output string) string {
	dir, base := filepath.Split(output)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".part"+ext)
}
