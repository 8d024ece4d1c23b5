// Package tts wraps the voice-synthesis backend and produces narration
// segments for a caption list.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/img2shorts/internal/audio"
	"github.com/ivlev/img2shorts/internal/caption"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/failure"
)

// Synthesizer turns text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, rate, pitch float64) (*audio.Segment, error)
}

// RateArg formats a speed factor for edge-tts: 1.2 -> "+20%".
func RateArg(rate float64) string {
	return fmt.Sprintf("%+d%%", int(math.Round((rate-1)*100)))
}

// PitchArg formats a pitch factor for edge-tts: 1.2 -> "+10Hz".
func PitchArg(pitch float64) string {
	return fmt.Sprintf("%+dHz", int(math.Round((pitch-1)*50)))
}

// EdgeTTS runs the edge-tts command line tool and decodes its mp3 output.
type EdgeTTS struct {
	command string
	workDir string
	loader  *audio.Loader
}

// NewEdgeTTS writes intermediate files to workDir, which the caller owns.
func NewEdgeTTS(command, workDir string, loader *audio.Loader) *EdgeTTS {
	if command == "" {
		command = "edge-tts"
	}
	return &EdgeTTS{command: command, workDir: workDir, loader: loader}
}

func (e *EdgeTTS) Synthesize(ctx context.Context, text, voice string, rate, pitch float64) (*audio.Segment, error) {
	out := filepath.Join(e.workDir, "tts_"+uuid.NewString()+".mp3")
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, e.command,
		"--voice", voice,
		"--rate="+RateArg(rate),
		"--pitch="+PitchArg(pitch),
		"--text", text,
		"--write-media", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", e.command, err, strings.TrimSpace(stderr.String()))
	}

	return e.loader.Load(ctx, out)
}

// Narrator synthesizes one segment per caption.
type Narrator struct {
	synth  Synthesizer
	cfg    config.TTSConfig
	logger *slog.Logger
}

func NewNarrator(synth Synthesizer, cfg config.TTSConfig, logger *slog.Logger) *Narrator {
	return &Narrator{synth: synth, cfg: cfg, logger: logger}
}

// Narrate synthesizes captions concurrently (bounded by the configured
// concurrency) and returns segments in caption order.
//
// When synthesis fails and narration is required the error is returned.
// When narration is optional the failure is logged and Narrate returns
// (nil, nil): the video proceeds without narration.
func (n *Narrator) Narrate(ctx context.Context, captions []caption.Caption) ([]*audio.Segment, error) {
	if len(captions) == 0 {
		return nil, nil
	}

	segments := make([]*audio.Segment, len(captions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(n.cfg.Concurrency, 1))

	for i, c := range captions {
		voice := c.Voice
		if voice == "" {
			voice = n.cfg.Voice
		}
		text := strings.ReplaceAll(c.Text, "\n", " ")

		g.Go(func() error {
			seg, err := n.synth.Synthesize(gctx, text, voice, n.cfg.Rate, n.cfg.Pitch)
			if err != nil {
				return failure.Synthesis(err, "entry %d", i+1)
			}
			// каждая горутина пишет только в свой индекс
			segments[i] = seg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if n.cfg.Required {
			return nil, err
		}
		n.logger.Warn("narration unavailable, continuing without it", "error", err)
		return nil, nil
	}

	n.logger.Info("narration synthesized", "segments", len(segments), "voice", n.cfg.Voice)
	return segments, nil
}
