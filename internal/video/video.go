package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/ivlev/img2shorts/internal/system"
)

// FrameSource produces the composited frames of one video in order.
type FrameSource interface {
	Size() image.Point
	FPS() int
	FrameCount() int
	RenderFrame(i int, dst *image.RGBA) error
}

type Params struct {
	Encoder string // h264_videotoolbox, h264_nvenc, libx264
	Quality string // ultra, high, medium, low
	Bitrate string // used by encoders without a CRF mode
	// Duration caps the output; 0 means the frame count decides.
	Duration float64
}

// Encoder turns a frame sequence plus an optional audio file into a video file.
type Encoder interface {
	Encode(ctx context.Context, frames FrameSource, audioPath string, params Params, output string) error
}

// crfByQuality - шкала качества для libx264/nvenc
var crfByQuality = map[string]int{
	"ultra":  18,
	"high":   23,
	"medium": 28,
	"low":    33,
}

func CRF(quality string) int {
	if crf, ok := crfByQuality[strings.ToLower(quality)]; ok {
		return crf
	}
	return crfByQuality["high"]
}

type FFmpegEncoder struct {
	logger *slog.Logger
}

func NewFFmpegEncoder(logger *slog.Logger) *FFmpegEncoder {
	return &FFmpegEncoder{logger: logger}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames FrameSource, audioPath string, params Params, output string) error {
	size := frames.Size()
	args := buildFFmpegArgs(size, frames.FPS(), audioPath, params, output)
	e.logger.Debug("ffmpeg", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	// Кадры рендерятся по одному в переиспользуемый буфер и сразу уходят в ffmpeg
	writeErr := writeFrames(stdin, frames, size)
	stdin.Close()
	waitErr := cmd.Wait()

	if waitErr != nil {
		return fmt.Errorf("ffmpeg wait error: %w: %s", waitErr, tail(stderr.String()))
	}
	if writeErr != nil {
		return fmt.Errorf("write raw error: %w", writeErr)
	}
	e.logger.Info("video encoded", "output", output, "frames", frames.FrameCount(), "encoder", params.Encoder)
	return nil
}

func writeFrames(w io.Writer, frames FrameSource, size image.Point) error {
	buf := system.GetImage(size)
	defer system.PutImage(buf)

	for i := 0; i < frames.FrameCount(); i++ {
		if err := frames.RenderFrame(i, buf); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := writeRawRGBA(w, buf); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return fmt.Errorf("ffmpeg closed input at frame %d", i)
			}
			return err
		}
	}
	return nil
}

func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	width := img.Rect.Dx() * 4
	if img.Stride == width {
		_, err := w.Write(img.Pix[:width*img.Rect.Dy()])
		return err
	}
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width]
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func buildFFmpegArgs(size image.Point, fps int, audioPath string, params Params, output string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", size.X, size.Y),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath, "-map", "0:v", "-map", "1:a", "-c:a", "aac", "-b:a", "192k")
	}

	encoder := params.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	args = append(args, "-c:v", encoder, "-pix_fmt", "yuv420p")

	// Качество в зависимости от энкодера
	switch encoder {
	case "h264_videotoolbox":
		bitrate := params.Bitrate
		if bitrate == "" {
			bitrate = "5M"
		}
		args = append(args, "-b:v", bitrate)
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", CRF(params.Quality)))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", CRF(params.Quality)), "-preset", "medium")
	}

	args = append(args, "-movflags", "+faststart")
	if params.Duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", params.Duration))
	}
	args = append(args, output)
	return args
}

func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
