package video

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gradient struct {
	size   image.Point
	frames int
}

func (g gradient) Size() image.Point { return g.size }
func (g gradient) FPS() int          { return 10 }
func (g gradient) FrameCount() int   { return g.frames }

func (g gradient) RenderFrame(i int, dst *image.RGBA) error {
	for p := 0; p < len(dst.Pix); p += 4 {
		dst.Pix[p], dst.Pix[p+1], dst.Pix[p+2], dst.Pix[p+3] = uint8(i*20), 0, 0, 255
	}
	return nil
}

func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		audio    string
		contains []string
		absent   []string
	}{
		{
			name:     "libx264 high",
			params:   Params{Encoder: "libx264", Quality: "high"},
			contains: []string{"-crf 23", "-preset medium", "-pix_fmt yuv420p", "-movflags +faststart", "-video_size 1080x1920", "-framerate 30"},
			absent:   []string{"-map", "-t "},
		},
		{
			name:     "default encoder ultra",
			params:   Params{Quality: "ultra"},
			contains: []string{"-c:v libx264", "-crf 18"},
		},
		{
			name:     "nvenc low",
			params:   Params{Encoder: "h264_nvenc", Quality: "low"},
			contains: []string{"-cq 33"},
			absent:   []string{"-crf"},
		},
		{
			name:     "videotoolbox bitrate",
			params:   Params{Encoder: "h264_videotoolbox", Bitrate: "8M"},
			contains: []string{"-b:v 8M"},
		},
		{
			name:     "audio and duration",
			params:   Params{Duration: 6.5},
			audio:    "/tmp/track.wav",
			contains: []string{"-i /tmp/track.wav", "-map 0:v -map 1:a", "-c:a aac", "-t 6.500"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := buildFFmpegArgs(image.Pt(1080, 1920), 30, tt.audio, tt.params, "out.mp4")
			line := strings.Join(args, " ")
			for _, c := range tt.contains {
				assert.Contains(t, line, c)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, line, a)
			}
			assert.Equal(t, "out.mp4", args[len(args)-1])
			assert.Equal(t, "-i -", strings.Join(args[9:11], " "))
		})
	}
}

func TestCRF(t *testing.T) {
	assert.Equal(t, 28, CRF("MEDIUM"))
	assert.Equal(t, 23, CRF("unknown"))
}

func TestWriteFrames(t *testing.T) {
	var buf bytes.Buffer
	src := gradient{size: image.Pt(4, 2), frames: 3}
	require.NoError(t, writeFrames(&buf, src, src.size))
	require.Equal(t, 3*4*2*4, buf.Len())
	assert.Equal(t, uint8(40), buf.Bytes()[2*4*2*4], "third frame red channel")
}

func TestWriteRawRGBA_SubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, sub))
	require.Equal(t, 2*2*4, buf.Len())
	assert.Equal(t, uint8(20), buf.Bytes()[0])
}

func TestFFmpegEncoder_Encode(t *testing.T) {
	checkFFmpeg(t)

	out := filepath.Join(t.TempDir(), "out.mp4")
	enc := NewFFmpegEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := enc.Encode(context.Background(), gradient{size: image.Pt(16, 16), frames: 10}, "", Params{Quality: "low"}, out)
	require.NoError(t, err)

	fi, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
}
