package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/failure"
)

// Extensions lists the audio containers the loader accepts.
var Extensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac"}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Decoder turns an audio file into PCM at the requested format.
type Decoder interface {
	Decode(ctx context.Context, path string, rate, channels int) (*Segment, error)
}

// FFmpegDecoder decodes through the ffmpeg binary to signed 16-bit PCM.
type FFmpegDecoder struct{}

func (FFmpegDecoder) Decode(ctx context.Context, path string, rate, channels int) (*Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out, stderr bytes.Buffer
	err := ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{
			"format": "s16le",
			"acodec": "pcm_s16le",
			"ac":     channels,
			"ar":     rate,
		}).
		WithOutput(&out, &stderr).
		Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, lastLine(stderr.String()))
	}
	return FromS16LE(out.Bytes(), rate, channels), nil
}

// FromS16LE converts little-endian signed 16-bit PCM to a Segment.
func FromS16LE(data []byte, rate, channels int) *Segment {
	n := len(data) / 2
	n -= n % channels
	samples := make([]float32, n)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return &Segment{SampleRate: rate, Channels: channels, Samples: samples}
}

// S16LE converts the segment to little-endian signed 16-bit PCM, clipping
// out-of-range samples.
func (s *Segment) S16LE() []byte {
	buf := make([]byte, len(s.Samples)*2)
	for i, v := range s.Samples {
		f := math.Round(float64(v) * 32767)
		f = min(max(f, math.MinInt16), math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(f)))
	}
	return buf
}

// Loader is the audio side of the AssetLoader.
type Loader struct {
	rate     int
	channels int
	decoder  Decoder
	logger   *slog.Logger
}

func NewLoader(cfg config.AudioConfig, dec Decoder, logger *slog.Logger) *Loader {
	if dec == nil {
		dec = FFmpegDecoder{}
	}
	return &Loader{rate: cfg.SampleRate, channels: cfg.Channels, decoder: dec, logger: logger}
}

// Check validates that path exists and has a supported extension.
func Check(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return failure.AssetMissing(path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !IsAudioFile(path) {
		return failure.UnsupportedFormat(path, filepath.Ext(path))
	}
	return nil
}

// Load decodes path into the mixer's sample format.
func (l *Loader) Load(ctx context.Context, path string) (*Segment, error) {
	if err := Check(path); err != nil {
		return nil, err
	}
	seg, err := l.decoder.Decode(ctx, path, l.rate, l.channels)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("audio loaded", "path", path, "duration", seg.Duration())
	return seg, nil
}

type formatInfo struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// MediaDuration returns the duration of an audio or video file in seconds.
func MediaDuration(path string) (float64, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, failure.AssetMissing(path)
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseDuration(out)
}

func parseDuration(out string) (float64, error) {
	var res formatInfo
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return 0, fmt.Errorf("ffprobe output: %w", err)
	}
	if res.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}
	return strconv.ParseFloat(res.Format.Duration, 64)
}

// Export writes the segment to path; the container follows the extension.
func Export(ctx context.Context, seg *Segment, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kw := ffmpeg.KwArgs{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		kw["acodec"] = "pcm_s16le"
	case ".m4a", ".aac":
		kw["acodec"] = "aac"
		kw["b:a"] = "192k"
	case ".mp3":
		kw["acodec"] = "libmp3lame"
		kw["b:a"] = "192k"
	default:
		return failure.UnsupportedFormat(path, filepath.Ext(path))
	}

	var stderr bytes.Buffer
	err := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":  "s16le",
		"ar": seg.SampleRate,
		"ac": seg.Channels,
	}).
		Output(path, kw).
		OverWriteOutput().
		WithInput(bytes.NewReader(seg.S16LE())).
		WithOutput(io.Discard, &stderr).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg export %s: %w: %s", path, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
