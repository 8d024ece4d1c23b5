package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/img2shorts/internal/audio"
	"github.com/ivlev/img2shorts/internal/caption"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/failure"
)

// fakeSynth returns a segment whose length encodes the text length and
// finishes in reverse order to exercise reordering.
type fakeSynth struct {
	mu       sync.Mutex
	voices   []string
	inflight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string, rate, pitch float64) (*audio.Segment, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.voices = append(f.voices, voice)
	f.mu.Unlock()

	if text == f.failOn {
		return nil, errors.New("backend 503")
	}
	time.Sleep(time.Duration(10-len(text)) * time.Millisecond)
	return audio.Silent(100, 1, float64(len(text))), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captions(texts ...string) []caption.Caption {
	out := make([]caption.Caption, len(texts))
	for i, t := range texts {
		out[i] = caption.Caption{Text: t, Duration: 1}
	}
	return out
}

func TestNarrate_PreservesOrder(t *testing.T) {
	synth := &fakeSynth{}
	cfg := config.Default().Audio.TTS
	cfg.Concurrency = 3

	segs, err := NewNarrator(synth, cfg, discardLogger()).Narrate(context.Background(), captions("a", "bb", "ccc", "dddd", "eeeee"))
	require.NoError(t, err)
	require.Len(t, segs, 5)
	for i, s := range segs {
		assert.Equal(t, float64(i+1), s.Duration())
	}
	assert.LessOrEqual(t, synth.peak.Load(), int32(3))
}

func TestNarrate_VoiceOverride(t *testing.T) {
	synth := &fakeSynth{}
	cfg := config.Default().Audio.TTS
	cfg.Concurrency = 1
	caps := captions("a", "b")
	caps[1].Voice = "en-US-GuyNeural"

	_, err := NewNarrator(synth, cfg, discardLogger()).Narrate(context.Background(), caps)
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.Voice, "en-US-GuyNeural"}, synth.voices)
}

func TestNarrate_RequiredFailure(t *testing.T) {
	cfg := config.Default().Audio.TTS
	cfg.Required = true

	_, err := NewNarrator(&fakeSynth{failOn: "bb"}, cfg, discardLogger()).Narrate(context.Background(), captions("a", "bb", "c"))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrSynthesis)
	assert.Contains(t, err.Error(), "entry 2")
}

func TestNarrate_OptionalFailure(t *testing.T) {
	cfg := config.Default().Audio.TTS
	cfg.Required = false

	segs, err := NewNarrator(&fakeSynth{failOn: "bb"}, cfg, discardLogger()).Narrate(context.Background(), captions("a", "bb"))
	require.NoError(t, err)
	assert.Nil(t, segs)
}

func TestNarrate_Empty(t *testing.T) {
	segs, err := NewNarrator(&fakeSynth{}, config.Default().Audio.TTS, discardLogger()).Narrate(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, segs)
}

func TestRateAndPitchArgs(t *testing.T) {
	assert.Equal(t, "+0%", RateArg(1.0))
	assert.Equal(t, "+20%", RateArg(1.2))
	assert.Equal(t, "-50%", RateArg(0.5))
	assert.Equal(t, "+0Hz", PitchArg(1.0))
	assert.Equal(t, "+10Hz", PitchArg(1.2))
	assert.Equal(t, "-25Hz", PitchArg(0.5))
}
