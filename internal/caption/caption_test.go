package caption

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/failure"
)

func ptr[T any](v T) *T { return &v }

func newTimeline() *Timeline {
	return NewTimeline(config.Default().Text, 3.0)
}

func TestBuild_AccumulatesStartTimes(t *testing.T) {
	entries := []Entry{
		{Text: "first", Duration: ptr(2.0)},
		{Text: "second", Duration: ptr(3.0)},
		{Text: "third"},
	}

	caps, err := newTimeline().Build(entries, 0)
	require.NoError(t, err)
	require.Len(t, caps, 3)

	assert.Equal(t, 0.0, caps[0].StartTime)
	assert.Equal(t, 2.0, caps[1].StartTime)
	assert.Equal(t, 5.0, caps[2].StartTime)
	assert.Equal(t, 3.0, caps[2].Duration, "missing duration falls back to default")

	for i := 0; i+1 < len(caps); i++ {
		assert.Equal(t, caps[i].End(), caps[i+1].StartTime, "no gap or overlap at %d", i)
	}
	assert.InDelta(t, 8.0, TotalDuration(caps), 1e-9)
}

func TestBuild_Offset(t *testing.T) {
	caps, err := newTimeline().Build([]Entry{{Text: "a", Duration: ptr(1.0)}, {Text: "b", Duration: ptr(1.5)}}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, caps[0].StartTime)
	assert.Equal(t, 5.0, caps[1].StartTime)
}

func TestBuild_DurationSumProperty(t *testing.T) {
	durations := []float64{0.3, 1.7, 2.25, 0.05, 4, 3.3333}
	entries := make([]Entry, len(durations))
	want := 0.0
	for i, d := range durations {
		entries[i] = Entry{Text: "line", Duration: ptr(d)}
		want += d
	}

	caps, err := newTimeline().Build(entries, 0)
	require.NoError(t, err)
	assert.InDelta(t, want, TotalDuration(caps), 1e-9)
}

func TestBuild_DefaultsAndOverrides(t *testing.T) {
	caps, err := newTimeline().Build([]Entry{
		{Text: "plain"},
		{Text: "custom", Position: "top", Color: "#FF0000", FontSize: ptr(64.0), Animation: "typewriter", StrokeWidth: ptr(0)},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, PositionBottom, caps[0].Position)
	assert.Equal(t, AnimationFade, caps[0].Animation)
	assert.Equal(t, "#FFFFFF", caps[0].Style.Color)
	assert.Equal(t, 48.0, caps[0].Style.FontSize)
	assert.Equal(t, 0.5, caps[0].AnimationDuration)

	assert.Equal(t, PositionTop, caps[1].Position)
	assert.Equal(t, AnimationTypewriter, caps[1].Animation)
	assert.Equal(t, "#FF0000", caps[1].Style.Color)
	assert.Equal(t, "#000000", caps[1].Style.StrokeColor)
	assert.Equal(t, 64.0, caps[1].Style.FontSize)
	assert.Equal(t, 0, caps[1].Style.StrokeWidth)
}

func TestBuild_AnimationDurationCappedAtHalf(t *testing.T) {
	caps, err := newTimeline().Build([]Entry{{Text: "x", Duration: ptr(0.6), AnimationDuration: ptr(1.0)}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.3, caps[0].AnimationDuration)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    error
	}{
		{"empty", nil, failure.ErrEmptyInput},
		{"missing text", []Entry{{Text: "ok"}, {Text: "  "}}, failure.ErrScriptFormat},
		{"zero duration", []Entry{{Text: "x", Duration: ptr(0.0)}}, failure.ErrScriptFormat},
		{"bad position", []Entry{{Text: "x", Position: "left"}}, failure.ErrScriptFormat},
		{"bad animation", []Entry{{Text: "x", Animation: "spin"}}, failure.ErrScriptFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTimeline().Build(tt.entries, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		text string
		max  int
		want string
	}{
		{"hello world", 30, "hello world"},
		{"the quick brown fox jumps", 10, "the quick\nbrown fox\njumps"},
		{"a supercalifragilistic word", 10, "a\nsupercalifragilistic\nword"},
		{"  spaced   out  ", 30, "spaced out"},
		{"exactly ten", 11, "exactly ten"},
		{"", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.max))
		})
	}
}

func TestWrap_LinesWithinLimit(t *testing.T) {
	text := "오늘은 정말 좋은 날씨입니다 함께 산책을 나가 볼까요 바람이 시원합니다"
	for _, line := range strings.Split(Wrap(text, 12), "\n") {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), 12, line)
	}
}

func TestAlpha(t *testing.T) {
	base := Caption{Duration: 2.0, AnimationDuration: 0.5} // fraction 0.25

	tests := []struct {
		anim Animation
		p    float64
		want float64
	}{
		{AnimationNone, 0, 1},
		{AnimationNone, 0.5, 1},
		{AnimationFade, 0, 0},
		{AnimationFade, 0.125, 0.5},
		{AnimationFade, 0.5, 1},
		{AnimationFade, 0.875, 0.5},
		{AnimationFade, 1, 0},
		{AnimationSlide, 0.125, 0.5},
		{AnimationSlide, 1, 1},
		{AnimationTypewriter, 0, 0},
		{AnimationTypewriter, 0.25, 0.5},
		{AnimationTypewriter, 0.75, 1},
		{AnimationFade, -1, 0},
		{AnimationFade, 2, 0},
	}

	for _, tt := range tests {
		c := base
		c.Animation = tt.anim
		got := c.Alpha(tt.p)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s at %.3f: expected %.3f, got %.3f", tt.anim, tt.p, tt.want, got)
		}
	}
}

func TestParseScriptData(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
		want   []string
	}{
		{"txt", "txt", "# title\nfirst line\n\n  second line  \n", []string{"first line", "second line"}},
		{"json list", "json", `[{"text":"a","duration":1.5,"extra":true},{"text":"b"}]`, []string{"a", "b"}},
		{"json scripts", "json", `{"scripts":[{"text":"a"}]}`, []string{"a"}},
		{"yaml list", "yaml", "- text: a\n  duration: 2\n  unknown: 1\n- text: b\n", []string{"a", "b"}},
		{"yml scripts", "yml", "scripts:\n  - text: a\n", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ParseScriptData([]byte(tt.data), tt.format)
			require.NoError(t, err)
			var texts []string
			for _, e := range entries {
				texts = append(texts, e.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}

func TestParseScriptData_DurationParsed(t *testing.T) {
	entries, err := ParseScriptData([]byte("- text: a\n  duration: 2.5\n  position: top\n"), "yaml")
	require.NoError(t, err)
	require.NotNil(t, entries[0].Duration)
	assert.Equal(t, 2.5, *entries[0].Duration)
	assert.Equal(t, "top", entries[0].Position)
}

func TestParseScriptData_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
	}{
		{"unknown format", "docx", "x"},
		{"json scalar", "json", `"just a string"`},
		{"json object without scripts", "json", `{"items":[]}`},
		{"json malformed", "json", `[{"text":`},
		{"yaml scalar", "yaml", "hello"},
		{"yaml mapping without scripts", "yaml", "items:\n  - a\n"},
		{"yaml scripts not list", "yaml", "scripts: nope\n"},
		{"yaml malformed", "yaml", "- text: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScriptData([]byte(tt.data), tt.format)
			assert.ErrorIs(t, err, failure.ErrScriptFormat)
		})
	}
}

func TestParseScript_Files(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseScript(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, failure.ErrAssetMissing)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# only a comment\n"), 0644))
	_, err = ParseScript(empty)
	assert.ErrorIs(t, err, failure.ErrEmptyInput)

	ok := filepath.Join(dir, "script.YAML")
	require.NoError(t, os.WriteFile(ok, []byte("- text: hi\n"), 0644))
	entries, err := ParseScript(ok)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
