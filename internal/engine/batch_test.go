package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/img2shorts/internal/failure"
	"github.com/ivlev/img2shorts/internal/render"
)

type fakeRunner struct {
	inFlight, peak atomic.Int32
}

func (f *fakeRunner) Generate(ctx context.Context, req Request) (Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	switch req.Images {
	case "missing":
		return Result{}, failure.AssetMissing(req.Images)
	case "broken":
		return Result{}, errors.New("encoder crashed")
	}
	return Result{RequestID: req.ID, Result: render.Result{Output: req.Output}}, nil
}

func TestRunBatch(t *testing.T) {
	reqs := []Request{
		{ID: "a", Images: "ok", Output: "a.mp4"},
		{ID: "b", Images: "missing", Output: "b.mp4"},
		{ID: "c", Images: "ok", Output: "c.mp4"},
		{ID: "d", Images: "broken", Output: "d.mp4"},
		{ID: "e", Images: "ok", Output: "e.mp4"},
	}
	r := &fakeRunner{}

	report := RunBatch(context.Background(), r, reqs, 2)

	require.Len(t, report.Results, 5)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.LessOrEqual(t, r.peak.Load(), int32(2))

	for i, br := range report.Results {
		assert.Equal(t, i, br.Index)
		assert.Equal(t, reqs[i].ID, br.ID)
	}
	assert.Equal(t, StatusOK, report.Results[0].Status)
	assert.Equal(t, "a.mp4", report.Results[0].Output)
	assert.Equal(t, StatusFailed, report.Results[1].Status)
	assert.Equal(t, "asset_missing", report.Results[1].Kind)
	assert.Equal(t, "unknown", report.Results[3].Kind)
	assert.Contains(t, report.Results[3].Error, "encoder crashed")
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := RunBatch(ctx, &fakeRunner{}, []Request{{Images: "ok"}, {Images: "ok"}}, 1)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- images: slides
  script: script.txt
  output: out/one.mp4
  effects:
    - path: fx/click.wav
      offset: 1.5
- id: two
  images: /abs/images
  output: /abs/two.mp4
  duration: 12
`), 0644))

	reqs, err := LoadManifest(yamlPath)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, filepath.Join(dir, "slides"), reqs[0].Images)
	assert.Equal(t, filepath.Join(dir, "script.txt"), reqs[0].Script)
	assert.Equal(t, filepath.Join(dir, "out", "one.mp4"), reqs[0].Output)
	assert.Equal(t, filepath.Join(dir, "fx", "click.wav"), reqs[0].Effects[0].Path)
	assert.Equal(t, 1.5, reqs[0].Effects[0].Offset)
	assert.Equal(t, "", reqs[0].Music)
	assert.Equal(t, "/abs/images", reqs[1].Images)
	assert.Equal(t, 12.0, reqs[1].Duration)

	jsonPath := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"items": [{"images": "a", "output": "a.mp4", "fit_to_narration": true}]}`), 0644))
	reqs, err = LoadManifest(jsonPath)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].FitToNarration)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	_, err := LoadManifest(filepath.Join(dir, "none.yaml"))
	assert.ErrorIs(t, err, failure.ErrAssetMissing)

	_, err = LoadManifest(write("batch.toml", "x"))
	assert.ErrorIs(t, err, failure.ErrUnsupportedFormat)

	_, err = LoadManifest(write("empty.yaml", "items: []"))
	assert.ErrorIs(t, err, failure.ErrEmptyInput)

	_, err = LoadManifest(write("noout.json", `[{"images": "a"}]`))
	assert.ErrorIs(t, err, failure.ErrScriptFormat)

	_, err = LoadManifest(write("scalar.yaml", "just text"))
	assert.ErrorIs(t, err, failure.ErrScriptFormat)
}

func TestWriteReport(t *testing.T) {
	report := BatchReport{
		Results:   []BatchResult{{Index: 0, ID: "a", Status: StatusOK, Output: "a.mp4"}},
		Succeeded: 1,
	}
	dir := t.TempDir()

	for _, name := range []string{"report.yaml", "report.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteReport(report, path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "a.mp4")
	}
}
