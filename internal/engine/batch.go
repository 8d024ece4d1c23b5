package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/img2shorts/internal/failure"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

type BatchResult struct {
	Index  int     `yaml:"index" json:"index"`
	ID     string  `yaml:"id" json:"id"`
	Status Status  `yaml:"status" json:"status"`
	Output string  `yaml:"output,omitempty" json:"output,omitempty"`
	Error  string  `yaml:"error,omitempty" json:"error,omitempty"`
	Kind   string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Result *Result `yaml:"result,omitempty" json:"result,omitempty"`
}

type BatchReport struct {
	Results   []BatchResult `yaml:"results" json:"results"`
	Succeeded int           `yaml:"succeeded" json:"succeeded"`
	Failed    int           `yaml:"failed" json:"failed"`
}

// Runner is anything that can produce one video; Generator in production.
type Runner interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// RunBatch generates every request with at most workers in flight. A failed
// item never stops the others; results come back in request order.
func RunBatch(ctx context.Context, r Runner, reqs []Request, workers int) BatchReport {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))

	for i, req := range reqs {
		g.Go(func() error {
			br := BatchResult{Index: i, ID: req.ID}
			if err := ctx.Err(); err != nil {
				br.Status, br.Error = StatusFailed, err.Error()
				results[i] = br
				return nil
			}

			res, err := r.Generate(ctx, req)
			if err != nil {
				br.Status, br.Error, br.Kind = StatusFailed, err.Error(), failure.KindOf(err).String()
			} else {
				br.Status, br.Output, br.Result = StatusOK, res.Output, &res
				br.ID = res.RequestID
			}
			results[i] = br
			return nil
		})
	}
	g.Wait()

	report := BatchReport{Results: results}
	for _, br := range results {
		if br.Status == StatusOK {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report
}

type manifest struct {
	Items []Request `yaml:"items" json:"items"`
}

// LoadManifest reads batch requests from YAML or JSON: either a list of
// requests or an object with an "items" list. Relative paths inside are
// resolved against the manifest's directory.
func LoadManifest(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failure.AssetMissing(path)
		}
		return nil, err
	}

	var reqs []Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &reqs); err != nil {
			var m manifest
			if err2 := json.Unmarshal(data, &m); err2 != nil {
				return nil, failure.ScriptFormat(err, "manifest %s", path)
			}
			reqs = m.Items
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &reqs); err != nil {
			var m manifest
			if err2 := yaml.Unmarshal(data, &m); err2 != nil {
				return nil, failure.ScriptFormat(err, "manifest %s", path)
			}
			reqs = m.Items
		}
	default:
		return nil, failure.UnsupportedFormat(path, filepath.Ext(path))
	}
	if len(reqs) == 0 {
		return nil, failure.EmptyInput("manifest %s has no items", path)
	}

	base := filepath.Dir(path)
	for i := range reqs {
		r := &reqs[i]
		if r.Images == "" || r.Output == "" {
			return nil, failure.ScriptFormat(fmt.Errorf("images and output are required"), "manifest item %d", i+1)
		}
		r.Images = resolve(base, r.Images)
		r.Script = resolve(base, r.Script)
		r.Music = resolve(base, r.Music)
		r.Output = resolve(base, r.Output)
		for j := range r.Effects {
			r.Effects[j].Path = resolve(base, r.Effects[j].Path)
		}
	}
	return reqs, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// WriteReport stores the batch report next to the outputs; the format
// follows the extension.
func WriteReport(report BatchReport, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = yaml.Marshal(report)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
