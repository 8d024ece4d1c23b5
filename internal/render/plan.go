package render

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/img2shorts/internal/audio"
	"github.com/ivlev/img2shorts/internal/failure"
	"github.com/ivlev/img2shorts/internal/transition"
)

// Plan is the fully time-resolved composition handed to the encoder.
type Plan struct {
	Version  string     `yaml:"version"`
	Width    int        `yaml:"width"`
	Height   int        `yaml:"height"`
	FPS      int        `yaml:"fps"`
	Frames   int        `yaml:"frames"`
	Duration float64    `yaml:"duration"`
	Clips    []ClipPlan `yaml:"clips"`
	Audio    *AudioPlan `yaml:"audio,omitempty"`
}

type ClipPlan struct {
	Index    int     `yaml:"index"`
	Name     string  `yaml:"name"`
	Start    float64 `yaml:"start"`
	End      float64 `yaml:"end"`
	Duration float64 `yaml:"duration"`
	In       string  `yaml:"in"`
	InDur    float64 `yaml:"in_duration"`
	Out      string  `yaml:"out"`
	OutDur   float64 `yaml:"out_duration"`
	Motion   string  `yaml:"motion"`
	Caption  string  `yaml:"caption,omitempty"`
}

type AudioPlan struct {
	// Source is the mixed track length before it was fitted to the video.
	Source float64     `yaml:"source_duration"`
	Fitted float64     `yaml:"fitted_duration"`
	Stats  audio.Stats `yaml:"stats"`
	Layers []LayerPlan `yaml:"layers"`
}

type LayerPlan struct {
	Kind     string  `yaml:"kind"`
	Offset   float64 `yaml:"offset"`
	GainDB   float64 `yaml:"gain_db"`
	Duration float64 `yaml:"duration"`
}

const planVersion = "1"

// BuildPlan validates the timeline and lays it out frame by frame. The track
// may be nil when the video is silent.
func BuildPlan(tl transition.Timeline, track *audio.Track, width, height, fps int) (Plan, error) {
	if len(tl.Clips) == 0 {
		return Plan{}, failure.EmptyInput("nothing to render")
	}
	if err := tl.Validate(); err != nil {
		return Plan{}, failure.InvalidScene("composition plan: %v", err)
	}
	frames := int(math.Round(tl.Duration * float64(fps)))
	if frames <= 0 {
		return Plan{}, failure.InvalidScene("timeline of %.3fs yields no frames at %d fps", tl.Duration, fps)
	}

	p := Plan{
		Version:  planVersion,
		Width:    width,
		Height:   height,
		FPS:      fps,
		Frames:   frames,
		Duration: tl.Duration,
	}
	for i, c := range tl.Clips {
		cp := ClipPlan{
			Index:    i,
			Name:     c.Scene.Name,
			Start:    round3(c.Start),
			End:      round3(c.End()),
			Duration: c.Scene.Duration,
			In:       c.In.Name(),
			InDur:    c.In.Duration,
			Out:      c.Out.Name(),
			OutDur:   c.Out.Duration,
			Motion:   c.Scene.Motion.String(),
		}
		if c.Scene.Caption != nil {
			cp.Caption = c.Scene.Caption.Text
		}
		p.Clips = append(p.Clips, cp)
	}

	if track != nil && track.PCM != nil {
		ap := &AudioPlan{
			Source: track.Duration(),
			Fitted: tl.Duration,
			Stats:  track.PCM.Stats(),
		}
		for _, l := range track.Layers {
			ap.Layers = append(ap.Layers, LayerPlan{
				Kind:     l.Kind.String(),
				Offset:   l.Offset,
				GainDB:   round3(l.GainDB),
				Duration: round3(l.Duration),
			})
		}
		p.Audio = ap
	}
	return p, nil
}

func (p Plan) String() string {
	return fmt.Sprintf("%dx%d@%d %d clips %.3fs (%d frames)", p.Width, p.Height, p.FPS, len(p.Clips), p.Duration, p.Frames)
}

// WritePlan writes a plan to a YAML file
func WritePlan(plan Plan, path string) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadPlan reads a plan from a YAML file
func ReadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
