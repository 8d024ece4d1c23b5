// Package audio loads, edits and mixes PCM audio for the narration track.
package audio

import (
	"fmt"
	"math"
)

// MuteDB is the gain used for a zero linear volume.
const MuteDB = -120.0

// Segment is interleaved float PCM in [-1, 1]. Operations return new
// segments unless documented as in-place.
type Segment struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Silent returns a zeroed segment of the given length.
func Silent(rate, channels int, seconds float64) *Segment {
	frames := framesFor(rate, seconds)
	return &Segment{SampleRate: rate, Channels: channels, Samples: make([]float32, frames*channels)}
}

func framesFor(rate int, seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(rate)))
}

func (s *Segment) Frames() int {
	if s == nil || s.Channels == 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// Duration is the length in seconds.
func (s *Segment) Duration() float64 {
	if s == nil || s.SampleRate == 0 {
		return 0
	}
	return float64(s.Frames()) / float64(s.SampleRate)
}

func (s *Segment) Clone() *Segment {
	out := *s
	out.Samples = append([]float32(nil), s.Samples...)
	return &out
}

func (s *Segment) sameFormat(o *Segment) bool {
	return s.SampleRate == o.SampleRate && s.Channels == o.Channels
}

func (s *Segment) slice(fromFrame, toFrame int) *Segment {
	return &Segment{
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		Samples:    append([]float32(nil), s.Samples[fromFrame*s.Channels:toFrame*s.Channels]...),
	}
}

// Concat joins segments with pause seconds of silence between consecutive
// segments (not after the last one).
func Concat(segs []*Segment, pause float64) (*Segment, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("audio: nothing to concatenate")
	}
	first := segs[0]
	gap := framesFor(first.SampleRate, pause) * first.Channels

	total := 0
	for i, s := range segs {
		if !first.sameFormat(s) {
			return nil, fmt.Errorf("audio: segment %d is %dHz/%dch, expected %dHz/%dch",
				i, s.SampleRate, s.Channels, first.SampleRate, first.Channels)
		}
		total += len(s.Samples)
	}
	total += gap * (len(segs) - 1)

	out := &Segment{SampleRate: first.SampleRate, Channels: first.Channels, Samples: make([]float32, 0, total)}
	for i, s := range segs {
		if i > 0 {
			out.Samples = append(out.Samples, make([]float32, gap)...)
		}
		out.Samples = append(out.Samples, s.Samples...)
	}
	return out, nil
}

// trimWindow is the analysis step for silence detection.
const trimWindow = 0.010

// TrimSilence removes leading and trailing silence. A run counts as silence
// when every 10 ms window in it is quieter than thresholdDB (dBFS, RMS) and
// the run lasts at least minSilence seconds. A segment that is silent
// throughout is returned unchanged.
func (s *Segment) TrimSilence(thresholdDB, minSilence float64) *Segment {
	win := max(framesFor(s.SampleRate, trimWindow), 1)
	frames := s.Frames()
	if frames == 0 {
		return s.Clone()
	}
	windows := (frames + win - 1) / win

	silent := func(w int) bool {
		from := w * win
		to := min(from+win, frames)
		return s.rmsDB(from, to) < thresholdDB
	}

	lead := 0
	for lead < windows && silent(lead) {
		lead++
	}
	if lead == windows {
		return s.Clone()
	}
	trail := 0
	for trail < windows-lead && silent(windows-1-trail) {
		trail++
	}

	minWindows := int(math.Ceil(minSilence/trimWindow - 1e-9))
	start, end := 0, frames
	if lead > 0 && lead >= minWindows {
		start = lead * win
	}
	if trail > 0 && trail >= minWindows {
		end = min((windows-trail)*win, frames)
	}
	return s.slice(start, end)
}

func (s *Segment) rmsDB(fromFrame, toFrame int) float64 {
	samples := s.Samples[fromFrame*s.Channels : toFrame*s.Channels]
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// GainToDB converts a linear volume factor to a decibel delta. Zero and
// negative factors map to MuteDB.
func GainToDB(g float64) float64 {
	if g <= 0 {
		return MuteDB
	}
	return 20 * math.Log10(g)
}

func DBToGain(db float64) float64 {
	if db <= MuteDB {
		return 0
	}
	return math.Pow(10, db/20)
}

// Gain returns a copy scaled by db decibels.
func (s *Segment) Gain(db float64) *Segment {
	out := s.Clone()
	g := float32(DBToGain(db))
	for i := range out.Samples {
		out.Samples[i] *= g
	}
	return out
}

// Overlay adds o into s in place starting at offset seconds. Samples past
// the end of s are dropped; s keeps its length.
func (s *Segment) Overlay(o *Segment, offset float64) error {
	if !s.sameFormat(o) {
		return fmt.Errorf("audio: overlay format %dHz/%dch onto %dHz/%dch",
			o.SampleRate, o.Channels, s.SampleRate, s.Channels)
	}
	start := framesFor(s.SampleRate, offset) * s.Channels
	if start >= len(s.Samples) {
		return nil
	}
	n := min(len(o.Samples), len(s.Samples)-start)
	dst := s.Samples[start : start+n]
	for i, v := range o.Samples[:n] {
		dst[i] += v
	}
	return nil
}

// Loop repeats the whole segment until it covers target seconds. No
// crossfade is applied between repeats. The result is not truncated.
func (s *Segment) Loop(target float64) *Segment {
	frames := s.Frames()
	need := framesFor(s.SampleRate, target)
	if frames == 0 || frames >= need {
		return s.Clone()
	}
	repeats := need/frames + 1
	out := &Segment{SampleRate: s.SampleRate, Channels: s.Channels, Samples: make([]float32, 0, repeats*len(s.Samples))}
	for i := 0; i < repeats; i++ {
		out.Samples = append(out.Samples, s.Samples...)
	}
	return out
}

// Truncate returns at most the first seconds of s.
func (s *Segment) Truncate(seconds float64) *Segment {
	n := min(framesFor(s.SampleRate, seconds), s.Frames())
	return s.slice(0, n)
}

// Pad returns s extended with silence to exactly seconds, or truncated.
func (s *Segment) Pad(seconds float64) *Segment {
	need := framesFor(s.SampleRate, seconds)
	if need <= s.Frames() {
		return s.Truncate(seconds)
	}
	out := s.Clone()
	out.Samples = append(out.Samples, make([]float32, (need-s.Frames())*s.Channels)...)
	return out
}

// Fade returns a copy with linear fade-in and fade-out ramps. When the
// segment is shorter than both ramps together, each ramp is 10% of it.
func (s *Segment) Fade(in, out float64) *Segment {
	res := s.Clone()
	total := s.Duration()
	if total < in+out {
		in, out = total*0.1, total*0.1
	}

	frames := res.Frames()
	inFrames := framesFor(s.SampleRate, in)
	outFrames := framesFor(s.SampleRate, out)

	for f := 0; f < frames; f++ {
		g := 1.0
		if inFrames > 0 && f < inFrames {
			g = float64(f) / float64(inFrames)
		}
		if rem := frames - 1 - f; outFrames > 0 && rem < outFrames {
			g = min(g, float64(rem)/float64(outFrames))
		}
		if g == 1 {
			continue
		}
		for c := 0; c < res.Channels; c++ {
			res.Samples[f*res.Channels+c] *= float32(g)
		}
	}
	return res
}

// Peak returns the largest absolute sample value.
func (s *Segment) Peak() float64 {
	var peak float32
	for _, v := range s.Samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak)
}

// PeakDB is the peak in dBFS, -Inf for silence.
func (s *Segment) PeakDB() float64 {
	p := s.Peak()
	if p == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(p)
}

// Normalize returns a copy whose peak sits headroomDB below full scale.
// Silence is returned unchanged.
func (s *Segment) Normalize(headroomDB float64) *Segment {
	peak := s.Peak()
	if peak == 0 {
		return s.Clone()
	}
	target := DBToGain(-headroomDB)
	return s.Gain(GainToDB(target / peak))
}

// Stats summarises a segment for logs and plan dumps.
type Stats struct {
	Duration   float64 `yaml:"duration"`
	SampleRate int     `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	Frames     int     `yaml:"frames"`
	PeakDBFS   float64 `yaml:"peak_dbfs"`
	RMSDBFS    float64 `yaml:"rms_dbfs"`
}

func (s *Segment) Stats() Stats {
	st := Stats{
		Duration:   s.Duration(),
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		Frames:     s.Frames(),
		PeakDBFS:   MuteDB,
		RMSDBFS:    MuteDB,
	}
	if p := s.PeakDB(); !math.IsInf(p, -1) {
		st.PeakDBFS = p
	}
	if r := s.rmsDB(0, s.Frames()); !math.IsInf(r, -1) {
		st.RMSDBFS = r
	}
	return st
}
