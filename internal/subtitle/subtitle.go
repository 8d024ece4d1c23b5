// Package subtitle writes caption timelines as SRT or WebVTT sidecars and
// reads them back.
package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ivlev/img2shorts/internal/caption"
)

type Format string

const (
	SRT Format = "srt"
	VTT Format = "vtt"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case SRT:
		return SRT, nil
	case VTT:
		return VTT, nil
	}
	return "", fmt.Errorf("unknown subtitle format %q", s)
}

// Cue is one subtitle entry; times are in milliseconds.
type Cue struct {
	Index   int
	StartMs int64
	EndMs   int64
	Text    string
}

// FromCaptions converts captions to cues, one per caption.
func FromCaptions(captions []caption.Caption) []Cue {
	cues := make([]Cue, len(captions))
	for i, c := range captions {
		cues[i] = Cue{
			Index:   i + 1,
			StartMs: toMillis(c.StartTime),
			EndMs:   toMillis(c.End()),
			Text:    c.Text,
		}
	}
	return cues
}

func toMillis(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

// Timecode formats ms as HH:MM:SS,mmm (SRT) or HH:MM:SS.mmm (VTT).
func Timecode(ms int64, f Format) string {
	if ms < 0 {
		ms = 0
	}
	sep := ","
	if f == VTT {
		sep = "."
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms%1000)
}

// Write renders cues in the given format.
func Write(w io.Writer, cues []Cue, f Format) error {
	bw := bufio.NewWriter(w)
	if f == VTT {
		bw.WriteString("WEBVTT\n\n")
	}
	for i, c := range cues {
		if f == SRT {
			fmt.Fprintf(bw, "%d\n", c.Index)
		}
		fmt.Fprintf(bw, "%s --> %s\n%s\n", Timecode(c.StartMs, f), Timecode(c.EndMs, f), c.Text)
		if i < len(cues)-1 {
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

// WriteFile writes captions as a sidecar file at path.
func WriteFile(path string, captions []caption.Caption, f Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("subtitle: create %s: %w", path, err)
	}
	if err := Write(file, FromCaptions(captions), f); err != nil {
		file.Close()
		return fmt.Errorf("subtitle: write %s: %w", path, err)
	}
	return file.Close()
}

// Parse reads SRT or WebVTT content. Cue identifiers are optional; a block
// is recognised by its "-->" timing line.
func Parse(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	var cues []Cue
	var cur *Cue
	var text []string

	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(text, "\n")
			cur.Index = len(cues) + 1
			cues = append(cues, *cur)
		}
		cur, text = nil, nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
			if strings.HasPrefix(line, "WEBVTT") {
				continue
			}
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if strings.Contains(line, "-->") {
			flush()
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, fmt.Errorf("subtitle: line %d: %w", lineNo, err)
			}
			cur = &Cue{StartMs: start, EndMs: end}
			continue
		}

		if cur != nil {
			text = append(text, line)
		}
		// иначе это номер или идентификатор блока
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return cues, nil
}

func parseTiming(line string) (int64, int64, error) {
	parts := strings.SplitN(line, "-->", 2)
	start, err := ParseTimecode(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// WebVTT допускает настройки после времени окончания
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("missing end time")
	}
	end, err := ParseTimecode(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ParseTimecode accepts HH:MM:SS,mmm, HH:MM:SS.mmm or MM:SS.mmm.
func ParseTimecode(s string) (int64, error) {
	s = strings.Replace(s, ",", ".", 1)
	main, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) != 3 {
		return 0, fmt.Errorf("bad timecode %q", s)
	}
	ms, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad timecode %q: %w", s, err)
	}

	fields := strings.Split(main, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, fmt.Errorf("bad timecode %q", s)
	}
	var total int64
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad timecode %q", s)
		}
		total = total*60 + v
	}
	return total*1000 + ms, nil
}
