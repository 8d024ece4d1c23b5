package caption

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/img2shorts/internal/failure"
)

// Entry is one script record. Pointer fields distinguish "absent" from zero;
// unknown fields in structured scripts are ignored.
type Entry struct {
	Text              string   `json:"text" yaml:"text"`
	Duration          *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Position          string   `json:"position,omitempty" yaml:"position,omitempty"`
	FontSize          *float64 `json:"font_size,omitempty" yaml:"font_size,omitempty"`
	Color             string   `json:"color,omitempty" yaml:"color,omitempty"`
	StrokeColor       string   `json:"stroke_color,omitempty" yaml:"stroke_color,omitempty"`
	StrokeWidth       *int     `json:"stroke_width,omitempty" yaml:"stroke_width,omitempty"`
	Animation         string   `json:"animation,omitempty" yaml:"animation,omitempty"`
	AnimationDuration *float64 `json:"animation_duration,omitempty" yaml:"animation_duration,omitempty"`
	Transition        string   `json:"transition,omitempty" yaml:"transition,omitempty"`
	Voice             string   `json:"voice,omitempty" yaml:"voice,omitempty"`
}

// ParseScript reads a .txt, .json, .yaml or .yml script file.
func ParseScript(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failure.AssetMissing(path)
		}
		return nil, fmt.Errorf("read script: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	entries, err := ParseScriptData(data, format)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, failure.EmptyInput("script %s has no entries", path)
	}
	return entries, nil
}

// ParseScriptData parses script content of the given format (txt, json, yaml, yml).
func ParseScriptData(data []byte, format string) ([]Entry, error) {
	switch format {
	case "txt", "text":
		return parseText(data), nil
	case "json":
		return parseJSON(data)
	case "yaml", "yml":
		return parseYAML(data)
	}
	return nil, failure.ScriptFormat(nil, "unsupported script format %q", format)
}

// parseText treats each non-empty line as an entry; lines starting with # are comments.
func parseText(data []byte) []Entry {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, Entry{Text: line})
	}
	return entries
}

func parseJSON(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, failure.ScriptFormat(nil, "empty json script")
	}

	switch trimmed[0] {
	case '[':
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, failure.ScriptFormat(err, "invalid json script")
		}
		return entries, nil
	case '{':
		var doc struct {
			Scripts *[]Entry `json:"scripts"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, failure.ScriptFormat(err, "invalid json script")
		}
		if doc.Scripts == nil {
			return nil, failure.ScriptFormat(nil, "json object has no \"scripts\" list")
		}
		return *doc.Scripts, nil
	}
	return nil, failure.ScriptFormat(nil, "json script must be a list or an object with \"scripts\"")
}

func parseYAML(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, failure.ScriptFormat(err, "invalid yaml script")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, failure.ScriptFormat(nil, "empty yaml script")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var entries []Entry
		if err := root.Decode(&entries); err != nil {
			return nil, failure.ScriptFormat(err, "invalid yaml script entries")
		}
		return entries, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value != "scripts" {
				continue
			}
			list := root.Content[i+1]
			if list.Kind != yaml.SequenceNode {
				return nil, failure.ScriptFormat(nil, "yaml \"scripts\" must be a list")
			}
			var entries []Entry
			if err := list.Decode(&entries); err != nil {
				return nil, failure.ScriptFormat(err, "invalid yaml script entries")
			}
			return entries, nil
		}
		return nil, failure.ScriptFormat(nil, "yaml mapping has no \"scripts\" list")
	}
	return nil, failure.ScriptFormat(nil, "yaml script must be a list or a mapping with \"scripts\"")
}
