// Package seed loads development fixtures for the mock service from JSON or
// YAML files.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Relation seeds one outgoing edge of a document.
type Relation struct {
	Kind       string `json:"kind" yaml:"kind"`
	Collection string `json:"collection" yaml:"collection"`
	Key        string `json:"key" yaml:"key"`
}

// Entry seeds one document and its outgoing edges.
type Entry struct {
	Collection string         `json:"collection" yaml:"collection"`
	Key        string         `json:"key" yaml:"key"`
	Value      map[string]any `json:"value" yaml:"value"`
	Relations  []Relation     `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Load reads seed entries from the given file, parsed as YAML for .yaml and
// .yml extensions and JSON otherwise.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("seed: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("seed: parse %s: %w", path, err)
		}
	}

	for i, e := range entries {
		if strings.TrimSpace(e.Collection) == "" || strings.TrimSpace(e.Key) == "" {
			return nil, fmt.Errorf("seed: entry %d is missing collection or key", i)
		}
	}
	return entries, nil
}
