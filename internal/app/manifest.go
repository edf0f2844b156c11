package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/prune"
)

// Manifest lists the sources to register, in registration order.
type Manifest struct {
	ChunkSize int           `yaml:"chunk_size"`
	Sources   []SourceEntry `yaml:"sources"`
}

// SourceEntry is one file, or a glob of files, in the manifest.
type SourceEntry struct {
	Name   string       `yaml:"name"`
	Path   string       `yaml:"path"`
	Filter *FilterEntry `yaml:"filter"`
	Window *WindowEntry `yaml:"window"`
}

// FilterEntry is a row-group filter: op is none, before or after.
type FilterEntry struct {
	Op string `yaml:"op"`
	Ts uint64 `yaml:"ts"`
}

// WindowEntry is an inclusive ts_init trim.
type WindowEntry struct {
	Start uint64  `yaml:"start"`
	End   *uint64 `yaml:"end"`
}

// LoadManifest reads and validates a YAML source manifest. Relative paths resolve
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.applyDefaults(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults(baseDir string) error {
	var out []SourceEntry
	for _, s := range m.Sources {
		if s.Path != "" && !filepath.IsAbs(s.Path) {
			s.Path = filepath.Join(baseDir, s.Path)
		}
		if !strings.ContainsAny(s.Path, "*?[") {
			if s.Name == "" {
				s.Name = baseName(s.Path)
			}
			out = append(out, s)
			continue
		}
		matches, err := filepath.Glob(s.Path)
		if err != nil {
			return fmt.Errorf("source %q: %w", s.Path, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("source %q: no files match", s.Path)
		}
		sort.Strings(matches)
		for _, p := range matches {
			e := s
			e.Path = p
			e.Name = baseName(p)
			if s.Name != "" {
				e.Name = s.Name + "/" + e.Name
			}
			out = append(out, e)
		}
	}
	m.Sources = out
	return nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (m *Manifest) validate() error {
	if m.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must not be negative, got %d", m.ChunkSize)
	}
	if len(m.Sources) == 0 {
		return fmt.Errorf("manifest has no sources")
	}
	seen := make(map[string]bool, len(m.Sources))
	for i, s := range m.Sources {
		if s.Path == "" {
			return fmt.Errorf("sources[%d]: path is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Filter != nil {
			if _, err := prune.ParseFilter(s.Filter.Op, s.Filter.Ts); err != nil {
				return fmt.Errorf("sources[%d] %s: %w", i, s.Name, err)
			}
		}
		if w := s.Window; w != nil && w.End != nil && w.Start > *w.End {
			return fmt.Errorf("sources[%d] %s: window start %d after end %d", i, s.Name, w.Start, *w.End)
		}
	}
	return nil
}

// Specs converts the manifest into catalog registrations. def is used for sources
// without a window of their own.
func (m *Manifest) Specs(def *catalog.Window) []catalog.SourceSpec {
	specs := make([]catalog.SourceSpec, len(m.Sources))
	for i, s := range m.Sources {
		q := catalog.Query{Window: def}
		if s.Filter != nil {
			q.Filter, _ = prune.ParseFilter(s.Filter.Op, s.Filter.Ts)
		}
		if s.Window != nil {
			w := &catalog.Window{Start: s.Window.Start, End: ^uint64(0)}
			if s.Window.End != nil {
				w.End = *s.Window.End
			}
			q.Window = w
		}
		specs[i] = catalog.SourceSpec{Name: s.Name, Path: s.Path, Query: q}
	}
	return specs
}
