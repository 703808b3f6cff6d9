// Package manifest handles gscc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "gscc.toml"

// Manifest represents a gscc.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Target  Target  `toml:"target"`
	Build   Build   `toml:"build"`

	// Dir is the directory containing the gscc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Target selects the VM build the project is linked for.
type Target struct {
	Platform string `toml:"platform"`
	Revision int    `toml:"revision"`

	// Dir holds target definitions and compiled opcode blobs.
	Dir string `toml:"dir"`
}

// Build configures inputs and outputs.
type Build struct {
	// Sources are glob patterns of listings, relative to the manifest.
	Sources []string `toml:"sources"`
	Output  string   `toml:"output"`
	HashDB  string   `toml:"hashdb"`
	Dump    bool     `toml:"dump"`
}

// Load parses a gscc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Build.Sources) == 0 {
		m.Build.Sources = []string{"src/*.yaml"}
	}
	if m.Build.Output == "" {
		m.Build.Output = "build"
	}
	if m.Target.Dir == "" {
		m.Target.Dir = "targets"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a gscc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourcePaths expands the source patterns into sorted, unique absolute
// paths.
func (m *Manifest) SourcePaths() ([]string, error) {
	var paths []string
	for _, pattern := range m.Build.Sources {
		matches, err := filepath.Glob(m.path(pattern))
		if err != nil {
			return nil, fmt.Errorf("source pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// OutputDir returns the absolute output directory.
func (m *Manifest) OutputDir() string { return m.path(m.Build.Output) }

// TargetDir returns the absolute target definition directory.
func (m *Manifest) TargetDir() string { return m.path(m.Target.Dir) }

// HashDBPath returns the absolute path of the hash dictionary, or "" when
// none is configured.
func (m *Manifest) HashDBPath() string {
	if m.Build.HashDB == "" {
		return ""
	}
	return m.path(m.Build.HashDB)
}

// RecordPath returns the path of the build record in the output directory.
func (m *Manifest) RecordPath() string {
	return filepath.Join(m.OutputDir(), RecordFileName)
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
