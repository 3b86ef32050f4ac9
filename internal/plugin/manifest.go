package plugin

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pwerr "gopwn/internal/errors"
)

// Manifest describes an exec plugin:
//
//	name: gps
//	version: 1.0.0
//	program: ./gps-hook          # run directly, relative to the manifest
//	command: "logger -t gopwn"   # or through /bin/sh -c
//	hooks: [loaded, handshake]   # empty: every event
//	timeout: 5s
type Manifest struct {
	Name    string        `yaml:"name"`
	Version string        `yaml:"version"`
	Enabled *bool         `yaml:"enabled"`
	Program string        `yaml:"program"`
	Command string        `yaml:"command"`
	Hooks   []string      `yaml:"hooks"`
	Timeout time.Duration `yaml:"timeout"`
	Env     []string      `yaml:"env"`
}

// LoadManifest reads and validates the manifest at path.  A relative
// program is resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if strings.TrimSpace(m.Name) == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	if m.Program == "" && m.Command == "" {
		return nil, fmt.Errorf("%s: %w", path, pwerr.ErrNoManifest)
	}
	if m.Program != "" && !filepath.IsAbs(m.Program) {
		m.Program = filepath.Join(filepath.Dir(path), m.Program)
	}
	return &m, nil
}

// IsEnabled reports whether the manifest asks to be loaded.  Absent
// means enabled.
func (m *Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
