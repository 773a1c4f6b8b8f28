package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk form of a device's open tabs. YAML is a superset
// of JSON, so browser extensions may write either.
//
// Example:
//
//	captured_at: 2026-01-10T07:36:29Z
//	tabs:
//	  - url: https://go.dev/doc
//	    title: Documentation
type Snapshot struct {
	CapturedAt string `yaml:"captured_at,omitempty" json:"captured_at,omitempty"`
	Tabs       []Tab  `yaml:"tabs" json:"tabs"`
}

// ErrNoTabsKey is returned for a snapshot file that is empty or has no
// tabs key. Only an explicit "tabs: []" means zero open tabs.
var ErrNoTabsKey = errors.New("snapshot has no tabs key")

// snapshotFile tells a missing or null tabs key apart from an empty list.
type snapshotFile struct {
	CapturedAt string `yaml:"captured_at"`
	Tabs       *[]Tab `yaml:"tabs"`
}

// ReadSnapshotFile reads and parses a snapshot file.
// A missing, empty or truncated file is an error: an unreadable snapshot
// must never be mistaken for a device with zero open tabs.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", path, err)
	}

	var raw snapshotFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", path, err)
	}
	if raw.Tabs == nil {
		return nil, fmt.Errorf("invalid snapshot file %s: %w", path, ErrNoTabsKey)
	}

	snap := &Snapshot{CapturedAt: raw.CapturedAt, Tabs: *raw.Tabs}
	if snap.Tabs == nil {
		snap.Tabs = []Tab{}
	}
	return snap, nil
}

// WriteSnapshotFile writes a snapshot to path, creating the parent directory.
func WriteSnapshotFile(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	out := *snap
	if out.Tabs == nil {
		out.Tabs = []Tab{}
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file %s: %w", path, err)
	}
	return nil
}
