// Package browser reads the set of currently open tabs from a browser.
//
// Two sources exist: a snapshot file written by a browser extension or
// script, and a running Chromium reached over the DevTools protocol.
// A source that cannot be read returns an error. It never reports an
// empty tab list in place of a failure, since an empty list deletes
// every record the device owns.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

// Source yields the tabs currently open on this device.
type Source interface {
	Tabs(ctx context.Context) ([]schema.Tab, error)
}

// Kind names a source implementation in configuration.
const (
	KindFile     = "file"
	KindDevTools = "devtools"
)

// Config selects and configures a Source.
type Config struct {
	Kind         string
	SnapshotFile string
	DevToolsURL  string
}

// NewSource builds the Source described by cfg.
func NewSource(cfg Config) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindFile:
		if cfg.SnapshotFile == "" {
			return nil, fmt.Errorf("snapshot file is required for the %s source", KindFile)
		}
		return &FileSource{Path: cfg.SnapshotFile}, nil
	case KindDevTools:
		return &DevToolsSource{URL: cfg.DevToolsURL}, nil
	default:
		return nil, fmt.Errorf("unknown tab source %q (want %s or %s)", cfg.Kind, KindFile, KindDevTools)
	}
}

// FileSource reads tabs from a YAML or JSON snapshot file.
type FileSource struct {
	Path string
}

// Tabs reads the snapshot file. A missing or malformed file is an error.
func (s *FileSource) Tabs(ctx context.Context) ([]schema.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := schema.ReadSnapshotFile(s.Path)
	if err != nil {
		return nil, err
	}
	return snap.Tabs, nil
}

func (s *FileSource) String() string {
	return "file:" + s.Path
}
