// Package schema provides the data structures shared by the tab store,
// the reconciler and the snapshot sources.
package schema

import (
	"fmt"
	"sort"
	"time"
)

// Tab is one entry of a device's tab snapshot, as reported by a browser.
// Only URL is required; Title and Favicon may be empty.
type Tab struct {
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Favicon string `json:"favicon,omitempty" yaml:"favicon,omitempty"`
}

// TabRecord is one row of the shared store: a single open tab claimed by
// exactly one device.
type TabRecord struct {
	// ===== Identity =====
	ID  int64  `json:"id"`  // Assigned by the store, never changes
	URL string `json:"url"` // Unique across the whole store

	// ===== Display =====
	Title   string `json:"title,omitempty"`
	Favicon string `json:"favicon,omitempty"`

	// ===== Ownership =====
	DeviceName string `json:"device_name"`

	// Used for presentation ordering only.
	LastUpdated time.Time `json:"last_updated"`
}

// Validate checks the fields the store requires.
func (r *TabRecord) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	if r.DeviceName == "" {
		return fmt.Errorf("device_name is required")
	}
	return nil
}

// DisplayTitle returns the title, or the URL when the browser reported none.
func (r *TabRecord) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.URL
}

// DeviceGroup is the set of records owned by one device.
type DeviceGroup struct {
	DeviceName string       `json:"device_name"`
	Tabs       []*TabRecord `json:"tabs"`
}

// GroupByDevice groups records by owning device. Groups are sorted by
// device name; inside a group records keep their input order, so a list
// read most-recent-first stays most-recent-first.
func GroupByDevice(records []*TabRecord) []DeviceGroup {
	index := make(map[string]int)
	var groups []DeviceGroup

	for _, rec := range records {
		i, ok := index[rec.DeviceName]
		if !ok {
			i = len(groups)
			index[rec.DeviceName] = i
			groups = append(groups, DeviceGroup{DeviceName: rec.DeviceName})
		}
		groups[i].Tabs = append(groups[i].Tabs, rec)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].DeviceName < groups[b].DeviceName
	})
	return groups
}

// Devices returns the sorted distinct device names found in records.
func Devices(records []*TabRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		if seen[rec.DeviceName] {
			continue
		}
		seen[rec.DeviceName] = true
		names = append(names, rec.DeviceName)
	}
	sort.Strings(names)
	return names
}
