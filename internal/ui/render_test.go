package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

func TestRenderGroups(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	groups := schema.GroupByDevice([]*schema.TabRecord{
		{ID: 2, URL: "https://b.com", DeviceName: "Phone", LastUpdated: now.Add(-2 * time.Hour)},
		{ID: 1, URL: "https://a.com", Title: "A site", DeviceName: "Laptop", LastUpdated: now.Add(-5 * time.Minute)},
	})

	var buf bytes.Buffer
	RenderGroups(&buf, groups, "Laptop", now)
	out := buf.String()

	for _, want := range []string{
		"Laptop (1)", "this device", "#1", "A site", "https://a.com", "5m ago",
		"Phone (1)", "#2", "https://b.com", "2h ago",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Laptop") > strings.Index(out, "Phone") {
		t.Errorf("groups not sorted by device:\n%s", out)
	}
}

func TestRenderGroupsEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderGroups(&buf, nil, "Laptop", time.Now())
	if !strings.Contains(buf.String(), "No synced tabs") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRenderCounts(t *testing.T) {
	var buf bytes.Buffer
	RenderCounts(&buf, map[string]int{"Phone": 2, "Laptop": 3}, "")
	out := buf.String()

	if !strings.Contains(out, "total") || !strings.Contains(out, "5") {
		t.Errorf("missing total:\n%s", out)
	}
	if strings.Index(out, "Laptop") > strings.Index(out, "Phone") {
		t.Errorf("devices not sorted:\n%s", out)
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-59 * time.Minute), "59m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		if got := Age(now, tt.t); got != tt.want {
			t.Errorf("Age(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestDisableColor(t *testing.T) {
	DisableColor()
	if got := Success("done"); strings.Contains(got, "\x1b[") {
		t.Errorf("Success() kept escape codes: %q", got)
	}
	if got := Failure("broken"); !strings.Contains(got, "broken") || strings.Contains(got, "\x1b[") {
		t.Errorf("Failure() = %q", got)
	}
}
