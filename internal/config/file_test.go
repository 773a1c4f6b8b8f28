package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSetPreferenceCreatesFile(t *testing.T) {
	t.Setenv("TABSYNC_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "sub", "tabsync.yaml")

	if err := SetPreference(path, "ignored_urls", "ads.example.com, localhost"); err != nil {
		t.Fatalf("SetPreference failed: %v", err)
	}

	prefs, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(prefs.IgnoredURLs, []string{"ads.example.com", "localhost"}) {
		t.Errorf("IgnoredURLs = %q", prefs.IgnoredURLs)
	}
}

func TestSetPreferenceKeepsOtherKeys(t *testing.T) {
	t.Setenv("TABSYNC_HOME", t.TempDir())
	path := writeConfig(t, `
dsn: /data/tabs.db
interval: 2m
`)

	if err := SetPreference(path, "ignored_urls", "x.com"); err != nil {
		t.Fatalf("SetPreference failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "/data/tabs.db") {
		t.Errorf("dsn lost:\n%s", data)
	}

	prefs, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if prefs.DSN != "/data/tabs.db" || len(prefs.IgnoredURLs) != 1 {
		t.Errorf("unexpected prefs: %+v", prefs)
	}
}

func TestSetPreferenceRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "dsn: [")
	if err := SetPreference(path, "dsn", "x"); err == nil {
		t.Error("expected parse error")
	}
}
