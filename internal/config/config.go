// Package config loads tabsync preferences and the local device settings.
//
// Preferences (store DSN, ignore list, sync interval, tab source) come
// from tabsync.yaml, TABSYNC_* environment variables and command line
// flags, in increasing order of precedence. The device name is kept apart
// in settings.toml: it identifies this machine and must never be copied
// to another device along with the shared preferences.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Preferences are the shared, copyable settings of a tabsync install.
type Preferences struct {
	DSN          string        `mapstructure:"dsn"`
	IgnoredURLs  []string      `mapstructure:"-"`
	Interval     time.Duration `mapstructure:"interval"`
	Debounce     time.Duration `mapstructure:"debounce"`
	Source       string        `mapstructure:"source"`
	SnapshotFile string        `mapstructure:"snapshot_file"`
	DevToolsURL  string        `mapstructure:"devtools_url"`
	Listen       string        `mapstructure:"listen"`
	LogFile      string        `mapstructure:"log_file"`
	LogMaxSizeMB int           `mapstructure:"log_max_size_mb"`
}

// Dir returns the directory holding tabsync's configuration and local
// database. TABSYNC_HOME overrides the platform default.
func Dir() (string, error) {
	if dir := os.Getenv("TABSYNC_HOME"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "tabsync"), nil
}

// DefaultConfigPath returns the preferences file location.
func DefaultConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tabsync.yaml"), nil
}

// Defaults returns the preferences used when nothing is configured.
func Defaults() (Preferences, error) {
	dir, err := Dir()
	if err != nil {
		return Preferences{}, err
	}
	return Preferences{
		DSN:          filepath.Join(dir, "tabs.db"),
		Interval:     5 * time.Minute,
		Debounce:     500 * time.Millisecond,
		Source:       "file",
		SnapshotFile: filepath.Join(dir, "snapshot.yaml"),
		DevToolsURL:  "http://127.0.0.1:9222",
		Listen:       "127.0.0.1:8787",
		LogMaxSizeMB: 10,
	}, nil
}

// NewViper returns a viper instance carrying defaults, the preferences file
// at path (if it exists) and TABSYNC_* environment overrides. Callers bind
// command line flags to it before calling FromViper.
func NewViper(path string) (*viper.Viper, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	def, err := Defaults()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TABSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("dsn", def.DSN)
	v.SetDefault("ignored_urls", "")
	v.SetDefault("interval", def.Interval)
	v.SetDefault("debounce", def.Debounce)
	v.SetDefault("source", def.Source)
	v.SetDefault("snapshot_file", def.SnapshotFile)
	v.SetDefault("devtools_url", def.DevToolsURL)
	v.SetDefault("listen", def.Listen)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_max_size_mb", def.LogMaxSizeMB)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return v, nil
}

// FromViper decodes and validates preferences.
func FromViper(v *viper.Viper) (Preferences, error) {
	var prefs Preferences
	if err := v.Unmarshal(&prefs); err != nil {
		return Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	prefs.IgnoredURLs = ignoreList(v.Get("ignored_urls"))
	prefs.Source = strings.ToLower(strings.TrimSpace(prefs.Source))
	prefs.DSN = os.ExpandEnv(prefs.DSN)
	prefs.SnapshotFile = os.ExpandEnv(prefs.SnapshotFile)
	prefs.LogFile = os.ExpandEnv(prefs.LogFile)

	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

// Load reads preferences from path without any flag overrides.
func Load(path string) (Preferences, error) {
	v, err := NewViper(path)
	if err != nil {
		return Preferences{}, err
	}
	return FromViper(v)
}

// Validate checks preference values that would otherwise fail late.
func (p Preferences) Validate() error {
	if strings.TrimSpace(p.DSN) == "" {
		return fmt.Errorf("dsn is required")
	}
	if p.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", p.Interval)
	}
	if p.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", p.Debounce)
	}
	switch p.Source {
	case "file":
		if p.SnapshotFile == "" {
			return fmt.Errorf("snapshot_file is required when source is file")
		}
	case "devtools":
	default:
		return fmt.Errorf("unsupported source %q", p.Source)
	}
	return nil
}

// ignoreList accepts either the comma-separated form of the preference
// or a YAML list.
func ignoreList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	}

	var out []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
