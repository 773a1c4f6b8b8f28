package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrDeviceNameRequired is returned when a device name is empty after trimming.
var ErrDeviceNameRequired = errors.New("device name is required")

// LocalSettings is per-machine state that is never synced.
type LocalSettings struct {
	DeviceName string `toml:"device_name"`
}

// DefaultSettingsPath returns the location of settings.toml.
func DefaultSettingsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// LoadSettings reads settings from path. A missing file yields empty
// settings; the caller decides whether an unset device name is fatal.
func LoadSettings(path string) (*LocalSettings, error) {
	var s LocalSettings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &LocalSettings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	s.DeviceName = strings.TrimSpace(s.DeviceName)
	return &s, nil
}

// SetDeviceName trims name and stores it. Empty names are rejected and
// leave the settings unchanged.
func (s *LocalSettings) SetDeviceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrDeviceNameRequired
	}
	s.DeviceName = name
	return nil
}

// RequireDeviceName returns the configured device name or
// ErrDeviceNameRequired.
func (s *LocalSettings) RequireDeviceName() (string, error) {
	name := strings.TrimSpace(s.DeviceName)
	if name == "" {
		return "", fmt.Errorf("%w: run 'tabsync settings' first", ErrDeviceNameRequired)
	}
	return name, nil
}

// Save writes settings to path with owner-only permissions.
func (s *LocalSettings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open settings %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return f.Close()
}
