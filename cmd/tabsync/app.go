package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/browser"
	"github.com/tabsync/tabsync/internal/config"
	"github.com/tabsync/tabsync/internal/turso/db"
	"github.com/tabsync/tabsync/internal/ui"
)

// appState is what every command needs after flags are parsed.
type appState struct {
	configPath   string
	prefs        config.Preferences
	settingsPath string
	settings     *config.LocalSettings

	logOut    io.Writer
	logCloser io.Closer
}

var app appState

// flagKeys maps preference keys to the flags that override them.
var flagKeys = map[string]string{
	"dsn":           "dsn",
	"ignored_urls":  "ignored-urls",
	"source":        "source",
	"snapshot_file": "snapshot-file",
	"devtools_url":  "devtools-url",
	"log_file":      "log-file",
	"interval":      "interval",
	"listen":        "listen",
}

func loadApp(cmd *cobra.Command, args []string) error {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor || os.Getenv("NO_COLOR") != "" {
		ui.DisableColor()
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	v, err := config.NewViper(configPath)
	if err != nil {
		return err
	}
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}

	prefs, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	settingsPath, err := config.DefaultSettingsPath()
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}

	out, closer := prefs.LogOutput()
	app = appState{
		configPath:   configPath,
		prefs:        prefs,
		settingsPath: settingsPath,
		settings:     settings,
		logOut:       out,
		logCloser:    closer,
	}
	return nil
}

func (a *appState) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func (a *appState) logger(component string) *log.Logger {
	out := a.logOut
	if out == nil {
		out = os.Stderr
	}
	return config.NewLogger(out, component)
}

// openStore opens the configured store and ensures its schema.
func (a *appState) openStore(ctx context.Context) (*db.DB, error) {
	database, err := db.Open(a.prefs.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func (a *appState) source() (browser.Source, error) {
	return browser.NewSource(browser.Config{
		Kind:         a.prefs.Source,
		SnapshotFile: a.prefs.SnapshotFile,
		DevToolsURL:  a.prefs.DevToolsURL,
	})
}

// deviceName returns the trimmed device name, or "" when unset.
func (a *appState) deviceName() string {
	if a.settings == nil {
		return ""
	}
	return strings.TrimSpace(a.settings.DeviceName)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
