// Command tabsync keeps the open tabs of all your devices in one shared store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tabsync",
	Short: "Sync open browser tabs across devices",
	Long: `tabsync publishes this device's open browser tabs to a shared store and
shows the tabs open on your other devices.

Each device only ever creates, updates and deletes the tabs it owns. A URL
already claimed by another device is left alone until that device closes it.

Configuration is read from tabsync.yaml in the config directory, TABSYNC_*
environment variables and flags. The device name is stored separately in
settings.toml and is never shared; set it with 'tabsync settings'.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		app.close()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "view", Title: "Viewing Tabs:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to tabsync.yaml (default: <config dir>/tabsync/tabsync.yaml)")
	pf.String("dsn", "", "Store location: a SQLite file path or a libsql:// Turso URL")
	pf.String("ignored-urls", "", "Comma-separated URL substrings that are never synced")
	pf.String("source", "", "Tab source: file or devtools")
	pf.String("snapshot-file", "", "Snapshot file read by the file source")
	pf.String("devtools-url", "", "Chromium DevTools endpoint read by the devtools source")
	pf.String("log-file", "", "Also write logs to this file, rotated by size")
	pf.Bool("no-color", false, "Disable colored output (also honoured: NO_COLOR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
