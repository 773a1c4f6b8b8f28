package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/browser"
	"github.com/tabsync/tabsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show store location, device name and tab counts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database, err := app.openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer database.Close()

		counts, err := database.CountByDevice(ctx)
		if err != nil {
			fatalf("counting tabs: %v", err)
		}

		kind := "local"
		if database.IsRemote() {
			kind = "remote"
		}

		device := app.deviceName()
		if device == "" {
			device = "(not set, run 'tabsync settings')"
		}

		fmt.Printf("\nStore:   %s (%s)\n", database.Location(), kind)
		fmt.Printf("Device:  %s\n", device)
		fmt.Printf("Source:  %s\n", sourceDescription())
		if len(app.prefs.IgnoredURLs) > 0 {
			fmt.Printf("Ignored: %v\n", app.prefs.IgnoredURLs)
		}
		fmt.Printf("\nTabs by device:\n")
		ui.RenderCounts(cmdOut(cmd), counts, app.deviceName())
		fmt.Println()
	},
}

func sourceDescription() string {
	switch app.prefs.Source {
	case browser.KindDevTools:
		return "devtools " + app.prefs.DevToolsURL
	default:
		return "file " + app.prefs.SnapshotFile
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
