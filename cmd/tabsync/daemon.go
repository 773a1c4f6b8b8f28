package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/browser"
	"github.com/tabsync/tabsync/internal/turso/daemon"
	"github.com/tabsync/tabsync/internal/turso/dashboard"
	tabsync "github.com/tabsync/tabsync/internal/turso/sync"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Keep publishing this device's tabs in the background",
	Long: `Run the sync loop in the foreground until interrupted.

A sync runs when the daemon starts, every --interval, and (with the file
source) shortly after the snapshot file changes. Runs never overlap. A failed
run is logged and retried on the next trigger.

With --serve the tab list API is served on --listen as well, including
GET /api/status with the daemon's run history.

Examples:
  tabsync daemon
  tabsync daemon --interval 1m --serve
  tabsync daemon --source devtools --devtools-url http://127.0.0.1:9222`,
	Run: func(cmd *cobra.Command, args []string) {
		serve, _ := cmd.Flags().GetBool("serve")

		device := app.deviceName()
		if device == "" {
			fatalf("%v; run 'tabsync settings' first", tabsync.ErrNoDeviceName)
		}

		src, err := app.source()
		if err != nil {
			fatalf("%v", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		database, err := app.openStore(ctx)
		if err != nil {
			fatalf("failed to open store: %v", err)
		}
		defer database.Close()

		cfg := &daemon.Config{
			Interval:         app.prefs.Interval,
			DebounceInterval: app.prefs.Debounce,
			Logger:           app.logger("daemon"),
		}
		if app.prefs.Source == browser.KindFile || app.prefs.Source == "" {
			cfg.WatchFile = app.prefs.SnapshotFile
		}

		reconciler := tabsync.New(database, app.prefs.IgnoredURLs, app.logger("sync"))
		d, err := daemon.New(reconciler, src, device, cfg)
		if err != nil {
			fatalf("%v", err)
		}

		if serve {
			server := dashboard.NewServer(database, &dashboard.Config{
				Addr:   app.prefs.Listen,
				Device: device,
				Status: func() any { return d.Status() },
				Logger: app.logger("dashboard"),
			})
			if err := server.Start(); err != nil {
				fatalf("failed to start server: %v", err)
			}
			defer server.Stop()
			fmt.Printf("Tab API on http://%s/api/tabs\n", server.GetAddr())
		}

		fmt.Printf("Syncing tabs for %s every %s (source: %s)\n", device, app.prefs.Interval, sourceDescription())
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil && ctx.Err() == nil {
			fatalf("%v", err)
		}

		st := d.Status()
		fmt.Printf("\nDaemon stopped after %d run(s), %d failed\n", st.Runs, st.Failures)
	},
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "Time between syncs (default from config: 5m)")
	daemonCmd.Flags().Bool("serve", false, "Also serve the tab list API")
	daemonCmd.Flags().String("listen", "", "Address for --serve (default from config: 127.0.0.1:8787)")
	rootCmd.AddCommand(daemonCmd)
}

