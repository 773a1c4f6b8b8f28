package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/turso/dashboard"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "view",
	Short:   "Serve the synced tab list over HTTP",
	Long: `Serve a small JSON API over the shared store. It does not sync; run
'tabsync daemon --serve' to do both.

Endpoints:
  GET    /api/tabs[?device=NAME]   tabs grouped by device
  DELETE /api/tabs/{id}            remove one tab record, whichever device owns it
  GET    /api/devices              tab count per device
  GET    /health                   liveness check

Example:
  tabsync serve --listen 127.0.0.1:9000
  curl http://127.0.0.1:9000/api/tabs`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		database, err := app.openStore(ctx)
		if err != nil {
			fatalf("failed to open store: %v", err)
		}
		defer database.Close()

		server := dashboard.NewServer(database, &dashboard.Config{
			Addr:   app.prefs.Listen,
			Device: app.deviceName(),
			Logger: app.logger("dashboard"),
		})
		if err := server.Start(); err != nil {
			fatalf("failed to start server: %v", err)
		}

		fmt.Printf("Serving tabs on http://%s/api/tabs\n", server.GetAddr())
		fmt.Printf("Health check: http://%s/health\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fatalf("error during shutdown: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default from config: 127.0.0.1:8787)")
	rootCmd.AddCommand(serveCmd)
}
