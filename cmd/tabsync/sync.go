package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/browser"
	"github.com/tabsync/tabsync/internal/turso/schema"
	tabsync "github.com/tabsync/tabsync/internal/turso/sync"
	"github.com/tabsync/tabsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Publish this device's open tabs once",
	Long: `Read the open tabs from the configured source and reconcile them with the
shared store:

  1. Records this device owns for tabs that are no longer open are deleted
  2. New URLs are claimed by this device
  3. URLs this device already owns get their title and favicon refreshed
  4. URLs owned by another device are left untouched

The command fails without touching the store when no device name is set or
the tab source cannot be read.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			app.prefs.Source = browser.KindFile
			app.prefs.SnapshotFile = path
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		res, err := runSync(ctx)

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(syncOutput{Result: res, Error: errString(err)})
		} else {
			printSyncResult(res, err)
		}
		if err != nil {
			os.Exit(1)
		}
	},
}

type syncOutput struct {
	Result *tabsync.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// runSync performs one reconciliation with the configured source and store.
func runSync(ctx context.Context) (*tabsync.Result, error) {
	device := app.deviceName()
	if device == "" {
		return nil, &tabsync.RunError{Kind: tabsync.KindPrecondition, Op: "validate", Err: tabsync.ErrNoDeviceName}
	}

	src, err := app.source()
	if err != nil {
		return nil, err
	}
	tabs, err := readTabs(ctx, src)
	if err != nil {
		return nil, err
	}

	database, err := app.openStore(ctx)
	if err != nil {
		return nil, &tabsync.RunError{Kind: tabsync.KindConnectivity, Op: "open", Err: err}
	}
	defer database.Close()

	r := tabsync.New(database, app.prefs.IgnoredURLs, app.logger("sync"))
	return r.Run(ctx, device, tabs)
}

// readTabs reads the snapshot. A failed read is a precondition failure:
// the store has not been touched yet.
func readTabs(ctx context.Context, src browser.Source) ([]schema.Tab, error) {
	tabs, err := src.Tabs(ctx)
	if err != nil {
		return nil, &tabsync.RunError{Kind: tabsync.KindPrecondition, Op: "read", Err: err}
	}
	return tabs, nil
}

func printSyncResult(res *tabsync.Result, err error) {
	if res != nil && err == nil {
		fmt.Println(ui.Success(res.String()))
		return
	}

	switch {
	case errors.Is(err, tabsync.ErrNoDeviceName):
		fmt.Println(ui.Failure("No device name set. Run 'tabsync settings' first."))
	case tabsync.IsKind(err, tabsync.KindPrecondition):
		fmt.Println(ui.Failure(fmt.Sprintf("Could not read open tabs, store left untouched: %v", err)))
	case tabsync.IsKind(err, tabsync.KindConnectivity):
		fmt.Println(ui.Failure(fmt.Sprintf("Could not reach the tab store: %v", err)))
	case tabsync.IsKind(err, tabsync.KindConstraint):
		var conflict *tabsync.ConflictError
		if errors.As(err, &conflict) {
			fmt.Println(ui.Failure(fmt.Sprintf("%d tab(s) were claimed by another device during this sync:", len(conflict.URLs))))
			for _, url := range conflict.URLs {
				fmt.Printf("   %s\n", url)
			}
		}
	default:
		fmt.Println(ui.Failure(fmt.Sprintf("Sync failed: %v", err)))
	}

	if res != nil && res.Device != "" {
		fmt.Printf("   Partial result: %s\n", res)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func init() {
	syncCmd.Flags().String("file", "", "Read tabs from this snapshot file instead of the configured source")
	syncCmd.Flags().Bool("json", false, "Output the run result as JSON")
	rootCmd.AddCommand(syncCmd)
}
