package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/turso/schema"
	"github.com/tabsync/tabsync/internal/ui"
)

var tabsCmd = &cobra.Command{
	Use:     "tabs",
	GroupID: "view",
	Short:   "List or delete synced tabs",
}

var tabsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tabs from all devices",
	Long: `List synced tabs grouped by device, most recently updated first.

Examples:
  tabsync tabs list
  tabsync tabs list --device Phone
  tabsync tabs list --since "2 hours ago"
  tabsync tabs list --since 30m --json`,
	Run: func(cmd *cobra.Command, args []string) {
		device, _ := cmd.Flags().GetString("device")
		sinceText, _ := cmd.Flags().GetString("since")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		ctx := cmd.Context()

		var since time.Time
		if sinceText != "" {
			t, err := parseSince(sinceText, time.Now())
			if err != nil {
				fatalf("%v", err)
			}
			since = t
		}

		database, err := app.openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer database.Close()

		var records []*schema.TabRecord
		if device != "" {
			records, err = database.ListByDevice(ctx, device)
		} else {
			records, err = database.ListAll(ctx)
		}
		if err != nil {
			fatalf("listing tabs: %v", err)
		}

		groups := schema.GroupByDevice(filterSince(records, since))

		if jsonOutput {
			if groups == nil {
				groups = []schema.DeviceGroup{}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(groups); err != nil {
				fatalf("encoding JSON: %v", err)
			}
			return
		}

		ui.RenderGroups(cmdOut(cmd), groups, app.deviceName(), time.Now())
	},
}

var tabsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete one synced tab by id",
	Long: `Delete a single tab record, whichever device owns it.

If the tab is still open on its device, the next sync there adds it back.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			fatalf("invalid tab id %q", args[0])
		}

		ctx := cmd.Context()
		database, err := app.openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer database.Close()

		deleted, err := database.DeleteByID(ctx, id)
		if err != nil {
			fatalf("deleting tab: %v", err)
		}
		if !deleted {
			fatalf("tab %d not found", id)
		}
		fmt.Println(ui.Success(fmt.Sprintf("Deleted tab %d", id)))
	},
}

// parseSince accepts a Go duration ("90m") or a natural-language time
// ("2 hours ago", "yesterday") relative to now.
func parseSince(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if d, err := time.ParseDuration(text); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse --since %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not parse --since %q", text)
	}
	return r.Time, nil
}

// filterSince keeps records updated at or after since. A zero since keeps all.
func filterSince(records []*schema.TabRecord, since time.Time) []*schema.TabRecord {
	if since.IsZero() {
		return records
	}
	out := make([]*schema.TabRecord, 0, len(records))
	for _, rec := range records {
		if !rec.LastUpdated.Before(since) {
			out = append(out, rec)
		}
	}
	return out
}

func cmdOut(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func init() {
	tabsListCmd.Flags().String("device", "", "Only show tabs owned by this device")
	tabsListCmd.Flags().String("since", "", `Only show tabs updated since this time ("2 hours ago", "45m")`)
	tabsListCmd.Flags().Bool("json", false, "Output as JSON")

	tabsCmd.AddCommand(tabsListCmd)
	tabsCmd.AddCommand(tabsRmCmd)
	rootCmd.AddCommand(tabsCmd)
}
