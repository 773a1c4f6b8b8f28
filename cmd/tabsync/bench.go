package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/turso/loadtest"
	"github.com/tabsync/tabsync/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "maint",
	Short:   "Simulate many devices syncing against one store",
	Long: `Simulate devices that reconcile overlapping tab snapshots concurrently,
then check the store: no URL stored twice, no record left for a closed tab,
and no open tab without a record.

The simulation uses a throwaway SQLite file unless --db is given. Never point
--db at a store holding real tabs; the simulated devices delete rows they own
and claim free URLs.

Examples:
  tabsync bench
  tabsync bench --devices 50 --tabs 40 --rounds 10
  tabsync bench --json`,
	Run: func(cmd *cobra.Command, args []string) {
		sc := loadtest.DefaultScenario()
		sc.Devices, _ = cmd.Flags().GetInt("devices")
		sc.TabsPerDevice, _ = cmd.Flags().GetInt("tabs")
		sc.Rounds, _ = cmd.Flags().GetInt("rounds")
		sc.SharedFraction, _ = cmd.Flags().GetFloat64("shared")
		sc.Churn, _ = cmd.Flags().GetFloat64("churn")
		sc.Seed, _ = cmd.Flags().GetInt64("seed")
		dsn, _ := cmd.Flags().GetString("db")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if sc.Devices <= 0 || sc.TabsPerDevice <= 0 || sc.Rounds <= 0 {
			fatalf("--devices, --tabs and --rounds must be positive")
		}
		if sc.SharedFraction < 0 || sc.SharedFraction > 1 || sc.Churn < 0 || sc.Churn > 1 {
			fatalf("--shared and --churn must be between 0.0 and 1.0")
		}

		if dsn == "" {
			dir, err := os.MkdirTemp("", "tabsync-bench-")
			if err != nil {
				fatalf("%v", err)
			}
			defer os.RemoveAll(dir)
			dsn = filepath.Join(dir, "bench.db")
		}

		store, err := loadtest.CreateTestStore(dsn, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()

		if !jsonOutput {
			fmt.Printf("Simulating %d devices x %d tabs, %d rounds (%.0f%% shared, %.0f%% churn)\n\n",
				sc.Devices, sc.TabsPerDevice, sc.Rounds, sc.SharedFraction*100, sc.Churn*100)
		}

		start := time.Now()
		report, err := store.Run(cmd.Context(), sc)
		if err != nil {
			fatalf("%v", err)
		}
		elapsed := time.Since(start)
		invErr := loadtest.CheckInvariants(cmd.Context(), store.DB, report.Final)

		if jsonOutput {
			outputBenchJSON(sc, report, elapsed, invErr)
		} else {
			report.Stats.PrintStats(os.Stdout)
			fmt.Printf("\nTotal time: %v\n", elapsed.Round(time.Millisecond))
			if invErr != nil {
				fmt.Println(ui.Failure("Store invariants violated:"))
				fmt.Println(invErr)
			} else {
				fmt.Println(ui.Success("Store invariants hold"))
			}
		}

		if invErr != nil || report.Stats.Errors > 0 {
			os.Exit(1)
		}
	},
}

func outputBenchJSON(sc loadtest.Scenario, report *loadtest.Report, elapsed time.Duration, invErr error) {
	s := report.Stats
	output := map[string]interface{}{
		"scenario": map[string]interface{}{
			"devices": sc.Devices,
			"tabs":    sc.TabsPerDevice,
			"rounds":  sc.Rounds,
			"shared":  sc.SharedFraction,
			"churn":   sc.Churn,
			"seed":    sc.Seed,
		},
		"latency": map[string]interface{}{
			"min_ms":  s.Min.Milliseconds(),
			"p50_ms":  s.P50.Milliseconds(),
			"mean_ms": s.Mean.Milliseconds(),
			"p95_ms":  s.P95.Milliseconds(),
			"p99_ms":  s.P99.Milliseconds(),
			"max_ms":  s.Max.Milliseconds(),
		},
		"runs":        s.TotalRuns,
		"errors":      s.Errors,
		"conflicts":   s.Conflicts,
		"duration_ms": elapsed.Milliseconds(),
		"invariants":  errString(invErr),
		"success":     invErr == nil && s.Errors == 0,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fatalf("encoding JSON: %v", err)
	}
}

func init() {
	def := loadtest.DefaultScenario()
	benchCmd.Flags().Int("devices", def.Devices, "Number of simulated devices")
	benchCmd.Flags().Int("tabs", def.TabsPerDevice, "Open tabs per device")
	benchCmd.Flags().Int("rounds", def.Rounds, "Syncs per device")
	benchCmd.Flags().Float64("shared", def.SharedFraction, "Share of each device's tabs drawn from a common pool (0.0-1.0)")
	benchCmd.Flags().Float64("churn", def.Churn, "Share of tabs replaced between rounds (0.0-1.0)")
	benchCmd.Flags().Int64("seed", def.Seed, "Random seed")
	benchCmd.Flags().String("db", "", "Store to simulate against (default: a temporary SQLite file)")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}
