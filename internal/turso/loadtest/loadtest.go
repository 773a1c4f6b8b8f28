// Package loadtest simulates many devices reconciling against one store.
//
// Devices share a fraction of their URLs, so claims race on the unique url
// constraint and ownership decisions interleave. After the concurrent phase
// CheckInvariants verifies that no URL is duplicated, every record is owned
// by a device that still has the tab open, and every open tab is present.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/tabsync/tabsync/internal/turso/db"
	"github.com/tabsync/tabsync/internal/turso/schema"
	tabsync "github.com/tabsync/tabsync/internal/turso/sync"
)

// Scenario describes one simulation.
type Scenario struct {
	Devices        int
	TabsPerDevice  int
	SharedFraction float64 // share of each device's tabs drawn from a common pool
	Rounds         int     // reconciliations per device
	Churn          float64 // share of tabs replaced between rounds
	Seed           int64
}

// DefaultScenario is small enough for unit tests.
func DefaultScenario() Scenario {
	return Scenario{
		Devices:        8,
		TabsPerDevice:  20,
		SharedFraction: 0.3,
		Rounds:         5,
		Churn:          0.2,
		Seed:           42,
	}
}

// TestStore is a store prepared for load simulation.
type TestStore struct {
	DB     *db.DB
	logger *log.Logger
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min       time.Duration
	Max       time.Duration
	Mean      time.Duration
	P50       time.Duration // Median
	P95       time.Duration
	P99       time.Duration
	TotalRuns int
	Errors    int
	Conflicts int // runs that lost at least one claim race
	Durations []time.Duration
}

// Report is the outcome of a simulation.
type Report struct {
	Stats *LatencyStats
	// Final is each device's last snapshot, the expected end state.
	Final map[string][]schema.Tab
}

// CreateTestStore opens dsn, sizes the pool for concurrent devices and
// ensures the schema. logger may be nil to discard reconciler output.
func CreateTestStore(dsn string, logger *log.Logger) (*TestStore, error) {
	database, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	database.RawDB().SetMaxOpenConns(64)
	database.RawDB().SetMaxIdleConns(16)
	database.RawDB().SetConnMaxLifetime(10 * time.Minute)

	if err := database.EnsureSchema(context.Background()); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &TestStore{DB: database, logger: logger}, nil
}

// Close closes the test database connection.
func (ts *TestStore) Close() error {
	if ts.DB != nil {
		return ts.DB.Close()
	}
	return nil
}

// Run executes the scenario: every device reconciles Rounds times
// concurrently, with its snapshot churning between rounds, and then each
// device runs once more in turn so the store settles.
func (ts *TestStore) Run(ctx context.Context, sc Scenario) (*Report, error) {
	if sc.Devices <= 0 || sc.Rounds <= 0 {
		return nil, fmt.Errorf("scenario needs at least one device and one round")
	}

	snapshots := generateSnapshots(sc)
	devices := make([]string, 0, len(snapshots))
	for name := range snapshots {
		devices = append(devices, name)
	}
	sort.Strings(devices)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		errCount  int
		conflicts int
		final     = make(map[string][]schema.Tab, len(devices))
	)

	for i, device := range devices {
		wg.Add(1)
		go func(device string, seed int64) {
			defer wg.Done()

			r := tabsync.New(ts.DB, nil, ts.logger)
			rng := rand.New(rand.NewSource(seed))
			tabs := snapshots[device]

			for round := 0; round < sc.Rounds; round++ {
				if round > 0 {
					tabs = churn(rng, device, round, tabs, sc.Churn)
				}

				start := time.Now()
				_, err := r.Run(ctx, device, tabs)
				elapsed := time.Since(start)

				mu.Lock()
				durations = append(durations, elapsed)
				switch {
				case tabsync.IsKind(err, tabsync.KindConstraint):
					conflicts++
				case err != nil:
					errCount++
					ts.logger.Printf("%s round %d failed: %v", device, round, err)
				}
				mu.Unlock()
			}

			mu.Lock()
			final[device] = tabs
			mu.Unlock()
		}(device, sc.Seed+int64(i)+1)
	}
	wg.Wait()

	// Settle: tabs skipped because another device owned them may have
	// been released since; one sequential pass claims them.
	for _, device := range devices {
		if _, err := tabsync.New(ts.DB, nil, ts.logger).Run(ctx, device, final[device]); err != nil {
			return nil, fmt.Errorf("settle run for %s failed: %w", device, err)
		}
	}

	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	stats.Conflicts = conflicts
	return &Report{Stats: stats, Final: final}, nil
}

// CheckInvariants verifies the store against the devices' final snapshots:
// URLs are unique, every record's URL is open on its owner, and every
// open URL has a record.
func CheckInvariants(ctx context.Context, database *db.DB, final map[string][]schema.Tab) error {
	records, err := database.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	open := make(map[string]map[string]bool, len(final))
	for device, tabs := range final {
		open[device] = make(map[string]bool, len(tabs))
		for _, tab := range tabs {
			open[device][tab.URL] = true
		}
	}

	var errs []error
	seen := make(map[string]string, len(records))
	for _, rec := range records {
		if owner, dup := seen[rec.URL]; dup {
			errs = append(errs, fmt.Errorf("url %s stored twice (%s and %s)", rec.URL, owner, rec.DeviceName))
		}
		seen[rec.URL] = rec.DeviceName

		if !open[rec.DeviceName][rec.URL] {
			errs = append(errs, fmt.Errorf("stale record %d: %s is not open on owner %s", rec.ID, rec.URL, rec.DeviceName))
		}
	}

	for device, tabs := range final {
		for _, tab := range tabs {
			if _, ok := seen[tab.URL]; !ok {
				errs = append(errs, fmt.Errorf("%s has %s open but no record exists", device, tab.URL))
			}
		}
	}

	return errors.Join(errs...)
}

// generateSnapshots builds each device's first snapshot. A pool of shared
// URLs is visible to all devices so ownership contention happens.
func generateSnapshots(sc Scenario) map[string][]schema.Tab {
	rng := rand.New(rand.NewSource(sc.Seed))

	sharedPerDevice := int(float64(sc.TabsPerDevice) * sc.SharedFraction)
	pool := make([]string, sc.TabsPerDevice)
	for i := range pool {
		pool[i] = fmt.Sprintf("https://shared.example/%d", i)
	}

	snapshots := make(map[string][]schema.Tab, sc.Devices)
	for d := 0; d < sc.Devices; d++ {
		device := fmt.Sprintf("device-%02d", d)
		tabs := make([]schema.Tab, 0, sc.TabsPerDevice)

		for _, i := range rng.Perm(len(pool))[:sharedPerDevice] {
			tabs = append(tabs, schema.Tab{URL: pool[i], Title: fmt.Sprintf("Shared %d", i)})
		}
		for i := len(tabs); i < sc.TabsPerDevice; i++ {
			tabs = append(tabs, schema.Tab{
				URL:   fmt.Sprintf("https://%s.example/%d", device, i),
				Title: fmt.Sprintf("%s tab %d", device, i),
			})
		}
		snapshots[device] = tabs
	}
	return snapshots
}

// churn closes a share of tabs and opens the same number of new ones.
func churn(rng *rand.Rand, device string, round int, tabs []schema.Tab, fraction float64) []schema.Tab {
	n := int(float64(len(tabs)) * fraction)
	if n == 0 {
		return tabs
	}

	next := make([]schema.Tab, 0, len(tabs))
	closed := make(map[int]bool, n)
	for _, i := range rng.Perm(len(tabs))[:n] {
		closed[i] = true
	}
	for i, tab := range tabs {
		if !closed[i] {
			next = append(next, tab)
		}
	}
	for i := 0; i < n; i++ {
		next = append(next, schema.Tab{URL: fmt.Sprintf("https://%s.example/r%d-%d", device, round, i)})
	}
	return next
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      sum / time.Duration(len(durations)),
		P50:       sorted[len(sorted)*50/100],
		P95:       sorted[len(sorted)*95/100],
		P99:       sorted[len(sorted)*99/100],
		TotalRuns: len(durations),
		Durations: sorted,
	}
}

// PrintStats writes latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Run Latency:\n")
	fmt.Fprintf(w, "  Total Runs:    %d\n", s.TotalRuns)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Conflicts:     %d\n", s.Conflicts)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
