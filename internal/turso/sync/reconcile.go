package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tabsync/tabsync/internal/turso/db"
	"github.com/tabsync/tabsync/internal/turso/schema"
)

// Reconciler merges one device's tab snapshot into the shared store.
//
// A Reconciler holds no store state between runs; every run re-reads
// ownership before writing. It is safe for concurrent use, although the
// daemon only ever runs one reconciliation at a time per device.
type Reconciler struct {
	store  Store
	ignore []string
	logger *log.Logger
}

// Result summarizes one reconciliation run.
type Result struct {
	RunID  string `json:"run_id"`
	Device string `json:"device"`

	Seen    int `json:"seen"`    // tabs in the raw snapshot
	Ignored int `json:"ignored"` // dropped by the filter stage
	Active  int `json:"active"`  // tabs left after filtering

	Deleted   int      `json:"deleted"`
	Claimed   int      `json:"claimed"`
	Refreshed int      `json:"refreshed"`
	Skipped   int      `json:"skipped"`
	Conflicts []string `json:"conflicts,omitempty"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// String returns a one-line summary of the run.
func (r *Result) String() string {
	return fmt.Sprintf("synced %d tabs for %s: claimed=%d refreshed=%d skipped=%d deleted=%d ignored=%d conflicts=%d",
		r.Active, r.Device, r.Claimed, r.Refreshed, r.Skipped, r.Deleted, r.Ignored, len(r.Conflicts))
}

// New creates a Reconciler backed by database.
//
// The database must have had EnsureSchema called before the first run.
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	database, err := db.Open("tabs.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.EnsureSchema(ctx); err != nil {
//	    return err
//	}
//	r := sync.New(database, sync.ParseIgnoreList("ads.example.com"), nil)
//	result, err := r.Run(ctx, "Laptop", tabs)
func New(database *db.DB, ignore []string, logger *log.Logger) *Reconciler {
	return NewWithStore(DBStore(database), ignore, logger)
}

// NewWithStore creates a Reconciler over any Store implementation.
func NewWithStore(store Store, ignore []string, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Reconciler{
		store:  store,
		ignore: append([]string(nil), ignore...),
		logger: logger,
	}
}

// Run reconciles device's snapshot into the store.
//
// After a successful run the records owned by device correspond one to
// one, by URL, to the filtered snapshot. Records owned by other devices
// are only ever read.
//
// An empty snapshot is an assertion that device has no open tabs and
// deletes all of its records. Callers must report a failed snapshot read
// as an error instead of passing an empty slice.
//
// There is no transaction around the run. When a store operation fails
// the remaining steps are abandoned and earlier writes stay applied; the
// next run converges. Lost claim races are the exception: they are
// collected, the run continues, and a KindConstraint error is returned
// alongside the otherwise complete Result.
func (r *Reconciler) Run(ctx context.Context, device string, snapshot []schema.Tab) (*Result, error) {
	device = strings.TrimSpace(device)
	res := &Result{
		RunID:   uuid.NewString(),
		Device:  device,
		Seen:    len(snapshot),
		Started: time.Now(),
	}
	defer func() { res.Duration = time.Since(res.Started) }()

	if device == "" {
		return res, &RunError{Kind: KindPrecondition, Op: "validate", Err: ErrNoDeviceName}
	}

	tabs, ignored := FilterTabs(snapshot, r.ignore)
	res.Ignored = ignored
	res.Active = len(tabs)

	activeURLs := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		activeURLs = append(activeURLs, tab.URL)
	}

	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return res, &RunError{Kind: KindConnectivity, Op: "acquire", Err: err}
	}
	defer func() {
		if err := conn.Release(); err != nil {
			r.logger.Printf("WARNING: %v", err)
		}
	}()

	// Delete phase: drop this device's records for tabs no longer open.
	deleted, err := conn.DeleteOwnedNotIn(ctx, device, activeURLs)
	if err != nil {
		return res, &RunError{Kind: KindPartial, Op: "delete", Err: err}
	}
	res.Deleted = int(deleted)

	// Upsert phase: each tab is an independent operation keyed by URL.
	for _, tab := range tabs {
		decision, err := r.applyTab(ctx, conn, device, tab)
		if IsKind(err, KindConstraint) {
			r.logger.Printf("WARNING: %s was claimed by another device during this run", tab.URL)
			res.Conflicts = append(res.Conflicts, tab.URL)
			continue
		}
		if err != nil {
			return res, err
		}

		switch decision {
		case DecisionClaim:
			res.Claimed++
		case DecisionRefresh:
			res.Refreshed++
		case DecisionSkip:
			res.Skipped++
		}
	}

	if len(res.Conflicts) > 0 {
		return res, &RunError{
			Kind: KindConstraint,
			Op:   "insert",
			Err:  &ConflictError{URLs: res.Conflicts},
		}
	}

	r.logger.Printf("[%s] %s", res.RunID[:8], res)
	return res, nil
}

// applyTab resolves ownership of tab.URL and performs the matching write.
// The returned decision reflects what was actually done.
func (r *Reconciler) applyTab(ctx context.Context, conn Conn, device string, tab schema.Tab) (Decision, error) {
	decision, err := Resolve(ctx, conn, tab.URL, device)
	if err != nil {
		return decision, &RunError{Kind: KindPartial, Op: "resolve", URL: tab.URL, Err: err}
	}

	switch decision {
	case DecisionClaim:
		if err := conn.Insert(ctx, tab, device); err != nil {
			kind := KindPartial
			if errors.Is(err, db.ErrDuplicateURL) {
				kind = KindConstraint
			}
			return decision, &RunError{Kind: kind, Op: "insert", URL: tab.URL, Err: err}
		}

	case DecisionRefresh:
		ok, err := conn.UpdateOwned(ctx, tab.URL, device, tab.Title, tab.Favicon)
		if err != nil {
			return decision, &RunError{Kind: KindPartial, Op: "update", URL: tab.URL, Err: err}
		}
		if !ok {
			// Removed by a user between resolve and update; the next run claims it again.
			r.logger.Printf("%s disappeared before refresh, skipping", tab.URL)
			return DecisionSkip, nil
		}
	}

	return decision, nil
}
