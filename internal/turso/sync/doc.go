// Package sync reconciles a device's current browser tabs into the shared
// tab store.
//
// # Overview
//
// Every device periodically reports the tabs it has open. A reconciliation
// run brings the store's records owned by that device into agreement with
// the report, without touching records owned by other devices:
//
//	Snapshot (browser.Source)
//	     │
//	     ▼
//	FilterTabs ── drops empty URLs and ignore-list matches
//	     │
//	     ▼
//	Reconciler.Run
//	     ├── delete phase: DeleteOwnedNotIn(device, activeURLs)
//	     └── upsert phase: per tab, Resolve → claim / refresh / skip
//	     │
//	     ▼
//	Shared store (db.DB, SQLite or Turso)
//
// # Ownership
//
// A URL has at most one record and exactly one owning device. Resolve
// decides per URL:
//
//   - no record            → DecisionClaim (insert, owned by this device)
//   - owned by this device → DecisionRefresh (update title/favicon/time)
//   - owned by another     → DecisionSkip (no write)
//
// The owner check and the write are separate statements. Two devices
// claiming the same new URL at the same time both decide to claim; the
// unique url constraint rejects the second insert. The losing run records
// the URL in Result.Conflicts, applies its other tabs, and returns a
// KindConstraint error so the invoker can surface it.
//
// # Error Handling
//
// Run returns at most one *RunError, classified by Kind:
//
//   - KindPrecondition: no device name; the store was never contacted
//   - KindConnectivity: a connection could not be acquired
//   - KindConstraint:   claim races lost, everything else applied
//   - KindPartial:      a statement failed; the rest of the run was skipped
//
// Runs are not transactional. Writes applied before a failure stay
// applied and the next scheduled run converges. The package never retries.
//
// # Usage
//
//	r := sync.New(database, sync.ParseIgnoreList(cfg.IgnoredURLs), logger)
//	result, err := r.Run(ctx, cfg.DeviceName, tabs)
//	if sync.IsKind(err, sync.KindPrecondition) {
//	    return fmt.Errorf("configure a device name first: %w", err)
//	}
package sync
