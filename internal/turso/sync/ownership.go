package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/tabsync/tabsync/internal/turso/db"
)

// Decision is what a run may do with one URL.
type Decision int

const (
	// DecisionClaim means no record exists: insert one owned by this device.
	DecisionClaim Decision = iota

	// DecisionRefresh means this device owns the record: update it in place.
	DecisionRefresh

	// DecisionSkip means another device owns the record. No write happens.
	DecisionSkip
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionClaim:
		return "claim"
	case DecisionRefresh:
		return "refresh"
	case DecisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Resolve reads the current owner of url and decides what device may do.
//
// The read is not atomic with the write that follows it. Two devices
// claiming the same new URL at once both see DecisionClaim; the store's
// unique url constraint rejects the second insert.
func Resolve(ctx context.Context, conn Conn, url, device string) (Decision, error) {
	rec, err := conn.FindByURL(ctx, url)
	if errors.Is(err, db.ErrNotFound) {
		return DecisionClaim, nil
	}
	if err != nil {
		return DecisionSkip, fmt.Errorf("failed to resolve owner of %s: %w", url, err)
	}

	if rec.DeviceName == device {
		return DecisionRefresh, nil
	}
	return DecisionSkip, nil
}
