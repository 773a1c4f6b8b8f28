// Package sync reconciles a device's open tabs into the shared tab store.
package sync

import (
	"context"

	"github.com/tabsync/tabsync/internal/turso/db"
	"github.com/tabsync/tabsync/internal/turso/schema"
)

// Store hands out connections for reconciliation runs.
//
// Each run acquires exactly one Conn at start and releases it on every
// exit path. Nothing read through a Conn is cached across runs.
type Store interface {
	// Acquire takes one connection from the pool.
	//
	// Returns an error if the store is unreachable.
	Acquire(ctx context.Context) (Conn, error)
}

// Conn is the sequential view of the store used inside one run.
type Conn interface {
	// FindByURL returns the record for url, or an error wrapping
	// db.ErrNotFound when the url has no record.
	FindByURL(ctx context.Context, url string) (*schema.TabRecord, error)

	// Insert creates a record owned by device.
	//
	// Returns an error wrapping db.ErrDuplicateURL if the url was
	// claimed concurrently.
	Insert(ctx context.Context, tab schema.Tab, device string) error

	// UpdateOwned refreshes title, favicon and timestamp of url's record
	// only if device owns it. Returns false when no owned row matched.
	UpdateOwned(ctx context.Context, url, device, title, favicon string) (bool, error)

	// DeleteOwnedNotIn removes device's records whose url is not in
	// activeURLs. An empty activeURLs removes all of device's records.
	DeleteOwnedNotIn(ctx context.Context, device string, activeURLs []string) (int64, error)

	// Release returns the connection to the pool.
	Release() error
}

// DBStore adapts a *db.DB to Store.
func DBStore(database *db.DB) Store {
	return dbStore{db: database}
}

type dbStore struct {
	db *db.DB
}

func (s dbStore) Acquire(ctx context.Context) (Conn, error) {
	sess, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
