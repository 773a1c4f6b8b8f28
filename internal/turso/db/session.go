package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

// Session pins a single pooled connection for the duration of one unit of
// work. Statements on a Session run strictly in order on that connection.
//
// Always pair Acquire with a deferred Release:
//
//	sess, err := database.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer sess.Release()
type Session struct {
	conn *sql.Conn
}

// Acquire takes one connection from the pool.
func (db *DB) Acquire(ctx context.Context) (*Session, error) {
	if db.conn == nil {
		return nil, fmt.Errorf("database is closed")
	}
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Release returns the connection to the pool. Safe to call more than once.
func (s *Session) Release() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to release connection: %w", err)
	}
	return nil
}

// FindByURL returns the record for url, or ErrNotFound.
func (s *Session) FindByURL(ctx context.Context, url string) (*schema.TabRecord, error) {
	return findByURL(ctx, s.conn, url)
}

// Insert creates a record for tab owned by device.
func (s *Session) Insert(ctx context.Context, tab schema.Tab, device string) error {
	return insertTab(ctx, s.conn, tab, device)
}

// UpdateOwned refreshes the record for url if device owns it.
func (s *Session) UpdateOwned(ctx context.Context, url, device, title, favicon string) (bool, error) {
	return updateOwned(ctx, s.conn, url, device, title, favicon)
}

// DeleteOwnedNotIn removes device's records whose url is not in activeURLs.
func (s *Session) DeleteOwnedNotIn(ctx context.Context, device string, activeURLs []string) (int64, error) {
	return deleteOwnedNotIn(ctx, s.conn, device, activeURLs)
}
