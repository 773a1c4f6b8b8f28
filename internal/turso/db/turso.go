// Package db provides the shared tab store on top of SQLite or Turso.
//
// The store is a single browser_tabs table keyed by an integer id with a
// unique url column. Every device reconciles its own rows into it; the
// package itself knows nothing about ownership rules beyond filtering by
// device_name where an operation asks for it.
//
// Two backends are supported, selected by the DSN:
//   - A local path or file: DSN opens an embedded SQLite database (WAL mode)
//     through the ncruces/go-sqlite3 driver. Useful for a single machine
//     and for tests.
//   - A libsql://, https:// or http:// DSN opens a remote Turso/libSQL
//     database shared by all devices.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tabsync/tabsync/internal/turso/schema"
	_ "github.com/tursodatabase/go-libsql"
)

var (
	// ErrNotFound is returned when no row matches a point query.
	ErrNotFound = errors.New("tab not found")

	// ErrDuplicateURL is returned when an insert hits the unique url
	// constraint, typically because another device claimed the URL first.
	ErrDuplicateURL = errors.New("url already claimed")
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timeNow is replaced in tests that need deterministic ordering.
var timeNow = time.Now

// DB wraps the database connection pool.
type DB struct {
	conn   *sql.DB
	dsn    string
	remote bool
}

// Open connects to the store described by dsn.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	database, err := db.Open("libsql://tabs-me.turso.io?authToken=...")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if IsRemoteDSN(dsn) {
		return openRemote(dsn)
	}
	return openLocal(dsn)
}

// IsRemoteDSN reports whether dsn points at a remote libSQL server.
func IsRemoteDSN(dsn string) bool {
	for _, prefix := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

func openLocal(dsn string) (*DB, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	connStr := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(wal)" +
		"&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, dsn: path}, nil
}

func openRemote(dsn string) (*DB, error) {
	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to reach remote database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, dsn: redactDSN(dsn), remote: true}, nil
}

// redactDSN drops the query string, which carries the auth token.
func redactDSN(dsn string) string {
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		return dsn[:i]
	}
	return dsn
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Location returns the database path or the remote URL without credentials.
func (db *DB) Location() string {
	return db.dsn
}

// IsRemote reports whether this store is a remote libSQL database.
func (db *DB) IsRemote() bool {
	return db.remote
}

// Close closes the connection pool.
// Local databases get a WAL checkpoint first.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if !db.remote {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// EnsureSchema creates the browser_tabs table and its indexes if absent.
// It is idempotent and must run before any reconciliation or query.
func (db *DB) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS browser_tabs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		favicon TEXT,
		device_name TEXT NOT NULL,
		last_updated TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_browser_tabs_device ON browser_tabs(device_name);
	CREATE INDEX IF NOT EXISTS idx_browser_tabs_updated ON browser_tabs(last_updated);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ListAll returns every record, most recently updated first.
func (db *DB) ListAll(ctx context.Context) ([]*schema.TabRecord, error) {
	return listTabs(ctx, db.conn, "")
}

// ListByDevice returns the records owned by device, most recently updated first.
func (db *DB) ListByDevice(ctx context.Context, device string) ([]*schema.TabRecord, error) {
	return listTabs(ctx, db.conn, device)
}

// FindByURL returns the record for url, or ErrNotFound.
func (db *DB) FindByURL(ctx context.Context, url string) (*schema.TabRecord, error) {
	return findByURL(ctx, db.conn, url)
}

// Insert creates a record for tab owned by device.
// Returns ErrDuplicateURL (wrapped) if the url already exists.
func (db *DB) Insert(ctx context.Context, tab schema.Tab, device string) error {
	return insertTab(ctx, db.conn, tab, device)
}

// UpdateOwned refreshes title, favicon and last_updated of the record for
// url, but only if device owns it. Returns false when nothing matched.
func (db *DB) UpdateOwned(ctx context.Context, url, device, title, favicon string) (bool, error) {
	return updateOwned(ctx, db.conn, url, device, title, favicon)
}

// DeleteByID removes a single record regardless of its owner.
// Returns false if no record had that id.
func (db *DB) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM browser_tabs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tab %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteOwnedNotIn removes every record owned by device whose url is not
// in activeURLs. An empty activeURLs removes all of device's records.
func (db *DB) DeleteOwnedNotIn(ctx context.Context, device string, activeURLs []string) (int64, error) {
	return deleteOwnedNotIn(ctx, db.conn, device, activeURLs)
}

// Count returns the total number of records.
func (db *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM browser_tabs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get tab count: %w", err)
	}
	return count, nil
}

// CountByDevice returns the number of records per owning device.
func (db *DB) CountByDevice(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT device_name, COUNT(*) FROM browser_tabs GROUP BY device_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tabs by device: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var device string
		var n int
		if err := rows.Scan(&device, &n); err != nil {
			return nil, fmt.Errorf("failed to scan device count: %w", err)
		}
		counts[device] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device counts: %w", err)
	}
	return counts, nil
}

// querier is the subset of *sql.DB and *sql.Conn the point operations need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `id, url, title, favicon, device_name, last_updated`

func listTabs(ctx context.Context, q querier, device string) ([]*schema.TabRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM browser_tabs`
	var args []any
	if device != "" {
		query += ` WHERE device_name = ?`
		args = append(args, device)
	}
	query += ` ORDER BY last_updated DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	defer rows.Close()

	return scanTabs(rows)
}

func findByURL(ctx context.Context, q querier, url string) (*schema.TabRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM browser_tabs WHERE url = ?`, url)

	rec, err := scanTab(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tab %s: %w", url, err)
	}
	return rec, nil
}

func insertTab(ctx context.Context, q querier, tab schema.Tab, device string) error {
	rec := schema.TabRecord{URL: tab.URL, DeviceName: device}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid tab: %w", err)
	}

	_, err := q.ExecContext(ctx, `
	INSERT INTO browser_tabs (url, title, favicon, device_name, last_updated)
	VALUES (?, ?, ?, ?, ?)`,
		tab.URL,
		stringToNull(tab.Title),
		stringToNull(tab.Favicon),
		device,
		formatTime(timeNow()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to insert tab %s: %w: %v", tab.URL, ErrDuplicateURL, err)
		}
		return fmt.Errorf("failed to insert tab %s: %w", tab.URL, err)
	}
	return nil
}

func updateOwned(ctx context.Context, q querier, url, device, title, favicon string) (bool, error) {
	res, err := q.ExecContext(ctx, `
	UPDATE browser_tabs
	SET title = ?, favicon = ?, last_updated = ?
	WHERE url = ? AND device_name = ?`,
		stringToNull(title),
		stringToNull(favicon),
		formatTime(timeNow()),
		url,
		device,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update tab %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func deleteOwnedNotIn(ctx context.Context, q querier, device string, activeURLs []string) (int64, error) {
	query := `DELETE FROM browser_tabs WHERE device_name = ?`
	args := []any{device}

	if len(activeURLs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(activeURLs)), ",")
		query += ` AND url NOT IN (` + placeholders + `)`
		for _, u := range activeURLs {
			args = append(args, u)
		}
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete closed tabs for %s: %w", device, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTab(row rowScanner) (*schema.TabRecord, error) {
	var rec schema.TabRecord
	var title, favicon sql.NullString
	var lastUpdated string

	if err := row.Scan(&rec.ID, &rec.URL, &title, &favicon, &rec.DeviceName, &lastUpdated); err != nil {
		return nil, err
	}

	rec.Title = title.String
	rec.Favicon = favicon.String
	rec.LastUpdated = parseTime(lastUpdated)
	return &rec, nil
}

// scanTabs is a helper function to scan multiple records from query results.
func scanTabs(rows *sql.Rows) ([]*schema.TabRecord, error) {
	var tabs []*schema.TabRecord

	for rows.Next() {
		rec, err := scanTab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tab: %w", err)
		}
		tabs = append(tabs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tabs: %w", err)
	}

	return tabs, nil
}

// isUniqueViolation recognizes unique constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode() == sqlite3.CONSTRAINT_UNIQUE
	}
	// libSQL surfaces the SQLite message text only.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts both the layout we write and SQLite's strftime default.
func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// stringToNull stores empty optional strings as NULL.
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
