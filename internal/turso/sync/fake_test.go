package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"

	"github.com/tabsync/tabsync/internal/turso/db"
	"github.com/tabsync/tabsync/internal/turso/schema"
)

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu      stdsync.Mutex
	rows    map[string]*schema.TabRecord
	nextID  int64
	acquire int
	release int

	acquireErr error
	// failOn returns an error for the named op and url, or nil.
	failOn func(op, url string) error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*schema.TabRecord)}
}

func (m *memStore) Acquire(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquire++
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return &memConn{store: m}, nil
}

func (m *memStore) seed(url, device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[url] = &schema.TabRecord{ID: m.nextID, URL: url, DeviceName: device}
}

func (m *memStore) owner(url string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[url]
	if !ok {
		return "", false
	}
	return rec.DeviceName, true
}

func (m *memStore) inject(op, url string) error {
	if m.failOn == nil {
		return nil
	}
	return m.failOn(op, url)
}

type memConn struct {
	store *memStore
}

func (c *memConn) FindByURL(ctx context.Context, url string) (*schema.TabRecord, error) {
	if err := c.store.inject("find", url); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	rec, ok := c.store.rows[url]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (c *memConn) Insert(ctx context.Context, tab schema.Tab, device string) error {
	if err := c.store.inject("insert", tab.URL); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if _, ok := c.store.rows[tab.URL]; ok {
		return fmt.Errorf("insert %s: %w", tab.URL, db.ErrDuplicateURL)
	}
	c.store.nextID++
	c.store.rows[tab.URL] = &schema.TabRecord{
		ID: c.store.nextID, URL: tab.URL, Title: tab.Title, Favicon: tab.Favicon, DeviceName: device,
	}
	return nil
}

func (c *memConn) UpdateOwned(ctx context.Context, url, device, title, favicon string) (bool, error) {
	if err := c.store.inject("update", url); err != nil {
		return false, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	rec, ok := c.store.rows[url]
	if !ok || rec.DeviceName != device {
		return false, nil
	}
	rec.Title = title
	rec.Favicon = favicon
	return true, nil
}

func (c *memConn) DeleteOwnedNotIn(ctx context.Context, device string, activeURLs []string) (int64, error) {
	if err := c.store.inject("delete", ""); err != nil {
		return 0, err
	}
	active := make(map[string]bool, len(activeURLs))
	for _, u := range activeURLs {
		active[u] = true
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var n int64
	for url, rec := range c.store.rows {
		if rec.DeviceName == device && !active[url] {
			delete(c.store.rows, url)
			n++
		}
	}
	return n, nil
}

func (c *memConn) Release() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.release++
	return nil
}

var errBoom = errors.New("boom")
