package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewSnapshotWatcher(t *testing.T) {
	sw, err := NewSnapshotWatcher()
	if err != nil {
		t.Fatalf("NewSnapshotWatcher() failed: %v", err)
	}
	defer sw.Stop()

	if sw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

func TestSnapshotWatcher_StartStop(t *testing.T) {
	sw, err := NewSnapshotWatcher()
	if err != nil {
		t.Fatalf("NewSnapshotWatcher() failed: %v", err)
	}

	if err := sw.Start(filepath.Join(t.TempDir(), "snapshot.yaml")); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !sw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}

	if err := sw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if sw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}

	if _, ok := <-sw.Events(); ok {
		t.Error("Events channel should be closed after Stop()")
	}
}

func TestSnapshotWatcher_StartAlreadyRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")

	sw, err := NewSnapshotWatcher()
	if err != nil {
		t.Fatalf("NewSnapshotWatcher() failed: %v", err)
	}
	defer sw.Stop()

	if err := sw.Start(path); err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}
	if err := sw.Start(path); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}
}

func TestSnapshotWatcher_MissingDirectory(t *testing.T) {
	sw, err := NewSnapshotWatcher()
	if err != nil {
		t.Fatalf("NewSnapshotWatcher() failed: %v", err)
	}
	defer sw.Stop()

	if err := sw.Start(filepath.Join(t.TempDir(), "nope", "snapshot.yaml")); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
}

func TestSnapshotWatcher_FileCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")

	sw, err := NewSnapshotWatcher()
	if err != nil {
		t.Fatalf("NewSnapshotWatcher() failed: %v", err)
	}
	defer sw.Stop()

	if err := sw.Start(path); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("tabs: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-sw.Events():
		if filepath.Base(event.Path) != "snapshot.yaml" {
			t.Errorf("Expected snapshot.yaml, got %s", event.Path)
		}
		if event.Op != OpCreate && event.Op != OpModify {
			t.Errorf("Expected create or modify, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for snapshot event")
	}
}

func TestSnapshotWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")
	if err := os.WriteFile(path, []byte("tabs: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	sw, err := NewSnapshotWatcher()
	if err != nil {
		t.Fatalf("NewSnapshotWatcher() failed: %v", err)
	}
	defer sw.Stop()
	if err := sw.Start(path); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	tmp := filepath.Join(dir, ".snapshot.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("tabs:\n  - url: https://a.com\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-sw.Events():
		if event.Op != OpCreate {
			t.Errorf("Expected create for rename target, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for replace event")
	}
}

func TestEventOp_String(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
