package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/tabsync/tabsync/internal/turso/db"
	"github.com/tabsync/tabsync/internal/turso/schema"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func testLogger(prefix string) *log.Logger {
	return log.New(os.Stderr, "["+prefix+"] ", 0)
}

// ownedBy returns url -> owner for every record in the store.
func ownedBy(t *testing.T, database *db.DB) map[string]string {
	t.Helper()

	recs, err := database.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	out := make(map[string]string, len(recs))
	for _, rec := range recs {
		out[rec.URL] = rec.DeviceName
	}
	return out
}

func TestRun_Scenario(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	if _, err := r.Run(ctx, "Laptop", []schema.Tab{{URL: "https://a.com", Title: "A"}}); err != nil {
		t.Fatalf("Laptop run failed: %v", err)
	}
	got := ownedBy(t, database)
	if len(got) != 1 || got["https://a.com"] != "Laptop" {
		t.Fatalf("after Laptop run: %v", got)
	}

	if _, err := r.Run(ctx, "Phone", []schema.Tab{{URL: "https://b.com"}}); err != nil {
		t.Fatalf("Phone run failed: %v", err)
	}
	got = ownedBy(t, database)
	if len(got) != 2 || got["https://a.com"] != "Laptop" || got["https://b.com"] != "Phone" {
		t.Fatalf("after Phone run: %v", got)
	}

	res, err := r.Run(ctx, "Laptop", nil)
	if err != nil {
		t.Fatalf("empty Laptop run failed: %v", err)
	}
	if res.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", res.Deleted)
	}
	got = ownedBy(t, database)
	if len(got) != 1 || got["https://b.com"] != "Phone" {
		t.Errorf("after empty Laptop run: %v", got)
	}
}

func TestRun_Idempotent(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	snapshot := []schema.Tab{
		{URL: "https://a.com", Title: "A"},
		{URL: "https://b.com", Title: "B", Favicon: "https://b.com/favicon.ico"},
	}

	first, err := r.Run(ctx, "Laptop", snapshot)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Claimed != 2 {
		t.Errorf("first run Claimed = %d, want 2", first.Claimed)
	}
	before, _ := database.ListAll(ctx)

	second, err := r.Run(ctx, "Laptop", snapshot)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Claimed != 0 || second.Refreshed != 2 || second.Deleted != 0 {
		t.Errorf("second run = %+v", second)
	}
	after, _ := database.ListAll(ctx)

	if len(before) != len(after) {
		t.Fatalf("record count changed: %d -> %d", len(before), len(after))
	}
	byURL := make(map[string]*schema.TabRecord)
	for _, rec := range before {
		byURL[rec.URL] = rec
	}
	for _, rec := range after {
		prev := byURL[rec.URL]
		if prev == nil {
			t.Fatalf("unexpected record %s", rec.URL)
		}
		if prev.ID != rec.ID || prev.Title != rec.Title || prev.Favicon != rec.Favicon || prev.DeviceName != rec.DeviceName {
			t.Errorf("record changed: %+v -> %+v", prev, rec)
		}
		if rec.LastUpdated.Before(prev.LastUpdated) {
			t.Errorf("LastUpdated went backwards for %s", rec.URL)
		}
	}
}

func TestRun_OwnershipExclusivity(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	if _, err := r.Run(ctx, "A", []schema.Tab{{URL: "https://shared.com", Title: "A's title"}}); err != nil {
		t.Fatalf("A run failed: %v", err)
	}
	before, _ := database.FindByURL(ctx, "https://shared.com")

	res, err := r.Run(ctx, "B", []schema.Tab{
		{URL: "https://shared.com", Title: "B's title"},
		{URL: "https://only-b.com"},
	})
	if err != nil {
		t.Fatalf("B run failed: %v", err)
	}
	if res.Skipped != 1 || res.Claimed != 1 {
		t.Errorf("B run = %+v, want 1 skipped and 1 claimed", res)
	}

	after, _ := database.FindByURL(ctx, "https://shared.com")
	if after.DeviceName != "A" || after.Title != "A's title" || !after.LastUpdated.Equal(before.LastUpdated) {
		t.Errorf("B touched A's record: %+v -> %+v", before, after)
	}

	// B closing everything must not remove A's record.
	if _, err := r.Run(ctx, "B", nil); err != nil {
		t.Fatalf("empty B run failed: %v", err)
	}
	got := ownedBy(t, database)
	if len(got) != 1 || got["https://shared.com"] != "A" {
		t.Errorf("after empty B run: %v", got)
	}
}

func TestRun_Liveness(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	if _, err := r.Run(ctx, "A", []schema.Tab{{URL: "https://u.com"}, {URL: "https://v.com"}}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := r.Run(ctx, "A", []schema.Tab{{URL: "https://v.com"}}); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if _, err := database.FindByURL(ctx, "https://u.com"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("closed tab still present: %v", err)
	}
	if _, err := database.FindByURL(ctx, "https://v.com"); err != nil {
		t.Errorf("open tab missing: %v", err)
	}
}

func TestRun_ClaimOnNew(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	if _, err := r.Run(ctx, "A", []schema.Tab{{URL: "https://new.com", Title: "New"}}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rec, err := database.FindByURL(ctx, "https://new.com")
	if err != nil {
		t.Fatalf("FindByURL failed: %v", err)
	}
	if rec.DeviceName != "A" || rec.Title != "New" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestRun_ClaimAfterOwnerCloses(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	_, _ = r.Run(ctx, "A", []schema.Tab{{URL: "https://x.com"}})
	_, _ = r.Run(ctx, "A", nil)

	if _, err := r.Run(ctx, "B", []schema.Tab{{URL: "https://x.com"}}); err != nil {
		t.Fatalf("B run failed: %v", err)
	}
	if owner := ownedBy(t, database)["https://x.com"]; owner != "B" {
		t.Errorf("owner = %q, want B", owner)
	}
}

func TestRun_FilterIgnored(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, []string{"ads.example.com"}, testLogger("test"))

	res, err := r.Run(ctx, "A", []schema.Tab{
		{URL: "https://ads.example.com/x"},
		{URL: "https://example.com"},
		{URL: ""},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Ignored != 2 || res.Active != 1 {
		t.Errorf("Ignored = %d, Active = %d", res.Ignored, res.Active)
	}

	if _, err := database.FindByURL(ctx, "https://ads.example.com/x"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("ignored url reached the store: %v", err)
	}
}

func TestRun_IgnoredURLIsDeletedFromOwnRows(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	if _, err := New(database, nil, testLogger("test")).Run(ctx, "A", []schema.Tab{{URL: "https://ads.example.com/x"}}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Adding the pattern later makes the tab inactive for A.
	if _, err := New(database, []string{"ads.example.com"}, testLogger("test")).Run(ctx, "A", []schema.Tab{{URL: "https://ads.example.com/x"}}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if count, _ := database.Count(ctx); count != 0 {
		t.Errorf("expected ignored record to be removed, %d left", count)
	}
}

func TestRun_DuplicateURLsInSnapshot(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	res, err := r.Run(ctx, "A", []schema.Tab{
		{URL: "https://a.com", Title: "first"},
		{URL: "https://a.com", Title: "second"},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Claimed != 1 || res.Refreshed != 1 {
		t.Errorf("run = %+v, want 1 claim then 1 refresh", res)
	}

	rec, _ := database.FindByURL(ctx, "https://a.com")
	if rec.Title != "second" {
		t.Errorf("Title = %q, want last reported title", rec.Title)
	}
}

func TestRun_TrimsDeviceName(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	r := New(database, nil, testLogger("test"))

	if _, err := r.Run(ctx, "  Laptop ", []schema.Tab{{URL: "https://a.com"}}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if owner := ownedBy(t, database)["https://a.com"]; owner != "Laptop" {
		t.Errorf("owner = %q, want trimmed name", owner)
	}
}

func TestRun_MissingDeviceName(t *testing.T) {
	store := newMemStore()
	r := NewWithStore(store, nil, testLogger("test"))

	for _, device := range []string{"", "   "} {
		_, err := r.Run(context.Background(), device, []schema.Tab{{URL: "https://a.com"}})
		if !IsKind(err, KindPrecondition) {
			t.Errorf("Run(%q) error = %v, want precondition", device, err)
		}
		if !errors.Is(err, ErrNoDeviceName) {
			t.Errorf("Run(%q) error does not wrap ErrNoDeviceName", device)
		}
	}
	if store.acquire != 0 {
		t.Errorf("store was contacted %d times", store.acquire)
	}
}

func TestRun_ConnectivityError(t *testing.T) {
	store := newMemStore()
	store.acquireErr = errBoom
	r := NewWithStore(store, nil, testLogger("test"))

	_, err := r.Run(context.Background(), "A", []schema.Tab{{URL: "https://a.com"}})
	if !IsKind(err, KindConnectivity) {
		t.Fatalf("error = %v, want connectivity", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error does not wrap cause: %v", err)
	}
}

func TestRun_PartialFailureKeepsAppliedWrites(t *testing.T) {
	store := newMemStore()
	store.seed("https://stale.com", "A")
	store.failOn = func(op, url string) error {
		if op == "insert" && url == "https://2.com" {
			return errBoom
		}
		return nil
	}
	r := NewWithStore(store, nil, testLogger("test"))

	res, err := r.Run(context.Background(), "A", []schema.Tab{
		{URL: "https://1.com"},
		{URL: "https://2.com"},
		{URL: "https://3.com"},
	})
	if !IsKind(err, KindPartial) {
		t.Fatalf("error = %v, want partial", err)
	}
	var runErr *RunError
	if errors.As(err, &runErr) && (runErr.Op != "insert" || runErr.URL != "https://2.com") {
		t.Errorf("RunError = %+v", runErr)
	}

	if _, ok := store.owner("https://stale.com"); ok {
		t.Error("delete phase should have been applied before the failure")
	}
	if _, ok := store.owner("https://1.com"); !ok {
		t.Error("write before the failure was rolled back")
	}
	if _, ok := store.owner("https://3.com"); ok {
		t.Error("run continued after a failure")
	}
	if res.Claimed != 1 {
		t.Errorf("Claimed = %d, want 1", res.Claimed)
	}
	if store.release != 1 {
		t.Errorf("connection released %d times, want 1", store.release)
	}
}

func TestRun_DeleteFailureAbortsBeforeUpserts(t *testing.T) {
	store := newMemStore()
	store.failOn = func(op, url string) error {
		if op == "delete" {
			return errBoom
		}
		return nil
	}
	r := NewWithStore(store, nil, testLogger("test"))

	_, err := r.Run(context.Background(), "A", []schema.Tab{{URL: "https://a.com"}})
	if !IsKind(err, KindPartial) {
		t.Fatalf("error = %v, want partial", err)
	}
	if _, ok := store.owner("https://a.com"); ok {
		t.Error("upsert ran after delete phase failed")
	}
	if store.release != 1 {
		t.Errorf("connection released %d times, want 1", store.release)
	}
}

func TestRun_ResolveFailure(t *testing.T) {
	store := newMemStore()
	store.failOn = func(op, url string) error {
		if op == "find" {
			return fmt.Errorf("connection reset: %w", errBoom)
		}
		return nil
	}
	r := NewWithStore(store, nil, testLogger("test"))

	_, err := r.Run(context.Background(), "A", []schema.Tab{{URL: "https://a.com"}})
	if !IsKind(err, KindPartial) {
		t.Fatalf("error = %v, want partial", err)
	}
	if _, ok := store.owner("https://a.com"); ok {
		t.Error("a failed owner lookup must not be treated as a claim")
	}
}

func TestRun_LostClaimRaceContinues(t *testing.T) {
	store := newMemStore()
	// Another device inserts race.com between our resolve and insert.
	store.failOn = func(op, url string) error {
		if op == "insert" && url == "https://race.com" {
			store.seed(url, "B")
		}
		return nil
	}
	r := NewWithStore(store, nil, testLogger("test"))

	res, err := r.Run(context.Background(), "A", []schema.Tab{
		{URL: "https://race.com"},
		{URL: "https://mine.com"},
	})
	if !IsKind(err, KindConstraint) {
		t.Fatalf("error = %v, want constraint", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) || len(conflict.URLs) != 1 || conflict.URLs[0] != "https://race.com" {
		t.Errorf("conflict = %+v", conflict)
	}

	if owner, _ := store.owner("https://race.com"); owner != "B" {
		t.Errorf("race.com owner = %q, want B", owner)
	}
	if owner, _ := store.owner("https://mine.com"); owner != "A" {
		t.Errorf("unrelated row not applied: owner = %q", owner)
	}
	if res.Claimed != 1 || len(res.Conflicts) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_RefreshTargetVanished(t *testing.T) {
	store := newMemStore()
	store.seed("https://a.com", "A")
	store.failOn = func(op, url string) error {
		if op == "update" {
			// A user deleted the row from a list view mid-run.
			store.mu.Lock()
			delete(store.rows, url)
			store.mu.Unlock()
		}
		return nil
	}
	r := NewWithStore(store, nil, testLogger("test"))

	res, err := r.Run(context.Background(), "A", []schema.Tab{{URL: "https://a.com"}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Skipped != 1 || res.Refreshed != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_ConcurrentDisjointDevices(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	devices := []string{"Laptop", "Phone", "Tablet", "Desktop"}
	errChan := make(chan error, len(devices))
	for _, device := range devices {
		go func(device string) {
			var tabs []schema.Tab
			for i := 0; i < 10; i++ {
				tabs = append(tabs, schema.Tab{URL: fmt.Sprintf("https://%s.example/%d", device, i)})
			}
			_, err := New(database, nil, testLogger(device)).Run(ctx, device, tabs)
			errChan <- err
		}(device)
	}

	for range devices {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent run failed: %v", err)
		}
	}

	counts, err := database.CountByDevice(ctx)
	if err != nil {
		t.Fatalf("CountByDevice failed: %v", err)
	}
	for _, device := range devices {
		if counts[device] != 10 {
			t.Errorf("%s owns %d records, want 10", device, counts[device])
		}
	}
}

func TestRun_ConcurrentSameURLs(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	var tabs []schema.Tab
	for i := 0; i < 20; i++ {
		tabs = append(tabs, schema.Tab{URL: fmt.Sprintf("https://shared.example/%d", i)})
	}

	errChan := make(chan error, 2)
	for _, device := range []string{"A", "B"} {
		go func(device string) {
			_, err := New(database, nil, testLogger(device)).Run(ctx, device, tabs)
			errChan <- err
		}(device)
	}
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil && !IsKind(err, KindConstraint) {
			t.Errorf("unexpected error kind: %v", err)
		}
	}

	count, err := database.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != len(tabs) {
		t.Errorf("expected %d records (one per url), got %d", len(tabs), count)
	}
}

func TestResult_String(t *testing.T) {
	res := &Result{Device: "Laptop", Active: 3, Claimed: 1, Refreshed: 2}
	want := "synced 3 tabs for Laptop: claimed=1 refreshed=2 skipped=0 deleted=0 ignored=0 conflicts=0"
	if got := res.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRunError_Error(t *testing.T) {
	err := &RunError{Kind: KindPartial, Op: "insert", URL: "https://a.com", Err: errBoom}
	want := "sync partial error during insert of https://a.com: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &RunError{Kind: KindConnectivity, Op: "acquire", Err: errBoom}
	want = "sync connectivity error during acquire: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsKind_NonRunError(t *testing.T) {
	if IsKind(errBoom, KindPartial) {
		t.Error("IsKind matched a plain error")
	}
	if IsKind(nil, KindPartial) {
		t.Error("IsKind matched nil")
	}
}
