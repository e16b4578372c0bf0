package readmark

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/store"
	"go.uber.org/zap"
)

type mockMarker struct {
	calls []string
	err   error
}

func (m *mockMarker) MarkRead(_ context.Context, conversationID string) error {
	m.calls = append(m.calls, conversationID)
	return m.err
}

type mockAnnouncer struct {
	calls []string
}

func (m *mockAnnouncer) AnnounceRead(_ context.Context, conversationID string) error {
	m.calls = append(m.calls, conversationID)
	return nil
}

type fixedGate bool

func (g fixedGate) Reachable(context.Context) bool { return bool(g) }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testCoalescer(t *testing.T, marker Marker, announcer Announcer, gate Gate) (*Coalescer, *store.DB, *time.Time) {
	t.Helper()
	db := testDB(t)
	logger, _ := zap.NewDevelopment()
	c := New(marker, db, announcer, gate, logger)
	now := time.Unix(10000, 0)
	c.now = func() time.Time { return now }
	return c, db, &now
}

func TestDebouncePerConversation(t *testing.T) {
	marker := &mockMarker{}
	c, _, now := testCoalescer(t, marker, nil, fixedGate(true))

	c.MarkRead(context.Background(), "conv-1")
	// Within 10s of the successful mark: dropped.
	*now = now.Add(9 * time.Second)
	c.MarkRead(context.Background(), "conv-1")
	if len(marker.calls) != 1 {
		t.Fatalf("got %d calls, want 1 (second call debounced)", len(marker.calls))
	}

	// 11s after the first mark: goes through.
	*now = now.Add(2 * time.Second)
	c.MarkRead(context.Background(), "conv-1")
	if len(marker.calls) != 2 {
		t.Errorf("got %d calls, want 2 after the window passed", len(marker.calls))
	}

	// Debounce is per conversation.
	c.MarkRead(context.Background(), "conv-2")
	if len(marker.calls) != 3 {
		t.Errorf("got %d calls, want 3 (other conversation not debounced)", len(marker.calls))
	}
}

func TestFailedMarkDoesNotArmDebounce(t *testing.T) {
	marker := &mockMarker{err: &api.ServerError{Op: "mark read", Status: 503}}
	c, _, _ := testCoalescer(t, marker, nil, fixedGate(true))

	c.MarkRead(context.Background(), "conv-1")
	c.MarkRead(context.Background(), "conv-1")
	// Only successful marks debounce; both failures hit the network.
	if len(marker.calls) != 2 {
		t.Errorf("got %d calls, want 2", len(marker.calls))
	}
}

func TestLocalConversationIsNoop(t *testing.T) {
	marker := &mockMarker{}
	c, _, _ := testCoalescer(t, marker, nil, fixedGate(true))

	c.MarkRead(context.Background(), "local-draft")
	if len(marker.calls) != 0 {
		t.Errorf("got %d calls, want 0 for local-only conversation", len(marker.calls))
	}
}

func TestRetryableFailureGoesToLedger(t *testing.T) {
	marker := &mockMarker{err: &api.UnreachableError{Op: "mark read", Err: context.DeadlineExceeded}}
	c, db, _ := testCoalescer(t, marker, nil, fixedGate(true))

	c.MarkRead(context.Background(), "conv-1")
	c.MarkRead(context.Background(), "conv-1")

	ops, err := db.ListPendingRead()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d pending ops, want 1 (deduplicated)", len(ops))
	}
	if ops[0].ConversationID != "conv-1" {
		t.Errorf("op conversation = %s, want conv-1", ops[0].ConversationID)
	}
}

func TestAuthFailureSkipsLedger(t *testing.T) {
	marker := &mockMarker{err: api.ErrAuthRequired}
	c, db, _ := testCoalescer(t, marker, nil, fixedGate(true))

	c.MarkRead(context.Background(), "conv-1")

	ops, _ := db.ListPendingRead()
	if len(ops) != 0 {
		t.Errorf("got %d pending ops, want 0 (auth failures are not retried)", len(ops))
	}
}

func TestFlushReplaysAndClears(t *testing.T) {
	marker := &mockMarker{}
	announcer := &mockAnnouncer{}
	c, db, now := testCoalescer(t, marker, announcer, fixedGate(true))

	if err := db.UpsertPendingRead("conv-1", *now); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertPendingRead("conv-2", *now); err != nil {
		t.Fatal(err)
	}

	c.FlushPending(context.Background())

	if len(marker.calls) != 2 {
		t.Fatalf("got %d replays, want 2", len(marker.calls))
	}
	ops, _ := db.ListPendingRead()
	if len(ops) != 0 {
		t.Errorf("got %d pending ops, want 0 after successful replay", len(ops))
	}
	if len(announcer.calls) != 2 {
		t.Errorf("got %d read announcements, want 2", len(announcer.calls))
	}
}

func TestFlushDropsStaleOps(t *testing.T) {
	marker := &mockMarker{}
	c, db, now := testCoalescer(t, marker, nil, fixedGate(true))

	if err := db.UpsertPendingRead("conv-old", now.Add(-25*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertPendingRead("conv-new", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	c.FlushPending(context.Background())

	if len(marker.calls) != 1 || marker.calls[0] != "conv-new" {
		t.Errorf("replays = %v, want only conv-new", marker.calls)
	}
	ops, _ := db.ListPendingRead()
	if len(ops) != 0 {
		t.Errorf("got %d pending ops, want 0 (stale dropped, fresh replayed)", len(ops))
	}
}

func TestFlushKeepsFailingOps(t *testing.T) {
	marker := &mockMarker{err: &api.UnreachableError{Op: "mark read", Err: context.DeadlineExceeded}}
	c, db, now := testCoalescer(t, marker, nil, fixedGate(true))

	if err := db.UpsertPendingRead("conv-1", *now); err != nil {
		t.Fatal(err)
	}

	c.FlushPending(context.Background())

	ops, _ := db.ListPendingRead()
	if len(ops) != 1 {
		t.Errorf("got %d pending ops, want 1 (kept for next flush)", len(ops))
	}
}

func TestFlushGatedOnReachability(t *testing.T) {
	marker := &mockMarker{}
	c, db, now := testCoalescer(t, marker, nil, fixedGate(false))

	if err := db.UpsertPendingRead("conv-1", *now); err != nil {
		t.Fatal(err)
	}

	c.FlushPending(context.Background())

	if len(marker.calls) != 0 {
		t.Errorf("got %d replays, want 0 when unreachable", len(marker.calls))
	}
	ops, _ := db.ListPendingRead()
	if len(ops) != 1 {
		t.Errorf("got %d pending ops, want 1", len(ops))
	}
}
