package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)

	at := time.Now().Truncate(time.Millisecond)
	if err := db.SaveSnapshot("conv-1", []byte(`{"v":2}`), 7, at); err != nil {
		t.Fatal(err)
	}

	row, err := db.LoadSnapshot("conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("snapshot not found after save")
	}
	if string(row.Payload) != `{"v":2}` {
		t.Errorf("payload = %q, want {\"v\":2}", row.Payload)
	}
	if row.MessageCount != 7 {
		t.Errorf("count = %d, want 7", row.MessageCount)
	}
	if !row.CachedAt.Equal(at) {
		t.Errorf("cachedAt = %v, want %v", row.CachedAt, at)
	}
}

func TestSnapshotUpsertReplaces(t *testing.T) {
	db := testDB(t)

	if err := db.SaveSnapshot("conv-1", []byte("old"), 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot("conv-1", []byte("new"), 2, time.Now()); err != nil {
		t.Fatal(err)
	}

	row, err := db.LoadSnapshot("conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(row.Payload) != "new" || row.MessageCount != 2 {
		t.Errorf("got payload=%q count=%d, want new/2", row.Payload, row.MessageCount)
	}
}

func TestSnapshotAbsenceIsNil(t *testing.T) {
	db := testDB(t)

	row, err := db.LoadSnapshot("missing")
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Errorf("got %+v, want nil for missing snapshot", row)
	}
}

func TestOutboxOrderAndIsolation(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"m1", "m2", "m3"} {
		e := &OutboxEntry{
			MessageID:      id,
			ConversationID: "conv-a",
			Payload:        []byte("{}"),
			CreatedAt:      time.UnixMilli(int64(1000 + i)),
		}
		if err := db.AppendOutbox(e); err != nil {
			t.Fatal(err)
		}
	}
	other := &OutboxEntry{MessageID: "x", ConversationID: "conv-b", Payload: []byte("{}"), CreatedAt: time.Now()}
	if err := db.AppendOutbox(other); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListOutbox("conv-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if entries[i].MessageID != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].MessageID, want)
		}
	}
}

func TestOutboxBumpAndDelete(t *testing.T) {
	db := testDB(t)

	e := &OutboxEntry{MessageID: "m1", ConversationID: "conv-a", Payload: []byte("{}"), CreatedAt: time.Now()}
	if err := db.AppendOutbox(e); err != nil {
		t.Fatal(err)
	}

	if err := db.BumpOutboxAttempts(e.ID, 3); err != nil {
		t.Fatal(err)
	}
	entries, _ := db.ListOutbox("conv-a")
	if entries[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", entries[0].Attempts)
	}

	if err := db.DeleteOutbox(e.ID); err != nil {
		t.Fatal(err)
	}
	entries, _ = db.ListOutbox("conv-a")
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0 after delete", len(entries))
	}
}

func TestPendingReadDedupKeepsOriginalCreatedAt(t *testing.T) {
	db := testDB(t)

	first := time.UnixMilli(1000)
	if err := db.UpsertPendingRead("conv-a", first); err != nil {
		t.Fatal(err)
	}
	// Second failure for the same conversation must not reset the clock.
	if err := db.UpsertPendingRead("conv-a", time.UnixMilli(9000)); err != nil {
		t.Fatal(err)
	}

	ops, err := db.ListPendingRead()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d ops, want 1 (dedup by conversation)", len(ops))
	}
	if !ops[0].CreatedAt.Equal(first) {
		t.Errorf("createdAt = %v, want %v (original)", ops[0].CreatedAt, first)
	}

	if err := db.DeletePendingRead("conv-a"); err != nil {
		t.Fatal(err)
	}
	ops, _ = db.ListPendingRead()
	if len(ops) != 0 {
		t.Errorf("got %d ops, want 0 after delete", len(ops))
	}
}
