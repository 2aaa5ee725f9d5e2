package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSaveAndGetSession verifies a saved session round-trips.
func TestSaveAndGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, "task-1", "agent-1", "sess-abc"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	agentID, sessionID, err := store.GetSession(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if agentID != "agent-1" || sessionID != "sess-abc" {
		t.Errorf("GetSession = (%q, %q), want (agent-1, sess-abc)", agentID, sessionID)
	}
}

// TestSaveSessionUpsert verifies saving twice keeps a single row with the
// latest session ID.
func TestSaveSessionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, "task-1", "agent-1", "sess-old"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := store.SaveSession(ctx, "task-1", "agent-1", "sess-new"); err != nil {
		t.Fatalf("SaveSession (second): %v", err)
	}

	_, sessionID, err := store.GetSession(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sessionID != "sess-new" {
		t.Errorf("sessionID = %q, want sess-new", sessionID)
	}
}

// TestGetSessionMissing verifies a missing task returns ErrNoSession.
func TestGetSessionMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.GetSession(context.Background(), "nope")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("GetSession error = %v, want ErrNoSession", err)
	}
}

// TestDeleteSession verifies deletion removes the row and is idempotent.
func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, "task-1", "agent-1", "sess-abc"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := store.DeleteSession(ctx, "task-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, _, err := store.GetSession(ctx, "task-1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("GetSession after delete = %v, want ErrNoSession", err)
	}
	if err := store.DeleteSession(ctx, "task-1"); err != nil {
		t.Errorf("DeleteSession (repeat): %v", err)
	}
}

// TestListSessions verifies every saved session comes back, and deleted
// rows do not.
func TestListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if records, err := store.ListSessions(ctx); err != nil || len(records) != 0 {
		t.Fatalf("ListSessions on empty store = (%v, %v), want ([], nil)", records, err)
	}

	if err := store.SaveSession(ctx, "task-1", "agent-1", "sess-a"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := store.SaveSession(ctx, "task-2", "agent-2", "sess-b"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := store.DeleteSession(ctx, "task-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	records, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ListSessions = %v, want one record", records)
	}
	got := records[0]
	want := SessionRecord{TaskID: "task-2", AgentID: "agent-2", SessionID: "sess-b"}
	if got != want {
		t.Errorf("record = %+v, want %+v", got, want)
	}
}
