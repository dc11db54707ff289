package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	state := &State{
		SourceID:  "rec-1",
		Locked:    true,
		Holder:    "mgrA",
		ClaimedAt: &now,
		Status:    StatusLocked,
		Evaluation: &Evaluation{
			Score:     80,
			Strengths: []string{"go"},
		},
	}
	if err := store.Put(ctx, state); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// Reopen from disk.
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Holder != "mgrA" || !got.Locked || got.Status != StatusLocked {
		t.Errorf("unexpected state after reload: %+v", got)
	}
	if got.Evaluation == nil || got.Evaluation.Score != 80 {
		t.Errorf("expected evaluation persisted, got %+v", got.Evaluation)
	}
	if got.ClaimedAt == nil || !got.ClaimedAt.Equal(now) {
		t.Errorf("expected claim time %v, got %v", now, got.ClaimedAt)
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_HistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := []HistoryEntry{
		{ID: "h1", SourceID: "rec-1", NewStatus: StatusLocked, ChangedBy: "mgrA", ChangedAt: time.Now()},
		{ID: "h2", SourceID: "rec-2", NewStatus: StatusLocked, ChangedBy: "mgrB", ChangedAt: time.Now()},
		{ID: "h3", SourceID: "rec-1", PreviousStatus: StatusLocked, NewStatus: StatusOpen, ChangedBy: "mgrA", ChangedAt: time.Now()},
	}
	for _, entry := range entries {
		if err := store.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	history, err := store.History(ctx, "rec-1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries for rec-1, got %d", len(history))
	}
	if history[0].ID != "h1" || history[1].ID != "h3" {
		t.Errorf("expected oldest-first order h1,h3, got %s,%s", history[0].ID, history[1].ID)
	}
}

func TestFileStore_HistoryEmptyWithoutFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history, err := store.History(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected no history, got %d entries", len(history))
	}
}

func TestFileStore_List(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.Put(ctx, &State{SourceID: "b", Status: StatusOpen})
	store.Put(ctx, &State{SourceID: "a", Status: StatusOpen})

	states, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 2 || states[0].SourceID != "a" || states[1].SourceID != "b" {
		t.Errorf("expected sorted states a,b, got %+v", states)
	}
}

func TestManagerOverFileStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := NewManager(store, nil, nil)

	if _, err := m.Claim(ctx, "rec-1", "mgrA", nil); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := m.Claim(ctx, "rec-1", "mgrB", nil); err == nil {
		t.Fatal("expected conflict on file-backed store")
	}
	if _, err := m.Release(ctx, "rec-1", "mgrA"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(history))
	}
}
