package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestManager() (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManager(store, nil, nil), store
}

func TestClaim_CreatesLockedState(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	state, err := m.Claim(ctx, "rec-1", "mgrA", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Locked || state.Holder != "mgrA" {
		t.Errorf("expected locked by mgrA, got %+v", state)
	}
	if state.Status != StatusLocked {
		t.Errorf("expected status LOCKED, got %s", state.Status)
	}
	if state.ClaimedAt == nil {
		t.Error("expected claim timestamp set")
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].PreviousStatus != "" {
		t.Errorf("first transition must record empty previous status, got %q", history[0].PreviousStatus)
	}
	if history[0].NewStatus != StatusLocked {
		t.Errorf("expected new status LOCKED, got %s", history[0].NewStatus)
	}
}

func TestClaim_IdempotentForSameHolder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	first, err := m.Claim(ctx, "rec-1", "mgrA", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Claim(ctx, "rec-1", "mgrA", nil)
	if err != nil {
		t.Fatalf("repeated claim must succeed: %v", err)
	}

	if !second.ClaimedAt.Equal(*first.ClaimedAt) {
		t.Error("repeated claim must not touch the claim timestamp")
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 1 {
		t.Errorf("expected exactly 1 history entry total, got %d", len(history))
	}
}

func TestClaim_ReclaimPreservesReviewStatus(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", nil)
	if _, err := m.UpdateStatus(ctx, "rec-1", StatusShortlisted, "", "mgrA", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := m.Claim(ctx, "rec-1", "mgrA", nil)
	if err != nil {
		t.Fatalf("repeated claim must succeed: %v", err)
	}
	if state.Status != StatusShortlisted {
		t.Errorf("bare re-claim must not touch the status dimension, got %s", state.Status)
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 2 {
		t.Errorf("bare re-claim must not append history, got %d entries", len(history))
	}
}

func TestClaim_FreshClaimKeepsReviewStatus(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	// An unlocked row can still carry a reviewer-set status.
	m.UpdateStatus(ctx, "rec-1", StatusCustom, "awaiting visa", "mgrA", "")

	state, err := m.Claim(ctx, "rec-1", "mgrB", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Locked || state.Holder != "mgrB" {
		t.Errorf("expected locked by mgrB, got %+v", state)
	}
	if state.Status != StatusCustom || state.CustomStatus != "awaiting visa" {
		t.Errorf("claim must only move OPEN to LOCKED, got %s (%s)", state.Status, state.CustomStatus)
	}
}

func TestClaim_ConflictReportsCurrentHolder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	if _, err := m.Claim(ctx, "rec-1", "mgrA", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := m.Claim(ctx, "rec-1", "mgrB", nil)
	var conflict *AlreadyLockedError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected AlreadyLockedError, got %v", err)
	}
	if conflict.SourceID != "rec-1" || conflict.Holder != "mgrA" {
		t.Errorf("expected conflict naming mgrA on rec-1, got %+v", conflict)
	}
}

func TestClaim_NewEvaluationWritesHistory(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", nil)
	state, err := m.Claim(ctx, "rec-1", "mgrA", &Evaluation{Score: 85, Summary: "strong"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Evaluation == nil || state.Evaluation.Score != 85 {
		t.Errorf("expected evaluation attached, got %+v", state.Evaluation)
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 2 {
		t.Errorf("expected 2 history entries after a data-carrying re-claim, got %d", len(history))
	}
}

func TestClaim_UnchangedEvaluationSkipsWrite(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	eval := &Evaluation{
		Score:     85,
		Strengths: []string{"go", "sql"},
		Concerns:  []string{"notice period"},
	}
	m.Claim(ctx, "rec-1", "mgrA", eval)

	// Same payload with the lists reordered is not a change.
	same := &Evaluation{
		Score:     85,
		Strengths: []string{"sql", "go"},
		Concerns:  []string{"notice period"},
	}
	if _, err := m.Claim(ctx, "rec-1", "mgrA", same); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 1 {
		t.Errorf("expected the unchanged re-claim skipped, got %d history entries", len(history))
	}
}

func TestClaim_ListDeltaPreservesRetainedOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", &Evaluation{Strengths: []string{"go", "sql", "k8s"}})
	state, err := m.Claim(ctx, "rec-1", "mgrA", &Evaluation{Strengths: []string{"rust", "sql", "go"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// go and sql keep their original relative order; k8s is dropped; rust
	// is appended.
	want := []string{"go", "sql", "rust"}
	got := state.Evaluation.Strengths
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", nil)
	state, err := m.Release(ctx, "rec-1", "mgrA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Locked || state.Holder != "" || state.ClaimedAt != nil {
		t.Errorf("expected cleared lock, got %+v", state)
	}
	if state.Status != StatusOpen {
		t.Errorf("expected status OPEN, got %s", state.Status)
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 2 {
		t.Errorf("expected claim + release history, got %d entries", len(history))
	}
}

func TestRelease_PreservesReviewStatus(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", nil)
	m.UpdateStatus(ctx, "rec-1", StatusShortlisted, "", "mgrA", "")

	state, err := m.Release(ctx, "rec-1", "mgrA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Locked || state.Holder != "" {
		t.Errorf("expected cleared lock, got %+v", state)
	}
	if state.Status != StatusShortlisted {
		t.Errorf("release must keep the reviewer-set status, got %s", state.Status)
	}
}

func TestRelease_WrongHolderIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", nil)
	if _, err := m.Release(ctx, "rec-1", "mgrB"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRelease_MissingLockIsNotFound(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	if _, err := m.Release(ctx, "never-claimed", "mgrA"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing row, got %v", err)
	}

	// A released row exists but carries no lock.
	m.Claim(ctx, "rec-1", "mgrA", nil)
	m.Release(ctx, "rec-1", "mgrA")
	if _, err := m.Release(ctx, "rec-1", "mgrA"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unlocked row, got %v", err)
	}
}

func TestUpdateStatus_AlwaysAudited(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	if _, err := m.UpdateStatus(ctx, "rec-1", StatusShortlisted, "", "mgrA", "looks good"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same value again: still audited.
	if _, err := m.UpdateStatus(ctx, "rec-1", StatusShortlisted, "", "mgrA", "still good"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, _ := m.History(ctx, "rec-1")
	if len(history) != 2 {
		t.Fatalf("status updates are always audited; expected 2 entries, got %d", len(history))
	}
	if history[1].PreviousStatus != StatusShortlisted || history[1].NewStatus != StatusShortlisted {
		t.Errorf("expected unchanged transition recorded, got %+v", history[1])
	}
	if history[1].Comment != "still good" {
		t.Errorf("expected comment recorded, got %q", history[1].Comment)
	}
}

func TestUpdateStatus_CustomRequiresLabel(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	_, err := m.UpdateStatus(ctx, "rec-1", StatusCustom, "", "mgrA", "")
	var invalid *InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidArgumentError, got %v", err)
	}

	state, err := m.UpdateStatus(ctx, "rec-1", StatusCustom, "awaiting visa", "mgrA", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.CustomStatus != "awaiting visa" {
		t.Errorf("expected custom label kept, got %q", state.CustomStatus)
	}

	// Moving off CUSTOM clears the label.
	state, _ = m.UpdateStatus(ctx, "rec-1", StatusRejected, "ignored", "mgrA", "")
	if state.CustomStatus != "" {
		t.Errorf("expected custom label cleared, got %q", state.CustomStatus)
	}
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.UpdateStatus(context.Background(), "rec-1", Status("BOGUS"), "", "mgrA", "")
	var invalid *InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidArgumentError, got %v", err)
	}
}

func TestListByHolderAndListLocked(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	m.Claim(ctx, "rec-1", "mgrA", nil)
	m.Claim(ctx, "rec-2", "mgrA", nil)
	m.Claim(ctx, "rec-3", "mgrB", nil)
	m.Release(ctx, "rec-2", "mgrA")

	byA, err := m.ListByHolder(ctx, "mgrA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byA) != 1 || byA[0].SourceID != "rec-1" {
		t.Errorf("expected only rec-1 held by mgrA, got %+v", byA)
	}

	locked, err := m.ListLocked(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locked) != 2 {
		t.Errorf("expected 2 locked states, got %d", len(locked))
	}
}

func TestClaim_ConcurrentSameRecordHasOneWinner(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	const holders = 8
	var wg sync.WaitGroup
	errs := make([]error, holders)
	for i := 0; i < holders; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.Claim(ctx, "rec-1", holderName(i), nil)
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var conflict *AlreadyLockedError
		if !errors.As(err, &conflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
}

func holderName(i int) string {
	return string(rune('A' + i))
}
