package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talentsync/talentsync/internal/llm"
	"github.com/talentsync/talentsync/internal/pool"
	"github.com/talentsync/talentsync/internal/record"
	"github.com/talentsync/talentsync/internal/retry"
	"github.com/talentsync/talentsync/internal/vector"
)

type stubProvider struct {
	embedErr error
}

func (p *stubProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (p *stubProvider) Name() string { return "stub" }

func testEmbedder(provider llm.Provider) *vector.Embedder {
	policy := &retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 2 * time.Millisecond}
	return vector.NewEmbedder(provider, 4, policy, nil)
}

func entry(entryID, sourceID string) vector.Entry {
	return vector.Entry{
		EntryID:  entryID,
		SourceID: sourceID,
		Vector:   []float32{1, 0, 0, 0},
		Snapshot: "snapshot of " + sourceID,
	}
}

func TestSynchronize_RestoresInvariant(t *testing.T) {
	ctx := context.Background()
	records := record.NewMemoryStore()
	records.Put(record.Record{ID: "missing", Text: "not yet indexed"})
	records.Put(record.Record{ID: "duped", Text: "indexed three times"})
	records.Put(record.Record{ID: "ok", Text: "indexed once"})

	idx := vector.NewMemoryIndex()
	idx.Insert(ctx, entry("e-duped-c", "duped"))
	idx.Insert(ctx, entry("e-duped-a", "duped"))
	idx.Insert(ctx, entry("e-duped-b", "duped"))
	idx.Insert(ctx, entry("e-ok", "ok"))
	idx.Insert(ctx, entry("e-orphan-1", "deleted-record"))
	idx.Insert(ctx, entry("e-orphan-2", "deleted-record"))

	engine := NewEngine(records, idx, testEmbedder(&stubProvider{}), pool.New(4), nil)
	outcome, err := engine.Synchronize(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.MissingAdded != 1 {
		t.Errorf("expected 1 missing added, got %d", outcome.MissingAdded)
	}
	if outcome.DuplicatesRemoved != 2 {
		t.Errorf("expected 2 duplicates removed, got %d", outcome.DuplicatesRemoved)
	}
	// Two entries but one orphaned source id: counted once.
	if outcome.OrphansRemoved != 1 {
		t.Errorf("expected 1 orphan removed, got %d", outcome.OrphansRemoved)
	}
	if outcome.RecordsScanned != 3 {
		t.Errorf("expected 3 records scanned, got %d", outcome.RecordsScanned)
	}

	for _, id := range []string{"missing", "duped", "ok"} {
		count, _ := idx.CountBySourceID(ctx, id)
		if count != 1 {
			t.Errorf("record %s: expected exactly 1 entry, got %d", id, count)
		}
	}
	if count, _ := idx.CountBySourceID(ctx, "deleted-record"); count != 0 {
		t.Errorf("expected orphan entries gone, got %d", count)
	}

	// The duplicate survivor must be the smallest entry id, so concurrent
	// runs converge on the same entry.
	entries, _ := idx.EntriesBySourceID(ctx, "duped")
	if len(entries) != 1 || entries[0].EntryID != "e-duped-a" {
		t.Errorf("expected survivor e-duped-a, got %+v", entries)
	}
}

func TestSynchronize_IdempotentOnConsistentState(t *testing.T) {
	ctx := context.Background()
	records := record.NewMemoryStore()
	records.Put(record.Record{ID: "a", Text: "alpha"})
	records.Put(record.Record{ID: "b", Text: "beta"})

	idx := vector.NewMemoryIndex()
	idx.Insert(ctx, entry("e-a", "a"))
	idx.Insert(ctx, entry("e-b", "b"))

	engine := NewEngine(records, idx, testEmbedder(&stubProvider{}), pool.New(4), nil)
	outcome, err := engine.Synchronize(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.MissingAdded != 0 || outcome.DuplicatesRemoved != 0 || outcome.OrphansRemoved != 0 {
		t.Errorf("expected no-op outcome, got %+v", outcome)
	}
	if idx.Len() != 2 {
		t.Errorf("expected index untouched, got %d entries", idx.Len())
	}
}

// gateStore blocks the first ListAllIDs until released, so tests can hold a
// run open.
type gateStore struct {
	record.Store
	once     sync.Once
	entered  chan struct{}
	released chan struct{}
}

func (g *gateStore) ListAllIDs(ctx context.Context) ([]string, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.released
	})
	return g.Store.ListAllIDs(ctx)
}

func TestSynchronize_SingleFlight(t *testing.T) {
	ctx := context.Background()
	records := record.NewMemoryStore()
	gated := &gateStore{
		Store:    records,
		entered:  make(chan struct{}),
		released: make(chan struct{}),
	}

	engine := NewEngine(gated, vector.NewMemoryIndex(), testEmbedder(&stubProvider{}), pool.New(2), nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Synchronize(ctx)
		done <- err
	}()

	<-gated.entered
	if !engine.IsRunning() {
		t.Error("expected IsRunning during an in-flight run")
	}
	if _, err := engine.Synchronize(ctx); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}

	close(gated.released)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if engine.IsRunning() {
		t.Error("expected running flag cleared after the run")
	}
	if engine.LastOutcome() == nil {
		t.Error("expected LastOutcome recorded")
	}

	// The flag is released, so a fresh run is allowed again.
	if _, err := engine.Synchronize(ctx); err != nil {
		t.Errorf("expected run after release to succeed, got %v", err)
	}
}

// phantomStore lists ids the store cannot load, simulating a record deleted
// between the snapshot and the per-record pass.
type phantomStore struct {
	record.Store
	phantom string
}

func (p *phantomStore) ListAllIDs(ctx context.Context) ([]string, error) {
	ids, err := p.Store.ListAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	return append(ids, p.phantom), nil
}

func TestSynchronize_SkipsFailingRecords(t *testing.T) {
	ctx := context.Background()
	records := record.NewMemoryStore()
	records.Put(record.Record{ID: "good", Text: "loads fine"})

	engine := NewEngine(
		&phantomStore{Store: records, phantom: "vanished"},
		vector.NewMemoryIndex(),
		testEmbedder(&stubProvider{}),
		pool.New(2),
		nil,
	)

	outcome, err := engine.Synchronize(ctx)
	if err != nil {
		t.Fatalf("a skipped record must not fail the run: %v", err)
	}
	if outcome.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", outcome.Skipped)
	}
	if outcome.MissingAdded != 1 {
		t.Errorf("expected the loadable record indexed, got %d added", outcome.MissingAdded)
	}
}

func TestSynchronize_EmbeddingDegradesToZeroVector(t *testing.T) {
	ctx := context.Background()
	records := record.NewMemoryStore()
	records.Put(record.Record{ID: "a", Text: "alpha"})

	idx := vector.NewMemoryIndex()
	provider := &stubProvider{embedErr: errors.New("503 Service Unavailable")}
	engine := NewEngine(records, idx, testEmbedder(provider), pool.New(2), nil)

	outcome, err := engine.Synchronize(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.MissingAdded != 1 {
		t.Errorf("expected record indexed despite embedding failure, got %d", outcome.MissingAdded)
	}

	entries, _ := idx.EntriesBySourceID(ctx, "a")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	for _, v := range entries[0].Vector {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", entries[0].Vector)
		}
	}
}

func TestSynchronize_ListFailureAborts(t *testing.T) {
	engine := NewEngine(
		&failingListStore{},
		vector.NewMemoryIndex(),
		testEmbedder(&stubProvider{}),
		pool.New(2),
		nil,
	)
	if _, err := engine.Synchronize(context.Background()); err == nil {
		t.Fatal("expected listing failure to abort the run")
	}
	if engine.IsRunning() {
		t.Error("expected running flag cleared after an aborted run")
	}
}

type failingListStore struct{}

func (f *failingListStore) Get(ctx context.Context, id string) (*record.Record, error) {
	return nil, record.ErrNotFound
}

func (f *failingListStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (f *failingListStore) ListAllIDs(ctx context.Context) ([]string, error) {
	return nil, errors.New("store unavailable")
}
