package record

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a thread-safe in-memory Store, used in tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Put inserts or replaces a record. Writes happen outside the core; this
// exists for tests and local ingestion.
func (s *MemoryStore) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
}

// Delete removes a record if present.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	if rec.Attributes != nil {
		out.Attributes = make(map[string]string, len(rec.Attributes))
		for k, v := range rec.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out, nil
}

func (s *MemoryStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *MemoryStore) ListAllIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
