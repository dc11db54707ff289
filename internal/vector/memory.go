package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a thread-safe in-memory Index using cosine similarity.
// Used in tests and local runs without a Qdrant instance.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry // keyed by EntryID
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

func (m *MemoryIndex) Insert(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.EntryID] = e
	return nil
}

func (m *MemoryIndex) DeleteByID(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, entryID)
	return nil
}

func (m *MemoryIndex) DeleteBySourceID(ctx context.Context, sourceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.entries {
		if e.SourceID == sourceID {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int) ([]ScoredEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]ScoredEntry, 0, len(m.entries))
	for _, e := range m.entries {
		scored = append(scored, ScoredEntry{Entry: e, Score: cosineSimilarity(vector, e.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.EntryID < scored[j].Entry.EntryID
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (m *MemoryIndex) EntriesBySourceID(ctx context.Context, sourceID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (m *MemoryIndex) AllSourceIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, e := range m.entries {
		if _, ok := seen[e.SourceID]; !ok {
			seen[e.SourceID] = struct{}{}
			ids = append(ids, e.SourceID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryIndex) CountBySourceID(ctx context.Context, sourceID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries {
		if e.SourceID == sourceID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryIndex) Close() error { return nil }

// Len returns the total number of entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
