// Package vector provides the similarity index: embedding-searchable entries,
// each holding a denormalized snapshot of one candidate record.
package vector

import "context"

// Entry is one similarity-searchable row. The reconciliation engine maintains
// the invariant that every record id in the authoritative store has exactly
// one Entry, and no Entry points at a missing record.
type Entry struct {
	EntryID    string            // UUID of this index row
	SourceID   string            // UUID of the authoritative record
	Vector     []float32         // Embedding of the snapshot
	Snapshot   string            // Record text at indexing time
	Attributes map[string]string // Denormalized record attributes
}

// ScoredEntry is a single match from a similarity query. Score is the
// similarity reported by the index; entries are returned best-first.
type ScoredEntry struct {
	Entry Entry
	Score float32
}

// Index provides vector storage and similarity search.
type Index interface {
	// Insert adds one entry.
	Insert(ctx context.Context, e Entry) error
	// DeleteByID removes a single entry by its entry id.
	DeleteByID(ctx context.Context, entryID string) error
	// DeleteBySourceID removes every entry for a source id and returns how
	// many entries were removed.
	DeleteBySourceID(ctx context.Context, sourceID string) (int, error)
	// Query returns the topK most similar entries, best-first.
	Query(ctx context.Context, vector []float32, topK int) ([]ScoredEntry, error)
	// EntriesBySourceID returns every entry holding the given source id.
	EntriesBySourceID(ctx context.Context, sourceID string) ([]Entry, error)
	// AllSourceIDs returns the distinct source ids present in the index.
	AllSourceIDs(ctx context.Context) ([]string, error)
	// CountBySourceID returns how many entries hold the given source id.
	CountBySourceID(ctx context.Context, sourceID string) (int, error)
	// Close releases resources.
	Close() error
}
