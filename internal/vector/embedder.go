package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talentsync/talentsync/internal/llm"
	"github.com/talentsync/talentsync/internal/record"
	"github.com/talentsync/talentsync/internal/retry"
)

// DefaultDimensions matches text-embedding-3-small.
const DefaultDimensions = 1536

// Embedder wraps an LLM provider to produce embeddings and index records.
type Embedder struct {
	provider llm.Provider
	dim      int
	policy   *retry.Policy
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder. dim is the provider's fixed embedding
// dimensionality; zero means DefaultDimensions. policy governs the degraded
// embedding path (EmbedOrZero); nil means retry.DefaultPolicy().
func NewEmbedder(provider llm.Provider, dim int, policy *retry.Policy, logger *slog.Logger) *Embedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{provider: provider, dim: dim, policy: policy, logger: logger}
}

// Dimensions returns the configured embedding dimensionality.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed returns the embedding for one text. Failures propagate to the caller.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("embedding: no provider configured")
	}
	vectors, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding: expected 1 non-empty vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedOrZero returns the embedding for one text, retrying transient failures
// and degrading to an all-zero vector of the configured dimensionality when
// retries are exhausted. Downstream ranking degrades instead of crashing.
func (e *Embedder) EmbedOrZero(ctx context.Context, text string) []float32 {
	return retry.Execute(ctx, e.policy, func(ctx context.Context) ([]float32, error) {
		return e.Embed(ctx, text)
	}, retry.Transient, func(err error, attempts int) []float32 {
		e.logger.Warn("embedding degraded to zero vector",
			"attempts", attempts,
			"error", err)
		return make([]float32, e.dim)
	})
}

// IndexRecord embeds a record and inserts one entry for it. The entry id is a
// fresh UUID; the record text and attributes are denormalized into the entry.
func (e *Embedder) IndexRecord(ctx context.Context, idx Index, rec *record.Record) (Entry, error) {
	vec := e.EmbedOrZero(ctx, rec.Text)
	entry := Entry{
		EntryID:    uuid.NewString(),
		SourceID:   rec.ID,
		Vector:     vec,
		Snapshot:   rec.Text,
		Attributes: rec.Attributes,
	}
	if err := idx.Insert(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("index record %s: %w", rec.ID, err)
	}
	return entry, nil
}
