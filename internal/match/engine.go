// Package match retrieves the candidates most similar to a job description
// and fans out one language-model explanation per candidate on a bounded
// worker pool. Retrieval failures are fatal to the request; everything past
// retrieval degrades to a low-confidence result instead of failing the batch.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/talentsync/talentsync/internal/llm"
	"github.com/talentsync/talentsync/internal/pool"
	"github.com/talentsync/talentsync/internal/record"
	"github.com/talentsync/talentsync/internal/retry"
	"github.com/talentsync/talentsync/internal/vector"
)

const (
	// DefaultTaskTimeout bounds one explanation task end to end.
	DefaultTaskTimeout = 30 * time.Second

	// DefaultLimit is used when the caller passes limit <= 0.
	DefaultLimit = 10

	// ExplanationUnavailable replaces the explanation when the language
	// model keeps failing past retry exhaustion. It must not contain any
	// digits, so score extraction falls through to DefaultScore.
	ExplanationUnavailable = "The match explanation could not be generated. The candidate was retrieved by similarity search but not scored."

	// ExplanationTimedOut replaces the explanation when the per-task
	// deadline expires. Also digit-free.
	ExplanationTimedOut = "The match explanation timed out before the language model responded."
)

// Result is one scored candidate match. Results are ephemeral and ordered the
// way the similarity index returned them.
type Result struct {
	Record      record.Record
	Score       int // 0..100
	Explanation string
}

// Config tunes the engine.
type Config struct {
	// TaskTimeout bounds a single explanation task (default 30s).
	TaskTimeout time.Duration
}

// Engine performs retrieval plus parallel explanation generation.
type Engine struct {
	index    vector.Index
	records  record.Store
	embedder *vector.Embedder
	provider llm.Provider
	policy   *retry.Policy
	pool     *pool.Pool
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewEngine constructs an Engine. workPool must be distinct from the pool
// used for ingestion and reconciliation so a slow explanation step cannot
// starve record-level work. provider may be nil for LLM-free operation, in
// which case every result carries the degraded explanation.
func NewEngine(index vector.Index, records record.Store, embedder *vector.Embedder, provider llm.Provider, policy *retry.Policy, workPool *pool.Pool, cfg *Config, logger *slog.Logger) *Engine {
	timeout := DefaultTaskTimeout
	if cfg != nil && cfg.TaskTimeout > 0 {
		timeout = cfg.TaskTimeout
	}
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		index:    index,
		records:  records,
		embedder: embedder,
		provider: provider,
		policy:   policy,
		pool:     workPool,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("github.com/talentsync/talentsync/internal/match"),
	}
}

// FindMatches embeds the query, retrieves the limit nearest entries and
// generates one explanation per resolved candidate. Embedding and index
// failures surface to the caller; per-candidate failures degrade. The output
// preserves the index's ranking order regardless of task completion order.
func (e *Engine) FindMatches(ctx context.Context, queryText string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, span := e.tracer.Start(ctx, "match.FindMatches",
		trace.WithAttributes(attribute.Int("match.limit", limit)))
	defer span.End()

	queryVector, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.index.Query(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	// Resolve records before fan-out; entries that resolve to nothing are
	// dropped, not fatal.
	resolved := make([]record.Record, 0, len(hits))
	for _, hit := range hits {
		rec, ok := e.resolve(ctx, hit)
		if !ok {
			continue
		}
		resolved = append(resolved, rec)
	}

	results := make([]Result, len(resolved))
	g := e.pool.Group()
	for i := range resolved {
		i := i
		g.Submit(func() {
			results[i] = e.explain(ctx, queryText, resolved[i])
		})
	}
	g.Wait()

	span.SetAttributes(attribute.Int("match.results", len(results)))
	return results, nil
}

// resolve turns an index hit into a Record. The entry's snapshot and
// attributes are preferred to avoid a second store lookup; the record store
// is the fallback for entries indexed without a snapshot.
func (e *Engine) resolve(ctx context.Context, hit vector.ScoredEntry) (record.Record, bool) {
	entry := hit.Entry
	if entry.Snapshot != "" {
		return record.Record{
			ID:         entry.SourceID,
			Text:       entry.Snapshot,
			Attributes: entry.Attributes,
		}, true
	}

	rec, err := e.records.Get(ctx, entry.SourceID)
	if err != nil {
		e.logger.Warn("dropping unresolvable index entry",
			"entry_id", entry.EntryID,
			"source_id", entry.SourceID,
			"error", err)
		return record.Record{}, false
	}
	return *rec, true
}

// explain runs one explanation task. It never returns an error: retry
// exhaustion and timeouts both yield a Result with a degraded explanation.
func (e *Engine) explain(ctx context.Context, queryText string, rec record.Record) Result {
	if e.provider == nil {
		return Result{Record: rec, Score: DefaultScore, Explanation: ExplanationUnavailable}
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildPrompt(queryText, rec.Text)
	explanation := retry.Execute(taskCtx, e.policy, func(ctx context.Context) (string, error) {
		resp, err := e.provider.Complete(ctx, prompt, nil)
		if err != nil {
			return "", err
		}
		return llm.StripThinkingTags(resp.Content), nil
	}, retry.Transient, func(err error, attempts int) string {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			e.logger.Warn("explanation timed out",
				"source_id", rec.ID,
				"attempts", attempts)
			return ExplanationTimedOut
		}
		e.logger.Warn("explanation degraded",
			"source_id", rec.ID,
			"attempts", attempts,
			"error", err)
		return ExplanationUnavailable
	})

	return Result{
		Record:      rec,
		Score:       ExtractScore(explanation),
		Explanation: explanation,
	}
}

// SortByScore reorders results best-first. FindMatches itself preserves the
// index order; this is for callers that explicitly want score order.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
