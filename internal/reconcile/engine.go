// Package reconcile repairs the similarity index against the authoritative
// record store: every record gets exactly one index entry, and no entry
// survives without a backing record. Runs are single-flight and idempotent; a
// second pass over a healthy pair is a no-op.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/talentsync/talentsync/internal/pool"
	"github.com/talentsync/talentsync/internal/record"
	"github.com/talentsync/talentsync/internal/vector"
)

// ErrSyncInProgress is returned when Synchronize is called while another run
// holds the running flag.
var ErrSyncInProgress = errors.New("reconciliation already in progress")

// Outcome summarizes one reconciliation run. A run over an already-consistent
// pair reports all zeroes.
type Outcome struct {
	MissingAdded      int           `json:"missing_added"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	OrphansRemoved    int           `json:"orphans_removed"`
	Skipped           int           `json:"skipped"`
	RecordsScanned    int           `json:"records_scanned"`
	Duration          time.Duration `json:"duration"`
	StartedAt         time.Time     `json:"started_at"`
}

// Engine drives reconciliation runs.
type Engine struct {
	records  record.Store
	index    vector.Index
	embedder *vector.Embedder
	pool     *pool.Pool
	logger   *slog.Logger
	tracer   trace.Tracer

	running atomic.Bool
	last    atomic.Pointer[Outcome]
}

// NewEngine constructs a reconciliation engine. workPool bounds the per-record
// fan-out; it may be shared with ingestion but not with the match engine.
func NewEngine(records record.Store, index vector.Index, embedder *vector.Embedder, workPool *pool.Pool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		records:  records,
		index:    index,
		embedder: embedder,
		pool:     workPool,
		logger:   logger,
		tracer:   otel.Tracer("github.com/talentsync/talentsync/internal/reconcile"),
	}
}

// IsRunning reports whether a run is currently in flight.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// LastOutcome returns the outcome of the most recent completed run, or nil if
// none has completed yet.
func (e *Engine) LastOutcome() *Outcome { return e.last.Load() }

// Synchronize runs one full reconciliation pass. Only one run may be in
// flight at a time; concurrent callers get ErrSyncInProgress. Per-record
// failures are logged and skipped so one bad record cannot wedge the run;
// listing failures on either side abort it.
func (e *Engine) Synchronize(ctx context.Context) (Outcome, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrSyncInProgress
	}
	defer e.running.Store(false)

	ctx, span := e.tracer.Start(ctx, "reconcile.Synchronize")
	defer span.End()

	started := time.Now()
	ids, err := e.records.ListAllIDs(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("list record ids: %w", err)
	}

	var missingAdded, duplicatesRemoved, skipped atomic.Int64

	g := e.pool.Group()
	for _, id := range ids {
		id := id
		g.Submit(func() {
			added, removed, err := e.reconcileRecord(ctx, id)
			if err != nil {
				e.logger.Error("skipping record during reconciliation",
					"source_id", id,
					"error", err)
				skipped.Add(1)
				return
			}
			missingAdded.Add(int64(added))
			duplicatesRemoved.Add(int64(removed))
		})
	}
	g.Wait()

	// The orphan pass runs strictly after the record pass so entries added
	// above are never mistaken for orphans.
	orphansRemoved, err := e.removeOrphans(ctx, ids)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		MissingAdded:      int(missingAdded.Load()),
		DuplicatesRemoved: int(duplicatesRemoved.Load()),
		OrphansRemoved:    orphansRemoved,
		Skipped:           int(skipped.Load()),
		RecordsScanned:    len(ids),
		Duration:          time.Since(started),
		StartedAt:         started,
	}
	e.last.Store(&outcome)

	span.SetAttributes(
		attribute.Int("reconcile.missing_added", outcome.MissingAdded),
		attribute.Int("reconcile.duplicates_removed", outcome.DuplicatesRemoved),
		attribute.Int("reconcile.orphans_removed", outcome.OrphansRemoved),
	)
	e.logger.Info("reconciliation finished",
		"records_scanned", outcome.RecordsScanned,
		"missing_added", outcome.MissingAdded,
		"duplicates_removed", outcome.DuplicatesRemoved,
		"orphans_removed", outcome.OrphansRemoved,
		"skipped", outcome.Skipped,
		"duration", outcome.Duration)
	return outcome, nil
}

// reconcileRecord brings one record to exactly one index entry. It returns
// how many entries were added (0 or 1) and how many duplicates were removed.
func (e *Engine) reconcileRecord(ctx context.Context, id string) (added, removed int, err error) {
	count, err := e.index.CountBySourceID(ctx, id)
	if err != nil {
		return 0, 0, fmt.Errorf("count entries: %w", err)
	}

	switch {
	case count == 0:
		rec, err := e.records.Get(ctx, id)
		if err != nil {
			return 0, 0, fmt.Errorf("load record: %w", err)
		}
		if _, err := e.embedder.IndexRecord(ctx, e.index, rec); err != nil {
			return 0, 0, err
		}
		return 1, 0, nil

	case count == 1:
		return 0, 0, nil

	default:
		removed, err := e.dedupe(ctx, id)
		return 0, removed, err
	}
}

// dedupe removes every entry for a source id except the one with the smallest
// entry id, so concurrent runs converge on the same survivor.
func (e *Engine) dedupe(ctx context.Context, id string) (int, error) {
	entries, err := e.index.EntriesBySourceID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("list duplicate entries: %w", err)
	}
	if len(entries) <= 1 {
		// Another run already cleaned this id up.
		return 0, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EntryID < entries[j].EntryID
	})

	removed := 0
	for _, entry := range entries[1:] {
		if err := e.index.DeleteByID(ctx, entry.EntryID); err != nil {
			return removed, fmt.Errorf("delete duplicate %s: %w", entry.EntryID, err)
		}
		removed++
	}
	e.logger.Debug("removed duplicate index entries",
		"source_id", id,
		"kept", entries[0].EntryID,
		"removed", removed)
	return removed, nil
}

// removeOrphans deletes every index entry whose source id is absent from the
// record store snapshot. Each orphaned source id counts once, however many
// entries it had accumulated.
func (e *Engine) removeOrphans(ctx context.Context, knownIDs []string) (int, error) {
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}

	indexed, err := e.index.AllSourceIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list indexed source ids: %w", err)
	}

	removed := 0
	for _, id := range indexed {
		if _, ok := known[id]; ok {
			continue
		}
		n, err := e.index.DeleteBySourceID(ctx, id)
		if err != nil {
			e.logger.Error("skipping orphan during reconciliation",
				"source_id", id,
				"error", err)
			continue
		}
		e.logger.Debug("removed orphaned index entries",
			"source_id", id,
			"entries", n)
		removed++
	}
	return removed, nil
}
