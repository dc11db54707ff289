package lock

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talentsync/talentsync/internal/observability"
)

const stripes = 64

// Manager is the lock state machine. Mutations on the same record are
// serialized through a striped mutex keyed by source id, so claims on
// different records never contend and concurrent claims on the same record
// resolve to one winner.
type Manager struct {
	store  Store
	mu     [stripes]chan struct{}
	audit  *observability.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs a Manager over a Store. audit may be nil.
func NewManager(store Store, audit *observability.AuditLogger, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
	for i := range m.mu {
		m.mu[i] = make(chan struct{}, 1)
	}
	return m
}

func (m *Manager) stripe(sourceID string) chan struct{} {
	h := fnv.New32a()
	h.Write([]byte(sourceID))
	return m.mu[h.Sum32()%stripes]
}

func (m *Manager) lock(ctx context.Context, sourceID string) (func(), error) {
	stripe := m.stripe(sourceID)
	select {
	case stripe <- struct{}{}:
		return func() { <-stripe }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Claim locks a record for a holder. A repeated claim by the current holder
// that changes nothing returns the existing state without writing anything;
// any actual change writes the state plus one history entry. A claim against
// a lock held by someone else fails with AlreadyLockedError.
func (m *Manager) Claim(ctx context.Context, sourceID, holder string, eval *Evaluation) (*State, error) {
	if sourceID == "" {
		return nil, &InvalidArgumentError{Field: "sourceID", Reason: "must not be empty"}
	}
	if holder == "" {
		return nil, &InvalidArgumentError{Field: "holder", Reason: "must not be empty"}
	}

	unlock, err := m.lock(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := m.store.Get(ctx, sourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if current != nil && current.Locked && current.Holder != holder {
		return nil, &AlreadyLockedError{SourceID: sourceID, Holder: current.Holder}
	}

	if current != nil && current.Locked && current.Holder == holder && eval == nil {
		// Re-claim by the current holder with no new data: no write, no
		// history entry.
		return cloneState(current), nil
	}

	next := m.nextClaimState(current, sourceID, holder, eval)
	if current != nil && statesEqual(current, next) {
		// The evaluation carried nothing new either.
		return cloneState(current), nil
	}

	next.UpdatedAt = m.now()
	if err := m.store.Put(ctx, next); err != nil {
		return nil, err
	}
	if err := m.appendHistory(ctx, current, next, holder, ""); err != nil {
		return nil, err
	}

	if m.audit != nil {
		m.audit.LogLockClaim(ctx, sourceID, holder)
	}
	m.logger.Info("record claimed", "source_id", sourceID, "holder", holder)
	return cloneState(next), nil
}

func (m *Manager) nextClaimState(current *State, sourceID, holder string, eval *Evaluation) *State {
	next := &State{SourceID: sourceID}
	if current != nil {
		next = cloneState(current)
	}
	next.Locked = true
	next.Holder = holder
	// The status dimension is orthogonal to the lock boolean: a claim only
	// moves OPEN to LOCKED and leaves reviewer-set statuses alone.
	if next.Status == "" || next.Status == StatusOpen {
		next.Status = StatusLocked
		next.CustomStatus = ""
	}
	if next.ClaimedAt == nil {
		t := m.now()
		next.ClaimedAt = &t
	}
	if eval != nil {
		next.Evaluation = m.mergeEvaluation(next.Evaluation, eval)
	}
	return next
}

// mergeEvaluation applies the incoming evaluation, updating the two
// list-valued fields by membership delta so retained items keep their
// positions.
func (m *Manager) mergeEvaluation(current, incoming *Evaluation) *Evaluation {
	next := *incoming
	if current != nil {
		next.Strengths = applyListDelta(current.Strengths, incoming.Strengths)
		next.Concerns = applyListDelta(current.Concerns, incoming.Concerns)
	}
	return &next
}

// Release unlocks a record. Fails with ErrNotFound when no lock exists and
// ErrUnauthorized when the lock is held by someone else.
func (m *Manager) Release(ctx context.Context, sourceID, holder string) (*State, error) {
	if sourceID == "" {
		return nil, &InvalidArgumentError{Field: "sourceID", Reason: "must not be empty"}
	}

	unlock, err := m.lock(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := m.store.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !current.Locked {
		return nil, ErrNotFound
	}
	if current.Holder != holder {
		return nil, ErrUnauthorized
	}

	next := cloneState(current)
	next.Locked = false
	next.Holder = ""
	next.ClaimedAt = nil
	// Only the claim-derived LOCKED status reverts to OPEN; a status the
	// reviewers set explicitly survives the release.
	if next.Status == StatusLocked {
		next.Status = StatusOpen
		next.CustomStatus = ""
	}
	next.UpdatedAt = m.now()

	if err := m.store.Put(ctx, next); err != nil {
		return nil, err
	}
	if err := m.appendHistory(ctx, current, next, holder, ""); err != nil {
		return nil, err
	}

	if m.audit != nil {
		m.audit.LogLockRelease(ctx, sourceID, holder)
	}
	m.logger.Info("record released", "source_id", sourceID, "holder", holder)
	return cloneState(next), nil
}

// UpdateStatus sets the status dimension. Status updates are explicit user
// actions and always append a history entry, even when the value is
// unchanged; the state row itself is only rewritten when it changed.
func (m *Manager) UpdateStatus(ctx context.Context, sourceID string, newStatus Status, newCustom, changedBy, comment string) (*State, error) {
	if sourceID == "" {
		return nil, &InvalidArgumentError{Field: "sourceID", Reason: "must not be empty"}
	}
	if !newStatus.Valid() {
		return nil, &InvalidArgumentError{Field: "status", Reason: "unknown status " + string(newStatus)}
	}
	if newStatus == StatusCustom && newCustom == "" {
		return nil, &InvalidArgumentError{Field: "customStatus", Reason: "required when status is CUSTOM"}
	}
	if newStatus != StatusCustom {
		newCustom = ""
	}

	unlock, err := m.lock(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := m.store.Get(ctx, sourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	next := &State{SourceID: sourceID}
	if current != nil {
		next = cloneState(current)
	}
	next.Status = newStatus
	next.CustomStatus = newCustom

	if current == nil || !statesEqual(current, next) {
		next.UpdatedAt = m.now()
		if err := m.store.Put(ctx, next); err != nil {
			return nil, err
		}
	}
	if err := m.appendHistory(ctx, current, next, changedBy, comment); err != nil {
		return nil, err
	}

	if m.audit != nil {
		m.audit.LogStatusChange(ctx, sourceID, string(newStatus), newCustom, changedBy)
	}
	return cloneState(next), nil
}

// GetBySourceID returns the lock state for a record, or ErrNotFound.
func (m *Manager) GetBySourceID(ctx context.Context, sourceID string) (*State, error) {
	return m.store.Get(ctx, sourceID)
}

// ListByHolder returns every state currently locked by the holder.
func (m *Manager) ListByHolder(ctx context.Context, holder string) ([]State, error) {
	states, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := states[:0]
	for _, state := range states {
		if state.Locked && state.Holder == holder {
			out = append(out, state)
		}
	}
	return out, nil
}

// ListLocked returns every currently locked state.
func (m *Manager) ListLocked(ctx context.Context) ([]State, error) {
	states, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := states[:0]
	for _, state := range states {
		if state.Locked {
			out = append(out, state)
		}
	}
	return out, nil
}

// History returns the status transitions recorded for a record, oldest first.
func (m *Manager) History(ctx context.Context, sourceID string) ([]HistoryEntry, error) {
	return m.store.History(ctx, sourceID)
}

func (m *Manager) appendHistory(ctx context.Context, previous, next *State, changedBy, comment string) error {
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		SourceID:  next.SourceID,
		NewStatus: next.Status,
		NewCustom: next.CustomStatus,
		ChangedBy: changedBy,
		ChangedAt: m.now(),
		Comment:   comment,
	}
	if previous != nil {
		entry.PreviousStatus = previous.Status
		entry.PreviousCustom = previous.CustomStatus
	}
	return m.store.AppendHistory(ctx, entry)
}
