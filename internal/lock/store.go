package lock

import (
	"context"
	"sort"
	"sync"
)

// Store persists lock states and their history. Get returns ErrNotFound when
// no state exists for the id.
type Store interface {
	Get(ctx context.Context, sourceID string) (*State, error)
	Put(ctx context.Context, state *State) error
	List(ctx context.Context) ([]State, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	History(ctx context.Context, sourceID string) ([]HistoryEntry, error)
}

// MemoryStore is a thread-safe in-memory Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	states  map[string]State
	history []HistoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(ctx context.Context, sourceID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[sourceID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(&state), nil
}

func (s *MemoryStore) Put(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SourceID] = *cloneState(state)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]State, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, *cloneState(&state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (s *MemoryStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, sourceID string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []HistoryEntry
	for _, entry := range s.history {
		if entry.SourceID == sourceID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// cloneState deep-copies a state so callers cannot mutate stored rows.
func cloneState(state *State) *State {
	out := *state
	if state.ClaimedAt != nil {
		t := *state.ClaimedAt
		out.ClaimedAt = &t
	}
	if state.Evaluation != nil {
		eval := *state.Evaluation
		if eval.SubScores != nil {
			eval.SubScores = make(map[string]int, len(state.Evaluation.SubScores))
			for k, v := range state.Evaluation.SubScores {
				eval.SubScores[k] = v
			}
		}
		eval.Strengths = append([]string(nil), state.Evaluation.Strengths...)
		eval.Concerns = append([]string(nil), state.Evaluation.Concerns...)
		out.Evaluation = &eval
	}
	return &out
}
