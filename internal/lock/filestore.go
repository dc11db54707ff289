package lock

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	statesFile  = "states.json"
	historyFile = "history.jsonl"
)

// FileStore persists lock states as one JSON document and history as an
// append-only JSONL file. Suitable for single-process deployments; the
// in-memory map is authoritative and flushed on every write.
type FileStore struct {
	mu      sync.Mutex
	rootDir string
	states  map[string]State
}

// NewFileStore creates or opens a lock store at the given directory.
func NewFileStore(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock store directory: %w", err)
	}

	s := &FileStore{rootDir: rootDir, states: make(map[string]State)}
	if err := s.loadStates(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, sourceID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[sourceID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(&state), nil
}

func (s *FileStore) Put(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.SourceID] = *cloneState(state)
	return s.saveStates()
}

func (s *FileStore) List(ctx context.Context) ([]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]State, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, *cloneState(&state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (s *FileStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.rootDir, historyFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s\n", data); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func (s *FileStore) History(ctx context.Context, sourceID string) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.rootDir, historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var out []HistoryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("parse history entry: %w", err)
		}
		if entry.SourceID == sourceID {
			out = append(out, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}
	return out, nil
}

func (s *FileStore) loadStates() error {
	data, err := os.ReadFile(filepath.Join(s.rootDir, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lock states: %w", err)
	}

	var states []State
	if err := json.Unmarshal(data, &states); err != nil {
		return fmt.Errorf("parse lock states: %w", err)
	}
	for _, state := range states {
		s.states[state.SourceID] = state
	}
	return nil
}

func (s *FileStore) saveStates() error {
	states := make([]State, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SourceID < states[j].SourceID })

	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock states: %w", err)
	}
	return os.WriteFile(filepath.Join(s.rootDir, statesFile), data, 0o644)
}
