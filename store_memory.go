package sqlchat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process SessionStore. Snapshots are stored in their
// serialized form so that Get returns an isolated copy with the same decode
// semantics as a durable store. Individual Put and Get calls are atomic per
// key; concurrent runs on the same session still race at the run level.
type MemoryStore struct {
	mutex     sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: map[string][]byte{}}
}

func (s *MemoryStore) Put(ctx context.Context, sessionID string, state *RunState) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.snapshots[sessionID] = data
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*RunState, error) {
	s.mutex.RLock()
	data, ok := s.snapshots[sessionID]
	s.mutex.RUnlock()
	if !ok {
		return nil, nil
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.snapshots)
}
