package sqlchat

import "context"

// NullStore is a no-op SessionStore for callers that do not need
// checkpointing.
type NullStore struct{}

func NewNullStore() *NullStore {
	return &NullStore{}
}

func (s *NullStore) Put(ctx context.Context, sessionID string, state *RunState) error {
	return nil
}

func (s *NullStore) Get(ctx context.Context, sessionID string) (*RunState, error) {
	return nil, nil
}
