package sqlchat

import "context"

// SessionStore durably associates a session id with the most recent run
// state snapshot, so a conversation can be inspected or resumed after a
// crash between stages.
type SessionStore interface {
	// Put overwrites the snapshot for the session. Implementations must
	// make the write durable before returning.
	Put(ctx context.Context, sessionID string, state *RunState) error

	// Get returns the latest snapshot for the session, or (nil, nil) when
	// no snapshot exists. It never returns partially written state.
	Get(ctx context.Context, sessionID string) (*RunState, error)
}
