package sqlchat

import (
	"context"
	"time"
)

// TranslationRequest carries the conversation context handed to the query
// translator. AskedAt lets query generation be time-aware ("orders this
// week"). UserID is nil for anonymous callers.
type TranslationRequest struct {
	UserID   *int64
	Question string
	AskedAt  time.Time
}

// Translator converts a natural-language question into a structured query.
// An empty returned string is a valid business result meaning the question
// referenced no known entity; the pipeline depends on that convention to
// skip execution. Errors indicate adapter failure (network, provider).
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (string, error)
}

// QueryResult is the executor's structured outcome. Exactly one of Rows or
// ErrorMessage is meaningful: a query that ran and returned zero rows is a
// success with an empty RowSet, while ErrorMessage reports an engine-level
// failure (malformed query, missing relation, permission).
type QueryResult struct {
	Rows         *RowSet
	ErrorMessage string
}

// Failed reports whether the engine rejected the query.
func (r *QueryResult) Failed() bool {
	return r != nil && r.ErrorMessage != ""
}

// Executor runs a structured query against the relational engine. Engine
// failures are reported inside QueryResult; the error return is reserved for
// adapter-level faults such as a cancelled context.
type Executor interface {
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)
}

// Renderer turns a serialized row set back into natural language. It is a
// pure formatting step; any failure is adapter-level.
type Renderer interface {
	RenderAnswer(ctx context.Context, question, serializedRows string) (string, error)
}

// UserDirectory resolves a caller identity hint to a known active user.
// A nil user with a nil error means the hint matched nobody.
type UserDirectory interface {
	Find(ctx context.Context, username string) (*User, error)
}

// User is the identity record resolved by the request facade before a
// pipeline run starts.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}
