package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sqlchat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testState() *sqlchat.RunState {
	userID := int64(42)
	query := "SELECT id, total, placed_at FROM orders WHERE user_id = 42"
	answer := "You placed two orders in March."
	return &sqlchat.RunState{
		SessionID:      "user_42",
		UserID:         &userID,
		UserQuery:      "what did I order in March?",
		RequestTime:    time.Date(2025, 3, 31, 8, 0, 0, 123456789, time.UTC),
		GeneratedQuery: &query,
		RowResult: &sqlchat.RowSet{
			Columns: []string{"id", "total", "placed_at"},
			Rows: [][]any{
				{json.Number("1"), json.Number("19.90"), "2025-03-01T10:00:00Z"},
				{json.Number("2"), json.Number("0.05"), "2025-03-20T18:45:00Z"},
			},
		},
		FinalAnswer: &answer,
		History: []sqlchat.HistoryEntry{
			{Stage: sqlchat.StageTranslate, Note: "generated query", OK: true, Time: time.Date(2025, 3, 31, 8, 0, 1, 0, time.UTC)},
			{Stage: sqlchat.StageExecute, Note: "query returned 2 rows", OK: true, Time: time.Date(2025, 3, 31, 8, 0, 2, 0, time.UTC)},
			{Stage: sqlchat.StageRender, Note: "rendered answer", OK: true, Time: time.Date(2025, 3, 31, 8, 0, 3, 0, time.UTC)},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	state := testState()

	require.NoError(t, store.Put(ctx, state.SessionID, state))

	got, err := store.Get(ctx, state.SessionID)
	require.NoError(t, err)
	require.Equal(t, state, got, "snapshot must round-trip field for field")
	require.Equal(t, json.Number("0.05"), got.RowResult.Rows[1][1])
	require.True(t, state.RequestTime.Equal(got.RequestTime))
}

func TestStoreGetAbsent(t *testing.T) {
	store := openTestStore(t)
	got, err := store.Get(context.Background(), "unknown")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStorePutOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testState()
	require.NoError(t, store.Put(ctx, "s", first))

	second := testState()
	second.UserQuery = "newer question"
	second.FinalAnswer = nil
	require.NoError(t, store.Put(ctx, "s", second))

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, "newer question", got.UserQuery)
	require.Nil(t, got.FinalAnswer)
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()
	state := testState()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, state.SessionID, state))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, state.SessionID)
	require.NoError(t, err)
	require.Equal(t, state, got)
}

func TestStoreRequiresSessionID(t *testing.T) {
	store := openTestStore(t)
	require.Error(t, store.Put(context.Background(), "", testState()))
}
