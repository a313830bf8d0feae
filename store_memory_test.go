package sqlchat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRunState() *RunState {
	userID := int64(42)
	query := "SELECT id, total FROM orders"
	answer := "Two orders."
	return &RunState{
		SessionID:      "user_42",
		UserID:         &userID,
		UserQuery:      "show my orders",
		RequestTime:    time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC),
		GeneratedQuery: &query,
		RowResult: &RowSet{
			Columns: []string{"id", "total", "placed_at"},
			Rows: [][]any{
				{json.Number("1"), json.Number("19.90"), "2025-03-01T10:00:00Z"},
				{json.Number("2"), json.Number("0.10"), "2025-03-02T11:30:00Z"},
			},
		},
		FinalAnswer: &answer,
		History: []HistoryEntry{
			{Stage: StageTranslate, Note: "generated query", OK: true, Time: time.Date(2025, 3, 14, 15, 9, 27, 0, time.UTC)},
			{Stage: StageExecute, Note: "query returned 2 rows", OK: true, Time: time.Date(2025, 3, 14, 15, 9, 28, 0, time.UTC)},
			{Stage: StageRender, Note: "rendered answer", OK: true, Time: time.Date(2025, 3, 14, 15, 9, 29, 0, time.UTC)},
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := sampleRunState()

	require.NoError(t, store.Put(ctx, state.SessionID, state))

	got, err := store.Get(ctx, state.SessionID)
	require.NoError(t, err)
	require.Equal(t, state, got, "snapshot must round-trip field for field")
	require.Equal(t, json.Number("19.90"), got.RowResult.Rows[0][1], "fixed-point values keep exact text")
	require.True(t, state.RequestTime.Equal(got.RequestTime))
}

func TestMemoryStoreGetAbsent(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryStorePutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := sampleRunState()
	require.NoError(t, store.Put(ctx, "s", state))

	updated := sampleRunState()
	updated.UserQuery = "something else"
	require.NoError(t, store.Put(ctx, "s", updated))

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, "something else", got.UserQuery)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStoreRequiresSessionID(t *testing.T) {
	store := NewMemoryStore()
	require.Error(t, store.Put(context.Background(), "", sampleRunState()))
}

func TestMemoryStoreReturnsIsolatedCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := sampleRunState()
	require.NoError(t, store.Put(ctx, "s", state))

	first, err := store.Get(ctx, "s")
	require.NoError(t, err)
	first.UserQuery = "mutated"

	second, err := store.Get(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, "show my orders", second.UserQuery)
}

func TestNullStore(t *testing.T) {
	store := NewNullStore()
	require.NoError(t, store.Put(context.Background(), "s", sampleRunState()))
	got, err := store.Get(context.Background(), "s")
	require.NoError(t, err)
	require.Nil(t, got)
}
