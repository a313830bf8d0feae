package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/sqlchat"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	last   sqlchat.Request
	answer string
}

func (p *stubPipeline) Run(_ context.Context, req sqlchat.Request) *sqlchat.RunState {
	p.last = req
	state := &sqlchat.RunState{SessionID: req.SessionID}
	answer := p.answer
	state.FinalAnswer = &answer
	return state
}

type stubUsers struct {
	users map[string]*sqlchat.User
	err   error
}

func (u *stubUsers) Find(_ context.Context, username string) (*sqlchat.User, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.users[username], nil
}

func newTestHandler(pipeline QueryPipeline, users sqlchat.UserDirectory) http.Handler {
	return NewHandler("sqlchat", nil, Dependencies{Pipeline: pipeline, Users: users})
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestQueryReturnsPipelineAnswer(t *testing.T) {
	pipeline := &stubPipeline{answer: "You have 3 open orders."}
	handler := newTestHandler(pipeline, &stubUsers{})

	recorder := postJSON(t, handler, "/query", `{"query": "how many open orders do I have?"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "You have 3 open orders.", resp.Result)
	require.Empty(t, resp.Error)

	require.Equal(t, "how many open orders do I have?", pipeline.last.Question)
	require.Nil(t, pipeline.last.UserID)
	require.NotEmpty(t, pipeline.last.SessionID)
}

func TestQueryEmptyAnswerKeepsResultField(t *testing.T) {
	pipeline := &stubPipeline{answer: ""}
	handler := newTestHandler(pipeline, &stubUsers{})

	recorder := postJSON(t, handler, "/query", `{"query": "anything"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"result":""`)
}

func TestQueryResolvesKnownUserSession(t *testing.T) {
	pipeline := &stubPipeline{answer: "done"}
	users := &stubUsers{users: map[string]*sqlchat.User{
		"alice": {ID: 42, Username: "alice", IsActive: true},
	}}
	handler := newTestHandler(pipeline, users)

	recorder := postJSON(t, handler, "/query", `{"query": "list my invoices", "username": "alice"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	require.NotNil(t, pipeline.last.UserID)
	require.Equal(t, int64(42), *pipeline.last.UserID)
	require.Equal(t, sqlchat.UserSessionID(42), pipeline.last.SessionID)
}

func TestQueryUnknownUserRunsAnonymously(t *testing.T) {
	pipeline := &stubPipeline{answer: "done"}
	handler := newTestHandler(pipeline, &stubUsers{})

	recorder := postJSON(t, handler, "/query", `{"query": "anything", "username": "ghost"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Nil(t, pipeline.last.UserID)
	require.True(t, strings.HasPrefix(pipeline.last.SessionID, "session_"))
}

func TestQueryLookupErrorStillRuns(t *testing.T) {
	pipeline := &stubPipeline{answer: "done"}
	handler := newTestHandler(pipeline, &stubUsers{err: errors.New("connection refused")})

	recorder := postJSON(t, handler, "/query", `{"query": "anything", "username": "alice"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Nil(t, pipeline.last.UserID)
}

func TestQueryWithoutPipelineReportsFailure(t *testing.T) {
	handler := newTestHandler(nil, &stubUsers{})

	recorder := postJSON(t, handler, "/query", `{"query": "anything"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}

func TestQueryValidation(t *testing.T) {
	handler := newTestHandler(&stubPipeline{}, &stubUsers{})

	recorder := postJSON(t, handler, "/query", `{"query": ""}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = postJSON(t, handler, "/query", `{not json`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLoginReturnsUserRecord(t *testing.T) {
	users := &stubUsers{users: map[string]*sqlchat.User{
		"alice": {ID: 42, Username: "alice", IsActive: true},
	}}
	handler := newTestHandler(&stubPipeline{}, users)

	recorder := postJSON(t, handler, "/auth/login", `{"username": "alice"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var user sqlchat.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &user))
	require.Equal(t, int64(42), user.ID)
	require.Equal(t, "alice", user.Username)
	require.True(t, user.IsActive)
}

func TestLoginUnknownUser(t *testing.T) {
	handler := newTestHandler(&stubPipeline{}, &stubUsers{})

	recorder := postJSON(t, handler, "/auth/login", `{"username": "ghost"}`)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestLoginDatabaseError(t *testing.T) {
	handler := newTestHandler(&stubPipeline{}, &stubUsers{err: errors.New("down")})

	recorder := postJSON(t, handler, "/auth/login", `{"username": "alice"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestLoginValidation(t *testing.T) {
	handler := newTestHandler(&stubPipeline{}, &stubUsers{})

	recorder := postJSON(t, handler, "/auth/login", `{"username": "  "}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHealth(t *testing.T) {
	handler := newTestHandler(&stubPipeline{}, &stubUsers{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"ok"`)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewHandler("sqlchat", []string{"https://app.example.com"}, Dependencies{
		Pipeline: &stubPipeline{},
		Users:    &stubUsers{},
	})

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "https://app.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	require.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}
