// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/deepnoodle-ai/sqlchat"
)

// QueryPipeline is the controller surface the facade drives.
type QueryPipeline interface {
	Run(ctx context.Context, req sqlchat.Request) *sqlchat.RunState
}

// Dependencies wires the handler. Pipeline may be nil when startup failed;
// the handler then reports an infrastructure error for every question
// instead of refusing to start, matching the one route that is allowed to
// return success=false.
type Dependencies struct {
	Logger   *slog.Logger
	Pipeline QueryPipeline
	Users    sqlchat.UserDirectory
}

type queryRequest struct {
	Query    string `json:"query"`
	Username string `json:"username,omitempty"`
}

type queryResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
}

// NewHandler builds the HTTP routing for the service.
func NewHandler(serviceName string, allowedOrigins []string, deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": serviceName})
	})

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		handleLogin(deps, w, r)
	})

	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})

	return chain(mux,
		corsMiddleware(allowedOrigins),
		loggingMiddleware(deps.Logger),
	)
}

// handleLogin resolves a username to the active user record. The lookup is
// parameterized inside the directory; this layer never builds SQL.
func handleLogin(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Users == nil {
		writeError(w, http.StatusInternalServerError, "user directory is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	user, err := deps.Users.Find(r.Context(), req.Username)
	if err != nil {
		deps.Logger.Error("user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleQuery resolves the caller's session, runs the pipeline and returns
// its answer. Pipeline-internal failures have already been absorbed into
// the fallback answer, so this route reports success for them; only a
// missing pipeline yields success=false.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeJSON(w, http.StatusInternalServerError, queryResponse{
			Success: false,
			Error:   "query pipeline is not initialized",
		})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	userID, sessionID := resolveSession(r.Context(), deps, req.Username)

	state := deps.Pipeline.Run(r.Context(), sqlchat.Request{
		SessionID: sessionID,
		UserID:    userID,
		Question:  req.Query,
	})

	writeJSON(w, http.StatusOK, queryResponse{
		Success: true,
		Result:  state.Answer(),
	})
}

// resolveSession maps an optional identity hint to a user id and a session
// id. Lookup failures degrade to an anonymous run rather than aborting the
// request.
func resolveSession(ctx context.Context, deps Dependencies, username string) (*int64, string) {
	if username != "" && deps.Users != nil {
		user, err := deps.Users.Find(ctx, username)
		if err != nil {
			deps.Logger.Warn("identity lookup failed, continuing anonymously", "error", err)
		} else if user != nil {
			return &user.ID, sqlchat.UserSessionID(user.ID)
		}
	}
	return nil, sqlchat.NewSessionID()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
