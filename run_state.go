package sqlchat

import "time"

// Stage identifies one step of the question-answering pipeline.
type Stage string

const (
	StageTranslate Stage = "translate"
	StageExecute   Stage = "execute"
	StageRender    Stage = "render"

	// StageDone is the only terminal stage. Every run reaches it.
	StageDone Stage = "done"
)

// HistoryEntry is a short status annotation recorded for one stage attempt.
// History is observability only and never drives pipeline decisions.
type HistoryEntry struct {
	Stage Stage     `json:"stage"`
	Note  string    `json:"note"`
	OK    bool      `json:"ok"`
	Time  time.Time `json:"time"`
}

// RunState is the unit of state threaded through the pipeline and persisted
// to the session store after every stage transition. One RunState exists per
// inbound question; consecutive runs for the same caller share a session id
// so the store always holds the latest snapshot for that conversation.
//
// Optional fields use pointers so that "not yet set" is distinguishable from
// a set-but-empty value. GeneratedQuery in particular keeps a three-way
// distinction: nil means the translator failed or has not run, an empty
// string means the translator deliberately produced no query.
type RunState struct {
	SessionID      string         `json:"session_id"`
	UserID         *int64         `json:"user_id,omitempty"`
	UserQuery      string         `json:"user_query"`
	RequestTime    time.Time      `json:"request_time"`
	GeneratedQuery *string        `json:"generated_query,omitempty"`
	RowResult      *RowSet        `json:"row_result,omitempty"`
	FinalAnswer    *string        `json:"final_answer,omitempty"`
	History        []HistoryEntry `json:"history"`
}

func newRunState(req Request, now time.Time) *RunState {
	askedAt := req.AskedAt
	if askedAt.IsZero() {
		askedAt = now
	}
	return &RunState{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		UserQuery:   req.Question,
		RequestTime: askedAt,
	}
}

// Answer returns the caller-visible answer. The pipeline guarantees
// FinalAnswer is set by the time a run completes; the fallback here only
// covers callers inspecting a snapshot of an interrupted run.
func (s *RunState) Answer() string {
	if s.FinalAnswer == nil {
		return FallbackAnswer
	}
	return *s.FinalAnswer
}

// setFinalAnswer records the answer exactly once. Later attempts to
// overwrite it are ignored.
func (s *RunState) setFinalAnswer(answer string) {
	if s.FinalAnswer != nil {
		return
	}
	s.FinalAnswer = &answer
}

func (s *RunState) appendHistory(stage Stage, ok bool, note string, at time.Time) {
	s.History = append(s.History, HistoryEntry{
		Stage: stage,
		Note:  note,
		OK:    ok,
		Time:  at,
	})
}
