package sqlchat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// FallbackAnswer is the single system-wide answer returned whenever a stage
// fails in a recoverable way. Callers never learn whether the translator,
// the engine, or the renderer was at fault; that distinction lives only in
// the run history.
const FallbackAnswer = "Sorry, something went wrong while accessing the database. " +
	"Try rephrasing your question or checking it for correctness."

// Request describes one inbound question. SessionID addresses the session
// store snapshot; UserID is nil for anonymous callers. A zero AskedAt is
// replaced with the pipeline clock at run start.
type Request struct {
	SessionID string
	UserID    *int64
	Question  string
	AskedAt   time.Time
}

// PipelineOptions configures a new Pipeline. Translator, Executor and
// Renderer are required; Store defaults to a no-op store and Logger to a
// discard logger.
type PipelineOptions struct {
	Translator Translator
	Executor   Executor
	Renderer   Renderer
	Store      SessionStore
	Logger     *slog.Logger

	// Clock overrides time.Now, used by tests.
	Clock func() time.Time
}

// Pipeline sequences translate, execute and render for one question, saving
// a state snapshot after every stage transition. Each stage is attempted
// exactly once per run; every failure path is absorbed into the fallback
// answer so the caller always receives a string.
//
// A Pipeline is stateless across runs and safe for concurrent use. Two
// concurrent runs with the same session id are not serialized: the store
// keeps whichever snapshot was written last.
type Pipeline struct {
	translator Translator
	executor   Executor
	renderer   Renderer
	store      SessionStore
	logger     *slog.Logger
	clock      func() time.Time
}

// NewPipeline validates the options and returns a ready pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if opts.Store == nil {
		opts.Store = NewNullStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Pipeline{
		translator: opts.Translator,
		executor:   opts.Executor,
		renderer:   opts.Renderer,
		store:      opts.Store,
		logger:     opts.Logger,
		clock:      opts.Clock,
	}, nil
}

// Run executes the pipeline for one question and returns the completed run
// state. FinalAnswer is always set on the returned state; Run never panics
// past adapter boundaries and never returns nil.
func (p *Pipeline) Run(ctx context.Context, req Request) *RunState {
	state := newRunState(req, p.clock())
	logger := p.logger.With("session_id", state.SessionID)

	for stage := StageTranslate; stage != StageDone; {
		next := p.step(ctx, logger, stage, state)
		p.checkpoint(ctx, logger, state)
		stage = next
	}

	if state.FinalAnswer == nil {
		state.setFinalAnswer(FallbackAnswer)
		p.checkpoint(ctx, logger, state)
	}
	logger.Info("pipeline run completed",
		"stages_attempted", len(state.History),
		"fallback", state.Answer() == FallbackAnswer)
	return state
}

// step runs a single stage and returns the next one. All transitions of the
// machine live here.
func (p *Pipeline) step(ctx context.Context, logger *slog.Logger, stage Stage, state *RunState) Stage {
	switch stage {
	case StageTranslate:
		return p.translate(ctx, logger, state)
	case StageExecute:
		return p.execute(ctx, logger, state)
	case StageRender:
		return p.render(ctx, logger, state)
	default:
		return StageDone
	}
}

// translate invokes the query translator. Adapter failure leaves
// GeneratedQuery nil and still advances to the execute stage, which is
// responsible for rejecting an absent query.
func (p *Pipeline) translate(ctx context.Context, logger *slog.Logger, state *RunState) Stage {
	text, err := p.callTranslator(ctx, state)
	if err != nil {
		perr := WrapStageError(StageTranslate, err)
		logger.Error("query translation failed", "error", err)
		state.GeneratedQuery = nil
		state.appendHistory(StageTranslate, false, "query translation failed: "+perr.Cause, p.clock())
		return StageExecute
	}
	state.GeneratedQuery = &text
	state.appendHistory(StageTranslate, true, "generated query", p.clock())
	return StageExecute
}

// execute normalizes and runs the generated query. An absent or empty query
// short-circuits to the fallback answer without counting as an execute
// attempt. Engine failures likewise short-circuit; the render stage is only
// reachable with a populated row result.
func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, state *RunState) Stage {
	query := ""
	if state.GeneratedQuery != nil {
		query = NormalizeQuery(*state.GeneratedQuery)
	}
	if query == "" {
		logger.Info("no actionable query, skipping execution")
		state.setFinalAnswer(FallbackAnswer)
		return StageDone
	}

	result, err := p.callExecutor(ctx, query)
	if err == nil && result == nil {
		err = fmt.Errorf("executor returned no result")
	}
	if err != nil {
		perr := WrapStageError(StageExecute, err)
		logger.Error("query execution failed", "error", err)
		state.RowResult = nil
		state.appendHistory(StageExecute, false, "query execution failed: "+perr.Cause, p.clock())
		state.setFinalAnswer(FallbackAnswer)
		return StageDone
	}
	if result.Failed() {
		logger.Warn("engine rejected query", "error", result.ErrorMessage)
		state.RowResult = nil
		state.appendHistory(StageExecute, false, "query failed: "+result.ErrorMessage, p.clock())
		state.setFinalAnswer(FallbackAnswer)
		return StageDone
	}

	state.RowResult = result.Rows
	state.appendHistory(StageExecute, true, fmt.Sprintf("query returned %d rows", result.Rows.Len()), p.clock())
	return StageRender
}

// render serializes the row result and asks the renderer for prose. Any
// failure substitutes the fallback answer; the caller never observes an
// unset answer.
func (p *Pipeline) render(ctx context.Context, logger *slog.Logger, state *RunState) Stage {
	serialized, err := SerializeRows(state.RowResult)
	if err != nil {
		logger.Error("row serialization failed", "error", err)
		state.appendHistory(StageRender, false, "row serialization failed: "+err.Error(), p.clock())
		state.setFinalAnswer(FallbackAnswer)
		return StageDone
	}

	answer, err := p.callRenderer(ctx, state.UserQuery, serialized)
	if err != nil {
		perr := WrapStageError(StageRender, err)
		logger.Error("answer rendering failed", "error", err)
		state.appendHistory(StageRender, false, "answer rendering failed: "+perr.Cause, p.clock())
		state.setFinalAnswer(FallbackAnswer)
		return StageDone
	}

	state.appendHistory(StageRender, true, "rendered answer", p.clock())
	state.setFinalAnswer(answer)
	return StageDone
}

// callTranslator shields the pipeline from a panicking adapter.
func (p *Pipeline) callTranslator(ctx context.Context, state *RunState) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("translator panic: %v", r)
		}
	}()
	return p.translator.Translate(ctx, TranslationRequest{
		UserID:   state.UserID,
		Question: state.UserQuery,
		AskedAt:  state.RequestTime,
	})
}

func (p *Pipeline) callExecutor(ctx context.Context, query string) (result *QueryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return p.executor.ExecuteQuery(ctx, query)
}

func (p *Pipeline) callRenderer(ctx context.Context, question, rows string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return p.renderer.RenderAnswer(ctx, question, rows)
}

// checkpoint persists the current snapshot. Store failures are logged and
// do not interrupt the run; the caller still gets an answer.
func (p *Pipeline) checkpoint(ctx context.Context, logger *slog.Logger, state *RunState) {
	if err := p.store.Put(ctx, state.SessionID, state); err != nil {
		logger.Error("failed to save session snapshot", "error", err)
	}
}

// NormalizeQuery trims surrounding whitespace and strips markdown code
// fences from translator output, so that a fenced ```sql block executes as
// plain SQL.
func NormalizeQuery(query string) string {
	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
