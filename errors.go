package sqlchat

import (
	"errors"
	"fmt"
)

// Failure kind constants classify what went wrong during a run. They appear
// in history notes and logs; callers never see them directly because every
// recoverable failure collapses to the fallback answer.
const (
	// FailureTranslation indicates the translator adapter failed outright.
	FailureTranslation = "translation_failed"

	// FailureNoQuery indicates the translator produced no usable query.
	// This is designed behavior for questions about unknown entities, not
	// an adapter fault.
	FailureNoQuery = "no_actionable_query"

	// FailureExecution indicates the engine rejected or could not run the
	// generated query.
	FailureExecution = "execution_failed"

	// FailureRender indicates the renderer adapter failed while formatting
	// the final answer.
	FailureRender = "render_failed"

	// FailureInfrastructure indicates the pipeline itself was unavailable.
	// This is the only kind that surfaces to the request facade as an
	// error instead of the fallback answer.
	FailureInfrastructure = "infrastructure"
)

// PipelineError is a structured, classified error raised inside the
// pipeline. It supports Go's error wrapping via Unwrap.
type PipelineError struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Cause   string `json:"cause"`
	Wrapped error  `json:"-"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Wrapped
}

// NewPipelineError creates a classified error for the given stage.
func NewPipelineError(stage Stage, kind, cause string) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Cause: cause}
}

// WrapStageError classifies an adapter error raised during a stage. An
// error that is already a PipelineError passes through unchanged.
func WrapStageError(stage Stage, err error) *PipelineError {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	kind := FailureInfrastructure
	switch stage {
	case StageTranslate:
		kind = FailureTranslation
	case StageExecute:
		kind = FailureExecution
	case StageRender:
		kind = FailureRender
	}
	return &PipelineError{
		Stage:   stage,
		Kind:    kind,
		Cause:   err.Error(),
		Wrapped: err,
	}
}
