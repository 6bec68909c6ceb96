package errors

import (
	"errors"
	"fmt"
)

// StageFailure wraps the underlying error from a stage action, annotated
// with the stage name. The scheduler surfaces exactly one StageFailure per
// run: the first stage that failed.
type StageFailure struct {
	Stage string
	Cause error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}

// NewStageFailure annotates err with the failing stage's name. If err is
// already a StageFailure (a composed stage re-running an inner graph), it is
// returned unchanged so the innermost attribution wins.
func NewStageFailure(stage string, err error) *StageFailure {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return sf
	}
	return &StageFailure{Stage: stage, Cause: err}
}

// AsStageFailure extracts a StageFailure from an error chain.
func AsStageFailure(err error) (*StageFailure, bool) {
	var sf *StageFailure
	ok := errors.As(err, &sf)
	return sf, ok
}
