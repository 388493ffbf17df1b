package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a step failure for callers and the analytics log.
type Kind string

const (
	KindInputNotFound           Kind = "input_not_found"
	KindCollaboratorUnavailable Kind = "collaborator_unavailable"
	KindMalformedExtraction     Kind = "malformed_extraction"
	KindPersistence             Kind = "persistence_error"
)

// StepError is the single error surfaced from a failed run: the step that
// failed, its classification, and the underlying cause.
type StepError struct {
	Step string
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or "" when err is not a StepError.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
