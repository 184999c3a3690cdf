package services

import (
	"errors"
	"fmt"
)

// ValidationError blocks a submission before anything is sent to the backend.
// OptionIndex is zero-based and is -1 when the failure is not about an option.
type ValidationError struct {
	Field       string
	OptionIndex int
	Message     string
}

func (e *ValidationError) Error() string { return e.Message }

var ErrMinimumOptions = errors.New("at least 2 options are required")

// BackendReadError means a list or counter could not be loaded.
type BackendReadError struct {
	Op  string
	Err error
}

func (e *BackendReadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Op, e.Err)
}

func (e *BackendReadError) Unwrap() error { return e.Err }

// BackendWriteError means a write was rejected and nothing was left behind
// by this call.
type BackendWriteError struct {
	Op  string
	Err error
}

func (e *BackendWriteError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *BackendWriteError) Unwrap() error { return e.Err }

// PartialWriteError means the question row was written but its options were
// not. Compensated reports whether the question row was removed again; when
// it is false the question is orphaned with zero options.
type PartialWriteError struct {
	QuestionID    int64
	Compensated   bool
	Err           error
	CompensateErr error
}

func (e *PartialWriteError) Error() string {
	if e.Compensated {
		return fmt.Sprintf("failed to add options, question %d was rolled back: %v", e.QuestionID, e.Err)
	}
	return fmt.Sprintf("failed to add options, question %d is left without options: %v", e.QuestionID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// As lets callers that only know about BackendWriteError handle a partial
// write the same way.
func (e *PartialWriteError) As(target any) bool {
	if t, ok := target.(**BackendWriteError); ok {
		*t = &BackendWriteError{Op: "add question options", Err: e.Err}
		return true
	}
	return false
}
