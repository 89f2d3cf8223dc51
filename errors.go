package signdoc

import (
	"errors"
	"fmt"
)

// Sentinel errors for the signing pipeline.
var (
	ErrMissingField      = errors.New("signdoc: required field is missing")
	ErrInvalidSubmission = errors.New("signdoc: invalid submission")
	ErrDispatch          = errors.New("signdoc: mail dispatch failed")
	ErrNotFound          = errors.New("signdoc: record not found")
	ErrStore             = errors.New("signdoc: record store failure")
)

// StageError reports a failure inside one composition stage.
// It wraps the underlying error and records the stage name for context.
type StageError struct {
	Stage string // stage name, e.g. "client_info", "signature"
	Err   error  // underlying error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signdoc.%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("signdoc.%s: unknown error", e.Stage)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a StageError wrapping err with the stage name.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// IsRetryable reports whether err is a failure the end user may retry,
// i.e. a mail dispatch failure. Nothing in this module retries on its own.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDispatch)
}
