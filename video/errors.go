package video

import (
	"errors"
	"fmt"
)

// ErrNoFrames is returned when extraction yields an empty frame set.
var ErrNoFrames = errors.New("no frames extracted")

// CollaboratorError wraps a failed Transcoder call.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("transcoder %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func collab(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}

// PhaseError reports the pipeline phase a run failed in. It is returned
// after cleanup has been attempted.
type PhaseError struct {
	Phase State
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
