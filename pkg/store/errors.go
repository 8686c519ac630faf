package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStateNotFound indicates no workflow document is persisted.
	ErrStateNotFound = errors.New("workflow state not found")

	// ErrCorruptState indicates the persisted document failed to decode.
	// Load recovers from this locally; callers observe an absent document.
	ErrCorruptState = errors.New("workflow state corrupt")

	// ErrStepIndexOutOfRange indicates UpdateStep was called with an index
	// outside the persisted step list.
	ErrStepIndexOutOfRange = errors.New("step index out of range")
)

// StateError wraps store errors with operation context.
type StateError struct {
	Op  string // Operation being performed (e.g., "Save", "Load", "UpdateStep")
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow state: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a store error with operation context.
func NewStateError(op string, err error) *StateError {
	return &StateError{Op: op, Err: err}
}

// IsStateNotFound checks if an error indicates an absent document.
func IsStateNotFound(err error) bool {
	return errors.Is(err, ErrStateNotFound)
}

// IsCorruptState checks if an error indicates a corrupt document.
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}
