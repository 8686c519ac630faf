package scheduler

import "errors"

var (
	// ErrAlreadyRunning indicates a start was rejected because a workflow
	// is already running. At most one workflow runs process-wide.
	ErrAlreadyRunning = errors.New("a workflow is already running")

	// ErrWorkflowNotFound indicates no persisted workflow matches the
	// requested identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowRunning indicates a clear was refused because the
	// workflow has not reached a terminal status.
	ErrWorkflowRunning = errors.New("workflow is still running")
)

// IsAlreadyRunning checks if an error indicates a rejected concurrent start.
func IsAlreadyRunning(err error) bool {
	return errors.Is(err, ErrAlreadyRunning)
}

// IsWorkflowNotFound checks if an error indicates an absent workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowRunning checks if an error indicates a refused clear.
func IsWorkflowRunning(err error) bool {
	return errors.Is(err, ErrWorkflowRunning)
}
