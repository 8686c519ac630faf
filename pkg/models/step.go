package models

import (
	"encoding/json"
	"time"
)

// StepStatus represents the lifecycle state of a single step. Transitions only
// move forward; a step is never re-entered once terminal.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusSuccess    StepStatus = "success"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// IsTerminal reports whether the step has reached a final status.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSuccess, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// StepErrorCode classifies why a step did not succeed.
type StepErrorCode string

const (
	StepErrorTimeout          StepErrorCode = "timeout"
	StepErrorRemote           StepErrorCode = "remote_error"
	StepErrorUnknownAction    StepErrorCode = "unknown_action"
	StepErrorCancelled        StepErrorCode = "cancelled"
	StepErrorProcessRestarted StepErrorCode = "process_restarted"
)

// StepError is the terminal error payload recorded on a failed step.
type StepError struct {
	Code    StepErrorCode `json:"code"`
	Message string        `json:"message"`
}

func (e *StepError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// StepRecord is one unit of work within a workflow, mapped to exactly one
// action kind. Params are validated against the action's schema at submission,
// before any remote call is attempted.
type StepRecord struct {
	Action   ActionKind        `json:"action"`
	Label    string            `json:"label"`
	Params   json.RawMessage   `json:"params,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
	Status   StepStatus        `json:"status"`
	Progress *ProgressSnapshot `json:"progress,omitempty"`
	Result   map[string]any    `json:"result,omitempty"`
	Error    *StepError        `json:"error,omitempty"`
}
