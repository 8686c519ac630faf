// Package models defines the core domain models for provisioning workflows.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"   // Accepted, background task not started yet
	WorkflowStatusRunning   WorkflowStatus = "running"   // Background task executing steps
	WorkflowStatusCompleted WorkflowStatus = "completed" // All steps succeeded
	WorkflowStatusFailed    WorkflowStatus = "failed"    // A step failed, remaining steps not run
	WorkflowStatusCancelled WorkflowStatus = "cancelled" // Cooperative stop took effect
)

// IsTerminal reports whether no further transitions can leave this status.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowState is the aggregate root persisted as a single document. Only the
// scheduler's background task mutates it; everyone else reads snapshots.
type WorkflowState struct {
	ID               string           `json:"workflow_id"`
	Status           WorkflowStatus   `json:"status"`
	Steps            []StepRecord     `json:"steps"`
	CurrentStepIndex int              `json:"current_step_index"`
	Target           TargetDescriptor `json:"target_descriptor"`
	StepDelay        time.Duration    `json:"step_delay,omitempty"`
	StartTime        time.Time        `json:"start_time"`
	LastUpdateTime   time.Time        `json:"last_update_time"`
}

// ProgressPercent returns overall completion as whole-workflow percentage,
// counting terminal steps plus the in-flight step's own item progress.
func (w *WorkflowState) ProgressPercent() float64 {
	if len(w.Steps) == 0 {
		return 0
	}

	var done float64

	for _, step := range w.Steps {
		switch step.Status {
		case StepStatusSuccess, StepStatusFailed, StepStatusSkipped:
			done++
		case StepStatusInProgress:
			if step.Progress != nil && step.Progress.TotalItems > 0 {
				done += float64(step.Progress.ProcessedItems) / float64(step.Progress.TotalItems)
			}
		case StepStatusPending:
		}
	}

	return done / float64(len(w.Steps)) * 100
}
