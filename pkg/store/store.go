// Package store defines the contract for the durable workflow state document.
package store

import (
	"context"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// Store holds the single persisted workflow document. Writes come exclusively
// from the scheduler's background task; reads are safe from any goroutine.
type Store interface {
	// Save atomically replaces the persisted document.
	Save(ctx context.Context, state *models.WorkflowState) error

	// Load returns the persisted document, or (nil, nil) when absent. A
	// corrupted document is treated as absent so the system can always
	// accept a new workflow.
	Load(ctx context.Context) (*models.WorkflowState, error)

	// Clear removes the persisted document. Clearing an absent document is
	// not an error.
	Clear(ctx context.Context) error

	// UpdateStep loads the document, applies mutate to steps[index], bumps
	// last_update_time and saves.
	UpdateStep(ctx context.Context, index int, mutate func(*models.StepRecord)) error
}
