package scheduler

import (
	"context"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// Reconcile repairs state left behind by a process restart. A persisted
// workflow still marked running has no backing task anymore; it is marked
// failed with a process_restarted error so the status is never ambiguous.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	state, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	if state == nil || state.Status.IsTerminal() {
		return nil
	}

	s.logger.Warn("Found workflow with no backing task at startup, marking failed",
		"workflow_id", state.ID, "status", state.Status)

	index := state.CurrentStepIndex
	if index >= len(state.Steps) {
		index = len(state.Steps) - 1
	}

	if index >= 0 {
		state.Steps[index].Status = models.StepStatusFailed
		state.Steps[index].Progress = nil
		state.Steps[index].Error = &models.StepError{
			Code:    models.StepErrorProcessRestarted,
			Message: "scheduler process restarted while the step was in flight",
		}

		for i := index + 1; i < len(state.Steps); i++ {
			state.Steps[i].Status = models.StepStatusSkipped
		}
	}

	state.Status = models.WorkflowStatusFailed

	return s.store.Save(ctx, state)
}
