package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

const janitorSchedule = "@every 10s"

// StartJanitor launches the periodic sweep that clears terminal workflow
// documents once the grace period has passed, so a slow-polling client still
// observes the final state at least once before it disappears.
func (s *Scheduler) StartJanitor() (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := c.AddFunc(janitorSchedule, s.expireTerminal); err != nil {
		return nil, err
	}

	c.Start()
	s.logger.Info("State expiry janitor started", "grace_period", s.gracePeriod)

	return c, nil
}

func (s *Scheduler) expireTerminal() {
	ctx := context.Background()

	// Same critical section as Start and Clear: the sweep must not delete a
	// workflow accepted between its terminal-status check and the removal.
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil || state == nil {
		return
	}

	if !state.Status.IsTerminal() {
		return
	}

	if time.Since(state.LastUpdateTime) < s.gracePeriod {
		return
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("Failed to expire terminal workflow state", "error", err)

		return
	}

	s.logger.Info("Expired terminal workflow state",
		"workflow_id", state.ID, "status", state.Status)
}
