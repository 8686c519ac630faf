// Package scheduler owns the background execution of provisioning workflows:
// it runs steps sequentially in a single cancellable task, persists state
// after every transition and enforces that at most one workflow runs at a
// time.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unearth4334/vast-api-sub001/pkg/eventbus"
	"github.com/unearth4334/vast-api-sub001/pkg/events"
	"github.com/unearth4334/vast-api-sub001/pkg/executor"
	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/otelhelper"
	"github.com/unearth4334/vast-api-sub001/pkg/registry"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
	"github.com/unearth4334/vast-api-sub001/pkg/store"
)

// DefaultGracePeriod is how long a terminal workflow document is retained so
// a slow-polling client still observes the final state at least once.
const DefaultGracePeriod = 30 * time.Second

// StepSubmission is one requested step in a start call.
type StepSubmission struct {
	Action  models.ActionKind `json:"action"`
	Label   string            `json:"label"`
	Params  json.RawMessage   `json:"params,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// StartRequest describes a workflow submission.
type StartRequest struct {
	Steps     []StepSubmission
	Target    models.TargetDescriptor
	StepDelay time.Duration
}

// Summary is the lightweight view served to frequent pollers.
type Summary struct {
	Active          bool                  `json:"active"`
	Status          models.WorkflowStatus `json:"status"`
	CurrentStep     int                   `json:"current_step"`
	TotalSteps      int                   `json:"total_steps"`
	ProgressPercent float64               `json:"progress_percent"`
	StartTime       time.Time             `json:"start_time"`
	LastUpdate      time.Time             `json:"last_update"`
}

type Scheduler struct {
	store       store.Store
	registry    *registry.Registry
	executor    *executor.Executor
	bus         eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer
	gracePeriod time.Duration

	// mu closes the check-then-act race in Start and guards the handle to
	// the background task.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(st store.Store, reg *registry.Registry, exec *executor.Executor, bus eventbus.EventBus, gracePeriod time.Duration, logger *slog.Logger) *Scheduler {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}

	return &Scheduler{
		store:       st,
		registry:    reg,
		executor:    exec,
		bus:         bus,
		logger:      logger.With("module", "scheduler"),
		tracer:      otel.Tracer("provisiond/scheduler"),
		gracePeriod: gracePeriod,
	}
}

// Start validates the submission, persists the initial state and launches the
// background task. It returns before any step executes. Concurrent calls
// yield exactly one success; the rest fail with ErrAlreadyRunning.
func (s *Scheduler) Start(ctx context.Context, req StartRequest) (string, error) {
	if len(req.Steps) == 0 {
		return "", errors.New("workflow requires at least one step")
	}

	// Unknown kinds and malformed params fail here, before anything is
	// persisted or any remote call attempted.
	for i, sub := range req.Steps {
		if err := s.registry.Validate(sub.Action, sub.Params); err != nil {
			return "", fmt.Errorf("step %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}

	if existing != nil && !existing.Status.IsTerminal() {
		return "", fmt.Errorf("%w: workflow %s", ErrAlreadyRunning, existing.ID)
	}

	state := &models.WorkflowState{
		ID:        uuid.NewString(),
		Status:    models.WorkflowStatusPending,
		Steps:     make([]models.StepRecord, 0, len(req.Steps)),
		Target:    req.Target,
		StepDelay: req.StepDelay,
		StartTime: time.Now().UTC(),
	}

	for _, sub := range req.Steps {
		state.Steps = append(state.Steps, models.StepRecord{
			Action:  sub.Action,
			Label:   sub.Label,
			Params:  sub.Params,
			Timeout: sub.Timeout,
			Status:  models.StepStatusPending,
		})
	}

	if err := s.store.Save(ctx, state); err != nil {
		return "", err
	}

	// The task gets its own context so it survives the caller's
	// request/response cycle.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, state, s.done)

	s.publish(ctx, state.ID, events.WorkflowStarted{
		BaseEvent:  s.baseEvent(events.WorkflowStartedEvent, state.ID),
		InstanceID: req.Target.InstanceID,
		StepCount:  len(req.Steps),
	})

	s.logger.Info("Workflow accepted", "workflow_id", state.ID, "steps", len(req.Steps))

	return state.ID, nil
}

// Stop requests cooperative cancellation. The flag is observed at the next
// safe checkpoint: a step boundary or a poll tick. Stopping a finished
// workflow is a no-op success.
func (s *Scheduler) Stop(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	if state == nil || state.ID != workflowID {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	if state.Status.IsTerminal() {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("Cancellation requested", "workflow_id", workflowID)

	return nil
}

// State returns the full persisted document.
func (s *Scheduler) State(ctx context.Context) (*models.WorkflowState, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if state == nil {
		return nil, ErrWorkflowNotFound
	}

	return state, nil
}

// Summary returns the cheap polling view.
func (s *Scheduler) Summary(ctx context.Context) (*Summary, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Active:          !state.Status.IsTerminal(),
		Status:          state.Status,
		CurrentStep:     state.CurrentStepIndex,
		TotalSteps:      len(state.Steps),
		ProgressPercent: state.ProgressPercent(),
		StartTime:       state.StartTime,
		LastUpdate:      state.LastUpdateTime,
	}, nil
}

// Clear removes the persisted document. Refused while the workflow runs. The
// load-check-clear sequence runs under the same mutex as Start, so a clear can
// never delete a workflow accepted between the check and the removal.
func (s *Scheduler) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	if state != nil && !state.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrWorkflowRunning, state.ID)
	}

	return s.store.Clear(ctx)
}

// Shutdown cancels any running task and waits for it to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the background task. It is the only goroutine that mutates the
// persisted document while the workflow is live.
func (s *Scheduler) run(ctx context.Context, state *models.WorkflowState, done chan struct{}) {
	defer close(done)

	logger := s.logger.With("workflow_id", state.ID)

	ctx, span := s.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, state.ID),
		attribute.Int(otelhelper.StepCountKey, len(state.Steps)),
	))
	defer span.End()

	state.Status = models.WorkflowStatusRunning
	s.persist(state, logger)

	for i := range state.Steps {
		state.CurrentStepIndex = i

		if ctx.Err() != nil {
			s.finishCancelled(state, i, logger)

			return
		}

		if i > 0 && state.StepDelay > 0 {
			select {
			case <-time.After(state.StepDelay):
			case <-ctx.Done():
				s.finishCancelled(state, i, logger)

				return
			}
		}

		step := &state.Steps[i]
		step.Status = models.StepStatusInProgress
		s.persist(state, logger)
		s.publish(ctx, state.ID, events.StepStarted{
			BaseEvent: s.baseEvent(events.StepStartedEvent, state.ID),
			StepIndex: i,
			Action:    step.Action,
			Label:     step.Label,
		})

		logger.Info("Executing step", "index", i, "action", step.Action, "label", step.Label)

		result, err := s.executor.Execute(ctx, state.ID, i, *step, state.Target, step.Timeout)

		// The executor persisted progress snapshots while the step ran;
		// reload so the final save does not roll them back.
		if refreshed, loadErr := s.store.Load(ctx); loadErr == nil && refreshed != nil && refreshed.ID == state.ID {
			state.Steps[i].Progress = refreshed.Steps[i].Progress
			step = &state.Steps[i]
		}

		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				s.finishCancelled(state, i, logger)

				return
			}

			s.finishFailed(state, i, err, logger)

			return
		}

		step.Status = models.StepStatusSuccess
		step.Result = result
		step.Progress = nil
		s.persist(state, logger)
		s.publish(ctx, state.ID, events.StepFinished{
			BaseEvent: s.baseEvent(events.StepFinishedEvent, state.ID),
			StepIndex: i,
			Action:    step.Action,
			Status:    models.StepStatusSuccess,
		})

		logger.Info("Step succeeded", "index", i, "action", step.Action)
	}

	state.CurrentStepIndex = len(state.Steps)
	state.Status = models.WorkflowStatusCompleted
	s.persist(state, logger)
	s.publish(ctx, state.ID, events.WorkflowCompleted{
		BaseEvent: s.baseEvent(events.WorkflowCompletedEvent, state.ID),
		Duration:  time.Since(state.StartTime),
	})

	logger.Info("Workflow completed", "steps", len(state.Steps))
}

// finishCancelled marks the current and remaining steps skipped and the
// workflow cancelled. Cancellation is not an error.
func (s *Scheduler) finishCancelled(state *models.WorkflowState, index int, logger *slog.Logger) {
	for i := index; i < len(state.Steps); i++ {
		if !state.Steps[i].Status.IsTerminal() {
			state.Steps[i].Status = models.StepStatusSkipped
			state.Steps[i].Progress = nil
		}
	}

	state.Status = models.WorkflowStatusCancelled
	s.persist(state, logger)
	s.publish(context.Background(), state.ID, events.WorkflowCancelled{
		BaseEvent: s.baseEvent(events.WorkflowCancelledEvent, state.ID),
		StepIndex: index,
	})

	logger.Info("Workflow cancelled", "at_step", index)
}

// finishFailed records the step error and halts the workflow. Failures are
// not retried; current_step_index stays at the failing step.
func (s *Scheduler) finishFailed(state *models.WorkflowState, index int, err error, logger *slog.Logger) {
	step := &state.Steps[index]
	step.Status = models.StepStatusFailed
	step.Progress = nil
	step.Error = &models.StepError{
		Code:    classifyError(err),
		Message: err.Error(),
	}

	for i := index + 1; i < len(state.Steps); i++ {
		state.Steps[i].Status = models.StepStatusSkipped
	}

	state.Status = models.WorkflowStatusFailed
	s.persist(state, logger)
	s.publish(context.Background(), state.ID, events.StepFinished{
		BaseEvent: s.baseEvent(events.StepFinishedEvent, state.ID),
		StepIndex: index,
		Action:    step.Action,
		Status:    models.StepStatusFailed,
		Error:     err.Error(),
	})
	s.publish(context.Background(), state.ID, events.WorkflowFailed{
		BaseEvent: s.baseEvent(events.WorkflowFailedEvent, state.ID),
		StepIndex: index,
		Error:     err.Error(),
	})

	logger.Error("Workflow failed", "at_step", index, "error", err)
}

func (s *Scheduler) persist(state *models.WorkflowState, logger *slog.Logger) {
	if err := s.store.Save(context.Background(), state); err != nil {
		logger.Error("Failed to persist workflow state", "error", err)
	}
}

func (s *Scheduler) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, key, event); err != nil {
		s.logger.Warn("Failed to publish event", "type", event.GetType(), "error", err)
	}
}

func (s *Scheduler) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	id := uuid.NewString()
	if s.bus != nil {
		id = s.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// classifyError maps executor failures onto the step error taxonomy.
func classifyError(err error) models.StepErrorCode {
	var remoteErr *remote.RemoteError

	switch {
	case executor.IsTimeout(err):
		return models.StepErrorTimeout
	case registry.IsUnknownAction(err), registry.IsInvalidParams(err):
		return models.StepErrorUnknownAction
	case errors.As(err, &remoteErr):
		return models.StepErrorRemote
	default:
		return models.StepErrorRemote
	}
}
