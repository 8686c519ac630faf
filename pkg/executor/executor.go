// Package executor performs one workflow step: dispatches to the action for
// the step's kind, applies its timeout budget and, for monitored actions,
// polls the remote progress document while the operation runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unearth4334/vast-api-sub001/pkg/eventbus"
	"github.com/unearth4334/vast-api-sub001/pkg/events"
	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/otelhelper"
	"github.com/unearth4334/vast-api-sub001/pkg/progress"
	"github.com/unearth4334/vast-api-sub001/pkg/protocol"
	"github.com/unearth4334/vast-api-sub001/pkg/registry"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
	"github.com/unearth4334/vast-api-sub001/pkg/store"
)

// ErrTimeout indicates the remote operation exceeded the step's budget.
var ErrTimeout = errors.New("step timed out")

// DefaultPollInterval is how often a monitored step reads its progress
// document.
const DefaultPollInterval = 2 * time.Second

type Executor struct {
	registry     *registry.Registry
	store        store.Store
	client       *remote.Client
	bus          eventbus.EventBus
	pollInterval time.Duration
	windowSize   int
	logger       *slog.Logger
	tracer       trace.Tracer
}

func NewExecutor(reg *registry.Registry, st store.Store, client *remote.Client, bus eventbus.EventBus, pollInterval time.Duration, logger *slog.Logger) *Executor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Executor{
		registry:     reg,
		store:        st,
		client:       client,
		bus:          bus,
		pollInterval: pollInterval,
		windowSize:   progress.DefaultWindowSize,
		logger:       logger.With("module", "step_executor"),
		tracer:       otel.Tracer("provisiond/executor"),
	}
}

// Execute runs steps[index] against the target and blocks until the step
// finishes, times out or ctx is cancelled. Progress snapshots for monitored
// steps are written through the store on every poll tick, independent of when
// Execute returns.
func (e *Executor) Execute(ctx context.Context, workflowID string, index int, step models.StepRecord, target models.TargetDescriptor, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout(step.Action)
	}

	logger := e.logger.With("step_index", index, "action", step.Action, "label", step.Label)

	ctx, span := e.tracer.Start(ctx, "step.execute", trace.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ActionKindKey, string(step.Action)),
		attribute.Int(otelhelper.StepIndexKey, index),
		attribute.String(otelhelper.InstanceIDKey, target.InstanceID),
	))
	defer span.End()

	action, err := e.registry.Create(step.Action, step.Params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if monitored, ok := action.(protocol.Monitored); ok {
		return e.executeMonitored(ctx, workflowID, index, step.Action, monitored, target, logger)
	}

	result, err := action.Execute(ctx, target, logger)
	if err != nil {
		return nil, e.mapContextError(ctx, err)
	}

	return result, nil
}

// executeMonitored starts the agent job and polls its progress document at a
// fixed interval, folding each read into the step's snapshot until the job
// reaches a terminal state.
func (e *Executor) executeMonitored(ctx context.Context, workflowID string, index int, kind models.ActionKind, action protocol.Monitored, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error) {
	job, err := action.Start(ctx, target, logger)
	if err != nil {
		return nil, e.mapContextError(ctx, err)
	}

	logger = logger.With("job_id", job.ID, "progress_path", action.ProgressPath())
	logger.Info("Monitoring remote job")

	aggregator := progress.NewAggregator(action.TotalItems(), e.windowSize, logger)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, e.mapContextError(ctx, ctx.Err())

		case <-ticker.C:
			e.pollProgress(ctx, workflowID, index, kind, action, target, aggregator, logger)

			status, err := job.Status(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, e.mapContextError(ctx, ctx.Err())
				}

				// Transient agent hiccup; the next tick retries.
				logger.Warn("Failed to read job status", "error", err)

				continue
			}

			switch status.State {
			case remote.JobSuccess:
				logger.Info("Remote job finished")

				return status.Result, nil
			case remote.JobFailed:
				return nil, &remote.RemoteError{Status: 0, Body: status.Error}
			case remote.JobRunning:
			}
		}
	}
}

func (e *Executor) pollProgress(ctx context.Context, workflowID string, index int, kind models.ActionKind, action protocol.Monitored, target models.TargetDescriptor, aggregator *progress.Aggregator, logger *slog.Logger) {
	raw, err := e.client.ReadProgress(ctx, target, action.ProgressPath())
	if err != nil {
		logger.Debug("Progress document not readable this tick", "error", err)

		return
	}

	snapshot := aggregator.Fold(raw)

	err = e.store.UpdateStep(ctx, index, func(step *models.StepRecord) {
		step.Progress = snapshot
	})
	if err != nil {
		logger.Warn("Failed to persist progress snapshot", "error", err)
	}

	e.publishProgress(ctx, workflowID, index, kind, snapshot, logger)
}

func (e *Executor) publishProgress(ctx context.Context, workflowID string, index int, kind models.ActionKind, snapshot *models.ProgressSnapshot, logger *slog.Logger) {
	if e.bus == nil {
		return
	}

	event := events.StepProgress{
		BaseEvent: events.BaseEvent{
			ID:         e.bus.GenerateID(),
			Type:       events.StepProgressEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflowID,
		},
		StepIndex:      index,
		Action:         kind,
		ProcessedItems: snapshot.ProcessedItems,
		TotalItems:     snapshot.TotalItems,
		CurrentItem:    snapshot.CurrentItemName,
	}

	if err := e.bus.Publish(ctx, workflowID, event); err != nil {
		logger.Warn("Failed to publish progress event", "error", err)
	}
}

// mapContextError folds context termination into the executor error taxonomy:
// a deadline becomes ErrTimeout, an explicit cancel stays context.Canceled so
// the scheduler can mark the step skipped instead of failed.
func (e *Executor) mapContextError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return err
}

// IsTimeout checks if an error indicates the step exceeded its budget.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
