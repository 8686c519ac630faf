package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearth4334/vast-api-sub001/pkg/executor"
	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/protocol"
	"github.com/unearth4334/vast-api-sub001/pkg/registry"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
	"github.com/unearth4334/vast-api-sub001/pkg/store"
	filestore "github.com/unearth4334/vast-api-sub001/pkg/store/file"
)

type stubAction struct {
	execute func(ctx context.Context) (map[string]any, error)
}

func (a *stubAction) Execute(ctx context.Context, _ models.TargetDescriptor, _ *slog.Logger) (map[string]any, error) {
	return a.execute(ctx)
}

type stubFactory struct {
	kind    models.ActionKind
	execute func(ctx context.Context) (map[string]any, error)
}

func (f *stubFactory) Kind() models.ActionKind { return f.kind }

func (f *stubFactory) Schema() string { return `{"type": "object"}` }

func (f *stubFactory) Create(_ json.RawMessage) (protocol.Action, error) {
	return &stubAction{execute: f.execute}, nil
}

type fixture struct {
	scheduler *Scheduler
	store     *filestore.Store
}

func newFixture(t *testing.T, factories ...protocol.ActionFactory) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	st := filestore.NewStore(t.TempDir(), logger)

	reg := registry.NewRegistry(logger)
	for _, f := range factories {
		reg.Register(f)
	}

	exec := executor.NewExecutor(reg, st, remote.NewClient(logger), nil, 10*time.Millisecond, logger)
	sched := NewScheduler(st, reg, exec, nil, time.Minute, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
	})

	return &fixture{scheduler: sched, store: st}
}

func succeedFactory(kind models.ActionKind, order *[]models.ActionKind, mu *sync.Mutex) *stubFactory {
	return &stubFactory{
		kind: kind,
		execute: func(_ context.Context) (map[string]any, error) {
			mu.Lock()
			defer mu.Unlock()
			*order = append(*order, kind)

			return map[string]any{"ok": true}, nil
		},
	}
}

func target() models.TargetDescriptor {
	return models.TargetDescriptor{AgentURL: "http://127.0.0.1:1", InstanceID: "i-test"}
}

func waitTerminal(t *testing.T, f *fixture) *models.WorkflowState {
	t.Helper()

	var state *models.WorkflowState

	require.Eventually(t, func() bool {
		loaded, err := f.store.Load(context.Background())
		if err != nil || loaded == nil {
			return false
		}

		state = loaded

		return state.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	return state
}

func TestScheduler_SuccessfulRunVisitsStepsInOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []models.ActionKind
	)

	f := newFixture(t,
		succeedFactory(models.ActionTestConnection, &order, &mu),
		succeedFactory(models.ActionRunCommand, &order, &mu),
		succeedFactory(models.ActionReboot, &order, &mu),
	)

	id, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps: []StepSubmission{
			{Action: models.ActionTestConnection, Label: "check"},
			{Action: models.ActionRunCommand, Label: "prepare"},
			{Action: models.ActionReboot, Label: "reboot"},
		},
		Target: target(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	state := waitTerminal(t, f)

	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
	assert.Equal(t, len(state.Steps), state.CurrentStepIndex)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.ActionKind{
		models.ActionTestConnection, models.ActionRunCommand, models.ActionReboot,
	}, order)

	for _, step := range state.Steps {
		assert.Equal(t, models.StepStatusSuccess, step.Status)
		assert.NotNil(t, step.Result)
		assert.Nil(t, step.Progress)
	}
}

func TestScheduler_RejectsConcurrentStart(t *testing.T) {
	release := make(chan struct{})

	f := newFixture(t, &stubFactory{
		kind: models.ActionRunCommand,
		execute: func(ctx context.Context) (map[string]any, error) {
			select {
			case <-release:
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	req := StartRequest{
		Steps:  []StepSubmission{{Action: models.ActionRunCommand, Label: "blocked"}},
		Target: target(),
	}

	id, err := f.scheduler.Start(context.Background(), req)
	require.NoError(t, err)

	_, err = f.scheduler.Start(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsAlreadyRunning(err))

	close(release)

	state := waitTerminal(t, f)
	assert.Equal(t, id, state.ID)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
}

func TestScheduler_StopIsIdempotentAfterFinish(t *testing.T) {
	var (
		mu    sync.Mutex
		order []models.ActionKind
	)

	f := newFixture(t, succeedFactory(models.ActionRunCommand, &order, &mu))

	id, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps:  []StepSubmission{{Action: models.ActionRunCommand, Label: "one"}},
		Target: target(),
	})
	require.NoError(t, err)

	before := waitTerminal(t, f)
	require.Equal(t, models.WorkflowStatusCompleted, before.Status)

	require.NoError(t, f.scheduler.Stop(context.Background(), id))

	after, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Steps, after.Steps)
}

func TestScheduler_StopUnknownIDNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.scheduler.Stop(context.Background(), "no-such-workflow")
	require.Error(t, err)
	assert.True(t, IsWorkflowNotFound(err))
}

func TestScheduler_FailureHaltsWorkflow(t *testing.T) {
	var (
		mu    sync.Mutex
		order []models.ActionKind
	)

	f := newFixture(t,
		succeedFactory(models.ActionTestConnection, &order, &mu),
		&stubFactory{
			kind: models.ActionInstall,
			execute: func(_ context.Context) (map[string]any, error) {
				return nil, &remote.RemoteError{Status: 500, Body: "pip exploded"}
			},
		},
		succeedFactory(models.ActionReboot, &order, &mu),
	)

	_, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps: []StepSubmission{
			{Action: models.ActionTestConnection, Label: "check"},
			{Action: models.ActionInstall, Label: "install"},
			{Action: models.ActionReboot, Label: "reboot"},
		},
		Target: target(),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f)

	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Equal(t, 1, state.CurrentStepIndex, "index stays at the failing step")
	assert.Equal(t, models.StepStatusSuccess, state.Steps[0].Status)
	assert.Equal(t, models.StepStatusFailed, state.Steps[1].Status)
	require.NotNil(t, state.Steps[1].Error)
	assert.Equal(t, models.StepErrorRemote, state.Steps[1].Error.Code)
	assert.Contains(t, state.Steps[1].Error.Message, "pip exploded")
	assert.Equal(t, models.StepStatusSkipped, state.Steps[2].Status)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, order, models.ActionReboot, "no step after the failure runs")
}

func TestScheduler_StepTimeout(t *testing.T) {
	f := newFixture(t, &stubFactory{
		kind: models.ActionRunCommand,
		execute: func(ctx context.Context) (map[string]any, error) {
			<-ctx.Done()

			return nil, ctx.Err()
		},
	})

	_, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps: []StepSubmission{
			{Action: models.ActionRunCommand, Label: "hangs", Timeout: 50 * time.Millisecond},
		},
		Target: target(),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f)

	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Equal(t, 0, state.CurrentStepIndex)
	require.NotNil(t, state.Steps[0].Error)
	assert.Equal(t, models.StepErrorTimeout, state.Steps[0].Error.Code)
}

func TestScheduler_CancelMidStep(t *testing.T) {
	started := make(chan struct{})

	var once sync.Once

	f := newFixture(t,
		&stubFactory{
			kind: models.ActionInstall,
			execute: func(ctx context.Context) (map[string]any, error) {
				once.Do(func() { close(started) })
				<-ctx.Done()

				return nil, ctx.Err()
			},
		},
		&stubFactory{
			kind: models.ActionReboot,
			execute: func(_ context.Context) (map[string]any, error) {
				t.Error("step after cancellation must not run")

				return nil, nil
			},
		},
	)

	id, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps: []StepSubmission{
			{Action: models.ActionInstall, Label: "install"},
			{Action: models.ActionReboot, Label: "reboot"},
		},
		Target: target(),
	})
	require.NoError(t, err)

	<-started
	require.NoError(t, f.scheduler.Stop(context.Background(), id))

	state := waitTerminal(t, f)

	assert.Equal(t, models.WorkflowStatusCancelled, state.Status)
	assert.Equal(t, models.StepStatusSkipped, state.Steps[0].Status)
	assert.Equal(t, models.StepStatusSkipped, state.Steps[1].Status)
	assert.Nil(t, state.Steps[0].Error, "cancellation is not an error")
}

func TestScheduler_UnknownActionRejectedAtSubmission(t *testing.T) {
	f := newFixture(t)

	_, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps:  []StepSubmission{{Action: models.ActionKind("format_disk"), Label: "nope"}},
		Target: target(),
	})
	require.Error(t, err)
	assert.True(t, registry.IsUnknownAction(err))

	loaded, loadErr := f.store.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Nil(t, loaded, "rejected submissions persist nothing")
}

func TestScheduler_EmptyStepsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.scheduler.Start(context.Background(), StartRequest{Target: target()})
	require.Error(t, err)
}

func TestScheduler_ClearRefusedWhileRunning(t *testing.T) {
	release := make(chan struct{})

	f := newFixture(t, &stubFactory{
		kind: models.ActionRunCommand,
		execute: func(ctx context.Context) (map[string]any, error) {
			select {
			case <-release:
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	_, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps:  []StepSubmission{{Action: models.ActionRunCommand, Label: "blocked"}},
		Target: target(),
	})
	require.NoError(t, err)

	err = f.scheduler.Clear(context.Background())
	require.Error(t, err)
	assert.True(t, IsWorkflowRunning(err))

	close(release)
	waitTerminal(t, f)

	require.NoError(t, f.scheduler.Clear(context.Background()))

	loaded, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestScheduler_Summary(t *testing.T) {
	var (
		mu    sync.Mutex
		order []models.ActionKind
	)

	f := newFixture(t, succeedFactory(models.ActionRunCommand, &order, &mu))

	_, err := f.scheduler.Start(context.Background(), StartRequest{
		Steps: []StepSubmission{
			{Action: models.ActionRunCommand, Label: "a"},
			{Action: models.ActionRunCommand, Label: "b"},
		},
		Target: target(),
	})
	require.NoError(t, err)

	waitTerminal(t, f)

	summary, err := f.scheduler.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Active)
	assert.Equal(t, models.WorkflowStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.TotalSteps)
	assert.InDelta(t, 100.0, summary.ProgressPercent, 0.01)
}

func TestScheduler_SummaryAbsent(t *testing.T) {
	f := newFixture(t)

	_, err := f.scheduler.Summary(context.Background())
	require.Error(t, err)
	assert.True(t, IsWorkflowNotFound(err))
}

func TestScheduler_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := &models.WorkflowState{
		ID:     "wf-stale",
		Status: models.WorkflowStatusRunning,
		Steps: []models.StepRecord{
			{Action: models.ActionTestConnection, Status: models.StepStatusSuccess},
			{Action: models.ActionInstall, Status: models.StepStatusInProgress},
			{Action: models.ActionReboot, Status: models.StepStatusPending},
		},
		CurrentStepIndex: 1,
		Target:           target(),
		StartTime:        time.Now().UTC(),
	}
	require.NoError(t, f.store.Save(ctx, stale))

	require.NoError(t, f.scheduler.Reconcile(ctx))

	state, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)

	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Equal(t, models.StepStatusSuccess, state.Steps[0].Status)
	assert.Equal(t, models.StepStatusFailed, state.Steps[1].Status)
	require.NotNil(t, state.Steps[1].Error)
	assert.Equal(t, models.StepErrorProcessRestarted, state.Steps[1].Error.Code)
	assert.Equal(t, models.StepStatusSkipped, state.Steps[2].Status)
}

func TestScheduler_ReconcileNoopOnTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := &models.WorkflowState{
		ID:     "wf-done",
		Status: models.WorkflowStatusCompleted,
		Steps: []models.StepRecord{
			{Action: models.ActionTestConnection, Status: models.StepStatusSuccess},
		},
		CurrentStepIndex: 1,
	}
	require.NoError(t, f.store.Save(ctx, done))

	require.NoError(t, f.scheduler.Reconcile(ctx))

	state, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
}

// gatedClearStore parks inside Clear until released, exposing the window
// between a terminal-status check and the document removal.
type gatedClearStore struct {
	store.Store

	entered chan struct{}
	release chan struct{}
}

func (g *gatedClearStore) Clear(ctx context.Context) error {
	g.entered <- struct{}{}
	<-g.release

	return g.Store.Clear(ctx)
}

func newGatedFixture(t *testing.T, gracePeriod time.Duration) (*Scheduler, *gatedClearStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	gate := &gatedClearStore{
		Store:   filestore.NewStore(t.TempDir(), logger),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	reg := registry.NewRegistry(logger)
	reg.Register(&stubFactory{
		kind: models.ActionRunCommand,
		execute: func(_ context.Context) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})

	exec := executor.NewExecutor(reg, gate, remote.NewClient(logger), nil, 10*time.Millisecond, logger)
	sched := NewScheduler(gate, reg, exec, nil, gracePeriod, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
	})

	return sched, gate
}

func waitGatedTerminal(t *testing.T, gate *gatedClearStore) {
	t.Helper()

	require.Eventually(t, func() bool {
		state, err := gate.Load(context.Background())

		return err == nil && state != nil && state.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestScheduler_ClearSerializesWithStart(t *testing.T) {
	sched, gate := newGatedFixture(t, time.Minute)
	req := StartRequest{
		Steps:  []StepSubmission{{Action: models.ActionRunCommand, Label: "one"}},
		Target: target(),
	}

	_, err := sched.Start(context.Background(), req)
	require.NoError(t, err)
	waitGatedTerminal(t, gate)

	clearErr := make(chan error, 1)

	go func() { clearErr <- sched.Clear(context.Background()) }()

	// Clear passed its terminal check and is now parked inside the store,
	// still holding the scheduler lock.
	<-gate.entered

	startErr := make(chan error, 1)

	go func() {
		_, err := sched.Start(context.Background(), req)
		startErr <- err
	}()

	select {
	case err := <-startErr:
		t.Fatalf("start completed while a clear was in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-clearErr)
	require.NoError(t, <-startErr)

	// The workflow accepted after the clear was not deleted by it.
	state, err := gate.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state, "clear must never remove a workflow accepted after it")

	waitGatedTerminal(t, gate)
}

func TestScheduler_JanitorSweepSerializesWithStart(t *testing.T) {
	sched, gate := newGatedFixture(t, time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, gate.Save(ctx, &models.WorkflowState{
		ID:     "wf-expired",
		Status: models.WorkflowStatusCompleted,
		Steps: []models.StepRecord{
			{Action: models.ActionRunCommand, Status: models.StepStatusSuccess},
		},
		CurrentStepIndex: 1,
	}))

	sweepDone := make(chan struct{})

	go func() {
		sched.expireTerminal()
		close(sweepDone)
	}()

	<-gate.entered

	startErr := make(chan error, 1)

	go func() {
		_, err := sched.Start(ctx, StartRequest{
			Steps:  []StepSubmission{{Action: models.ActionRunCommand, Label: "one"}},
			Target: target(),
		})
		startErr <- err
	}()

	select {
	case err := <-startErr:
		t.Fatalf("start completed while the sweep was in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate.release)
	<-sweepDone
	require.NoError(t, <-startErr)

	state, err := gate.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state, "sweep must never remove a workflow accepted after it")
	assert.NotEqual(t, "wf-expired", state.ID)

	waitGatedTerminal(t, gate)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected models.StepErrorCode
	}{
		{"timeout", executor.ErrTimeout, models.StepErrorTimeout},
		{"unknown action", registry.ErrUnknownAction, models.StepErrorUnknownAction},
		{"invalid params", registry.ErrInvalidParams, models.StepErrorUnknownAction},
		{"remote", &remote.RemoteError{Status: 502, Body: "bad gateway"}, models.StepErrorRemote},
		{"other", errors.New("boom"), models.StepErrorRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyError(tt.err))
		})
	}
}
