package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearth4334/vast-api-sub001/pkg/executor"
	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/registry"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
	"github.com/unearth4334/vast-api-sub001/pkg/scheduler"
	filestore "github.com/unearth4334/vast-api-sub001/pkg/store/file"
	"github.com/unearth4334/vast-api-sub001/pkg/web"
)

type testEnv struct {
	app       *fiber.App
	scheduler *scheduler.Scheduler
	agentURL  string
	release   chan struct{}
}

// newTestEnv wires real components against a fake agent. Commands containing
// "block" hold their response until release is closed, which lets tests pin
// the workflow in the running state.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{release: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /exec", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)

		if strings.Contains(req["command"], "block") {
			<-env.release
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"exit_code": 0, "stdout": "done"})
	})

	agent := httptest.NewServer(mux)
	t.Cleanup(agent.Close)
	env.agentURL = agent.URL

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	st := filestore.NewStore(t.TempDir(), logger)
	client := remote.NewClient(logger)
	reg := registry.Default(logger, client)
	exec := executor.NewExecutor(reg, st, client, nil, 10*time.Millisecond, logger)
	env.scheduler = scheduler.NewScheduler(st, reg, exec, nil, time.Minute, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.scheduler.Shutdown(ctx)
	})

	handlers := web.NewAPIHandlers(env.scheduler, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	w := app.Group("/workflows")
	w.Post("/", handlers.StartWorkflow)
	w.Post("/:id/stop", handlers.StopWorkflow)
	w.Get("/current", handlers.GetWorkflow)
	w.Get("/current/summary", handlers.GetWorkflowSummary)
	w.Post("/clear", handlers.ClearWorkflow)
	app.Get("/health", handlers.HealthCheck)
	env.app = app

	return env
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := e.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	return resp
}

func (e *testEnv) startBody(command string) string {
	return fmt.Sprintf(`{
		"steps": [
			{"action": "run_command", "label": "cmd", "params": {"command": "%s"}}
		],
		"target_descriptor": {"agent_url": "%s", "instance_id": "i-web-test"}
	}`, command, e.agentURL)
}

func (e *testEnv) waitTerminal(t *testing.T) {
	t.Helper()

	require.Eventually(t, func() bool {
		state, err := e.scheduler.State(context.Background())

		return err == nil && state.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestStartWorkflow_Accepted(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/workflows/", env.startBody("uptime"))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body := decode[web.StartWorkflowResponse](t, resp)
	assert.NotEmpty(t, body.WorkflowID)

	env.waitTerminal(t)

	state, err := env.scheduler.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body.WorkflowID, state.ID)
	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
}

func TestStartWorkflow_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/workflows/", `{"steps": [`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStartWorkflow_MissingSteps(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/workflows/", fmt.Sprintf(
		`{"target_descriptor": {"agent_url": "%s", "instance_id": "i-1"}}`, env.agentURL))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStartWorkflow_UnknownAction(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/workflows/", fmt.Sprintf(`{
		"steps": [{"action": "format_disk", "label": "nope"}],
		"target_descriptor": {"agent_url": "%s", "instance_id": "i-1"}
	}`, env.agentURL))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStartWorkflow_ConflictWhileRunning(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/workflows/", env.startBody("block"))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = env.post(t, "/workflows/", env.startBody("uptime"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	close(env.release)
	env.waitTerminal(t)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/workflows/current")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflow_ReturnsState(t *testing.T) {
	env := newTestEnv(t)

	started := decode[web.StartWorkflowResponse](t, env.post(t, "/workflows/", env.startBody("uptime")))
	env.waitTerminal(t)

	resp := env.get(t, "/workflows/current")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	state := decode[models.WorkflowState](t, resp)
	assert.Equal(t, started.WorkflowID, state.ID)
	assert.Len(t, state.Steps, 1)
}

func TestGetWorkflowSummary(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/workflows/", env.startBody("uptime"))
	env.waitTerminal(t)

	resp := env.get(t, "/workflows/current/summary")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	summary := decode[scheduler.Summary](t, resp)
	assert.False(t, summary.Active)
	assert.Equal(t, models.WorkflowStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.TotalSteps)
}

func TestStopWorkflow_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/workflows/no-such-id/stop", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStopWorkflow_CancelsRunning(t *testing.T) {
	env := newTestEnv(t)

	started := decode[web.StartWorkflowResponse](t, env.post(t, "/workflows/", env.startBody("block")))

	resp := env.post(t, "/workflows/"+started.WorkflowID+"/stop", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	ack := decode[web.AckResponse](t, resp)
	assert.True(t, ack.Acknowledged)

	close(env.release)
	env.waitTerminal(t)

	state, err := env.scheduler.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCancelled, state.Status)
}

func TestClearWorkflow(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/workflows/", env.startBody("block"))

	resp := env.post(t, "/workflows/clear", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode, "clear refused while running")

	close(env.release)
	env.waitTerminal(t)

	resp = env.post(t, "/workflows/clear", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.get(t, "/workflows/current")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/health")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
}
