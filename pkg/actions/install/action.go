// Package install_action installs a list of dependencies (custom nodes,
// packages, model files) on the target instance. The install itself runs as an
// agent job; this action starts it and exposes the progress document the
// executor polls while the job runs.
package install_action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/protocol"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
)

// DefaultTimeout is the budget for a full install run.
const DefaultTimeout = 30 * time.Minute

const defaultProgressPath = "/var/log/provision/install.log"

type Params struct {
	Items        []string `json:"items"`
	ProgressPath string   `json:"progress_path,omitempty"`
}

type InstallAction struct {
	client *remote.Client
	params Params
}

// Execute is not used for monitored actions; the executor drives Start plus
// the poll loop. It exists to satisfy the Action contract for callers that do
// not monitor.
func (a *InstallAction) Execute(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error) {
	job, err := a.Start(ctx, target, logger)
	if err != nil {
		return nil, err
	}

	return map[string]any{"job_id": job.ID}, nil
}

func (a *InstallAction) Start(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (*remote.Job, error) {
	logger.Info("Starting install job", "items", len(a.params.Items))

	return a.client.StartJob(ctx, target, "install", map[string]any{
		"items":         a.params.Items,
		"progress_path": a.ProgressPath(),
	})
}

func (a *InstallAction) ProgressPath() string {
	if a.params.ProgressPath != "" {
		return a.params.ProgressPath
	}

	return defaultProgressPath
}

func (a *InstallAction) TotalItems() int {
	return len(a.params.Items)
}

type Factory struct {
	client *remote.Client
}

func NewFactory(client *remote.Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionInstall
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"title": "Install Params",
		"properties": {
			"items": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"minItems": 1
			},
			"progress_path": {"type": "string"}
		},
		"required": ["items"],
		"additionalProperties": false
	}`
}

func (f *Factory) Create(params json.RawMessage) (protocol.Action, error) {
	var p Params
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to parse install params: %w", err)
	}

	return &InstallAction{client: f.client, params: p}, nil
}
