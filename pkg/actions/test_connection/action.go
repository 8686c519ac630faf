// Package test_connection_action verifies the provisioning agent on a target
// instance is reachable before any real work is attempted.
package test_connection_action

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/protocol"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
)

// DefaultTimeout is the budget for a connection check.
const DefaultTimeout = 15 * time.Second

type TestConnectionAction struct {
	client *remote.Client
}

func (a *TestConnectionAction) Execute(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error) {
	logger.Info("Checking agent connectivity", "agent_url", target.AgentURL)

	started := time.Now()

	if err := a.client.Health(ctx, target); err != nil {
		return nil, err
	}

	return map[string]any{
		"reachable":   true,
		"instance_id": target.InstanceID,
		"latency_ms":  time.Since(started).Milliseconds(),
	}, nil
}

type Factory struct {
	client *remote.Client
}

func NewFactory(client *remote.Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionTestConnection
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"title": "Test Connection Params",
		"properties": {},
		"additionalProperties": false
	}`
}

func (f *Factory) Create(_ json.RawMessage) (protocol.Action, error) {
	return &TestConnectionAction{client: f.client}, nil
}
