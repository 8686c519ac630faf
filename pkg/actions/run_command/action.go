// Package run_command_action executes one shell command synchronously on the
// target instance.
package run_command_action

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

// DefaultTimeout is the budget for a synchronous command.
const DefaultTimeout = 2 * time.Minute

type Params struct {
	Command string `json:"command"`
}

type RunCommandAction struct {
	client *remote.Client
	params Params
}

func (a *RunCommandAction) Execute(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error) {
	logger.Info("Executing remote command", "command", a.params.Command)

	result, err := a.client.Exec(ctx, target, a.params.Command)
	if err != nil {
		return nil, err
	}

	if result.ExitCode != 0 {
		return nil, &remote.RemoteError{
			Status: result.ExitCode,
			Body:   fmt.Sprintf("command exited with code %d: %s", result.ExitCode, result.Stderr),
		}
	}

	return map[string]any{
		"exit_code": result.ExitCode,
		"stdout":    result.Stdout,
	}, nil
}

type Factory struct {
	client *remote.Client
}

func NewFactory(client *remote.Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionRunCommand
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"title": "Run Command Params",
		"properties": {
			"command": {"type": "string", "minLength": 1}
		},
		"required": ["command"],
		"additionalProperties": false
	}`
}

func (f *Factory) Create(params json.RawMessage) (protocol.Action, error) {
	var p Params
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to parse run_command params: %w", err)
	}

	return &RunCommandAction{client: f.client, params: p}, nil
}
