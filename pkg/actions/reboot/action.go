// Package reboot_action reboots the target instance and optionally waits for
// the agent to come back.
package reboot_action

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

// DefaultTimeout is the budget for a reboot including the wait for the agent
// to come back.
const DefaultTimeout = 3 * time.Minute

const healthPollInterval = 5 * time.Second

type Params struct {
	Wait bool `json:"wait,omitempty"`
}

type RebootAction struct {
	client *remote.Client
	params Params
}

func (a *RebootAction) Execute(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error) {
	logger.Info("Rebooting instance", "instance_id", target.InstanceID)

	if err := a.client.Reboot(ctx, target); err != nil {
		return nil, err
	}

	if !a.params.Wait {
		return map[string]any{"rebooted": true, "waited": false}, nil
	}

	// The agent drops off during the reboot; keep polling until it answers
	// again or the step deadline fires.
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if err := a.client.Health(ctx, target); err == nil {
				return map[string]any{"rebooted": true, "waited": true}, nil
			}

			logger.Debug("Agent not back yet after reboot")
		}
	}
}

type Factory struct {
	client *remote.Client
}

func NewFactory(client *remote.Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionReboot
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"title": "Reboot Params",
		"properties": {
			"wait": {"type": "boolean"}
		},
		"additionalProperties": false
	}`
}

func (f *Factory) Create(params json.RawMessage) (protocol.Action, error) {
	var p Params

	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("failed to parse reboot params: %w", err)
		}
	}

	return &RebootAction{client: f.client, params: p}, nil
}
