// Package sync_media_action mirrors a media directory (models, loras,
// embeddings) onto the target instance via an agent job with a pollable
// progress document.
package sync_media_action

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

// DefaultTimeout is the budget for a full media sync.
const DefaultTimeout = 60 * time.Minute

const defaultProgressPath = "/var/log/provision/sync.log"

type Params struct {
	Source       string `json:"source"`
	Destination  string `json:"destination"`
	TotalItems   int    `json:"total_items,omitempty"`
	ProgressPath string `json:"progress_path,omitempty"`
}

type SyncMediaAction struct {
	client *remote.Client
	params Params
}

func (a *SyncMediaAction) Execute(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error) {
	job, err := a.Start(ctx, target, logger)
	if err != nil {
		return nil, err
	}

	return map[string]any{"job_id": job.ID}, nil
}

func (a *SyncMediaAction) Start(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (*remote.Job, error) {
	logger.Info("Starting media sync job", "source", a.params.Source, "destination", a.params.Destination)

	return a.client.StartJob(ctx, target, "sync_media", map[string]any{
		"source":        a.params.Source,
		"destination":   a.params.Destination,
		"progress_path": a.ProgressPath(),
	})
}

func (a *SyncMediaAction) ProgressPath() string {
	if a.params.ProgressPath != "" {
		return a.params.ProgressPath
	}

	return defaultProgressPath
}

// TotalItems is zero when the submission did not declare a count; the
// aggregator then trusts the TOTAL line of the progress document.
func (a *SyncMediaAction) TotalItems() int {
	return a.params.TotalItems
}

type Factory struct {
	client *remote.Client
}

func NewFactory(client *remote.Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionSyncMedia
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"title": "Sync Media Params",
		"properties": {
			"source": {"type": "string", "minLength": 1},
			"destination": {"type": "string", "minLength": 1},
			"total_items": {"type": "integer", "minimum": 0},
			"progress_path": {"type": "string"}
		},
		"required": ["source", "destination"],
		"additionalProperties": false
	}`
}

func (f *Factory) Create(params json.RawMessage) (protocol.Action, error) {
	var p Params
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to parse sync_media params: %w", err)
	}

	return &SyncMediaAction{client: f.client, params: p}, nil
}
