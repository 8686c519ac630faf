// Package protocol defines the contracts between the step executor and the
// concrete action implementations.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
)

// Action performs one workflow step against a target instance. Execute blocks
// until the step finishes or ctx is done; the executor owns the deadline.
type Action interface {
	Execute(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (map[string]any, error)
}

// Monitored is implemented by actions whose remote operation runs as an
// asynchronous agent job with a pollable progress document. The executor
// drives the poll loop; the action only knows how to start the job and where
// its progress lives.
type Monitored interface {
	Start(ctx context.Context, target models.TargetDescriptor, logger *slog.Logger) (*remote.Job, error)
	ProgressPath() string
	TotalItems() int
}

// ActionFactory builds actions of one kind from validated step params.
type ActionFactory interface {
	Kind() models.ActionKind

	// Schema returns the JSON schema step params are validated against
	// before Create is called.
	Schema() string

	Create(params json.RawMessage) (Action, error)
}
