package web

import (
	"encoding/json"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// StepRequest is one requested step in a workflow submission.
type StepRequest struct {
	Action         string          `json:"action"                    validate:"required"`
	Label          string          `json:"label"                     validate:"required"`
	Params         json.RawMessage `json:"params,omitempty"`
	TimeoutSeconds int             `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=86400"`
}

// StartWorkflowRequest is the submission body for POST /workflows.
type StartWorkflowRequest struct {
	Steps            []StepRequest           `json:"steps"                      validate:"required,min=1,dive"`
	Target           models.TargetDescriptor `json:"target_descriptor"          validate:"required"`
	StepDelaySeconds int                     `json:"step_delay_seconds,omitempty" validate:"omitempty,min=0,max=3600"`
}

// StartWorkflowResponse carries the identifier the client polls with.
type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
}

// AckResponse acknowledges stop and clear requests.
type AckResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	WorkflowID   string `json:"workflow_id,omitempty"`
}
