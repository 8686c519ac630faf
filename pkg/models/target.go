package models

// TargetDescriptor identifies where a step's remote action executes. It is
// opaque to the scheduler and the store; only the remote client interprets it.
type TargetDescriptor struct {
	AgentURL   string `json:"agent_url"   validate:"required,url"`
	InstanceID string `json:"instance_id" validate:"required"`
	Label      string `json:"label,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}
