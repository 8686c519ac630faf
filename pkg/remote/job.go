package remote

import (
	"context"
	"net/http"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// JobState is the agent-side lifecycle of a long-running provisioning job.
type JobState string

const (
	JobRunning JobState = "running"
	JobSuccess JobState = "success"
	JobFailed  JobState = "failed"
)

// JobStatus is one status read for a running job.
type JobStatus struct {
	State  JobState       `json:"state"`
	Error  string         `json:"error,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// Job is a handle to a long-running operation started on the agent. The
// operation keeps running whether or not anyone polls it.
type Job struct {
	ID     string
	client *Client
	target models.TargetDescriptor
}

type startJobRequest struct {
	Job    string         `json:"job"`
	Params map[string]any `json:"params,omitempty"`
}

type startJobResponse struct {
	JobID string `json:"job_id"`
}

// StartJob launches a named job on the agent and returns its handle.
func (c *Client) StartJob(ctx context.Context, target models.TargetDescriptor, name string, params map[string]any) (*Job, error) {
	var resp startJobResponse

	err := c.do(ctx, target, http.MethodPost, "/jobs", startJobRequest{Job: name, Params: params}, &resp)
	if err != nil {
		return nil, err
	}

	return &Job{ID: resp.JobID, client: c, target: target}, nil
}

// Status reads the job's current state from the agent.
func (j *Job) Status(ctx context.Context) (*JobStatus, error) {
	var status JobStatus

	err := j.client.do(ctx, j.target, http.MethodGet, "/jobs/"+j.ID, nil, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}
