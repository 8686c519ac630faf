// Package remote provides the HTTP client for the provisioning agent running
// on a target instance. The agent executes commands, hosts long-running
// provisioning jobs and serves their progress documents.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

const defaultRequestTimeout = 30 * time.Second

// RemoteError indicates the agent returned a failure signal.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote agent returned status %d: %s", e.Status, e.Body)
}

// ExecResult is the outcome of one synchronous remote command.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Client talks to the provisioning agent identified by a target descriptor.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a remote client. Per-call deadlines come from the caller's
// context; the embedded timeout is a safety net for calls without one.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger.With("module", "remote_client"),
	}
}

func (c *Client) do(ctx context.Context, target models.TargetDescriptor, method, path string, payload, out any) error {
	var bodyReader io.Reader

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}

		bodyReader = bytes.NewReader(body)
	}

	endpoint := strings.TrimSuffix(target.AgentURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if target.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+target.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to agent failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode agent response: %w", err)
		}
	}

	return nil
}

// Health checks the agent is reachable and serving.
func (c *Client) Health(ctx context.Context, target models.TargetDescriptor) error {
	return c.do(ctx, target, http.MethodGet, "/health", nil, nil)
}

// Exec runs one command synchronously on the instance.
func (c *Client) Exec(ctx context.Context, target models.TargetDescriptor, command string) (*ExecResult, error) {
	var result ExecResult

	err := c.do(ctx, target, http.MethodPost, "/exec", map[string]string{"command": command}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Reboot asks the agent to reboot the instance.
func (c *Client) Reboot(ctx context.Context, target models.TargetDescriptor) error {
	return c.do(ctx, target, http.MethodPost, "/reboot", nil, nil)
}

// ReadProgress fetches the raw content of a progress document on the
// instance. The document is read-only from this system's perspective.
func (c *Client) ReadProgress(ctx context.Context, target models.TargetDescriptor, path string) (string, error) {
	endpoint := strings.TrimSuffix(target.AgentURL, "/") + "/files?path=" + url.QueryEscape(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	if target.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+target.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request to agent failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read progress document: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return string(raw), nil
}
