// Package simulator implements the Action Simulator Client: one POST per
// action, against a local or external simulator process.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/incident-console/backend/pkg/httputil"
)

const (
	executeTimeout = 5 * time.Second
	healthTimeout  = 500 * time.Millisecond
)

// ExecuteResult is the simulator's reply to one /execute call.
type ExecuteResult struct {
	ExecutionID string    `json:"execution_id"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Client dispatches actions to the simulator's wire contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a simulator Client pointed at baseURL.
func New(baseURL string) (*Client, error) {
	normalized, _, err := httputil.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	return &Client{
		baseURL: normalized,
		httpClient: httputil.NewClient(httputil.ClientConfig{Timeout: executeTimeout}, httputil.ClientDefaults{
			Timeout:      executeTimeout,
			MaxBodyBytes: 1 << 16,
		}),
	}, nil
}

type executeRequest struct {
	ExecutionID string `json:"execution_id"`
	Action      string `json:"action"`
}

// Execute dispatches one action for executionID. HTTP status >= 400 or a
// transport failure aborts the plan.
func (c *Client) Execute(ctx context.Context, executionID, action string) (ExecuteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	payload, err := json.Marshal(executeRequest{ExecutionID: executionID, Action: action})
	if err != nil {
		return ExecuteResult{}, apierrors.Internal("marshal execute request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return ExecuteResult{}, apierrors.Internal("build execute request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ExecuteResult{}, apierrors.Upstream("action-simulator", err)
	}
	defer resp.Body.Close()

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 1<<16)
	if err != nil {
		return ExecuteResult{}, apierrors.Upstream("action-simulator", err)
	}
	if resp.StatusCode >= 400 {
		return ExecuteResult{}, apierrors.Upstream("action-simulator", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result ExecuteResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ExecuteResult{}, apierrors.Upstream("action-simulator", fmt.Errorf("decode response: %w", err))
	}
	return result, nil
}

// Healthy probes GET /health with a short timeout, used by the
// double-checked singleton startup in the action service.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
