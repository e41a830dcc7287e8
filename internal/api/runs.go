package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// defaultPollInterval is how often RunDeployment checks a watched run.
const defaultPollInterval = 3 * time.Second

// RunOptions configures a flow run created from a deployment.
type RunOptions struct {
	// Parameters override the deployment's defaults for this run only.
	Parameters map[string]any

	// JobVariables override the deployment's infrastructure for this run.
	JobVariables map[string]any

	// IdempotencyKey dedupes retried submissions. A random key is generated
	// when empty.
	IdempotencyKey string
}

type createFlowRunRequest struct {
	Parameters     map[string]any `json:"parameters,omitempty"`
	JobVariables   map[string]any `json:"job_variables,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// CreateFlowRun schedules a run of a deployment.
func (c *Client) CreateFlowRun(ctx context.Context, deploymentID string, opts RunOptions) (*FlowRun, error) {
	key := opts.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	req := createFlowRunRequest{
		Parameters:     opts.Parameters,
		JobVariables:   opts.JobVariables,
		IdempotencyKey: key,
	}

	path := fmt.Sprintf("/deployments/%s/create_flow_run", url.PathEscape(deploymentID))

	var run FlowRun
	if err := c.do(ctx, http.MethodPost, path, req, &run); err != nil {
		return nil, fmt.Errorf("create flow run: %w", err)
	}
	return &run, nil
}

// GetFlowRun fetches a run's current state.
func (c *Client) GetFlowRun(ctx context.Context, runID string) (*FlowRun, error) {
	var run FlowRun
	if err := c.do(ctx, http.MethodGet, "/flow_runs/"+url.PathEscape(runID), nil, &run); err != nil {
		return nil, fmt.Errorf("get flow run %s: %w", runID, err)
	}
	return &run, nil
}

// RunDeployment triggers a named deployment, the programmatic form of the
// CLI's run command. With timeout zero it returns as soon as the run is
// scheduled; with a positive timeout it polls until the run reaches a
// terminal state or the deadline passes.
func (c *Client) RunDeployment(ctx context.Context, name string, opts RunOptions, timeout time.Duration) (*FlowRun, error) {
	deployment, err := c.GetDeploymentByName(ctx, name)
	if err != nil {
		return nil, err
	}

	run, err := c.CreateFlowRun(ctx, deployment.ID, opts)
	if err != nil {
		return nil, fmt.Errorf("run deployment %q: %w", name, err)
	}

	if timeout <= 0 {
		return run, nil
	}
	return c.WaitForFlowRun(ctx, run.ID, timeout)
}

// WaitForFlowRun polls a run until it reaches a terminal state. The last
// observed run is returned alongside the timeout error so callers can report
// partial progress.
func (c *Client) WaitForFlowRun(ctx context.Context, runID string, timeout time.Duration) (*FlowRun, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	run, err := c.GetFlowRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	for !run.State.Terminal() {
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("flow run %s still %s: %w", runID, run.State.Type, ctx.Err())
		case <-ticker.C:
		}

		run, err = c.GetFlowRun(ctx, runID)
		if err != nil {
			return nil, err
		}
	}

	return run, nil
}
