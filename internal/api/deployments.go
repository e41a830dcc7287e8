package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// EnsureFlow registers a flow name and returns its ID. Registering an
// existing name returns the existing record.
func (c *Client) EnsureFlow(ctx context.Context, name string) (*Flow, error) {
	var flow Flow
	if err := c.do(ctx, http.MethodPost, "/flows/", map[string]string{"name": name}, &flow); err != nil {
		return nil, fmt.Errorf("register flow %q: %w", name, err)
	}
	return &flow, nil
}

// CreateOrUpdateDeployment upserts a deployment record. The orchestrator
// keys deployments by (flow_id, name).
func (c *Client) CreateOrUpdateDeployment(ctx context.Context, spec DeploymentSpec) (*Deployment, error) {
	var deployment Deployment
	if err := c.do(ctx, http.MethodPost, "/deployments/", spec, &deployment); err != nil {
		return nil, fmt.Errorf("register deployment %q: %w", spec.Name, err)
	}
	return &deployment, nil
}

// GetDeploymentByName looks up a deployment by its "<flow>/<deployment>"
// identifier.
func (c *Client) GetDeploymentByName(ctx context.Context, name string) (*Deployment, error) {
	flowName, deploymentName, err := SplitDeploymentName(name)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/deployments/name/%s/%s", url.PathEscape(flowName), url.PathEscape(deploymentName))

	var deployment Deployment
	if err := c.do(ctx, http.MethodGet, path, nil, &deployment); err != nil {
		return nil, fmt.Errorf("get deployment %q: %w", name, err)
	}
	return &deployment, nil
}

// ListDeployments returns the registered deployments, optionally filtered to
// a work pool.
func (c *Client) ListDeployments(ctx context.Context, workPool string) ([]Deployment, error) {
	filter := map[string]any{}
	if workPool != "" {
		filter["work_pools"] = map[string]any{
			"name": map[string]any{"any_": []string{workPool}},
		}
	}

	var deployments []Deployment
	if err := c.do(ctx, http.MethodPost, "/deployments/filter", filter, &deployments); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deployments, nil
}

// FlowNameFromCallable derives the platform's default flow name from an
// entrypoint callable: snake_case function names become kebab-case flow
// names, matching how the platform names undecorated flows.
func FlowNameFromCallable(callable string) string {
	return strings.ReplaceAll(callable, "_", "-")
}

// SplitDeploymentName splits "<flow>/<deployment>" into its parts.
func SplitDeploymentName(name string) (string, string, error) {
	flowName, deploymentName, found := strings.Cut(name, "/")
	if !found || flowName == "" || deploymentName == "" {
		return "", "", fmt.Errorf("invalid deployment name %q (want \"<flow>/<deployment>\")", name)
	}
	return flowName, deploymentName, nil
}
