package api

import "time"

// Flow is a registered flow record.
type Flow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeploymentSpec is the payload for registering a deployment.
type DeploymentSpec struct {
	Name                   string           `json:"name"`
	FlowID                 string           `json:"flow_id"`
	Entrypoint             string           `json:"entrypoint"`
	Tags                   []string         `json:"tags,omitempty"`
	Parameters             map[string]any   `json:"parameters,omitempty"`
	WorkPoolName           string           `json:"work_pool_name,omitempty"`
	WorkQueueName          string           `json:"work_queue_name,omitempty"`
	JobVariables           map[string]any   `json:"job_variables,omitempty"`
	Schedules              []map[string]any `json:"schedules"`
	PullSteps              []map[string]any `json:"pull_steps,omitempty"`
	Version                *string          `json:"version,omitempty"`
	Description            *string          `json:"description,omitempty"`
	ConcurrencyLimit       *int             `json:"concurrency_limit,omitempty"`
	EnforceParameterSchema *bool            `json:"enforce_parameter_schema,omitempty"`
}

// Deployment is a persisted deployment record.
type Deployment struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FlowID        string    `json:"flow_id"`
	Entrypoint    string    `json:"entrypoint"`
	Tags          []string  `json:"tags"`
	WorkPoolName  string    `json:"work_pool_name"`
	WorkQueueName string    `json:"work_queue_name"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// Flow run states reported by the orchestrator.
const (
	StateScheduled = "SCHEDULED"
	StatePending   = "PENDING"
	StateRunning   = "RUNNING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateCrashed   = "CRASHED"
	StateCancelled = "CANCELLED"
)

// FlowRun is a single run of a deployment.
type FlowRun struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DeploymentID string    `json:"deployment_id"`
	State        RunState  `json:"state"`
	Created      time.Time `json:"created"`
}

// RunState is a flow run's current state.
type RunState struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the state ends the run.
func (s RunState) Terminal() bool {
	switch s.Type {
	case StateCompleted, StateFailed, StateCrashed, StateCancelled:
		return true
	default:
		return false
	}
}
