// Package manifest implements the deployment manifest engine: parsing,
// validation, reference interpolation, and round-trip serialization of
// prefect.yaml documents.
package manifest

import (
	"fmt"
	"strings"
)

// DefaultFile is the manifest filename flowctl looks for.
const DefaultFile = "prefect.yaml"

// Manifest is the top-level deployment manifest document.
type Manifest struct {
	// PrefectVersion pins the orchestrator version the manifest was authored
	// against. Nil means "inherit the platform default".
	PrefectVersion *string `yaml:"prefect-version"`

	// Name identifies the project. Nil means "inherit the platform default".
	Name *string `yaml:"name"`

	// Build steps run locally, in order, before deployments are registered.
	Build []Step `yaml:"build,omitempty"`

	// Push steps publish build artifacts (e.g. a docker push), in order.
	Push []Step `yaml:"push,omitempty"`

	// Pull steps are stored verbatim with each deployment and executed by the
	// worker at run time to materialize the source tree.
	Pull []Step `yaml:"pull,omitempty"`

	// Deployments lists the declarative deployment entries, in order.
	Deployments []Deployment `yaml:"deployments"`
}

// Step is a single preparation or runtime step: a mapping from exactly one
// step identifier (e.g. "prefect.deployments.steps.git_clone") to that step's
// argument record.
type Step map[string]StepArgs

// StepArgs holds the arguments for one step. Keys are step-specific; an "id"
// key names the step so later steps can reference its outputs.
type StepArgs map[string]any

// ID returns the step identifier, or an empty string if the step does not
// contain exactly one entry.
func (s Step) ID() string {
	if len(s) != 1 {
		return ""
	}
	for id := range s {
		return id
	}
	return ""
}

// Args returns the argument record for the step identifier.
func (s Step) Args() StepArgs {
	return s[s.ID()]
}

// Deployment is one declarative deployment record: a named, configured
// instance of a flow bound to a work pool.
type Deployment struct {
	// Name is unique within a flow's namespace, not globally. Several entries
	// may share the literal name "default", scoped by differing entrypoints.
	Name string `yaml:"name"`

	// Version and VersionType are optional; nil inherits the platform default.
	Version     *string `yaml:"version,omitempty"`
	VersionType *string `yaml:"version_type,omitempty"`

	// Entrypoint references the flow definition as "<path>:<callable>". It is
	// resolved by the platform against the pull step's materialized tree.
	Entrypoint string `yaml:"entrypoint"`

	// Description is optional free text.
	Description *string `yaml:"description,omitempty"`

	// Tags are free-form classification labels.
	Tags []string `yaml:"tags,omitempty"`

	// ConcurrencyLimit caps simultaneous runs; nil inherits the default.
	ConcurrencyLimit *int `yaml:"concurrency_limit,omitempty"`

	// Parameters are passed to the flow at invocation time.
	Parameters map[string]any `yaml:"parameters,omitempty"`

	// WorkPool identifies the execution target.
	WorkPool *WorkPool `yaml:"work_pool,omitempty"`

	// EnforceParameterSchema is optional; nil inherits the default.
	EnforceParameterSchema *bool `yaml:"enforce_parameter_schema,omitempty"`

	// Schedules is the ordered list of schedule specifications. An empty list
	// means no automatic triggering: runs happen only via the CLI or
	// run_deployment. The field always serializes, so "no schedules" survives
	// a round trip as an explicit empty sequence.
	Schedules []Schedule `yaml:"schedules"`
}

// EntrypointPath returns the file path portion of the entrypoint.
func (d Deployment) EntrypointPath() string {
	path, _, _ := strings.Cut(d.Entrypoint, ":")
	return path
}

// EntrypointCallable returns the callable portion of the entrypoint.
func (d Deployment) EntrypointCallable() string {
	_, callable, _ := strings.Cut(d.Entrypoint, ":")
	return callable
}

// Key identifies an entry within the manifest. Name alone is not unique,
// name plus entrypoint is.
func (d Deployment) Key() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Entrypoint)
}

// WorkPool identifies the execution target for a deployment.
type WorkPool struct {
	// Name is the work pool that dispatches runs.
	Name string `yaml:"name"`

	// WorkQueueName is the queue within the pool.
	WorkQueueName string `yaml:"work_queue_name"`

	// JobVariables is an open mapping of infrastructure overrides (extra pip
	// packages, image, env, ...). The platform interprets the keys.
	JobVariables map[string]any `yaml:"job_variables,omitempty"`
}

// Schedule is one schedule specification. Exactly one of Cron, Interval, or
// RRule must be set.
type Schedule struct {
	// Cron is a five-field cron expression.
	Cron string `yaml:"cron,omitempty"`

	// Interval is a fixed period in seconds.
	Interval float64 `yaml:"interval,omitempty"`

	// RRule is an iCalendar recurrence rule.
	RRule string `yaml:"rrule,omitempty"`

	// Timezone applies to Cron and RRule schedules.
	Timezone string `yaml:"timezone,omitempty"`

	// Active pauses the schedule when explicitly false. Nil means active.
	Active *bool `yaml:"active,omitempty"`
}
