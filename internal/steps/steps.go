// Package steps executes the build, push, and pull step sequences of a
// deployment manifest on the local machine. Pull steps normally run on the
// worker; running them locally lets flowctl verify that entrypoints resolve
// before a deployment is registered.
package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/znicholasbrown/flowctl/internal/manifest"
)

// Step identifiers understood by the local runner.
const (
	GitClone               = "prefect.deployments.steps.git_clone"
	SetWorkingDirectory    = "prefect.deployments.steps.set_working_directory"
	RunShellScript         = "prefect.deployments.steps.run_shell_script"
	PipInstallRequirements = "prefect.deployments.steps.pip_install_requirements"
	BuildDockerImage       = "prefect_docker.deployments.steps.build_docker_image"
	PushDockerImage        = "prefect_docker.deployments.steps.push_docker_image"
)

// ErrUnknownStep indicates a step identifier the runner cannot execute.
var ErrUnknownStep = errors.New("unknown step")

// Runner executes step sequences and threads outputs between them.
type Runner struct {
	// Dir is the working directory for shell and docker steps. Steps that
	// produce a directory output update it.
	Dir string

	// Docker is the daemon connection for image steps. Created on first use
	// when nil.
	Docker DockerAPI

	// DryRun logs what would run without side effects.
	DryRun bool

	// Log receives one line per step. Nil disables logging.
	Log func(format string, args ...any)
}

// Run executes a step sequence in order. Each step's arguments are resolved
// against ictx before execution, and its outputs are recorded under the
// step's "id" argument (or the identifier's trailing segment) so later steps
// and deployment fields can reference them.
func (r *Runner) Run(ctx context.Context, list []manifest.Step, ictx *manifest.Context) error {
	for i, step := range list {
		if err := manifest.ValidateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		id := step.ID()
		resolved, err := ictx.ResolveMap(step.Args())
		if err != nil {
			return fmt.Errorf("step %s: %w", id, err)
		}
		args := Args(resolved)

		r.logf("[%d] %s", i+1, id)
		if r.DryRun {
			ictx.SetOutputs(outputName(id, args), map[string]any{})
			continue
		}

		outputs, err := r.execute(ctx, id, args)
		if err != nil {
			return fmt.Errorf("step %s: %w", id, err)
		}

		ictx.SetOutputs(outputName(id, args), outputs)
	}

	return nil
}

func (r *Runner) execute(ctx context.Context, id string, args Args) (map[string]any, error) {
	switch id {
	case GitClone:
		return r.runGitClone(ctx, args)
	case SetWorkingDirectory:
		return r.runSetWorkingDirectory(args)
	case RunShellScript:
		return r.runShellScript(ctx, args)
	case PipInstallRequirements:
		return r.runPipInstallRequirements(ctx, args)
	case BuildDockerImage:
		return r.runBuildDockerImage(ctx, args)
	case PushDockerImage:
		return r.runPushDockerImage(ctx, args)
	default:
		return nil, ErrUnknownStep
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log(format, args...)
	}
}

// outputName returns the key under which a step's outputs are recorded:
// the explicit "id" argument when present, otherwise the identifier's
// trailing segment (e.g. "git_clone").
func outputName(id string, args Args) string {
	if name, ok := args["id"].(string); ok && name != "" {
		return name
	}
	if idx := strings.LastIndex(id, "."); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// Args wraps resolved step arguments with typed accessors.
type Args map[string]any

// String returns a string argument, or the fallback when absent.
func (a Args) String(key, fallback string) string {
	if v, ok := a[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Bool returns a bool argument, defaulting to false.
func (a Args) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

// Require returns a string argument or an error naming the missing key.
func (a Args) Require(key string) (string, error) {
	v, ok := a[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}
