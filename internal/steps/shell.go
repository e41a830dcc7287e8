package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// tee duplicates command output to the console while keeping a copy for the
// step's stdout output.
func tee(buf *bytes.Buffer, console io.Writer) io.Writer {
	return io.MultiWriter(buf, console)
}

// runShellScript executes a script through the shell.
//
// Arguments: script (required), directory, stream_output.
// Outputs: stdout.
func (r *Runner) runShellScript(ctx context.Context, args Args) (map[string]any, error) {
	script, err := args.Require("script")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = args.String("directory", r.Dir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if args.Bool("stream_output") {
		cmd.Stdout = tee(&stdout, os.Stdout)
		cmd.Stderr = tee(&stderr, os.Stderr)
	}

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("script failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return map[string]any{"stdout": strings.TrimSpace(stdout.String())}, nil
}

// runPipInstallRequirements installs Python requirements into the current
// environment, mirroring the platform's pull-time step.
//
// Arguments: requirements_file, directory, stream_output.
// Outputs: stdout.
func (r *Runner) runPipInstallRequirements(ctx context.Context, args Args) (map[string]any, error) {
	file := args.String("requirements_file", "requirements.txt")
	dir := args.String("directory", r.Dir)

	cmd := exec.CommandContext(ctx, "python", "-m", "pip", "install", "-r", file)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if args.Bool("stream_output") {
		cmd.Stdout = tee(&stdout, os.Stdout)
		cmd.Stderr = tee(&stderr, os.Stderr)
	}

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pip install failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return map[string]any{"stdout": strings.TrimSpace(stdout.String())}, nil
}

// runSetWorkingDirectory switches the runner's working directory for
// subsequent steps.
//
// Arguments: directory (required).
// Outputs: directory.
func (r *Runner) runSetWorkingDirectory(args Args) (map[string]any, error) {
	dir, err := args.Require("directory")
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(dir) && r.Dir != "" {
		dir = filepath.Join(r.Dir, dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", dir)
	}

	r.Dir = dir
	return map[string]any{"directory": dir}, nil
}
