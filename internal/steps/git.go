package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// runGitClone materializes a repository the way the worker's pull step does,
// into a directory named after the repository.
//
// Arguments: repository (required), branch, access_token, directory.
// Outputs: directory.
func (r *Runner) runGitClone(ctx context.Context, args Args) (map[string]any, error) {
	repository, err := args.Require("repository")
	if err != nil {
		return nil, err
	}
	branch := args.String("branch", "")

	dir := args.String("directory", repoDirName(repository))
	if !filepath.IsAbs(dir) && r.Dir != "" {
		dir = filepath.Join(r.Dir, dir)
	}

	// A fresh clone each time keeps the materialized tree identical to what
	// the worker will see.
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear clone directory: %w", err)
	}

	options := &git.CloneOptions{
		URL: repository,
	}
	if branch != "" {
		options.ReferenceName = plumbing.NewBranchReferenceName(branch)
		options.SingleBranch = true
	}
	if token := args.String("access_token", ""); token != "" {
		options.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}

	if _, err := git.PlainCloneContext(ctx, dir, false, options); err != nil {
		return nil, fmt.Errorf("clone %s: %w", repository, err)
	}

	return map[string]any{"directory": dir}, nil
}

// repoDirName derives a directory name from a repository URL or path:
// "https://github.com/org/demo-flows.git" becomes "demo-flows".
func repoDirName(repository string) string {
	name := strings.TrimSuffix(repository, "/")
	name = strings.TrimSuffix(name, ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "repo"
	}
	return name
}
