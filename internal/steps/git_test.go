package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znicholasbrown/flowctl/internal/manifest"
)

// initSourceRepo creates a local repository with a single committed flow file
// so git_clone can be exercised without a network.
func initSourceRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scale.py"), []byte("def scale_flow():\n    pass\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("scale.py")
	require.NoError(t, err)

	_, err = wt.Commit("add scale flow", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	require.NoError(t, err)

	return dir
}

func TestGitCloneStep(t *testing.T) {
	source := initSourceRepo(t)

	workDir := t.TempDir()
	r := &Runner{Dir: workDir}
	ictx := manifest.NewContext(nil)

	steps := []manifest.Step{
		{GitClone: {"id": "clone_source", "repository": source, "directory": "checkout"}},
	}

	require.NoError(t, r.Run(context.Background(), steps, ictx))

	cloned, ok := ictx.Outputs["clone_source"]["directory"].(string)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(workDir, "checkout"), cloned)
	assert.FileExists(t, filepath.Join(cloned, "scale.py"))
}

func TestGitCloneStepRequiresRepository(t *testing.T) {
	r := &Runner{Dir: t.TempDir()}
	steps := []manifest.Step{
		{GitClone: {}},
	}

	err := r.Run(context.Background(), steps, manifest.NewContext(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository")
}

func TestRepoDirName(t *testing.T) {
	tests := []struct {
		repository string
		want       string
	}{
		{"https://github.com/znicholasbrown/demo-flows.git", "demo-flows"},
		{"https://github.com/znicholasbrown/demo-flows", "demo-flows"},
		{"git@github.com:org/repo.git", "repo"},
		{"/local/path/repo", "repo"},
		{"", "repo"},
	}

	for _, tt := range tests {
		t.Run(tt.repository, func(t *testing.T) {
			assert.Equal(t, tt.want, repoDirName(tt.repository))
		})
	}
}
