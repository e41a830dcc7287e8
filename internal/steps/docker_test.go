package steps

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znicholasbrown/flowctl/internal/manifest"
)

// mockDocker records build/push calls and replays a canned daemon stream.
type mockDocker struct {
	buildOptions build.ImageBuildOptions
	buildContext []string
	pushRef      string
	stream       string
}

func (m *mockDocker) ImageBuild(_ context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error) {
	m.buildOptions = options

	tr := tar.NewReader(buildContext)
	for {
		header, err := tr.Next()
		if err != nil {
			break
		}
		m.buildContext = append(m.buildContext, header.Name)
	}

	return build.ImageBuildResponse{
		Body: io.NopCloser(strings.NewReader(m.stream)),
	}, nil
}

func (m *mockDocker) ImagePush(_ context.Context, ref string, _ image.PushOptions) (io.ReadCloser, error) {
	m.pushRef = ref
	return io.NopCloser(strings.NewReader(m.stream)), nil
}

func (m *mockDocker) Close() error { return nil }

func TestBuildDockerImageStep(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.12\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scale.py"), []byte("def scale_flow():\n    pass\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0644))

	mock := &mockDocker{stream: `{"stream":"Step 1/1 : FROM python:3.12"}`}
	r := &Runner{Dir: dir, Docker: mock}
	ictx := manifest.NewContext(nil)

	steps := []manifest.Step{
		{BuildDockerImage: {
			"id":         "build_image",
			"image_name": "registry.example.com/demo-flows",
			"tag":        "abc123",
		}},
	}

	require.NoError(t, r.Run(context.Background(), steps, ictx))

	assert.Equal(t, []string{"registry.example.com/demo-flows:abc123"}, mock.buildOptions.Tags)
	assert.Equal(t, "Dockerfile", mock.buildOptions.Dockerfile)
	assert.Contains(t, mock.buildContext, "Dockerfile")
	assert.Contains(t, mock.buildContext, "scale.py")
	assert.NotContains(t, mock.buildContext, ".git/HEAD")

	outputs := ictx.Outputs["build_image"]
	assert.Equal(t, "registry.example.com/demo-flows:abc123", outputs["image"])
	assert.Equal(t, "abc123", outputs["tag"])
}

func TestBuildDockerImageStepDaemonError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644))

	mock := &mockDocker{stream: `{"errorDetail":{"message":"no such base image"},"error":"no such base image"}`}
	r := &Runner{Dir: dir, Docker: mock}

	steps := []manifest.Step{
		{BuildDockerImage: {"image_name": "demo"}},
	}

	err := r.Run(context.Background(), steps, manifest.NewContext(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such base image")
}

func TestPushDockerImageStep(t *testing.T) {
	mock := &mockDocker{stream: `{"status":"pushed"}`}
	r := &Runner{Docker: mock}
	ictx := manifest.NewContext(nil)
	ictx.SetOutputs("build_image", map[string]any{
		"image_name": "registry.example.com/demo-flows",
		"tag":        "abc123",
	})

	steps := []manifest.Step{
		{PushDockerImage: {
			"image_name": "{{ build_image.image_name }}",
			"tag":        "{{ build_image.tag }}",
		}},
	}

	require.NoError(t, r.Run(context.Background(), steps, ictx))
	assert.Equal(t, "registry.example.com/demo-flows:abc123", mock.pushRef)
}

func TestImageRef(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want string
	}{
		{"demo", "latest", "demo:latest"},
		{"demo:v1", "latest", "demo:v1"},
		{"registry.example.com:5000/demo", "v2", "registry.example.com:5000/demo:v2"},
		{"registry.example.com:5000/demo:v1", "v2", "registry.example.com:5000/demo:v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, imageRef(tt.name, tt.tag))
		})
	}
}
