package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `prefect-version: null
name: null
build:
  - prefect.deployments.steps.run_shell_script:
      id: get_commit
      script: git rev-parse --short HEAD
push:
  - prefect_docker.deployments.steps.push_docker_image:
      image_name: registry.example.com/demo-flows
      tag: latest
pull:
  - prefect.deployments.steps.git_clone:
      repository: https://github.com/znicholasbrown/demo-flows.git
      branch: main
deployments:
  - name: default
    entrypoint: scale.py:scale_flow
    tags:
      - staging
    parameters:
      target: 3
    work_pool:
      name: nicholas-managed-staging
      work_queue_name: default
      job_variables:
        pip_packages:
          - requests
    schedules: []
  - name: default
    entrypoint: etl.py:etl_flow
    tags:
      - staging
      - etl
    work_pool:
      name: nicholas-managed-staging
      work_queue_name: default
    schedules: []
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Nil(t, m.PrefectVersion)
	assert.Nil(t, m.Name)
	require.Len(t, m.Deployments, 2)
	require.Len(t, m.Build, 1)
	require.Len(t, m.Push, 1)
	require.Len(t, m.Pull, 1)

	assert.Equal(t, "prefect.deployments.steps.run_shell_script", m.Build[0].ID())
	assert.Equal(t, "get_commit", m.Build[0].Args()["id"])
	assert.Equal(t, "prefect.deployments.steps.git_clone", m.Pull[0].ID())

	d := m.Deployments[0]
	assert.Equal(t, "default", d.Name)
	assert.Equal(t, "scale.py:scale_flow", d.Entrypoint)
	assert.Equal(t, "scale.py", d.EntrypointPath())
	assert.Equal(t, "scale_flow", d.EntrypointCallable())
	assert.Equal(t, []string{"staging"}, d.Tags)
	require.NotNil(t, d.WorkPool)
	assert.Equal(t, "nicholas-managed-staging", d.WorkPool.Name)
	assert.Equal(t, "default", d.WorkPool.WorkQueueName)
	assert.Contains(t, d.WorkPool.JobVariables, "pip_packages")

	// Empty schedules means no automatic trigger: manual or run_deployment only.
	assert.NotNil(t, d.Schedules)
	assert.Empty(t, d.Schedules)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: demo\nflows:\n  - nope\n"))
	require.Error(t, err)
}

func TestParseRejectsScalarParameters(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "parameters as sequence",
			body: "deployments:\n  - name: default\n    entrypoint: scale.py:scale_flow\n    parameters:\n      - 1\n",
		},
		{
			name: "parameters as scalar",
			body: "deployments:\n  - name: default\n    entrypoint: scale.py:scale_flow\n    parameters: 42\n",
		},
		{
			name: "job_variables as sequence",
			body: "deployments:\n  - name: default\n    entrypoint: scale.py:scale_flow\n    work_pool:\n      name: pool\n      work_queue_name: default\n      job_variables:\n        - a\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestRoundTrip(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	out, err := Marshal(m)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)

	// Everything survives, including deployment and step ordering and the
	// explicit empty schedule lists.
	assert.Equal(t, m, again)
	assert.Equal(t, "scale.py:scale_flow", again.Deployments[0].Entrypoint)
	assert.Equal(t, "etl.py:etl_flow", again.Deployments[1].Entrypoint)
	assert.Contains(t, string(out), "schedules: []")
	assert.Contains(t, string(out), "prefect-version: null")
}

func TestRoundTripStepOrder(t *testing.T) {
	body := `deployments: []
build:
  - prefect.deployments.steps.run_shell_script:
      id: first
      script: "true"
  - prefect.deployments.steps.run_shell_script:
      id: second
      script: "true"
  - prefect_docker.deployments.steps.build_docker_image:
      image_name: demo
`
	m, err := Parse([]byte(body))
	require.NoError(t, err)

	out, err := Marshal(m)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)

	require.Len(t, again.Build, 3)
	assert.Equal(t, "first", again.Build[0].Args()["id"])
	assert.Equal(t, "second", again.Build[1].Args()["id"])
	assert.Equal(t, "prefect_docker.deployments.steps.build_docker_image", again.Build[2].ID())
}

func TestLoadAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Deployments, 2)

	outPath := filepath.Join(dir, "out.yaml")
	require.NoError(t, Write(m, outPath))

	again, err := Load(outPath)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
