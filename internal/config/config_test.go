package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znicholasbrown/flowctl/internal/manifest"
)

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, manifest.DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("deployments: []\n"), 0644))
	return path
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	nested := filepath.Join(root, "flows", "etl")
	require.NoError(t, os.MkdirAll(nested, 0755))

	t.Run("from the root itself", func(t *testing.T) {
		found, err := FindRoot(root)
		require.NoError(t, err)
		assert.Equal(t, root, found)
	})

	t.Run("from a nested directory", func(t *testing.T) {
		found, err := FindRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, found)
	})

	t.Run("no manifest anywhere", func(t *testing.T) {
		_, err := FindRoot(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), manifest.DefaultFile)
	})
}

func TestLoadFrom(t *testing.T) {
	root := t.TempDir()
	manifestPath := writeManifest(t, root)

	// Point the profile at an empty home so the developer's real profile
	// never leaks into the test.
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvAPIURL, "https://orchestrator.example.com/api")
	t.Setenv(EnvAPIKey, "env-key")

	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, manifestPath, cfg.ManifestPath)
	assert.Equal(t, "https://orchestrator.example.com/api", cfg.APIURL)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, filepath.Join(root, ".flowctl", "history"), cfg.HistoryDir())
}

func TestProfileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, SaveProfile(&Profile{
		APIURL: "https://orchestrator.example.com/api",
		APIKey: "secret",
	}))

	path, err := ProfilePath()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	profile, err := LoadProfile()
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "secret", profile.APIKey)
}

func TestProfileEnvOverridesProfileFile(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	t.Setenv("HOME", t.TempDir())
	require.NoError(t, SaveProfile(&Profile{APIURL: "https://from-profile.example.com/api"}))

	t.Setenv(EnvAPIURL, "https://from-env.example.com/api")
	t.Setenv(EnvAPIKey, "")

	cfg, err := LoadFrom(root)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com/api", cfg.APIURL)
}

func TestLoadProfileMissingFileIsNil(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	profile, err := LoadProfile()
	require.NoError(t, err)
	assert.Nil(t, profile)
}
