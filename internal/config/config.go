// Package config handles project discovery and the flowctl profile.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/znicholasbrown/flowctl/internal/manifest"
)

// Environment variables recognized by flowctl. They override the profile.
const (
	EnvAPIURL = "FLOWCTL_API_URL"
	EnvAPIKey = "FLOWCTL_API_KEY"
)

// Config holds the flowctl project configuration.
type Config struct {
	// Root is the project root directory (contains the manifest).
	Root string

	// ManifestPath is the path to the deployment manifest.
	ManifestPath string

	// APIURL is the orchestrator API base URL.
	APIURL string

	// APIKey authenticates against the orchestrator.
	APIKey string
}

// Profile is the persisted part of the configuration, stored at
// ~/.flowctl/config.yaml.
type Profile struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key,omitempty"`
}

// FindRoot searches upward from dir for a directory containing the manifest
// file.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, manifest.DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("project root not found (no %s in this directory or any parent)", manifest.DefaultFile)
}

// Load resolves the full configuration: project root, profile file, and
// environment overrides.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load anchored at an explicit directory.
func LoadFrom(dir string) (*Config, error) {
	root, err := FindRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadAPI()
	if err != nil {
		return nil, err
	}

	cfg.Root = root
	cfg.ManifestPath = filepath.Join(root, manifest.DefaultFile)
	return cfg, nil
}

// LoadAPI resolves only the orchestrator connection settings, for commands
// that work outside a project directory (triggering a run needs no manifest).
func LoadAPI() (*Config, error) {
	cfg := &Config{}

	profile, err := LoadProfile()
	if err != nil {
		return nil, err
	}
	if profile != nil {
		cfg.APIURL = profile.APIURL
		cfg.APIKey = profile.APIKey
	}

	if url := os.Getenv(EnvAPIURL); url != "" {
		cfg.APIURL = url
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}

	return cfg, nil
}

// HistoryDir returns where deploy snapshots are kept.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.Root, ".flowctl", "history")
}

// ProfilePath returns the profile file location.
func ProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".flowctl", "config.yaml"), nil
}

// LoadProfile reads the profile file. A missing file is not an error.
func LoadProfile() (*Profile, error) {
	path, err := ProfilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &profile, nil
}

// SaveProfile writes the profile file with owner-only permissions, since it
// may hold an API key.
func SaveProfile(profile *Profile) error {
	path, err := ProfilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
