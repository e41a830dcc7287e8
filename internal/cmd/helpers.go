package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/znicholasbrown/flowctl/internal/api"
	"github.com/znicholasbrown/flowctl/internal/config"
	"github.com/znicholasbrown/flowctl/internal/manifest"
)

// loadProject resolves the project configuration and parses its manifest.
func loadProject() (*config.Config, *manifest.Manifest, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, m, nil
}

// newAPIClient builds an orchestrator client from the configuration.
func newAPIClient(cfg *config.Config) (*api.Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("no orchestrator API URL configured (set %s or run flowctl init)", config.EnvAPIURL)
	}
	return api.NewClient(cfg.APIURL, cfg.APIKey), nil
}

// parseKeyValues parses repeated "key=value" flags. Values decode as YAML
// scalars so numbers and booleans keep their types.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		values[key] = value
	}

	return values, nil
}

// decryptSecrets shells out to sops and returns the decrypted document as a
// map. sops owns key management; flowctl only consumes the plaintext.
func decryptSecrets(ctx context.Context, file string) (map[string]any, error) {
	cmd := exec.CommandContext(ctx, "sops", "--input-type", "yaml", "--output-type", "json", "-d", file)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sops decrypt failed for %s: %w: %s", file, err, stderr.String())
	}

	var secrets map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &secrets); err != nil {
		return nil, fmt.Errorf("parse decrypted secrets from %s: %w", file, err)
	}
	return secrets, nil
}
