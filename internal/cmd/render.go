package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/znicholasbrown/flowctl/internal/manifest"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

var (
	renderValues  string
	renderSecrets string
	renderSet     []string
)

// renderCmd represents the render command.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the manifest with references resolved",
	Long: `Resolve {{ ... }} references in the manifest and print the result.

Variables come from, in increasing precedence:
  - a values overlay file (--values)
  - a SOPS-encrypted secrets file (--secrets, decrypted via the sops binary)
  - --set key=value flags

References to step outputs (e.g. {{ build_image.image }}) only exist at
deploy time and are left in place.

Examples:
  flowctl render
  flowctl render --values prod.yaml
  flowctl render --secrets secrets.sops.yaml --set image_tag=v1.2.3`,
	Run: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderValues, "values", "f", "", "Values overlay file (YAML mapping)")
	renderCmd.Flags().StringVarP(&renderSecrets, "secrets", "s", "", "SOPS-encrypted secrets file")
	renderCmd.Flags().StringArrayVar(&renderSet, "set", nil, "Set a variable as key=value (repeatable)")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) {
	_, m, err := loadProject()
	if err != nil {
		ui.Fatal("%v", err)
	}

	variables, err := renderVariables(context.Background())
	if err != nil {
		ui.Fatal("%v", err)
	}

	ictx := manifest.NewContext(variables)
	ictx.Lenient = true

	resolved, err := resolveManifest(m, ictx)
	if err != nil {
		ui.Fatal("%v", err)
	}

	data, err := manifest.Marshal(resolved)
	if err != nil {
		ui.Fatal("%v", err)
	}
	fmt.Print(string(data))
}

// renderVariables merges the values file, decrypted secrets, and --set flags,
// later sources winning.
func renderVariables(ctx context.Context) (map[string]any, error) {
	variables := make(map[string]any)

	if renderValues != "" {
		data, err := os.ReadFile(renderValues)
		if err != nil {
			return nil, fmt.Errorf("read values file: %w", err)
		}

		var overlay map[string]any
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("parse values file %s: %w", renderValues, err)
		}
		variables = manifest.DeepMerge(variables, overlay)
	}

	if renderSecrets != "" {
		secrets, err := decryptSecrets(ctx, renderSecrets)
		if err != nil {
			return nil, err
		}
		variables = manifest.DeepMerge(variables, secrets)
	}

	set, err := parseKeyValues(renderSet)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		variables[k] = v
	}

	return variables, nil
}

// resolveManifest returns a copy of m with every resolvable reference in
// step arguments, parameters, and job variables substituted.
func resolveManifest(m *manifest.Manifest, ictx *manifest.Context) (*manifest.Manifest, error) {
	resolved := *m

	var err error
	if resolved.Build, err = resolveSteps(m.Build, "build", ictx); err != nil {
		return nil, err
	}
	if resolved.Push, err = resolveSteps(m.Push, "push", ictx); err != nil {
		return nil, err
	}
	if resolved.Pull, err = resolveSteps(m.Pull, "pull", ictx); err != nil {
		return nil, err
	}

	deployments := make([]manifest.Deployment, len(m.Deployments))
	for i, d := range m.Deployments {
		parameters, err := ictx.ResolveMap(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("deployment %s: parameters: %w", d.Key(), err)
		}
		if len(parameters) > 0 {
			d.Parameters = parameters
		}

		if d.WorkPool != nil {
			pool := *d.WorkPool
			jobVariables, err := ictx.ResolveMap(pool.JobVariables)
			if err != nil {
				return nil, fmt.Errorf("deployment %s: job_variables: %w", d.Key(), err)
			}
			if len(jobVariables) > 0 {
				pool.JobVariables = jobVariables
			}
			d.WorkPool = &pool
		}

		deployments[i] = d
	}
	resolved.Deployments = deployments

	return &resolved, nil
}

func resolveSteps(list []manifest.Step, phase string, ictx *manifest.Context) ([]manifest.Step, error) {
	if len(list) == 0 {
		return list, nil
	}

	resolved := make([]manifest.Step, 0, len(list))
	for i, step := range list {
		args, err := ictx.ResolveMap(step.Args())
		if err != nil {
			return nil, fmt.Errorf("%s step %d: %w", phase, i, err)
		}
		resolved = append(resolved, manifest.Step{step.ID(): manifest.StepArgs(args)})
	}

	return resolved, nil
}
