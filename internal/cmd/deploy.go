package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/znicholasbrown/flowctl/internal/api"
	"github.com/znicholasbrown/flowctl/internal/history"
	"github.com/znicholasbrown/flowctl/internal/manifest"
	"github.com/znicholasbrown/flowctl/internal/steps"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

var (
	deployAll    bool
	deployNames  []string
	deployDryRun bool
	deployVars   []string
)

// deployCmd represents the deploy command.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run build and push steps, then register deployments",
	Long: `Deploy entries from the manifest.

This command will:
  1. Validate the manifest
  2. Run the build step sequence, then the push step sequence
  3. Register each selected deployment with the orchestrator, with the
     manifest's pull steps attached
  4. Record a snapshot of the applied manifest under .flowctl/history

Entry names are scoped by entrypoint, so -n may select several entries that
share a name. Step outputs (e.g. {{ build_image.image }}) are available to
deployment fields and pull steps.

Examples:
  flowctl deploy --all
  flowctl deploy -n nicholas-managed-staging
  flowctl deploy --all --dry-run
  flowctl deploy --all --var image_tag=v1.2.3`,
	Run: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployAll, "all", false, "Deploy every entry in the manifest")
	deployCmd.Flags().StringSliceVarP(&deployNames, "name", "n", nil, "Deploy entries with this name (repeatable)")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Resolve and print deployment specs without side effects")
	deployCmd.Flags().StringArrayVar(&deployVars, "var", nil, "Set a template variable as key=value (repeatable)")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) {
	cfg, m, err := loadProject()
	if err != nil {
		ui.Fatal("%v", err)
	}

	if errs := manifest.Validate(m); len(errs) > 0 {
		for _, err := range errs {
			ui.Error("%v", err)
		}
		ui.Fatal("manifest is invalid (%d error(s))", len(errs))
	}

	selected, err := selectDeployments(m, deployAll, deployNames)
	if err != nil {
		ui.Fatal("%v", err)
	}

	variables, err := parseKeyValues(deployVars)
	if err != nil {
		ui.Fatal("%v", err)
	}

	ctx := context.Background()
	ictx := manifest.NewContext(variables)
	// Dry runs record no step outputs, so references to them stay in place.
	ictx.Lenient = deployDryRun

	runner := &steps.Runner{Dir: cfg.Root, DryRun: deployDryRun, Log: ui.Info}

	if len(m.Build) > 0 {
		ui.Header("Build steps")
		if err := runner.Run(ctx, m.Build, ictx); err != nil {
			ui.Fatal("build: %v", err)
		}
	}
	if len(m.Push) > 0 {
		ui.Header("Push steps")
		if err := runner.Run(ctx, m.Push, ictx); err != nil {
			ui.Fatal("push: %v", err)
		}
	}

	specs := make([]api.DeploymentSpec, len(selected))
	for i, d := range selected {
		spec, err := deploymentSpec(d, m.Pull, ictx)
		if err != nil {
			ui.Fatal("%v", err)
		}
		specs[i] = spec
	}

	if deployDryRun {
		for i, spec := range specs {
			ui.Header("--- %s", selected[i].Key())
			data, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				ui.Fatal("%v", err)
			}
			fmt.Println(string(data))
		}
		ui.Success("Dry run complete: %d deployment(s) resolved", len(specs))
		return
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		ui.Fatal("%v", err)
	}

	var registered []string
	for i, d := range selected {
		flowName := api.FlowNameFromCallable(d.EntrypointCallable())

		flow, err := client.EnsureFlow(ctx, flowName)
		if err != nil {
			ui.Fatal("%v", err)
		}

		specs[i].FlowID = flow.ID
		if _, err := client.CreateOrUpdateDeployment(ctx, specs[i]); err != nil {
			ui.Fatal("%v", err)
		}

		identifier := flowName + "/" + d.Name
		registered = append(registered, identifier)
		ui.Success("Registered %s", identifier)
	}

	data, err := manifest.Marshal(m)
	if err != nil {
		ui.Warning("snapshot manifest: %v", err)
	} else if _, err := history.Append(cfg.HistoryDir(), data, registered); err != nil {
		ui.Warning("record deploy history: %v", err)
	}

	ui.Success("Deployed %d deployment(s)", len(registered))
}

// selectDeployments picks manifest entries by name. --all selects everything;
// -n matches every entry with that name, since names are scoped by entrypoint
// and one name can cover several entries.
func selectDeployments(m *manifest.Manifest, all bool, names []string) ([]manifest.Deployment, error) {
	if all && len(names) > 0 {
		return nil, fmt.Errorf("--all and --name are mutually exclusive")
	}

	if all {
		if len(m.Deployments) == 0 {
			return nil, fmt.Errorf("manifest has no deployments")
		}
		return m.Deployments, nil
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("select deployments with --all or --name")
	}

	matched := make(map[string]bool, len(names))
	for _, name := range names {
		matched[name] = false
	}

	var selected []manifest.Deployment
	for _, d := range m.Deployments {
		if _, wanted := matched[d.Name]; wanted {
			matched[d.Name] = true
			selected = append(selected, d)
		}
	}

	for _, name := range names {
		if !matched[name] {
			return nil, fmt.Errorf("no deployment named %q in the manifest", name)
		}
	}

	return selected, nil
}

// deploymentSpec resolves a manifest entry into its registration payload.
// Pull steps are attached with references resolved but otherwise verbatim:
// the worker executes them at run time.
func deploymentSpec(d manifest.Deployment, pull []manifest.Step, ictx *manifest.Context) (api.DeploymentSpec, error) {
	parameters, err := ictx.ResolveMap(d.Parameters)
	if err != nil {
		return api.DeploymentSpec{}, fmt.Errorf("deployment %s: parameters: %w", d.Key(), err)
	}

	spec := api.DeploymentSpec{
		Name:                   d.Name,
		Entrypoint:             d.Entrypoint,
		Tags:                   d.Tags,
		Parameters:             parameters,
		Schedules:              scheduleSpecs(d.Schedules),
		Version:                d.Version,
		Description:            d.Description,
		ConcurrencyLimit:       d.ConcurrencyLimit,
		EnforceParameterSchema: d.EnforceParameterSchema,
	}

	if d.WorkPool != nil {
		spec.WorkPoolName = d.WorkPool.Name
		spec.WorkQueueName = d.WorkPool.WorkQueueName

		jobVariables, err := ictx.ResolveMap(d.WorkPool.JobVariables)
		if err != nil {
			return api.DeploymentSpec{}, fmt.Errorf("deployment %s: job_variables: %w", d.Key(), err)
		}
		spec.JobVariables = jobVariables
	}

	for _, step := range pull {
		args, err := ictx.ResolveMap(step.Args())
		if err != nil {
			return api.DeploymentSpec{}, fmt.Errorf("deployment %s: pull step %s: %w", d.Key(), step.ID(), err)
		}
		spec.PullSteps = append(spec.PullSteps, map[string]any{step.ID(): args})
	}

	return spec, nil
}

// scheduleSpecs converts schedules to the API's open mapping form. The result
// is never nil so an empty schedule list reaches the orchestrator explicitly.
func scheduleSpecs(schedules []manifest.Schedule) []map[string]any {
	specs := make([]map[string]any, 0, len(schedules))

	for _, s := range schedules {
		spec := map[string]any{}
		if s.Cron != "" {
			spec["cron"] = s.Cron
		}
		if s.Interval != 0 {
			spec["interval"] = s.Interval
		}
		if s.RRule != "" {
			spec["rrule"] = s.RRule
		}
		if s.Timezone != "" {
			spec["timezone"] = s.Timezone
		}
		if s.Active != nil {
			spec["active"] = *s.Active
		}
		specs = append(specs, spec)
	}

	return specs
}
