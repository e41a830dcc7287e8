package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/znicholasbrown/flowctl/internal/api"
	"github.com/znicholasbrown/flowctl/internal/config"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

// defaultWatchTimeout bounds --watch when no explicit timeout is given.
const defaultWatchTimeout = 10 * time.Minute

var (
	runParams         []string
	runJobVariables   []string
	runTimeout        int
	runWatch          bool
	runIdempotencyKey string
)

// deploymentCmd groups subcommands that act on registered deployments.
var deploymentCmd = &cobra.Command{
	Use:   "deployment",
	Short: "Interact with registered deployments",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// deploymentRunCmd represents the deployment run command.
var deploymentRunCmd = &cobra.Command{
	Use:   `run "<flow>/<deployment>"`,
	Short: "Create a flow run from a registered deployment",
	Long: `Create a flow run from a deployment registered with the orchestrator.

By default the run is scheduled and the command returns immediately. With
--timeout (or --watch) the command polls until the run reaches a terminal
state, and exits non-zero when the run did not complete.

This command needs no manifest: it works anywhere the orchestrator API is
configured.

Examples:
  flowctl deployment run "scale-flow/nicholas-managed-staging"
  flowctl deployment run "etl-flow/default" --param date=2024-01-01
  flowctl deployment run "scale-flow/default" --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runDeploymentRun,
}

func init() {
	deploymentRunCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "Override a flow parameter as key=value (repeatable)")
	deploymentRunCmd.Flags().StringArrayVar(&runJobVariables, "job-variable", nil, "Override a job variable as key=value (repeatable)")
	deploymentRunCmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "Seconds to wait for the run to finish (0 returns immediately)")
	deploymentRunCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Wait for the run to reach a terminal state")
	deploymentRunCmd.Flags().StringVar(&runIdempotencyKey, "idempotency-key", "", "Deduplication key for retried submissions")

	deploymentCmd.AddCommand(deploymentRunCmd)
	rootCmd.AddCommand(deploymentCmd)
}

func runDeploymentRun(cmd *cobra.Command, args []string) {
	name := args[0]
	if _, _, err := api.SplitDeploymentName(name); err != nil {
		ui.Fatal("%v", err)
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		ui.Fatal("%v", err)
	}
	client, err := newAPIClient(cfg)
	if err != nil {
		ui.Fatal("%v", err)
	}

	parameters, err := parseKeyValues(runParams)
	if err != nil {
		ui.Fatal("%v", err)
	}
	jobVariables, err := parseKeyValues(runJobVariables)
	if err != nil {
		ui.Fatal("%v", err)
	}

	timeout := time.Duration(runTimeout) * time.Second
	if runWatch && timeout <= 0 {
		timeout = defaultWatchTimeout
	}

	opts := api.RunOptions{
		Parameters:     parameters,
		JobVariables:   jobVariables,
		IdempotencyKey: runIdempotencyKey,
	}

	run, err := client.RunDeployment(context.Background(), name, opts, timeout)
	if err != nil {
		if run != nil {
			ui.Warning("last observed state: %s", run.State.Type)
		}
		ui.Fatal("%v", err)
	}

	if timeout <= 0 {
		ui.Success("Created flow run %s (%s)", run.Name, run.ID)
		ui.Info("State: %s", run.State.Type)
		return
	}

	if run.State.Type == api.StateCompleted {
		ui.Success("Flow run %s completed", run.Name)
		return
	}

	ui.Error("Flow run %s finished %s", run.Name, run.State.Type)
	if run.State.Message != "" {
		ui.Info("%s", run.State.Message)
	}
	os.Exit(1)
}
