// Package cmd provides the CLI commands for flowctl.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "Deployment manifests for flow orchestration",
	Long: `flowctl - deployment manifests as code

Manage a prefect.yaml deployment manifest: validate it, run its build and
push steps, register its deployments, and trigger runs.

PROJECT
  init [dir]            Scaffold a starter prefect.yaml
  validate              Lint the manifest without touching anything
  render                Print the manifest with references resolved
    --values, -f <file> Apply a values overlay
    --secrets, -s <file> Merge a SOPS-encrypted secrets file
  list                  Show deployments in the manifest
    --remote, -r        Show deployments registered with the orchestrator

DEPLOYING
  deploy --all          Register every entry in the manifest
  deploy -n <name>      Register the named entry (repeatable)
    --dry-run           Resolve and print specs without side effects

RUNNING
  deployment run "<flow>/<deployment>"
    --param, -p k=v     Override a flow parameter for this run
    --timeout, -t <sec> Wait for the run to finish (0 = fire and forget)
    --watch, -w         Wait with a default timeout

HOUSEKEEPING
  history [n]           Show recorded deploys
  update                Update flowctl to the latest release`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("flowctl version {{.Version}}\n")
}
