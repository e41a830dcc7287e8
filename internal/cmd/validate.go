package cmd

import (
	"github.com/spf13/cobra"

	"github.com/znicholasbrown/flowctl/internal/config"
	"github.com/znicholasbrown/flowctl/internal/manifest"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

var validateFile string

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:     "validate",
	Aliases: []string{"lint"},
	Short:   "Validate the deployment manifest",
	Long: `Validate the deployment manifest without touching anything.

Checks performed:
  - the document parses and contains no unknown fields
  - every entrypoint has the <path>:<callable> shape
  - every work_pool has a name and work queue
  - every step is a single-identifier mapping
  - every schedule sets exactly one of cron, interval, or rrule
  - no two entries share both name and entrypoint

All problems are reported, not just the first one.

Examples:
  flowctl validate
  flowctl validate -f staging/prefect.yaml`,
	Run: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "Manifest file (default: discover prefect.yaml upward)")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	path := validateFile
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			ui.Fatal("%v", err)
		}
		path = cfg.ManifestPath
	}

	m, err := manifest.Load(path)
	if err != nil {
		ui.Fatal("%v", err)
	}

	errs := manifest.Validate(m)
	if len(errs) == 0 {
		ui.Success("%s is valid (%d deployment(s))", path, len(m.Deployments))
		return
	}

	for _, err := range errs {
		ui.Error("%v", err)
	}
	ui.Fatal("%d validation error(s)", len(errs))
}
