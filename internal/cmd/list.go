package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/znicholasbrown/flowctl/internal/config"
	"github.com/znicholasbrown/flowctl/internal/manifest"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

var (
	listRemote   bool
	listWorkPool string
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List deployments",
	Long: `List the deployments declared in the local manifest.

With --remote, list the deployments registered with the orchestrator
instead, optionally filtered by work pool.

Examples:
  flowctl list
  flowctl list --remote
  flowctl list --remote --work-pool nicholas-managed`,
	Run: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listRemote, "remote", "r", false, "List deployments registered with the orchestrator")
	listCmd.Flags().StringVar(&listWorkPool, "work-pool", "", "Filter remote deployments by work pool")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	if listRemote {
		listRemoteDeployments()
		return
	}

	_, m, err := loadProject()
	if err != nil {
		ui.Fatal("%v", err)
	}

	if len(m.Deployments) == 0 {
		ui.Info("Manifest has no deployments.")
		return
	}

	fmt.Println(manifestTable(m))
}

// manifestTable summarizes the manifest's deployment entries.
func manifestTable(m *manifest.Manifest) string {
	rows := make([][]string, 0, len(m.Deployments))
	for _, d := range m.Deployments {
		var pool, queue string
		if d.WorkPool != nil {
			pool = d.WorkPool.Name
			queue = d.WorkPool.WorkQueueName
		}

		rows = append(rows, []string{
			d.Name,
			d.Entrypoint,
			pool,
			queue,
			strings.Join(d.Tags, ", "),
			strconv.Itoa(len(d.Schedules)),
		})
	}

	return renderTable([]string{"NAME", "ENTRYPOINT", "WORK POOL", "QUEUE", "TAGS", "SCHEDULES"}, rows, 5)
}

func listRemoteDeployments() {
	cfg, err := config.LoadAPI()
	if err != nil {
		ui.Fatal("%v", err)
	}
	client, err := newAPIClient(cfg)
	if err != nil {
		ui.Fatal("%v", err)
	}

	deployments, err := client.ListDeployments(context.Background(), listWorkPool)
	if err != nil {
		ui.Fatal("%v", err)
	}

	if len(deployments) == 0 {
		ui.Info("No deployments registered.")
		return
	}

	rows := make([][]string, 0, len(deployments))
	for _, d := range deployments {
		rows = append(rows, []string{
			d.Name,
			d.Entrypoint,
			d.WorkPoolName,
			d.WorkQueueName,
			strings.Join(d.Tags, ", "),
			d.Updated.Local().Format("2006-01-02 15:04"),
		})
	}

	fmt.Println(renderTable([]string{"NAME", "ENTRYPOINT", "WORK POOL", "QUEUE", "TAGS", "UPDATED"}, rows))
}
