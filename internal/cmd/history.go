package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/znicholasbrown/flowctl/internal/config"
	"github.com/znicholasbrown/flowctl/internal/history"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

var historyShow string

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:     "history [n]",
	Aliases: []string{"log"},
	Short:   "Show recorded deploys",
	Long: `Show the manifest snapshots recorded by deploy, newest first.

Pass n to limit the output. Use --show to print a recorded manifest exactly
as it was applied.

Examples:
  flowctl history
  flowctl history 5
  flowctl history --show deploy-20240101-120000.000000000`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyShow, "show", "", "Print the recorded manifest for an entry")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		ui.Fatal("%v", err)
	}

	if historyShow != "" {
		data, err := history.Manifest(cfg.HistoryDir(), historyShow)
		if err != nil {
			ui.Fatal("%v", err)
		}
		fmt.Print(string(data))
		return
	}

	entries, err := history.List(cfg.HistoryDir())
	if err != nil {
		ui.Fatal("%v", err)
	}
	if len(entries) == 0 {
		ui.Info("No deploys recorded yet.")
		return
	}

	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			ui.Fatal("invalid count %q", args[0])
		}
		if n < len(entries) {
			entries = entries[:n]
		}
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Name,
			entry.Created.Local().Format("2006-01-02 15:04:05"),
			strings.Join(entry.Record.Deployments, ", "),
		})
	}

	fmt.Println(renderTable([]string{"ENTRY", "WHEN", "DEPLOYMENTS"}, rows))
}
