package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/znicholasbrown/flowctl/internal/ui"
	"github.com/znicholasbrown/flowctl/internal/update"
)

var updateCheckOnly bool

// updateCmd represents the update command.
var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update flowctl to the latest version",
	Long: `Update flowctl to the latest version from GitHub releases.

This command will:
1. Check for a newer version on GitHub
2. Download the appropriate binary for your platform
3. Replace the current binary with the new version

Examples:
  flowctl update           # Update to latest version
  flowctl update --check   # Check for updates without installing`,
	Run: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "Only check for updates, don't install")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	ui.Blue.Printf("Current version: %s\n", version)

	if updateCheckOnly {
		checkForUpdate(ctx)
		return
	}

	performUpdate(ctx)
}

func checkForUpdate(ctx context.Context) {
	ui.Blue.Println("Checking for updates...")

	release, available, err := update.Check(ctx, version)
	if err != nil {
		ui.Error("Failed to check for updates: %v", err)
		return
	}

	if !available {
		ui.Success("You're running the latest version!")
		return
	}

	ui.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
	fmt.Println()
	ui.Blue.Println("To update, run: flowctl update")
	printChangelog(release.Changelog)
}

func performUpdate(ctx context.Context) {
	ui.Blue.Println("Checking for updates...")

	release, err := update.Apply(ctx, version)
	if err != nil {
		ui.Error("Update failed: %v", err)
		return
	}

	if release == nil {
		ui.Success("You're already running the latest version!")
		return
	}

	fmt.Println()
	ui.Success("Successfully updated to version %s!", release.Version)
	printChangelog(release.Changelog)
	fmt.Println()
	ui.Blue.Println("Restart flowctl to use the new version.")
}

func printChangelog(changelog string) {
	if changelog == "" {
		return
	}

	fmt.Println()
	ui.Yellow.Println("What's new:")

	lines := strings.Split(changelog, "\n")
	maxLines := 10
	if len(lines) < maxLines {
		maxLines = len(lines)
	}
	for i := 0; i < maxLines; i++ {
		fmt.Printf("  %s\n", lines[i])
	}
	if len(lines) > maxLines {
		fmt.Printf("  ... (%d more lines)\n", len(lines)-maxLines)
	}
}
