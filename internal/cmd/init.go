package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/znicholasbrown/flowctl/internal/config"
	"github.com/znicholasbrown/flowctl/internal/manifest"
	"github.com/znicholasbrown/flowctl/internal/ui"
)

var (
	initName     string
	initWorkPool string
	initAPIURL   string
	initYes      bool
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a new deployment manifest project",
	Long: `Initialize a project with a starter prefect.yaml and a .gitignore
covering flowctl's local state.

The command can also save the orchestrator API URL and key to
~/.flowctl/config.yaml, so deploy and run work without environment
variables.

If no directory is specified, the current directory is used.

Use --yes to skip all interactive prompts (useful for non-TTY environments).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Project name (default: directory name)")
	initCmd.Flags().StringVar(&initWorkPool, "work-pool", "default", "Work pool for the starter deployment")
	initCmd.Flags().StringVar(&initAPIURL, "api-url", "", "Orchestrator API URL to save in the profile")
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Skip interactive prompts")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absDir, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	name := initName
	if name == "" {
		name = filepath.Base(absDir)
	}

	manifestPath := filepath.Join(absDir, manifest.DefaultFile)
	if _, err := os.Stat(manifestPath); err == nil {
		ui.Warning("%s already exists", manifestPath)
		if initYes {
			return nil
		}
		overwrite, err := promptYesNo("Overwrite?")
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Aborted.")
			return nil
		}
	}

	rendered, err := renderStarterManifest(name, initWorkPool)
	if err != nil {
		return err
	}
	if err := os.WriteFile(manifestPath, rendered, 0644); err != nil {
		return fmt.Errorf("write %s: %w", manifest.DefaultFile, err)
	}
	ui.Success("Created %s", manifest.DefaultFile)

	if err := createFileIfNotExists(filepath.Join(absDir, ".gitignore"), starterGitignore); err != nil {
		return err
	}

	if err := saveInitProfile(); err != nil {
		return err
	}

	fmt.Println()
	ui.Success("Project %q initialized", name)
	ui.Info("Next: edit %s, then run: flowctl deploy --all", manifest.DefaultFile)
	return nil
}

// saveInitProfile stores orchestrator settings when given via flag or prompt.
func saveInitProfile() error {
	apiURL := initAPIURL
	if apiURL == "" && !initYes && isTerminal() {
		var err error
		apiURL, err = promptLine("Orchestrator API URL (empty to skip)")
		if err != nil {
			return err
		}
	}
	if apiURL == "" {
		return nil
	}

	profile := &config.Profile{APIURL: apiURL}
	if !initYes && isTerminal() {
		key, err := promptSecret("API key (empty for none)")
		if err != nil {
			return err
		}
		profile.APIKey = key
	}

	if err := config.SaveProfile(profile); err != nil {
		return err
	}

	if path, err := config.ProfilePath(); err == nil {
		ui.Success("Saved profile to %s", path)
	}
	return nil
}

// renderStarterManifest renders the starter manifest template. Delimiters are
// << >> so the output can contain {{ ... }} references untouched.
func renderStarterManifest(name, workPool string) ([]byte, error) {
	tmpl, err := template.New(manifest.DefaultFile).
		Delims("<<", ">>").
		Funcs(sprig.FuncMap()).
		Parse(starterManifestTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse starter template: %w", err)
	}

	var buf bytes.Buffer
	data := map[string]string{"Name": name, "WorkPool": workPool}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render starter template: %w", err)
	}
	return buf.Bytes(), nil
}

// isTerminal checks if stdin is a TTY.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptYesNo asks the user a yes/no question.
// Returns error if stdin is not a TTY and cannot read input.
func promptYesNo(question string) (bool, error) {
	if !isTerminal() {
		return false, fmt.Errorf("cannot prompt for input: stdin is not a TTY. Use --yes flag to skip interactive prompts")
	}

	fmt.Printf("%s [y/N] ", question)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// promptLine reads a single line of input.
func promptLine(question string) (string, error) {
	fmt.Printf("%s: ", question)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read user input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads input without echoing it.
func promptSecret(question string) (string, error) {
	fmt.Printf("%s: ", question)

	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// createFileIfNotExists creates a file with the given content if it doesn't exist.
func createFileIfNotExists(filename, content string) error {
	if _, err := os.Stat(filename); err == nil {
		ui.Warning("%s already exists, skipping", filepath.Base(filename))
		return nil
	}

	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return err
	}

	ui.Success("Created %s", filepath.Base(filename))
	return nil
}

// Starter file templates

const starterManifestTmpl = `# Deployment manifest for << .Name >>
# Generic metadata about this project
prefect-version: null
name: << .Name | kebabcase >>

# build section allows you to manage and build docker images
build: null

# push section allows you to manage if and how this project is uploaded to remote locations
push: null

# pull section allows you to provide instructions for cloning this project in remote locations
pull:
  - prefect.deployments.steps.set_working_directory:
      directory: /opt/prefect/<< .Name | kebabcase >>

# the deployments section allows you to provide configuration for deploying flows
deployments:
  - name: default
    entrypoint: flows/example.py:example_flow
    tags: []
    parameters: {}
    work_pool:
      name: << .WorkPool >>
      work_queue_name: default
    schedules: []
`

const starterGitignore = `# flowctl local state
.flowctl/

# decrypted secrets
secrets.yaml
*.dec.yaml
`
