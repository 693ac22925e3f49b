// cmd/init.go
package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/driftnet-io/drift-agent/internal/config"
)

var (
	initCoordinatorURL string
	initNodeName       string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generates the agent configuration for this device",
	Long: `Writes agent.yaml under the drift config directory. It can be run
interactively or with flags for automation.`,
	Example: `  # Interactive setup
  drift init

  # Non-interactive setup
  drift init --coordinator ws://192.168.100.2:5000 --name lab-phone-3`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load existing configuration: %v\n", err)
			os.Exit(1)
		}

		coordinator, err := getCoordinatorURL(cfg.CoordinatorURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Canceled: %v\n", err)
			os.Exit(1)
		}
		cfg.CoordinatorURL = coordinator

		nodeName, err := getNodeName(cfg.NodeName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Canceled: %v\n", err)
			os.Exit(1)
		}
		cfg.NodeName = nodeName

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
			os.Exit(1)
		}

		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to write configuration: %v\n", err)
			os.Exit(1)
		}

		dir, _ := config.Dir()
		fmt.Printf("✅ Configuration written to %s/%s\n", dir, config.FileName)
		fmt.Println("   Run 'drift run' to bring this device online.")
	},
}

// getCoordinatorURL resolves the coordinator address from the flag or an
// interactive prompt.
func getCoordinatorURL(current string) (string, error) {
	if initCoordinatorURL != "" {
		return initCoordinatorURL, nil
	}
	answer := current
	prompt := &survey.Input{
		Message: "Coordinator WebSocket URL:",
		Default: current,
		Help:    "The ws:// or wss:// address of the Driftnet coordinator this device reports to.",
	}
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return answer, nil
}

// getNodeName resolves the node name from the flag or an interactive prompt.
func getNodeName(current string) (string, error) {
	if initNodeName != "" {
		return initNodeName, nil
	}
	answer := current
	prompt := &survey.Input{
		Message: "Node name:",
		Default: current,
		Help:    "A human-readable label shown next to this device in the coordinator.",
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", err
	}
	return answer, nil
}

func init() {
	initCmd.Flags().StringVar(&initCoordinatorURL, "coordinator", "", "Coordinator WebSocket URL")
	initCmd.Flags().StringVar(&initNodeName, "name", "", "Node name reported to the coordinator")
	rootCmd.AddCommand(initCmd)
}
