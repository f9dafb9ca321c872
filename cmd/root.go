// Package cmd implements the novus CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🤖"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "novus",
	Short: logo + " novus — Discord assistant for local Ollama models",
	Long:  logo + " novus — a Discord bot that routes slash commands to a local Ollama endpoint",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(statusCmd)
}
