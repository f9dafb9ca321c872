package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/novusbot/novus/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show novus status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s novus Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:      %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	tokenMark := "(not set)"
	if cfg.Discord.Token != "" {
		tokenMark = "✓"
	}
	appMark := "(not set)"
	if cfg.Discord.ApplicationID != "" {
		appMark = "✓"
	}
	serperMark := "(not set)"
	if cfg.Search.SerperKey != "" {
		serperMark = "✓"
	}

	fmt.Printf("Bot token:   %s\n", tokenMark)
	fmt.Printf("App ID:      %s\n", appMark)
	fmt.Printf("Serper key:  %s\n", serperMark)
	fmt.Printf("Ollama:      %s\n", cfg.Ollama.APIBase)

	if len(cfg.Models) > 0 {
		fmt.Println("\nModel overrides:")
		for cmd, model := range cfg.Models {
			fmt.Printf("  /%-12s %s\n", cmd, model)
		}
	}
	return nil
}
