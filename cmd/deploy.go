package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novusbot/novus/internal/config"
	"github.com/novusbot/novus/internal/discord"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Register the slash commands with Discord",
	RunE:  runDeploy,
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Discord.Token == "" || cfg.Discord.ApplicationID == "" {
		return fmt.Errorf("discord token and application id are required — edit %s", config.ConfigPath())
	}

	rest := discord.NewRest(cfg.Discord.Token, cfg.Discord.ApplicationID)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("Started refreshing application (/) commands.")
	n, err := rest.RegisterCommands(ctx)
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	fmt.Printf("Successfully reloaded %d application (/) commands.\n", n)
	return nil
}
