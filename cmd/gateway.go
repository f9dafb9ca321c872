package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/novusbot/novus/internal/config"
	"github.com/novusbot/novus/internal/dependency"
	"github.com/novusbot/novus/internal/discord"
)

var gatewayVerbose bool

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Connect to Discord and serve slash commands",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().BoolVarP(&gatewayVerbose, "verbose", "v", false, "Verbose logging")
}

const guildGreeting = "Hello! I am Novus. To get started, an administrator needs to configure me using `/setup channel` and `/setup role`."

func runGateway(_ *cobra.Command, _ []string) error {
	if gatewayVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Discord.Token == "" || cfg.Discord.ApplicationID == "" {
		return fmt.Errorf("discord token and application id are required — edit %s", config.ConfigPath())
	}

	c, err := dependency.New(cfg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	events := discord.Events{
		OnInteraction: func(ctx context.Context, ic discord.Interaction) {
			c.Router().Handle(ctx, discord.InvocationFrom(ic), c.Rest().ResponderFor(ic))
		},
		OnGuildCreate: func(ctx context.Context, guildID, systemChannelID string) {
			if systemChannelID == "" {
				return
			}
			if err := c.Rest().CreateMessage(ctx, systemChannelID, guildGreeting); err != nil {
				slog.Warn("guild greeting failed", "guild", guildID, "error", err)
			}
		},
		OnGuildDelete: func(_ context.Context, guildID string) {
			removed, err := c.Guilds().Remove(guildID)
			if err != nil {
				slog.Warn("guild config cleanup failed", "guild", guildID, "error", err)
				return
			}
			if removed {
				slog.Info("removed configuration for departed guild", "guild", guildID)
			}
		},
	}
	gw := discord.NewGateway(&cfg.Discord, events)

	fmt.Printf("%s Starting novus gateway...\n", logo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Start(gctx) })
	g.Go(func() error { return c.ReportService().Start(gctx) })

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
