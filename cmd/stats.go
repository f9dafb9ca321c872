package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/novusbot/novus/internal/config"
	"github.com/novusbot/novus/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the usage counters",
	RunE:  runStats,
}

func runStats(_ *cobra.Command, _ []string) error {
	usage, err := store.NewUsageStore(filepath.Join(config.DataDir(), "stats.json"))
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	snap := usage.Snapshot()

	fmt.Printf("%s novus usage\n\n", logo)
	fmt.Printf("Total prompts handled: %d\n", snap.TotalPrompts)
	if len(snap.CommandUsage) == 0 {
		return nil
	}

	fmt.Println("\nPer command:")
	commands := make([]string, 0, len(snap.CommandUsage))
	for cmd := range snap.CommandUsage {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	for _, cmd := range commands {
		fmt.Printf("  /%-12s %d\n", cmd, snap.CommandUsage[cmd])
	}
	return nil
}
