// Package report logs a periodic summary of the usage counters so an
// operator can watch adoption without querying /stats in Discord.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/novusbot/novus/internal/store"
)

// defaultSchedule fires once a day at 09:00 local time.
const defaultSchedule = "0 0 9 * * *"

// Service owns the report schedule.
type Service struct {
	usage    *store.UsageStore
	schedule string
	cron     *robfigcron.Cron
}

// NewService creates the report service on the default daily schedule.
func NewService(usage *store.UsageStore) *Service {
	return &Service{
		usage:    usage,
		schedule: defaultSchedule,
		cron:     robfigcron.New(robfigcron.WithSeconds()),
	}
}

// SetSchedule overrides the cron expression. Must be called before Start.
func (s *Service) SetSchedule(expr string) { s.schedule = expr }

// Start arms the schedule and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, s.emit); err != nil {
		return fmt.Errorf("report: schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	slog.Info("report: started", "schedule", s.schedule)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Service) emit() {
	snap := s.usage.Snapshot()
	slog.Info("usage report", "total", snap.TotalPrompts, "breakdown", breakdown(snap))
}

// breakdown renders the per-command counters as "chat=3 think=1",
// sorted so consecutive reports diff cleanly.
func breakdown(snap store.UsageSnapshot) string {
	commands := make([]string, 0, len(snap.CommandUsage))
	for cmd := range snap.CommandUsage {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)

	parts := make([]string, 0, len(commands))
	for _, cmd := range commands {
		parts = append(parts, fmt.Sprintf("%s=%d", cmd, snap.CommandUsage[cmd]))
	}
	return strings.Join(parts, " ")
}
