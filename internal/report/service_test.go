package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/novusbot/novus/internal/store"
)

func newUsage(t *testing.T) *store.UsageStore {
	t.Helper()
	usage, err := store.NewUsageStore(filepath.Join(t.TempDir(), "usage.json"))
	if err != nil {
		t.Fatal(err)
	}
	return usage
}

func TestBreakdown(t *testing.T) {
	usage := newUsage(t)
	for _, cmd := range []string{"think", "chat", "chat"} {
		if _, err := usage.RecordPrompt(cmd); err != nil {
			t.Fatal(err)
		}
	}

	got := breakdown(usage.Snapshot())
	if got != "chat=2 think=1" {
		t.Errorf("breakdown = %q", got)
	}
}

func TestBreakdown_Empty(t *testing.T) {
	if got := breakdown(newUsage(t).Snapshot()); got != "" {
		t.Errorf("breakdown = %q, want empty", got)
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	svc := NewService(newUsage(t))
	svc.SetSchedule("not a cron expression")

	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	svc := NewService(newUsage(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
