package store

import (
	"fmt"
	"sync"
)

// usageData is the on-disk shape of the usage counters file.
type usageData struct {
	TotalPrompts int            `json:"totalPrompts"`
	CommandUsage map[string]int `json:"commandUsage"`
}

// UsageSnapshot is a read-only copy of the counters for display.
type UsageSnapshot struct {
	TotalPrompts int
	CommandUsage map[string]int
}

// UsageStore persists the global prompt counter and per-command counts.
type UsageStore struct {
	path string

	mu   sync.Mutex
	data usageData
}

// NewUsageStore loads the store from path, creating zeroed counters if the
// file does not exist yet.
func NewUsageStore(path string) (*UsageStore, error) {
	s := &UsageStore{path: path, data: usageData{CommandUsage: map[string]int{}}}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, fmt.Errorf("load usage store: %w", err)
	}
	if s.data.CommandUsage == nil {
		s.data.CommandUsage = map[string]int{}
	}
	return s, nil
}

// RecordPrompt increments the total and the per-command counter and persists.
// Returns the new total, used for the per-prompt log line.
func (s *UsageStore) RecordPrompt(command string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TotalPrompts++
	s.data.CommandUsage[command]++
	return s.data.TotalPrompts, saveJSON(s.path, s.data)
}

// Snapshot returns a copy of the current counters.
func (s *UsageStore) Snapshot() UsageSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	usage := make(map[string]int, len(s.data.CommandUsage))
	for k, v := range s.data.CommandUsage {
		usage[k] = v
	}
	return UsageSnapshot{TotalPrompts: s.data.TotalPrompts, CommandUsage: usage}
}
