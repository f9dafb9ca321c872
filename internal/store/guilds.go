// Package store implements the JSON-file-backed stores for guild
// configuration, user memory, and usage counters.
//
// Each store loads its file once at construction (a missing file is an empty
// store, not an error) and rewrites the whole file after every mutation.
// Persistence is last-write-wins by design; there is no cross-process locking.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// GuildConfig is the per-guild setup state. Both fields are optional until
// the setup command writes them; either one missing means "not configured".
type GuildConfig struct {
	ChannelID string `json:"channelId,omitempty"`
	RoleID    string `json:"roleId,omitempty"`
}

// Configured reports whether both the channel and the role have been set.
func (g GuildConfig) Configured() bool {
	return g.ChannelID != "" && g.RoleID != ""
}

// GuildConfigStore persists guild configurations to a single JSON file.
type GuildConfigStore struct {
	path string

	mu     sync.Mutex
	guilds map[string]GuildConfig
}

// NewGuildConfigStore loads the store from path, creating an empty store if
// the file does not exist yet.
func NewGuildConfigStore(path string) (*GuildConfigStore, error) {
	s := &GuildConfigStore{path: path, guilds: map[string]GuildConfig{}}
	if err := loadJSON(path, &s.guilds); err != nil {
		return nil, fmt.Errorf("load guild config store: %w", err)
	}
	return s, nil
}

// Get returns the configuration for guildID. A guild that has never been set
// up yields the zero GuildConfig.
func (s *GuildConfigStore) Get(guildID string) GuildConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guilds[guildID]
}

// SetChannel records the operating channel for guildID and persists.
func (s *GuildConfigStore) SetChannel(guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.guilds[guildID]
	cfg.ChannelID = channelID
	s.guilds[guildID] = cfg
	return saveJSON(s.path, s.guilds)
}

// SetRole records the required role for guildID and persists.
func (s *GuildConfigStore) SetRole(guildID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.guilds[guildID]
	cfg.RoleID = roleID
	s.guilds[guildID] = cfg
	return saveJSON(s.path, s.guilds)
}

// Remove deletes the configuration for guildID, if any, and persists.
// Called when the bot leaves a guild.
func (s *GuildConfigStore) Remove(guildID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guilds[guildID]; !ok {
		return false, nil
	}
	delete(s.guilds, guildID)
	return true, saveJSON(s.path, s.guilds)
}

// loadJSON reads path into v. A missing file leaves v untouched.
func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// saveJSON writes v to path as indented JSON, creating parent directories.
func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
