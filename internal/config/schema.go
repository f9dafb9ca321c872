// Package config defines the Novus configuration schema and its JSON loader.
package config

import (
	"os"
	"path/filepath"
)

// DiscordConfig holds the bot credentials and gateway parameters.
type DiscordConfig struct {
	Token         string `json:"token"`
	ApplicationID string `json:"applicationId"`
	GatewayURL    string `json:"gatewayUrl"`
	Intents       int    `json:"intents"`
}

func defaultDiscordConfig() DiscordConfig {
	return DiscordConfig{
		GatewayURL: "wss://gateway.discord.gg/?v=10&encoding=json",
		Intents:    1, // GUILDS: needed for guild create/delete lifecycle events
	}
}

// OllamaConfig holds the inference endpoint parameters.
type OllamaConfig struct {
	APIBase        string `json:"apiBase"`
	NumPredict     int    `json:"numPredict"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func defaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		APIBase:        "http://localhost:11434",
		NumPredict:     2048,
		TimeoutSeconds: 300,
	}
}

// SearchConfig holds the Serper web search credentials.
type SearchConfig struct {
	SerperKey string `json:"serperKey"`
}

// Config is the root configuration object stored at ~/.novus/config.json.
type Config struct {
	Discord DiscordConfig `json:"discord"`
	Ollama  OllamaConfig  `json:"ollama"`
	Search  SearchConfig  `json:"search"`

	// Models maps a command name to a backend model identifier, overriding
	// the built-in routing table entry for that command.
	Models map[string]string `json:"models,omitempty"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Discord: defaultDiscordConfig(),
		Ollama:  defaultOllamaConfig(),
		Models:  map[string]string{},
	}
}

// applyEnv fills credential fields from the environment when the config file
// leaves them empty, matching how the original deployment passed secrets.
func (c *Config) applyEnv() {
	if c.Discord.Token == "" {
		c.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if c.Discord.ApplicationID == "" {
		c.Discord.ApplicationID = os.Getenv("DISCORD_CLIENT_ID")
	}
	if c.Search.SerperKey == "" {
		c.Search.SerperKey = os.Getenv("SERPER_API_KEY")
	}
}

// ConfigPath returns the default configuration file path: ~/.novus/config.json.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".novus/config.json"
	}
	return filepath.Join(home, ".novus", "config.json")
}

// DataDir returns the Novus data directory: ~/.novus.
// The guild config, user memory, and usage stores live here.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".novus"
	}
	return filepath.Join(home, ".novus")
}
