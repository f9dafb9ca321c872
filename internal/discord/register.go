package discord

import (
	"context"
	"fmt"
	"net/http"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed commands.yaml
var commandsManifest []byte

type manifestOption struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
}

type manifestSubcommand struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Options     []manifestOption `yaml:"options"`
}

type manifestCommand struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Admin       bool                 `yaml:"admin"`
	DM          bool                 `yaml:"dm"`
	Options     []manifestOption     `yaml:"options"`
	Subcommands []manifestSubcommand `yaml:"subcommands"`
}

var optionTypes = map[string]int{
	"string":     optionTypeString,
	"integer":    optionTypeInteger,
	"channel":    optionTypeChannel,
	"role":       optionTypeRole,
	"attachment": optionTypeAttachment,
}

// loadManifest parses the embedded command manifest.
func loadManifest() ([]manifestCommand, error) {
	var cmds []manifestCommand
	if err := yaml.Unmarshal(commandsManifest, &cmds); err != nil {
		return nil, fmt.Errorf("parse command manifest: %w", err)
	}
	return cmds, nil
}

// manifestToAPI converts the manifest to the wire shape for bulk overwrite.
func manifestToAPI(cmds []manifestCommand) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(cmds))
	for _, c := range cmds {
		entry := map[string]any{
			"name":          c.Name,
			"description":   c.Description,
			"dm_permission": c.DM,
		}
		if c.Admin {
			entry["default_member_permissions"] = "0"
		}

		var opts []map[string]any
		for _, sub := range c.Subcommands {
			subOpts, err := optionsToAPI(c.Name, sub.Options)
			if err != nil {
				return nil, err
			}
			opts = append(opts, map[string]any{
				"name":        sub.Name,
				"description": sub.Description,
				"type":        optionTypeSubcommand,
				"options":     subOpts,
			})
		}
		plain, err := optionsToAPI(c.Name, c.Options)
		if err != nil {
			return nil, err
		}
		opts = append(opts, plain...)
		if len(opts) > 0 {
			entry["options"] = opts
		}
		out = append(out, entry)
	}
	return out, nil
}

func optionsToAPI(command string, opts []manifestOption) ([]map[string]any, error) {
	var out []map[string]any
	for _, o := range opts {
		kind, ok := optionTypes[o.Type]
		if !ok {
			return nil, fmt.Errorf("command %s: unknown option type %q", command, o.Type)
		}
		out = append(out, map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        kind,
			"required":    o.Required,
		})
	}
	return out, nil
}

// RegisterCommands bulk-overwrites the application's global slash commands
// from the embedded manifest. Returns the number of commands registered.
func (r *Rest) RegisterCommands(ctx context.Context) (int, error) {
	cmds, err := loadManifest()
	if err != nil {
		return 0, err
	}
	payload, err := manifestToAPI(cmds)
	if err != nil {
		return 0, err
	}

	url := apiBase + "/applications/" + r.appID + "/commands"
	if err := r.doJSON(ctx, http.MethodPut, url, payload); err != nil {
		return 0, fmt.Errorf("register commands: %w", err)
	}
	return len(payload), nil
}
