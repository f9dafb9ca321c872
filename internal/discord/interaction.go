package discord

import (
	"encoding/json"
	"fmt"
)

const (
	interactionApplicationCommand = 2

	optionTypeSubcommand = 1
	optionTypeString     = 3
	optionTypeInteger    = 4
	optionTypeChannel    = 7
	optionTypeRole       = 8
	optionTypeAttachment = 11
)

// User identifies the invoking account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Member is the guild-scoped identity carried on guild interactions.
type Member struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"`
}

// Attachment is a resolved attachment option.
type Attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Role is a resolved role option.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type option struct {
	Name    string   `json:"name"`
	Type    int      `json:"type"`
	Value   any      `json:"value"`
	Options []option `json:"options"`
}

type resolved struct {
	Attachments map[string]Attachment `json:"attachments"`
	Roles       map[string]Role       `json:"roles"`
}

type interactionData struct {
	Name     string   `json:"name"`
	Options  []option `json:"options"`
	Resolved resolved `json:"resolved"`
}

// Interaction is one slash-command invocation as delivered by the gateway.
type Interaction struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Type      int             `json:"type"`
	GuildID   string          `json:"guild_id"`
	ChannelID string          `json:"channel_id"`
	Member    *Member         `json:"member"` // guild context only
	User      *User           `json:"user"`   // DM context only
	Data      interactionData `json:"data"`
}

func parseInteraction(raw json.RawMessage) (Interaction, error) {
	var ic Interaction
	if err := json.Unmarshal(raw, &ic); err != nil {
		return Interaction{}, fmt.Errorf("parse interaction: %w", err)
	}
	return ic, nil
}

// Command returns the invoked command name.
func (ic Interaction) Command() string { return ic.Data.Name }

// InGuild reports whether the interaction came from a shared (guild) context.
func (ic Interaction) InGuild() bool { return ic.GuildID != "" }

// Invoker returns the invoking user regardless of context.
func (ic Interaction) Invoker() User {
	if ic.Member != nil {
		return ic.Member.User
	}
	if ic.User != nil {
		return *ic.User
	}
	return User{}
}

// RoleIDs returns the member's role IDs, or nil in a DM context.
func (ic Interaction) RoleIDs() []string {
	if ic.Member == nil {
		return nil
	}
	return ic.Member.Roles
}

// Subcommand returns the invoked subcommand name, or "".
func (ic Interaction) Subcommand() string {
	for _, opt := range ic.Data.Options {
		if opt.Type == optionTypeSubcommand {
			return opt.Name
		}
	}
	return ""
}

// flatOptions returns the option list with a subcommand level flattened away.
func (ic Interaction) flatOptions() []option {
	for _, opt := range ic.Data.Options {
		if opt.Type == optionTypeSubcommand {
			return opt.Options
		}
	}
	return ic.Data.Options
}

// StringOption returns the named string option value, or "".
func (ic Interaction) StringOption(name string) string {
	for _, opt := range ic.flatOptions() {
		if opt.Name == name {
			if s, ok := opt.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// IntOption returns the named integer option value, or 0 when absent.
func (ic Interaction) IntOption(name string) int {
	for _, opt := range ic.flatOptions() {
		if opt.Name == name {
			if f, ok := opt.Value.(float64); ok { // JSON numbers decode as float64
				return int(f)
			}
		}
	}
	return 0
}

// AttachmentOption resolves the named attachment option, or nil.
func (ic Interaction) AttachmentOption(name string) *Attachment {
	for _, opt := range ic.flatOptions() {
		if opt.Name == name {
			id, ok := opt.Value.(string)
			if !ok {
				return nil
			}
			if att, ok := ic.Data.Resolved.Attachments[id]; ok {
				return &att
			}
		}
	}
	return nil
}

// ChannelOption returns the named channel option's ID, or "".
// Channel options carry the raw ID as their value.
func (ic Interaction) ChannelOption(name string) string {
	for _, opt := range ic.flatOptions() {
		if opt.Name == name {
			if s, ok := opt.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// RoleOption resolves the named role option, or nil.
func (ic Interaction) RoleOption(name string) *Role {
	for _, opt := range ic.flatOptions() {
		if opt.Name == name {
			id, ok := opt.Value.(string)
			if !ok {
				return nil
			}
			if role, ok := ic.Data.Resolved.Roles[id]; ok {
				return &role
			}
			return &Role{ID: id}
		}
	}
	return nil
}
