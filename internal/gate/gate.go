// Package gate decides whether an incoming command may execute.
//
// The gate is pure decision logic over already-validated inputs: it never
// mutates state and cannot fail. On deny it carries the exact user-facing
// message, delivered ephemerally by the caller. Usage counters are
// incremented by the caller only after an allow.
package gate

import "fmt"

// GuildConfig is the slice of per-guild setup state the gate reads.
// Either field empty means the guild is not configured.
type GuildConfig struct {
	ChannelID string
	RoleID    string
}

// Invocation describes one incoming command, independent of its semantics.
type Invocation struct {
	Command   string
	InGuild   bool
	GuildID   string
	ChannelID string   // invoking channel (guild context only)
	Roles     []string // member role IDs (guild context only)
}

// Verdict is the gate's decision. Message is set only on deny.
type Verdict struct {
	Allowed bool
	Message string
}

func allow() Verdict          { return Verdict{Allowed: true} }
func deny(msg string) Verdict { return Verdict{Message: msg} }

// Evaluate applies the permission rules in order; the first match wins.
func Evaluate(inv Invocation, cfg GuildConfig) Verdict {
	switch inv.Command {
	case "remember", "forget":
		// Memory management bypasses channel and role checks entirely.
		return allow()
	case "stats":
		// Usage report bypasses channel/role checks but is guild-only;
		// admin-only is enforced at the transport layer.
		if !inv.InGuild {
			return deny("Sorry, the `/stats` command only works in servers.")
		}
		return allow()
	}

	if !inv.InGuild {
		if inv.Command == "summarize" {
			return deny("Sorry, the `/summarize` command only works in servers.")
		}
		return allow()
	}

	// Setup is privileged at the transport layer and must work before the
	// guild is configured.
	if inv.Command == "setup" {
		return allow()
	}

	if cfg.ChannelID == "" || cfg.RoleID == "" {
		return deny("⚠️ This bot has not been configured. Use `/setup` first.")
	}
	if inv.ChannelID != cfg.ChannelID {
		return deny(fmt.Sprintf("⚠️ Please use bot commands in <#%s>.", cfg.ChannelID))
	}
	if !hasRole(inv.Roles, cfg.RoleID) {
		return deny("⛔ You do not have the required role to use this command.")
	}
	return allow()
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
