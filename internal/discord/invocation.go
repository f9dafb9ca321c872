package discord

import "github.com/novusbot/novus/internal/router"

// InvocationFrom flattens a raw interaction into the router's
// transport-neutral invocation.
func InvocationFrom(ic Interaction) router.Invocation {
	inv := router.Invocation{
		Command:    ic.Command(),
		Subcommand: ic.Subcommand(),
		GuildID:    ic.GuildID,
		ChannelID:  ic.ChannelID,
		UserID:     ic.Invoker().ID,
		Username:   ic.Invoker().Username,
		RoleIDs:    ic.RoleIDs(),
		Count:      ic.IntOption("count"),
		MemoryText: ic.StringOption("data"),
	}

	if inv.Command == "websearch" {
		inv.Prompt = ic.StringOption("query")
	} else {
		inv.Prompt = ic.StringOption("prompt")
	}

	if att := ic.AttachmentOption("document"); att != nil {
		inv.Document = attachmentRef(att)
	}
	if att := ic.AttachmentOption("image"); att != nil {
		inv.Image = attachmentRef(att)
	}

	switch inv.Subcommand {
	case "channel":
		inv.TargetChannelID = ic.ChannelOption("target")
	case "role":
		if role := ic.RoleOption("target"); role != nil {
			inv.TargetRoleID = role.ID
			inv.TargetRoleName = role.Name
		}
	}
	return inv
}

func attachmentRef(att *Attachment) *router.AttachmentRef {
	return &router.AttachmentRef{
		URL:         att.URL,
		Filename:    att.Filename,
		ContentType: att.ContentType,
	}
}
