package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/novusbot/novus/internal/document"
	"github.com/novusbot/novus/internal/gate"
	"github.com/novusbot/novus/internal/history"
	"github.com/novusbot/novus/internal/ollama"
	"github.com/novusbot/novus/internal/store"
	"github.com/novusbot/novus/internal/stream"
)

// TranscriptMessage is one channel message pulled for /summarize,
// oldest first.
type TranscriptMessage struct {
	Author  string
	Content string
}

// AttachmentRef describes a user-supplied attachment.
type AttachmentRef struct {
	URL         string
	Filename    string
	ContentType string
}

// Invocation is a fully resolved slash command, detached from any
// transport-level payload.
type Invocation struct {
	Command    string
	Subcommand string

	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	RoleIDs   []string

	Prompt string
	Count  int

	Document *AttachmentRef
	Image    *AttachmentRef

	MemoryText      string
	TargetChannelID string
	TargetRoleID    string
	TargetRoleName  string
}

// InGuild reports whether the invocation came from a server channel.
func (inv Invocation) InGuild() bool { return inv.GuildID != "" }

// conversationKey isolates history per channel in guilds and per user in DMs.
func (inv Invocation) conversationKey() string {
	if inv.InGuild() {
		return inv.ChannelID
	}
	return inv.UserID
}

// Replier sends interaction responses. Every method may fail at the
// transport and callers treat failures as best-effort.
type Replier interface {
	Respond(ctx context.Context, content string, ephemeral bool) error
	RespondEmbed(ctx context.Context, title, description string, ephemeral bool) error
	Defer(ctx context.Context, ephemeral bool) error
	Edit(ctx context.Context, content string) error
	EditWithFile(ctx context.Context, content, filename string, data []byte) error
	Acked() bool
}

// ResponseStream yields raw byte chunks of a streaming model response.
type ResponseStream interface {
	Next() ([]byte, error)
	Close() error
}

// Inference starts a streaming chat completion against a backend model.
type Inference interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (ResponseStream, error)
}

// DocumentExtractor turns an attachment into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, url, contentType string) (string, error)
}

// Searcher produces a text context block for a query. Implementations
// never fail; they return a stand-in string instead.
type Searcher interface {
	Context(ctx context.Context, query string) string
}

// TranscriptSource fetches recent channel messages for /summarize.
type TranscriptSource interface {
	RecentMessages(ctx context.Context, channelID string, limit int) ([]TranscriptMessage, error)
}

// AttachmentFetcher downloads an attachment and base64-encodes it.
type AttachmentFetcher interface {
	FetchBase64(ctx context.Context, url string) (string, error)
}

// Router dispatches gated slash commands to their handlers.
type Router struct {
	guilds  *store.GuildConfigStore
	memory  *store.MemoryStore
	usage   *store.UsageStore
	history *history.Log

	llm         Inference
	docs        DocumentExtractor
	search      Searcher
	transcripts TranscriptSource
	attachments AttachmentFetcher

	models map[string]string
}

// New builds a Router. overrides replaces entries of the default model
// table per command name.
func New(
	guilds *store.GuildConfigStore,
	memory *store.MemoryStore,
	usage *store.UsageStore,
	hist *history.Log,
	llm Inference,
	docs DocumentExtractor,
	search Searcher,
	transcripts TranscriptSource,
	attachments AttachmentFetcher,
	overrides map[string]string,
) *Router {
	models := make(map[string]string, len(defaultModels))
	for cmd, model := range defaultModels {
		models[cmd] = model
	}
	for cmd, model := range overrides {
		if model != "" {
			models[cmd] = model
		}
	}
	return &Router{
		guilds:      guilds,
		memory:      memory,
		usage:       usage,
		history:     hist,
		llm:         llm,
		docs:        docs,
		search:      search,
		transcripts: transcripts,
		attachments: attachments,
		models:      models,
	}
}

// Handle runs one invocation end to end: permission gate, usage
// accounting, then the command handler. It never returns an error;
// failures surface to the user as messages and to the log as records.
func (r *Router) Handle(ctx context.Context, inv Invocation, reply Replier) {
	verdict := gate.Evaluate(r.gateInvocation(inv), r.GuildConfig(inv.GuildID))
	if !verdict.Allowed {
		r.respond(ctx, reply, verdict.Message, true)
		return
	}

	var err error
	switch inv.Command {
	case "remember":
		err = r.handleRemember(ctx, inv, reply)
	case "forget":
		err = r.handleForget(ctx, inv, reply)
	case "setup":
		err = r.handleSetup(ctx, inv, reply)
	case "stats":
		err = r.handleStats(ctx, inv, reply)
	default:
		if err = r.recordUsage(inv.Command); err == nil {
			if inv.Command == "summarize" {
				err = r.handleSummarize(ctx, inv, reply)
			} else {
				err = r.handleModel(ctx, inv, reply)
			}
		}
	}
	if err != nil {
		slog.Error("command failed", "command", inv.Command, "user", inv.UserID, "error", err)
		if reply.Acked() {
			r.edit(ctx, reply, genericFailure)
		} else {
			r.respond(ctx, reply, genericFailure, true)
		}
	}
}

func (r *Router) gateInvocation(inv Invocation) gate.Invocation {
	return gate.Invocation{
		Command:   inv.Command,
		InGuild:   inv.InGuild(),
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		Roles:     inv.RoleIDs,
	}
}

// GuildConfig resolves the stored guild settings for the gate.
func (r *Router) GuildConfig(guildID string) gate.GuildConfig {
	cfg := r.guilds.Get(guildID)
	return gate.GuildConfig{ChannelID: cfg.ChannelID, RoleID: cfg.RoleID}
}

func (r *Router) recordUsage(command string) error {
	total, err := r.usage.RecordPrompt(command)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	slog.Info("prompt handled", "command", command, "total", total)
	return nil
}

func (r *Router) handleRemember(ctx context.Context, inv Invocation, reply Replier) error {
	if err := r.memory.Remember(inv.UserID, inv.MemoryText); err != nil {
		return fmt.Errorf("remember: %w", err)
	}
	r.respond(ctx, reply, "✅ Got it. I'll remember that.", true)
	return nil
}

func (r *Router) handleForget(ctx context.Context, inv Invocation, reply Replier) error {
	had, err := r.memory.Forget(inv.UserID)
	if err != nil {
		return fmt.Errorf("forget: %w", err)
	}
	if had {
		r.respond(ctx, reply, "✅ I have forgotten everything about you.", true)
	} else {
		r.respond(ctx, reply, "I don't have any information stored for you.", true)
	}
	return nil
}

func (r *Router) handleSetup(ctx context.Context, inv Invocation, reply Replier) error {
	switch inv.Subcommand {
	case "channel":
		if err := r.guilds.SetChannel(inv.GuildID, inv.TargetChannelID); err != nil {
			return fmt.Errorf("setup channel: %w", err)
		}
		r.respond(ctx, reply, fmt.Sprintf("✅ Novus will now operate in <#%s>.", inv.TargetChannelID), true)
	case "role":
		if err := r.guilds.SetRole(inv.GuildID, inv.TargetRoleID); err != nil {
			return fmt.Errorf("setup role: %w", err)
		}
		r.respond(ctx, reply, fmt.Sprintf("✅ Users now need the %s role.", inv.TargetRoleName), true)
	default:
		r.respond(ctx, reply, "Sorry, that's an invalid command.", true)
	}
	return nil
}

func (r *Router) handleStats(ctx context.Context, inv Invocation, reply Replier) error {
	snap := r.usage.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "**Total Prompts Handled:** %d\n\n**Command Breakdown:**\n", snap.TotalPrompts)
	commands := make([]string, 0, len(snap.CommandUsage))
	for cmd := range snap.CommandUsage {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	for _, cmd := range commands {
		fmt.Fprintf(&b, " • **/%s**: %d times\n", cmd, snap.CommandUsage[cmd])
	}

	if err := reply.RespondEmbed(ctx, "Novus Usage Statistics", b.String(), true); err != nil {
		slog.Warn("stats response failed", "error", err)
	}
	return nil
}

func (r *Router) handleSummarize(ctx context.Context, inv Invocation, reply Replier) error {
	if err := reply.Defer(ctx, true); err != nil {
		return fmt.Errorf("defer: %w", err)
	}

	count := inv.Count
	if count <= 0 {
		count = 100
	}
	if count > 100 {
		r.edit(ctx, reply, "Sorry, I can only summarize a maximum of 100 messages at a time.")
		return nil
	}

	msgs, err := r.transcripts.RecentMessages(ctx, inv.ChannelID, count)
	if err != nil {
		slog.Error("transcript fetch failed", "channel", inv.ChannelID, "error", err)
		r.edit(ctx, reply, backendApology)
		return nil
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Author+": "+m.Content)
	}
	transcript := strings.Join(lines, "\n")
	if len(transcript) < 50 {
		r.edit(ctx, reply, "There isn't enough conversation to summarize.")
		return nil
	}

	messages := []ollama.Message{
		{Role: "system", Content: personaPrompt("")},
		{Role: "user", Content: fmt.Sprintf(summaryTemplate, transcript)},
	}
	src, err := r.llm.Chat(ctx, r.models["summarize"], messages)
	if err != nil {
		slog.Error("summarize inference failed", "error", err)
		r.edit(ctx, reply, backendApology)
		return nil
	}
	defer src.Close()

	summary, err := stream.Collect(src)
	if err != nil {
		slog.Error("summarize stream failed", "error", err)
		r.edit(ctx, reply, backendApology)
		return nil
	}

	r.edit(ctx, reply, fmt.Sprintf("**Summary of the last %d messages:**\n%s", len(msgs), summary))
	return nil
}

// handleModel covers the streaming commands: chat, chat2, think, think2,
// image, websearch, and analyze.
func (r *Router) handleModel(ctx context.Context, inv Invocation, reply Replier) error {
	if err := reply.Defer(ctx, false); err != nil {
		return fmt.Errorf("defer: %w", err)
	}

	model, ok := r.models[inv.Command]
	if !ok {
		r.edit(ctx, reply, "Sorry, that's an invalid command.")
		return nil
	}

	finalPrompt := inv.Prompt
	switch inv.Command {
	case "analyze":
		text, err := r.extractDocument(ctx, inv)
		if err != nil {
			if errors.Is(err, document.ErrUnsupportedType) {
				r.edit(ctx, reply, "Sorry, I can only analyze `.txt` and `.pdf` files.")
			} else {
				slog.Error("document extraction failed", "error", err)
				r.edit(ctx, reply, backendApology)
			}
			return nil
		}
		if strings.TrimSpace(text) == "" {
			r.edit(ctx, reply, "I couldn't read any text from that document.")
			return nil
		}
		if len(text) > documentContextLimit {
			text = text[:documentContextLimit]
		}
		finalPrompt = fmt.Sprintf(analyzeTemplate, text, inv.Prompt)
	case "websearch":
		results := r.search.Context(ctx, inv.Prompt)
		finalPrompt = fmt.Sprintf(websearchTemplate, results, inv.Prompt)
	case "image":
		if inv.Image == nil || !strings.HasPrefix(inv.Image.ContentType, "image/") {
			r.edit(ctx, reply, "Please provide a valid image file.")
			return nil
		}
	}

	messages := []ollama.Message{
		{Role: "system", Content: personaPrompt(r.memory.Context(inv.UserID))},
	}
	if !oneShot[inv.Command] {
		for _, turn := range r.history.Turns(inv.conversationKey()) {
			messages = append(messages, ollama.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	userTurn := ollama.Message{Role: "user", Content: finalPrompt}
	if inv.Command == "image" {
		b64, err := r.attachments.FetchBase64(ctx, inv.Image.URL)
		if err != nil {
			slog.Error("image fetch failed", "url", inv.Image.URL, "error", err)
			r.edit(ctx, reply, backendApology)
			return nil
		}
		userTurn.Images = []string{b64}
	}
	messages = append(messages, userTurn)

	src, err := r.llm.Chat(ctx, model, messages)
	if err != nil {
		slog.Error("inference failed", "model", model, "error", err)
		r.edit(ctx, reply, backendApology)
		return nil
	}
	defer src.Close()

	header := dmHeader(inv.Prompt)
	if inv.InGuild() {
		header = guildHeader(inv.Username, inv.Prompt)
	}
	agg := stream.New(header, reply)
	res, err := agg.Run(ctx, src)
	if err != nil {
		slog.Error("response stream failed", "model", model, "error", err)
		r.edit(ctx, reply, backendApology)
		return nil
	}

	if conversational[inv.Command] {
		r.history.Exchange(inv.conversationKey(), inv.Prompt, res.Content)
	}
	return nil
}

func (r *Router) extractDocument(ctx context.Context, inv Invocation) (string, error) {
	if inv.Document == nil {
		return "", fmt.Errorf("document: %w", document.ErrUnsupportedType)
	}
	return r.docs.Extract(ctx, inv.Document.URL, inv.Document.ContentType)
}

// respond and edit are best-effort; transport failures are logged and
// do not abort the command.
func (r *Router) respond(ctx context.Context, reply Replier, content string, ephemeral bool) {
	if err := reply.Respond(ctx, content, ephemeral); err != nil {
		slog.Warn("interaction response failed", "error", err)
	}
}

func (r *Router) edit(ctx context.Context, reply Replier, content string) {
	if err := reply.Edit(ctx, content); err != nil {
		slog.Warn("interaction edit failed", "error", err)
	}
}
