package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/novusbot/novus/internal/document"
	"github.com/novusbot/novus/internal/history"
	"github.com/novusbot/novus/internal/ollama"
	"github.com/novusbot/novus/internal/store"
)

type fakeReplier struct {
	responses     []string
	responseFlags []bool
	embedTitles   []string
	embedBodies   []string
	deferred      bool
	deferEphems   []bool
	edits         []string
	files         []string
	acked         bool
}

func (f *fakeReplier) Respond(_ context.Context, content string, ephemeral bool) error {
	f.responses = append(f.responses, content)
	f.responseFlags = append(f.responseFlags, ephemeral)
	f.acked = true
	return nil
}

func (f *fakeReplier) RespondEmbed(_ context.Context, title, description string, _ bool) error {
	f.embedTitles = append(f.embedTitles, title)
	f.embedBodies = append(f.embedBodies, description)
	f.acked = true
	return nil
}

func (f *fakeReplier) Defer(_ context.Context, ephemeral bool) error {
	f.deferred = true
	f.deferEphems = append(f.deferEphems, ephemeral)
	f.acked = true
	return nil
}

func (f *fakeReplier) Edit(_ context.Context, content string) error {
	f.edits = append(f.edits, content)
	return nil
}

func (f *fakeReplier) EditWithFile(_ context.Context, content, filename string, _ []byte) error {
	f.edits = append(f.edits, content)
	f.files = append(f.files, filename)
	return nil
}

func (f *fakeReplier) Acked() bool { return f.acked }

func (f *fakeReplier) lastEdit(t *testing.T) string {
	t.Helper()
	if len(f.edits) == 0 {
		t.Fatal("no edits recorded")
	}
	return f.edits[len(f.edits)-1]
}

type scriptedStream struct {
	chunks [][]byte
	err    error
	pos    int
}

func (s *scriptedStream) Next() ([]byte, error) {
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

type fakeLLM struct {
	chunks    [][]byte
	chatErr   error
	streamErr error

	calls    int
	model    string
	messages []ollama.Message
}

func (f *fakeLLM) Chat(_ context.Context, model string, messages []ollama.Message) (ResponseStream, error) {
	f.calls++
	f.model = model
	f.messages = messages
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &scriptedStream{chunks: f.chunks, err: f.streamErr}, nil
}

type fakeDocs struct {
	text string
	err  error
}

func (f *fakeDocs) Extract(context.Context, string, string) (string, error) {
	return f.text, f.err
}

type fakeSearch struct{ context string }

func (f *fakeSearch) Context(context.Context, string) string { return f.context }

type fakeTranscripts struct {
	msgs []TranscriptMessage
	err  error
}

func (f *fakeTranscripts) RecentMessages(context.Context, string, int) ([]TranscriptMessage, error) {
	return f.msgs, f.err
}

type fakeFetcher struct {
	b64 string
	err error
}

func (f *fakeFetcher) FetchBase64(context.Context, string) (string, error) {
	return f.b64, f.err
}

func chunk(t *testing.T, fragments ...string) []byte {
	t.Helper()
	var b strings.Builder
	for _, frag := range fragments {
		line, err := json.Marshal(map[string]any{"message": map[string]string{"content": frag}})
		if err != nil {
			t.Fatal(err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

type testEnv struct {
	router *Router
	llm    *fakeLLM
	docs   *fakeDocs
	search *fakeSearch
	msgs   *fakeTranscripts
	fetch  *fakeFetcher
}

func newTestEnv(t *testing.T, overrides map[string]string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	guilds, err := store.NewGuildConfigStore(filepath.Join(dir, "guilds.json"))
	if err != nil {
		t.Fatal(err)
	}
	memory, err := store.NewMemoryStore(filepath.Join(dir, "memory.json"))
	if err != nil {
		t.Fatal(err)
	}
	usage, err := store.NewUsageStore(filepath.Join(dir, "usage.json"))
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		llm:    &fakeLLM{chunks: [][]byte{chunk(t, "ok")}},
		docs:   &fakeDocs{},
		search: &fakeSearch{},
		msgs:   &fakeTranscripts{},
		fetch:  &fakeFetcher{},
	}
	env.router = New(guilds, memory, usage, history.NewLog(),
		env.llm, env.docs, env.search, env.msgs, env.fetch, overrides)
	return env
}

// configureGuild makes guild g1 fully set up: commands channel c1, role r1.
func (e *testEnv) configureGuild(t *testing.T) {
	t.Helper()
	if err := e.router.guilds.SetChannel("g1", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := e.router.guilds.SetRole("g1", "r1"); err != nil {
		t.Fatal(err)
	}
}

func guildInvocation(command string) Invocation {
	return Invocation{
		Command:   command,
		GuildID:   "g1",
		ChannelID: "c1",
		UserID:    "u1",
		Username:  "alice",
		RoleIDs:   []string{"r1"},
		Prompt:    "hello",
	}
}

func TestHandle_DeniedBeforeCounting(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := &fakeReplier{}

	env.router.Handle(context.Background(), guildInvocation("chat"), reply)

	if len(reply.responses) != 1 || !strings.Contains(reply.responses[0], "/setup") {
		t.Fatalf("expected setup warning, got %v", reply.responses)
	}
	if !reply.responseFlags[0] {
		t.Error("denial must be ephemeral")
	}
	if env.llm.calls != 0 {
		t.Error("denied command must not reach the model")
	}
	if snap := env.router.usage.Snapshot(); snap.TotalPrompts != 0 {
		t.Errorf("denied command counted: total = %d", snap.TotalPrompts)
	}
}

func TestHandle_ChatStreamsAndRecords(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.llm.chunks = [][]byte{chunk(t, "Hello"), chunk(t, " there")}
	reply := &fakeReplier{}

	env.router.Handle(context.Background(), guildInvocation("chat"), reply)

	if !reply.deferred || reply.deferEphems[0] {
		t.Fatal("chat must defer publicly")
	}
	want := guildHeader("alice", "hello") + "Hello there"
	if got := reply.lastEdit(t); got != want {
		t.Errorf("final edit = %q, want %q", got, want)
	}
	if env.llm.model != "llama3.2:latest" {
		t.Errorf("model = %q", env.llm.model)
	}
	if env.llm.messages[0].Role != "system" || !strings.Contains(env.llm.messages[0].Content, "You are Novus") {
		t.Error("first message must carry the system persona")
	}
	last := env.llm.messages[len(env.llm.messages)-1]
	if last.Role != "user" || last.Content != "hello" {
		t.Errorf("last message = %+v", last)
	}

	snap := env.router.usage.Snapshot()
	if snap.TotalPrompts != 1 || snap.CommandUsage["chat"] != 1 {
		t.Errorf("usage = %+v", snap)
	}
	turns := env.router.history.Turns("c1")
	if len(turns) != 2 || turns[0].Content != "hello" || turns[1].Content != "Hello there" {
		t.Errorf("history = %+v", turns)
	}
}

func TestHandle_ChatThreadsHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.router.history.Exchange("c1", "earlier q", "earlier a")
	reply := &fakeReplier{}

	env.router.Handle(context.Background(), guildInvocation("chat"), reply)

	msgs := env.llm.messages
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want system + 2 history + user", len(msgs))
	}
	if msgs[1].Role != "user" || msgs[1].Content != "earlier q" {
		t.Errorf("history turn 1 = %+v", msgs[1])
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "earlier a" {
		t.Errorf("history turn 2 = %+v", msgs[2])
	}
}

func TestHandle_DMKeysHistoryByUser(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := &fakeReplier{}
	inv := Invocation{Command: "chat", UserID: "u1", Username: "alice", ChannelID: "dm1", Prompt: "hi"}

	env.router.Handle(context.Background(), inv, reply)

	if got := reply.lastEdit(t); !strings.HasPrefix(got, "**You asked:**") {
		t.Errorf("DM header missing: %q", got)
	}
	if turns := env.router.history.Turns("u1"); len(turns) != 2 {
		t.Errorf("history under user key = %+v", turns)
	}
	if turns := env.router.history.Turns("dm1"); len(turns) != 0 {
		t.Errorf("history leaked under channel key = %+v", turns)
	}
}

func TestHandle_RememberAndForget(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := &fakeReplier{}
	inv := Invocation{Command: "remember", UserID: "u1", MemoryText: "likes tea"}

	env.router.Handle(context.Background(), inv, reply)

	if len(reply.responses) != 1 || !strings.Contains(reply.responses[0], "remember") {
		t.Fatalf("responses = %v", reply.responses)
	}
	if got := env.router.memory.Context("u1"); got != "likes tea" {
		t.Errorf("memory = %q", got)
	}
	if snap := env.router.usage.Snapshot(); snap.TotalPrompts != 0 {
		t.Error("memory commands must not count as prompts")
	}

	reply = &fakeReplier{}
	env.router.Handle(context.Background(), Invocation{Command: "forget", UserID: "u1"}, reply)
	if !strings.Contains(reply.responses[0], "forgotten") {
		t.Errorf("forget response = %q", reply.responses[0])
	}

	reply = &fakeReplier{}
	env.router.Handle(context.Background(), Invocation{Command: "forget", UserID: "u1"}, reply)
	if !strings.Contains(reply.responses[0], "don't have any information") {
		t.Errorf("empty forget response = %q", reply.responses[0])
	}
}

func TestHandle_SetupEnablesCommands(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := &fakeReplier{}
	setup := Invocation{
		Command:         "setup",
		Subcommand:      "channel",
		GuildID:         "g1",
		ChannelID:       "c0",
		UserID:          "admin",
		TargetChannelID: "c1",
	}
	env.router.Handle(context.Background(), setup, reply)
	if !strings.Contains(reply.responses[0], "<#c1>") {
		t.Fatalf("setup response = %q", reply.responses[0])
	}

	reply = &fakeReplier{}
	setup.Subcommand = "role"
	setup.TargetRoleID = "r1"
	setup.TargetRoleName = "Members"
	env.router.Handle(context.Background(), setup, reply)
	if !strings.Contains(reply.responses[0], "Members role") {
		t.Fatalf("role setup response = %q", reply.responses[0])
	}

	reply = &fakeReplier{}
	env.router.Handle(context.Background(), guildInvocation("chat"), reply)
	if !reply.deferred {
		t.Fatalf("chat should be allowed after setup, got %v", reply.responses)
	}
}

func TestHandle_StatsEmbed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.router.Handle(context.Background(), guildInvocation("chat"), &fakeReplier{})

	reply := &fakeReplier{}
	env.router.Handle(context.Background(), guildInvocation("stats"), reply)

	if len(reply.embedTitles) != 1 || reply.embedTitles[0] != "Novus Usage Statistics" {
		t.Fatalf("embed titles = %v", reply.embedTitles)
	}
	body := reply.embedBodies[0]
	if !strings.Contains(body, "**Total Prompts Handled:** 1") || !strings.Contains(body, "**/chat**: 1 times") {
		t.Errorf("embed body = %q", body)
	}
}

func TestHandle_SummarizeCapAndFloor(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)

	reply := &fakeReplier{}
	inv := guildInvocation("summarize")
	inv.Count = 150
	env.router.Handle(context.Background(), inv, reply)
	if got := reply.lastEdit(t); got != "Sorry, I can only summarize a maximum of 100 messages at a time." {
		t.Errorf("cap message = %q", got)
	}
	if !reply.deferEphems[0] {
		t.Error("summarize must defer ephemerally")
	}

	env.msgs.msgs = []TranscriptMessage{{Author: "bob", Content: "hi"}}
	reply = &fakeReplier{}
	env.router.Handle(context.Background(), guildInvocation("summarize"), reply)
	if got := reply.lastEdit(t); got != "There isn't enough conversation to summarize." {
		t.Errorf("floor message = %q", got)
	}
}

func TestHandle_Summarize(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.msgs.msgs = []TranscriptMessage{
		{Author: "bob", Content: "shall we ship the release on friday"},
		{Author: "carol", Content: "yes, pending the migration dry run"},
		{Author: "bob", Content: "agreed, I will prepare the checklist"},
	}
	env.llm.chunks = [][]byte{chunk(t, "- Ship on Friday")}
	reply := &fakeReplier{}

	env.router.Handle(context.Background(), guildInvocation("summarize"), reply)

	want := "**Summary of the last 3 messages:**\n- Ship on Friday"
	if got := reply.lastEdit(t); got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
	if env.llm.model != "llama3.1:latest" {
		t.Errorf("model = %q", env.llm.model)
	}
	prompt := env.llm.messages[len(env.llm.messages)-1].Content
	if !strings.Contains(prompt, "bob: shall we ship the release on friday") {
		t.Errorf("transcript missing from prompt: %q", prompt)
	}
}

func TestHandle_AnalyzeWrapsDocument(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.docs.text = strings.Repeat("x", documentContextLimit) + "OMITTED"
	reply := &fakeReplier{}
	inv := guildInvocation("analyze")
	inv.Prompt = "what does it say"
	inv.Document = &AttachmentRef{URL: "https://cdn/doc.txt", ContentType: "text/plain"}

	env.router.Handle(context.Background(), inv, reply)

	prompt := env.llm.messages[len(env.llm.messages)-1].Content
	if !strings.Contains(prompt, "Document Content:") || !strings.Contains(prompt, `User's Question: "what does it say"`) {
		t.Errorf("wrapper missing: %q", prompt)
	}
	if strings.Contains(prompt, "OMITTED") {
		t.Error("document text not truncated")
	}
	if len(env.llm.messages) != 2 {
		t.Errorf("analyze must skip history, got %d messages", len(env.llm.messages))
	}
	if turns := env.router.history.Turns("c1"); len(turns) != 0 {
		t.Errorf("analyze must not record history, got %+v", turns)
	}
}

func TestHandle_AnalyzeFailures(t *testing.T) {
	cases := []struct {
		name string
		docs fakeDocs
		want string
	}{
		{
			name: "unsupported type",
			docs: fakeDocs{err: document.ErrUnsupportedType},
			want: "Sorry, I can only analyze `.txt` and `.pdf` files.",
		},
		{
			name: "empty text",
			docs: fakeDocs{text: "   \n  "},
			want: "I couldn't read any text from that document.",
		},
		{
			name: "extraction error",
			docs: fakeDocs{err: errors.New("fetch: connection refused")},
			want: backendApology,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.configureGuild(t)
			*env.docs = tc.docs
			reply := &fakeReplier{}
			inv := guildInvocation("analyze")
			inv.Document = &AttachmentRef{URL: "https://cdn/doc.bin", ContentType: "application/zip"}

			env.router.Handle(context.Background(), inv, reply)

			if got := reply.lastEdit(t); got != tc.want {
				t.Errorf("edit = %q, want %q", got, tc.want)
			}
			if env.llm.calls != 0 {
				t.Error("model must not be called")
			}
			// The attempt still counts: the counter commits before the handler.
			if snap := env.router.usage.Snapshot(); snap.CommandUsage["analyze"] != 1 {
				t.Errorf("usage = %+v", snap)
			}
		})
	}
}

func TestHandle_WebsearchWrapsResults(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.search.context = "Go 1.25 was released in August."
	reply := &fakeReplier{}
	inv := guildInvocation("websearch")
	inv.Prompt = "latest go release"

	env.router.Handle(context.Background(), inv, reply)

	prompt := env.llm.messages[len(env.llm.messages)-1].Content
	if !strings.Contains(prompt, "Go 1.25 was released in August.") || !strings.Contains(prompt, `Query: "latest go release"`) {
		t.Errorf("wrapper missing: %q", prompt)
	}
	if env.llm.model != "llama3.1:latest" {
		t.Errorf("model = %q", env.llm.model)
	}
}

func TestHandle_ImageValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	reply := &fakeReplier{}
	inv := guildInvocation("image")
	inv.Image = &AttachmentRef{URL: "https://cdn/file.pdf", ContentType: "application/pdf"}

	env.router.Handle(context.Background(), inv, reply)

	if got := reply.lastEdit(t); got != "Please provide a valid image file." {
		t.Errorf("edit = %q", got)
	}
	if env.llm.calls != 0 {
		t.Error("model must not be called for a non-image attachment")
	}
}

func TestHandle_ImageAttachesBase64(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.fetch.b64 = "QUJD"
	reply := &fakeReplier{}
	inv := guildInvocation("image")
	inv.Image = &AttachmentRef{URL: "https://cdn/cat.png", ContentType: "image/png"}

	env.router.Handle(context.Background(), inv, reply)

	if env.llm.model != "gemma3:4b" {
		t.Errorf("model = %q", env.llm.model)
	}
	last := env.llm.messages[len(env.llm.messages)-1]
	if len(last.Images) != 1 || last.Images[0] != "QUJD" {
		t.Errorf("images = %v", last.Images)
	}
}

func TestHandle_InferenceFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.llm.chatErr = errors.New("dial tcp: connection refused")
	reply := &fakeReplier{}

	env.router.Handle(context.Background(), guildInvocation("chat"), reply)

	if got := reply.lastEdit(t); got != backendApology {
		t.Errorf("edit = %q", got)
	}
	if turns := env.router.history.Turns("c1"); len(turns) != 0 {
		t.Error("failed exchange must not enter history")
	}
}

func TestHandle_StreamFailureDropsExchange(t *testing.T) {
	env := newTestEnv(t, nil)
	env.configureGuild(t)
	env.llm.chunks = [][]byte{chunk(t, "partial")}
	env.llm.streamErr = errors.New("unexpected EOF")
	reply := &fakeReplier{}

	env.router.Handle(context.Background(), guildInvocation("chat"), reply)

	if got := reply.lastEdit(t); got != backendApology {
		t.Errorf("edit = %q", got)
	}
	if turns := env.router.history.Turns("c1"); len(turns) != 0 {
		t.Error("aborted exchange must not enter history")
	}
}

func TestHandle_ModelOverride(t *testing.T) {
	env := newTestEnv(t, map[string]string{"chat": "mistral:7b"})
	env.configureGuild(t)

	env.router.Handle(context.Background(), guildInvocation("chat"), &fakeReplier{})

	if env.llm.model != "mistral:7b" {
		t.Errorf("model = %q, want override", env.llm.model)
	}
}
