// Package dependency wires the bot's services using go.uber.org/dig.
package dependency

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/dig"

	"github.com/novusbot/novus/internal/config"
	"github.com/novusbot/novus/internal/discord"
	"github.com/novusbot/novus/internal/document"
	"github.com/novusbot/novus/internal/history"
	"github.com/novusbot/novus/internal/ollama"
	"github.com/novusbot/novus/internal/report"
	"github.com/novusbot/novus/internal/router"
	"github.com/novusbot/novus/internal/search"
	"github.com/novusbot/novus/internal/store"
)

// Container holds the resolved service singletons. Callers use the typed
// getter methods; they never need to import dig directly.
type Container struct {
	cfg    *config.Config
	router *router.Router
	rest   *discord.Rest
	usage  *store.UsageStore
	guilds *store.GuildConfigStore
	report *report.Service
}

func (c *Container) Config() *config.Config          { return c.cfg }
func (c *Container) Router() *router.Router          { return c.router }
func (c *Container) Rest() *discord.Rest             { return c.rest }
func (c *Container) Usage() *store.UsageStore        { return c.usage }
func (c *Container) Guilds() *store.GuildConfigStore { return c.guilds }
func (c *Container) ReportService() *report.Service  { return c.report }

// New builds and wires all services from cfg. State files live under the
// data directory next to the config file.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		newGuildStore,
		newMemoryStore,
		newUsageStore,
		func() *history.Log { return history.NewLog() },
		newInference,
		func() *document.Extractor { return document.NewExtractor() },
		newSearcher,
		newRest,
		newRouter,
		func(usage *store.UsageStore) *report.Service { return report.NewService(usage) },
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		r *router.Router,
		rest *discord.Rest,
		usage *store.UsageStore,
		guilds *store.GuildConfigStore,
		reportSvc *report.Service,
	) {
		result = &Container{
			cfg:    cfg,
			router: r,
			rest:   rest,
			usage:  usage,
			guilds: guilds,
			report: reportSvc,
		}
	})
	return result, err
}

func newGuildStore() (*store.GuildConfigStore, error) {
	return store.NewGuildConfigStore(filepath.Join(config.DataDir(), "server_configs.json"))
}

func newMemoryStore() (*store.MemoryStore, error) {
	return store.NewMemoryStore(filepath.Join(config.DataDir(), "user_data.json"))
}

func newUsageStore() (*store.UsageStore, error) {
	return store.NewUsageStore(filepath.Join(config.DataDir(), "stats.json"))
}

// inferenceAdapter narrows *ollama.Client to the router's Inference
// interface; *ollama.Stream already satisfies router.ResponseStream.
type inferenceAdapter struct{ client *ollama.Client }

func (a inferenceAdapter) Chat(ctx context.Context, model string, messages []ollama.Message) (router.ResponseStream, error) {
	return a.client.Chat(ctx, model, messages)
}

func newInference(cfg *config.Config) router.Inference {
	return inferenceAdapter{client: ollama.New(
		cfg.Ollama.APIBase,
		cfg.Ollama.NumPredict,
		time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second,
	)}
}

func newSearcher(cfg *config.Config) router.Searcher {
	return search.New(cfg.Search.SerperKey)
}

func newRest(cfg *config.Config) *discord.Rest {
	return discord.NewRest(cfg.Discord.Token, cfg.Discord.ApplicationID)
}

func newRouter(
	guilds *store.GuildConfigStore,
	memory *store.MemoryStore,
	usage *store.UsageStore,
	hist *history.Log,
	llm router.Inference,
	docs *document.Extractor,
	searcher router.Searcher,
	rest *discord.Rest,
	cfg *config.Config,
) *router.Router {
	return router.New(guilds, memory, usage, hist, llm, docs, searcher, rest, rest, cfg.Models)
}
