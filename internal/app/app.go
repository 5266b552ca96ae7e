// Package app assembles every component from a Config.
package app

import (
	"context"
	"log/slog"

	"github.com/barekit/rihlat/pkg/agent"
	"github.com/barekit/rihlat/pkg/config"
	"github.com/barekit/rihlat/pkg/geocode"
	"github.com/barekit/rihlat/pkg/knowledge"
	"github.com/barekit/rihlat/pkg/knowledge/inmemory"
	kbopenai "github.com/barekit/rihlat/pkg/knowledge/openai"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/barekit/rihlat/pkg/llm/openai"
	meminmemory "github.com/barekit/rihlat/pkg/memory/inmemory"
	"github.com/barekit/rihlat/pkg/routing"
	"github.com/barekit/rihlat/pkg/server"
	"github.com/barekit/rihlat/pkg/speech"
	"github.com/barekit/rihlat/pkg/sqlagent"
	"github.com/barekit/rihlat/pkg/transitdb"
)

// App owns the components built for one process.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	LLM         llm.Provider
	DBs         *transitdb.Set
	SQL         *sqlagent.Agent
	Geocoder    *geocode.Client
	Router      *routing.Client
	Transcriber *speech.Transcriber
	Synthesizer *speech.Synthesizer
	Memory      *meminmemory.InMemory
	Knowledge   *knowledge.KnowledgeBase
	Agent       *agent.Agent
}

// New opens the transit databases and builds the rest of the components.
// A missing LLM key does not fail New; every call that needs the model reports it instead.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbs, err := transitdb.OpenAll(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DBs: dbs}

	provider, err := openai.NewCompatible(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.HTTPTimeout)
	if err != nil {
		logger.Warn("LLM is unavailable", "error", err)
		a.LLM = unavailable{err: err}
	} else {
		a.LLM = provider
	}

	a.SQL = sqlagent.New(a.LLM, dbs,
		sqlagent.WithTopK(cfg.Transit.TopK),
		sqlagent.WithMaxRows(cfg.Transit.MaxRows),
		sqlagent.WithDialect(cfg.Transit.Dialect),
		sqlagent.WithAllowWrites(cfg.Transit.AllowWrites),
		sqlagent.WithQueryTimeout(cfg.QueryTimeout),
		sqlagent.WithLogger(logger),
	)
	a.Geocoder = geocode.New(cfg.Geocoding.APIKey, cfg.HTTPTimeout,
		geocode.WithBaseURL(cfg.Geocoding.BaseURL),
		geocode.WithLogger(logger),
	)
	a.Router = routing.New(cfg.Routing.APIKey, cfg.HTTPTimeout,
		routing.WithBaseURL(cfg.Routing.BaseURL),
		routing.WithLogger(logger),
	)
	a.Transcriber = speech.NewTranscriber(cfg.Speech.STTKey, cfg.HTTPTimeout,
		speech.WithTranscriberBaseURL(cfg.Speech.STTBaseURL),
		speech.WithTranscriberModel(cfg.Speech.STTModel),
		speech.WithTranscriberLogger(logger),
	)
	a.Synthesizer = speech.NewSynthesizer(cfg.Speech.TTSKey, cfg.HTTPTimeout,
		speech.WithSynthesizerBaseURL(cfg.Speech.TTSBaseURL),
		speech.WithVoice(cfg.Speech.Voice),
		speech.WithSynthesizerModel(cfg.Speech.TTSModel),
		speech.WithSynthesizerLogger(logger),
	)
	a.Memory = meminmemory.New()

	if cfg.HintsEnabled {
		kb, err := a.routeHints(ctx)
		if err != nil {
			logger.Warn("route hints disabled", "error", err)
		} else {
			a.Knowledge = kb
		}
	}

	opts := []agent.Option{
		agent.WithTransit(a.SQL),
		agent.WithGeocoder(a.Geocoder),
		agent.WithRouter(a.Router),
		agent.WithMemory(a.Memory),
		agent.WithLocation(cfg.Location()),
		agent.WithMaxSteps(cfg.MaxSteps),
		agent.WithDebug(cfg.Debug),
		agent.WithLogger(logger),
	}
	if a.Knowledge != nil {
		opts = append(opts, agent.WithKnowledge(a.Knowledge))
	}
	a.Agent = agent.New(a.LLM, opts...)

	return a, nil
}

// routeHints embeds the route names of every database into an in-memory store.
func (a *App) routeHints(ctx context.Context) (*knowledge.KnowledgeBase, error) {
	cfg := a.Config
	embedder, err := kbopenai.NewFromKey(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	kb := knowledge.NewKnowledgeBase(embedder, inmemory.New())

	for _, name := range a.DBs.Names() {
		h, _ := a.DBs.Get(name)
		docs, err := knowledge.RouteDocuments(ctx, name, h.DB)
		if err != nil {
			return nil, err
		}
		if err := kb.Ingest(ctx, docs); err != nil {
			return nil, err
		}
		a.Logger.Info("indexed route names", "database", name, "routes", len(docs))
	}
	return kb, nil
}

// Server returns the HTTP API over the assembled components.
func (a *App) Server() *server.Server {
	return server.New(a.Agent,
		server.WithTranscriber(a.Transcriber),
		server.WithSynthesizer(a.Synthesizer),
		server.WithHistory(a.Memory),
		server.WithLogger(a.Logger),
	)
}

// Close releases the database connections.
func (a *App) Close() error {
	if a.DBs == nil {
		return nil
	}
	return a.DBs.Close()
}

// unavailable stands in for a provider that could not be built.
type unavailable struct {
	err error
}

func (u unavailable) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Message, error) {
	return nil, u.err
}

// LLMError returns why the model cannot be used, or nil.
func (a *App) LLMError() error {
	if u, ok := a.LLM.(unavailable); ok {
		return u.err
	}
	return nil
}
