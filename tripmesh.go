// Package tripmesh provides a high-level façade over the conversation engine
// and its supporting services. Most applications interact with it by:
//  1. Loading a config.Config (or accepting the defaults)
//  2. Creating a TripMesh via New(), optionally overriding the model, store
//     or logger
//  3. Chatting via Chat (streaming) or ChatSync (collect-all)
//
// The façade wires the external data clients, intent handlers, router and
// dialog pipeline together and delegates turn orchestration to engine.Engine.
package tripmesh

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"

	"github.com/tripmesh/tripmesh/client/amadeus"
	"github.com/tripmesh/tripmesh/client/openmeteo"
	"github.com/tripmesh/tripmesh/client/tavily"
	"github.com/tripmesh/tripmesh/config"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/dialog"
	"github.com/tripmesh/tripmesh/engine"
	"github.com/tripmesh/tripmesh/handler"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/model"
	anthropicmodel "github.com/tripmesh/tripmesh/model/anthropic"
	openaimodel "github.com/tripmesh/tripmesh/model/openai"
	"github.com/tripmesh/tripmesh/router"
	"github.com/tripmesh/tripmesh/server"
	"github.com/tripmesh/tripmesh/session"
)

// Options override pieces of the assembled stack.
type Options struct {
	// Model replaces the provider selected by the config. Useful for tests.
	Model model.Model

	// Store replaces the thread store selected by the config.
	Store core.ThreadStore

	// Logger replaces the config-derived logger.
	Logger logging.Logger

	// EngineConfig tunes turn concurrency and buffering.
	EngineConfig engine.Config
}

// WithModel overrides the LLM used for routing and phrasing.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithStore overrides the thread store.
func WithStore(store core.ThreadStore) func(o *Options) {
	return func(o *Options) { o.Store = store }
}

// WithLogger overrides the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// TripMesh is the assembled travel assistant.
type TripMesh struct {
	cfg    *config.Config
	engine *engine.Engine
	logger logging.Logger
}

// New assembles the full assistant from configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) (*TripMesh, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	opts := Options{EngineConfig: engine.DefaultConfig}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = newLoggerFromConfig(cfg)
	}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = newModelFromConfig(cfg); err != nil {
			return nil, err
		}
	}

	store := opts.Store
	if store == nil {
		var err error
		if store, err = newStoreFromConfig(cfg); err != nil {
			return nil, err
		}
	}

	cacheTTL := time.Duration(cfg.ClientCacheTTL) * time.Second
	weatherClient := openmeteo.New(func(o *openmeteo.Options) {
		if cfg.OpenMeteoBaseURL != "" {
			o.BaseURL = cfg.OpenMeteoBaseURL
		}
		if cacheTTL > 0 {
			o.CacheTTL = cacheTTL
		}
	})
	searchClient := tavily.New(cfg.TavilyAPIKey, func(o *tavily.Options) {
		if cacheTTL > 0 {
			o.CacheTTL = cacheTTL
		}
	})
	flightClient := amadeus.New(cfg.AmadeusClientID, cfg.AmadeusClientSecret)

	registry, err := handler.NewRegistry(
		handler.NewWeather(weatherClient, m),
		handler.NewDestinations(m),
		handler.NewPacking(weatherClient, m, logger),
		handler.NewAttractions(m),
		handler.NewPolicy(m),
		handler.NewWebSearch(searchClient, m),
		handler.NewFlights(flightClient, m),
	)
	if err != nil {
		return nil, fmt.Errorf("build handler registry: %w", err)
	}

	rtr, err := router.New(m, func(o *router.Options) {
		o.ConfidenceFloor = cfg.RouteConfidenceFloor
		o.PatternsPath = cfg.RouterPatternsPath
		o.Logger = logger
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	pipeline := dialog.New(rtr, registry, func(o *dialog.Options) {
		o.OverlapThreshold = cfg.ContextSwitchOverlap
		o.SlotMemoryModel = m
		o.Logger = logger
	})

	eng := engine.New(pipeline,
		engine.WithStore(store),
		engine.WithLimiter(core.NewModelLimiter(cfg.ModelRPS, cfg.ModelBurst)),
		engine.WithLogger(logger),
		engine.WithConfig(opts.EngineConfig),
	)

	return &TripMesh{cfg: cfg, engine: eng, logger: logger}, nil
}

// Chat starts an asynchronous turn, returning the turn ID plus event and
// error channels.
func (t *TripMesh) Chat(ctx context.Context, threadID, message string) (string, <-chan core.Event, <-chan error, error) {
	return t.engine.Chat(ctx, threadID, message)
}

// ChatSync runs a turn to completion and returns all produced events.
func (t *TripMesh) ChatSync(ctx context.Context, threadID, message string) (string, []core.Event, error) {
	return t.engine.ChatSync(ctx, threadID, message)
}

// Thread returns a snapshot of a thread.
func (t *TripMesh) Thread(threadID string) (*core.Thread, error) {
	return t.engine.GetThread(threadID)
}

// ClearThread wipes a thread's state.
func (t *TripMesh) ClearThread(threadID string) error {
	return t.engine.ClearThread(threadID)
}

// Engine exposes the underlying engine for advanced integrations.
func (t *TripMesh) Engine() *engine.Engine { return t.engine }

// Serve starts the HTTP surface on the configured port and blocks.
func (t *TripMesh) Serve() error {
	srv := server.New(t.engine, server.WithLogger(t.logger))
	return srv.Run(":" + t.cfg.AppPort)
}

func newLoggerFromConfig(cfg *config.Config) logging.Logger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(cfg.LogLevel)
	if !cfg.LogJSON {
		lc.Format = "text"
	}
	lc.Component = "tripmesh"
	return logging.NewLogger(lc)
}

func newModelFromConfig(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openaimodel.New(func(o *openaimodel.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
			o.APIKey = cfg.OpenAIAPIKey
		}), nil
	case "anthropic":
		return anthropicmodel.New(func(o *anthropicmodel.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropic.Model(cfg.ModelName)
			}
			o.APIKey = cfg.AnthropicAPIKey
		}), nil
	case "mock":
		return model.NewMockModel("mock", "test"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

func newStoreFromConfig(cfg *config.Config) (core.ThreadStore, error) {
	switch cfg.ThreadStore {
	case "memory":
		return session.NewInMemoryStore(), nil
	case "file":
		return session.NewFileStore(cfg.ThreadDir)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return session.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown thread store %q", cfg.ThreadStore)
	}
}
