// Package server wires the PolyRAG components together and exposes the
// ready-to-serve HTTP handler. All collaborators are constructed here and
// passed down explicitly; nothing below this package reaches for globals.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/internal/agent"
	"github.com/polyrag/polyrag/internal/api"
	"github.com/polyrag/polyrag/internal/api/handlers"
	"github.com/polyrag/polyrag/internal/config"
	"github.com/polyrag/polyrag/internal/embeddings"
	"github.com/polyrag/polyrag/internal/ingest"
	"github.com/polyrag/polyrag/internal/language"
	"github.com/polyrag/polyrag/internal/llm"
	"github.com/polyrag/polyrag/internal/store"
	"github.com/polyrag/polyrag/internal/telemetry"
	"github.com/polyrag/polyrag/internal/vectorstore"
	"github.com/polyrag/polyrag/pkg/contracts"
	"github.com/polyrag/polyrag/pkg/models"
)

// Server holds the initialized PolyRAG service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc releases collaborator resources and flushes telemetry
	// on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment and initializes all
// components.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	flushTelemetry, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	detector, err := language.NewDetector(cfg.Language.Supported, cfg.Language.Default, cfg.Language.ConfidenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("init language detector: %w", err)
	}
	log.Info().Strs("languages", cfg.Language.Supported).Msg("✅ Language detector initialized")

	emb, err := embeddings.NewFromConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("init embedding driver: %w", err)
	}
	log.Info().Str("driver", emb.Kind()).Int("dims", emb.Dimensions()).Msg("✅ Embedding driver initialized")

	vs, err := vectorstore.NewFromConfig(ctx, cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	log.Info().Str("driver", vs.Kind()).Msg("✅ Vector store initialized")

	gen := llm.NewOllamaDriver(cfg.Generation.Endpoint, cfg.Generation.Model,
		llm.WithTimeout(time.Duration(cfg.Generation.TimeoutSeconds)*time.Second),
		llm.WithMaxRetries(cfg.Generation.MaxRetries),
	)
	log.Info().Str("model", gen.Model()).Msg("✅ Generation driver initialized")

	genOpts := models.GenerateOptions{
		Temperature: cfg.Generation.Temperature,
		TopP:        cfg.Generation.TopP,
		MaxTokens:   cfg.Generation.MaxTokens,
	}
	orchestrator := agent.NewOrchestrator(
		agent.NewRouting(detector),
		agent.NewRetrieval(emb, vs),
		agent.NewSynthesis(gen, genOpts),
		agent.NewValidation(),
		agent.WithDefaultTopK(cfg.Pipeline.DefaultTopK),
	)
	log.Info().Int("default_top_k", cfg.Pipeline.DefaultTopK).Msg("✅ Pipeline orchestrator initialized")

	docs := store.NewMemoryStore()
	ingester := ingest.NewIngester(emb, vs, detector, docs, cfg.Ingest)

	h := handlers.New(orchestrator, ingester, docs, emb, vs, gen, cfg)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: newShutdownFunc(flushTelemetry, vs),
	}, nil
}

// newShutdownFunc closes the vector store (when the driver holds a
// connection, e.g. qdrant or pgvector) and then flushes telemetry.
func newShutdownFunc(flush func(context.Context) error, vs contracts.VectorStoreDriver) func(context.Context) error {
	return func(ctx context.Context) error {
		if closer, ok := vs.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Warn().Err(err).Msg("Vector store close failed")
			}
		}
		return flush(ctx)
	}
}
