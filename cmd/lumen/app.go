package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lensworks/lumen/application/service"
	"github.com/lensworks/lumen/infrastructure/identity"
	"github.com/lensworks/lumen/infrastructure/persistence"
	"github.com/lensworks/lumen/infrastructure/provider"
	"github.com/lensworks/lumen/infrastructure/vectorstore"
	"github.com/lensworks/lumen/internal/config"
	"github.com/lensworks/lumen/internal/log"
)

// app wires the full pipeline from configuration: cache, store client,
// model provider, indexer, and duplicate finder.
type app struct {
	cfg      config.AppConfig
	logger   *slog.Logger
	cache    *persistence.EmbeddingCache
	store    *vectorstore.Client
	embedder provider.Embedder
	indexer  *service.Indexer
	finder   *service.DuplicateFinder
}

func buildApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, err
	}

	logger := log.Configure(cfg.LogFormat(), cfg.LogLevel())

	if err := os.MkdirAll(cfg.DataDir(), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := persistence.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	cache, err := persistence.NewEmbeddingCache(db, logger)
	if err != nil {
		return nil, fmt.Errorf("migrate embedding cache: %w", err)
	}

	store := vectorstore.NewClient(cfg.Store(), logger)
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	if !cfg.Embedder().IsConfigured() {
		return nil, fmt.Errorf("no embedding model configured, set LUMEN_EMBEDDING_MODEL")
	}
	models := provider.NewOpenAIProvider(cfg.Embedder(), cfg.Captions())

	identifier := identity.NewIdentifier(logger)

	var captioner provider.Captioner
	if models.SupportsCaptions() {
		captioner = models
	}

	indexer := service.NewIndexer(
		identifier,
		cache,
		store,
		models,
		captioner,
		cfg.Watch(),
		cfg.Store().BatchSize(),
		logger,
	)
	finder := service.NewDuplicateFinder(identifier, cfg.Watch().Workers(), cfg.Watch().NearThreshold(), logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		store:    store,
		embedder: models,
		indexer:  indexer,
		finder:   finder,
	}, nil
}

// queryEmbedding embeds raw image bytes for an ad-hoc query.
func (a *app) queryEmbedding(ctx context.Context, data []byte) ([]float64, error) {
	vector, err := a.embedder.Embed(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}
	return vector, nil
}

// buildOffline wires only the pieces that need no store or model endpoint,
// for commands like dupes and cache that run locally.
func buildOffline(envFile string) (*app, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, err
	}

	logger := log.Configure(cfg.LogFormat(), cfg.LogLevel())
	identifier := identity.NewIdentifier(logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		finder: service.NewDuplicateFinder(identifier, cfg.Watch().Workers(), cfg.Watch().NearThreshold(), logger),
	}, nil
}

func (a *app) openCache() (*persistence.EmbeddingCache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	db, err := persistence.Open(a.cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	cache, err := persistence.NewEmbeddingCache(db, a.logger)
	if err != nil {
		return nil, fmt.Errorf("migrate embedding cache: %w", err)
	}
	a.cache = cache
	return cache, nil
}
