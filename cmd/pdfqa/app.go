package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/chunker"
	"github.com/xxxsen/pdfqa/internal/config"
	"github.com/xxxsen/pdfqa/internal/embedcache"
	"github.com/xxxsen/pdfqa/internal/pdftext"
	"github.com/xxxsen/pdfqa/internal/service"
	"github.com/xxxsen/pdfqa/internal/vectorstore"
)

type app struct {
	cfg   *config.Config
	svc   *service.QAService
	store vectorstore.Store
	cache *embedcache.Embedder
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildApp wires the pipeline from config and credentials. Nothing here
// talks to the LLM; only the vector store may open a connection.
func buildApp(ctx context.Context, cfg *config.Config, creds *config.Credentials) (*app, error) {
	splitter, err := chunker.NewSplitter(cfg.Chunk.Options())
	if err != nil {
		return nil, err
	}
	providerArgs := &ai.ProviderConfig{APIKey: creds.LLMAPIKey, BaseURL: cfg.AI.BaseURL}
	genProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.EmbedProvider, providerArgs)
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}
	embedder := embedcache.Wrap(ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel),
		cfg.AI.EmbedCacheSize, time.Duration(cfg.AI.EmbedCacheTTL)*time.Second)
	cache, _ := embedder.(*embedcache.Embedder)
	store, err := vectorstore.New(ctx, cfg.VectorStore.Type, &vectorstore.Args{
		Collection: cfg.VectorStore.Collection,
		ID:         creds.VectorDBID,
		Token:      creds.VectorDBToken,
		Data:       cfg.VectorStore.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	synth := ai.NewSynthesizer(ai.NewGenerator(genProvider, cfg.AI.Model), time.Duration(cfg.AI.Timeout)*time.Second)
	svc := service.NewQAService(pdftext.NewExtractor(), splitter, embedder, store, synth, service.QAConfig{
		Collection: cfg.VectorStore.Collection,
		TopK:       cfg.Retrieval.TopK,
		BatchSize:  cfg.Ingest.BatchSize,
	})
	logutil.GetLogger(ctx).Info("pipeline ready",
		zap.String("provider", genProvider.Name()),
		zap.String("model", cfg.AI.Model),
		zap.String("embed_provider", embedProvider.Name()),
		zap.String("embed_model", cfg.AI.EmbedModel),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("collection", cfg.VectorStore.Collection),
		zap.Bool("embed_cache", cache != nil),
	)
	return &app{cfg: cfg, svc: svc, store: store, cache: cache}, nil
}

// loadApp reads .env, credentials and the config file, in that order, and
// fails before touching any backend when a credential is missing.
func loadApp(ctx context.Context, configPath string) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	creds, err := config.LoadCredentials(nil)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	initLogger(cfg)
	return buildApp(ctx, cfg, creds)
}
