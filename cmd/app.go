package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"finops-agent/internal/agent"
	"finops-agent/internal/chromemdb"
	"finops-agent/internal/config"
	"finops-agent/internal/db"
	"finops-agent/internal/embedding"
	"finops-agent/internal/helper"
	"finops-agent/internal/llmservice"
	"finops-agent/internal/parser"
	"finops-agent/internal/rag"
	"finops-agent/internal/tools"
)

// app holds the services chosen for the configured mode
type app struct {
	cfg        *config.Config
	index      *rag.RAG
	chromem    *chromemdb.VectorDBManager
	controller *agent.Controller
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	completion, embedder, err := newServices(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	var store rag.VectorStore
	switch cfg.RAG.Backend {
	case config.BackendPGVector:
		pg, err := db.NewPGVectorStore(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		store = pg
	default:
		if !cfg.RAG.InMemory {
			if err := helper.CreateFolder(cfg.RAG.DBPath); err != nil {
				return nil, err
			}
		}
		m, err := chromemdb.NewVectorDBManager(cfg.RAG.DBPath, cfg.RAG.Collection, cfg.RAG.InMemory, cfg.RAG.EncryptionKey)
		if err != nil {
			return nil, err
		}
		if err := restoreExport(ctx, cfg, m); err != nil {
			return nil, err
		}
		a.chromem = m
		store = m
	}

	chunker := parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.MinChunkLen)
	a.index = rag.NewRAG(store, embedder, chunker, cfg.RAG.BatchSize)
	a.controller = agent.NewController(a.index, completion, tools.NewRegistry(newProvider(cfg)), agent.OptionsFromConfig(cfg))
	return a, nil
}

// newServices picks the completion and embedding services once for the whole process
func newServices(cfg *config.Config) (llmservice.CompletionService, embedding.Service, error) {
	pseudo := embedding.NewPseudo(cfg.RAG.VectorSize)
	if cfg.IsDemo() {
		log.Info().Msg("Demo mode: synthetic completions and embeddings")
		return llmservice.NewSynthetic(), pseudo, nil
	}

	client, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	live, err := embedding.NewLive(&cfg.EmbedLLM, cfg.RAG.CacheSize)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding service unavailable, using pseudo embeddings")
		return client, pseudo, nil
	}
	return client, embedding.NewFallback(live, cfg.RAG.VectorSize), nil
}

func newProvider(cfg *config.Config) tools.CostProvider {
	if cfg.IsDemo() {
		return tools.NewSyntheticProvider()
	}
	if cfg.Azure.HasCredentials() {
		p, err := tools.NewAzureProvider(cfg.Azure)
		if err == nil {
			log.Info().Str("subscription", cfg.Azure.SubscriptionID).Msg("Using Azure Cost Management")
			return p
		}
		log.Warn().Err(err).Msg("Azure provider unavailable")
	}
	if cfg.Azure.ExportFile != "" {
		log.Info().Str("file", cfg.Azure.ExportFile).Msg("Using cost export workbook")
		return tools.NewExportProvider(cfg.Azure.ExportFile)
	}
	log.Warn().Msg("No Azure credentials or export file, using synthetic cost data")
	return tools.NewSyntheticProvider()
}

// restoreExport loads a previous export into an in-memory collection
func restoreExport(ctx context.Context, cfg *config.Config, m *chromemdb.VectorDBManager) error {
	if !cfg.RAG.InMemory || cfg.RAG.EncryptionKey == "" || cfg.RAG.DBPath == "" {
		return nil
	}
	if _, err := os.Stat(m.FilePath()); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := m.Import(ctx); err != nil {
		return err
	}
	log.Info().Str("file", m.FilePath()).Msg("Restored knowledge collection")
	return nil
}

func (a *app) ingest(ctx context.Context, force bool) (int, error) {
	docs, err := parser.LoadDocuments(a.cfg.RAG.DocsDir)
	if err != nil {
		return 0, fmt.Errorf("failed to load runbooks: %w", err)
	}
	if force {
		return a.index.Reindex(ctx, docs)
	}
	return a.index.Ingest(ctx, docs)
}

func (a *app) export(ctx context.Context) (string, error) {
	if a.chromem == nil {
		return "", errors.New("export needs the chromem backend")
	}
	if _, err := a.ingest(ctx, false); err != nil {
		return "", err
	}
	if err := helper.CreateFolder(a.cfg.RAG.DBPath); err != nil {
		return "", err
	}
	if err := a.chromem.Export(ctx); err != nil {
		return "", err
	}
	return a.chromem.FilePath(), nil
}

func (a *app) Close() error {
	return a.index.Close()
}
