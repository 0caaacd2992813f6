package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"finops-agent/internal/config"
)

// Service turns texts into fixed-length vectors, one per input in order
type Service interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder creates an embedder for an OpenAI compatible endpoint
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Loaded embedder config")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Loaded embedder config")

	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// Embedder adapts a langchaingo embedder to Service, caching vectors by exact text
type Embedder struct {
	impl    embeddings.Embedder
	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

// NewLive builds the configured provider's embedder. cacheSize <= 0 disables caching.
func NewLive(llmConfig *config.LLMConfig, cacheSize int) (*Embedder, error) {
	var (
		impl *embeddings.EmbedderImpl
		err  error
	)
	switch llmConfig.Provider {
	case config.ProviderOllama:
		impl, err = NewOllamaEmbedder(llmConfig)
	default:
		impl, err = NewEmbedder(llmConfig)
	}
	if err != nil {
		return nil, err
	}
	return Wrap(impl, cacheSize)
}

// Wrap adapts an existing langchaingo embedder
func Wrap(impl embeddings.Embedder, cacheSize int) (*Embedder, error) {
	e := &Embedder{impl: impl}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Embed returns cached vectors where possible and embeds the rest in one call
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var (
		missing   []string
		missingAt []int
	)
	for i, text := range texts {
		if vector, ok := e.lookup(text); ok {
			results[i] = vector
			continue
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	vectors, err := e.impl.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(missing), err)
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(missing))
	}
	for i, vector := range vectors {
		results[missingAt[i]] = vector
		e.store(missing[i], vector)
	}
	return results, nil
}

func (e *Embedder) lookup(text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	vector, ok := e.cache.Get(text)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vector...), true
}

func (e *Embedder) store(text string, vector []float32) {
	if e.cache == nil {
		return
	}
	e.cacheMu.Lock()
	e.cache.Add(text, append([]float32(nil), vector...))
	e.cacheMu.Unlock()
}
