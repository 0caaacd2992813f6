package rag

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"finops-agent/internal/embedding"
	"finops-agent/internal/models"
	"finops-agent/internal/parser"
)

const defaultBatchSize = 5

// VectorStore persists embedded chunks and answers cosine nearest-neighbour queries
type VectorStore interface {
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error
	Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error)
	// Dimension returns the vector length of the first stored chunk among ids, 0 if none is stored
	Dimension(ctx context.Context, ids []string) (int, error)
	// Reset removes every stored chunk
	Reset(ctx context.Context) error
	Close() error
}

// switchingEmbedder can move to another generator part way through a run
type switchingEmbedder interface {
	Degraded() bool
	Pin(dim int)
}

// RAG is the retrieval index: it chunks and embeds documents into a store and queries it
type RAG struct {
	store     VectorStore
	embedder  embedding.Service
	chunker   parser.Chunker
	batchSize int

	ingest   singleflight.Group
	ingested atomic.Bool
}

func NewRAG(store VectorStore, embedder embedding.Service, chunker parser.Chunker, batchSize int) *RAG {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &RAG{store: store, embedder: embedder, chunker: chunker, batchSize: batchSize}
}

// Ingest chunks, embeds and stores docs unless the store already holds chunks.
// Concurrent callers share one ingestion run. It returns the number of chunks written.
func (r *RAG) Ingest(ctx context.Context, docs []models.Document) (int, error) {
	if r.ingested.Load() {
		return 0, nil
	}
	v, err, _ := r.ingest.Do("ingest", func() (any, error) {
		count, err := r.store.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count stored chunks: %w", err)
		}
		if count > 0 {
			if err := r.pin(ctx, docs); err != nil {
				return 0, err
			}
			log.Info().Int("chunks", count).Msg("Knowledge base loaded")
			r.ingested.Store(true)
			return 0, nil
		}
		n, err := r.write(ctx, docs)
		if err != nil {
			return 0, err
		}
		r.ingested.Store(true)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Reindex clears the store and re-embeds every chunk of docs
func (r *RAG) Reindex(ctx context.Context, docs []models.Document) (int, error) {
	v, err, _ := r.ingest.Do("ingest", func() (any, error) {
		if err := r.store.Reset(ctx); err != nil {
			return 0, fmt.Errorf("failed to clear stored chunks: %w", err)
		}
		r.ingested.Store(false)
		n, err := r.write(ctx, docs)
		if err != nil {
			return 0, err
		}
		r.ingested.Store(true)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// pin passes the stored vector length to an embedder that may switch generators
func (r *RAG) pin(ctx context.Context, docs []models.Document) error {
	s, ok := r.embedder.(switchingEmbedder)
	if !ok {
		return nil
	}
	chunks := r.chunker.Chunk(docs)
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	dim, err := r.store.Dimension(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to read stored vector length: %w", err)
	}
	s.Pin(dim)
	return nil
}

// write embeds and upserts every chunk. If the embedder switches generators part way,
// all chunks are embedded again so the store never mixes vectors from two generators.
func (r *RAG) write(ctx context.Context, docs []models.Document) (int, error) {
	switching, _ := r.embedder.(switchingEmbedder)
	wasDegraded := switching != nil && switching.Degraded()

	chunks := r.chunker.Chunk(docs)
	for start := 0; start < len(chunks); start += r.batchSize {
		batch := chunks[start:min(start+r.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("received %d embeddings for %d chunks", len(vectors), len(batch))
		}
		if switching != nil && !wasDegraded && switching.Degraded() {
			log.Warn().Int("batch", start/r.batchSize).Msg("Embedding service switched while indexing, re-embedding every chunk")
			return r.write(ctx, docs)
		}
		records := make([]models.ChunkEmbedding, len(batch))
		for i, c := range batch {
			records[i] = models.ChunkEmbedding{KnowledgeChunk: c, Embedding: vectors[i]}
		}
		if err := r.store.Upsert(ctx, records); err != nil {
			return 0, fmt.Errorf("failed to store chunks: %w", err)
		}
	}
	log.Info().Int("chunks", len(chunks)).Int("documents", len(docs)).Msg("Indexed knowledge base")
	return len(chunks), nil
}

// Query returns at most min(topK, stored chunks) results ordered by descending similarity
func (r *RAG) Query(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored chunks: %w", err)
	}
	k := min(topK, count)
	if k <= 0 {
		return []models.RetrievalResult{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("received %d embeddings for the query", len(vectors))
	}

	results, err := r.store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Similarity = math.Round(results[i].Similarity*1e4) / 1e4
	}
	log.Debug().Int("results", len(results)).Msg("Retrieved knowledge")
	return results, nil
}

func (r *RAG) Close() error {
	return r.store.Close()
}
