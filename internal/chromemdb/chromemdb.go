package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"finops-agent/internal/models"
)

// meta data will have source filename, chunk index and document title

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
}

const (
	compress = false
)

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	// embeddings are always supplied by the caller, the collection never embeds on its own
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Count returns the number of stored chunks
func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Upsert adds chunks; an existing id is overwritten
func (m *VectorDBManager) Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Text,
			Metadata: map[string]string{
				models.MetaSource: c.Source,
				models.MetaChunk:  strconv.Itoa(c.ChunkIndex),
				models.MetaTitle:  c.Title,
			},
			Embedding: c.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity; k is clamped to the collection size
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding must be provided")
	}
	k = min(k, m.collection.Count())
	if k <= 0 {
		return []models.RetrievalResult{}, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	out := make([]models.RetrievalResult, len(results))
	for i, r := range results {
		out[i] = models.RetrievalResult{
			Text:       r.Content,
			Source:     r.Metadata[models.MetaSource],
			Title:      r.Metadata[models.MetaTitle],
			Similarity: float64(r.Similarity),
		}
	}
	return out, nil
}

// Dimension returns the vector length of the first of ids held by the collection
func (m *VectorDBManager) Dimension(ctx context.Context, ids []string) (int, error) {
	for _, id := range ids {
		doc, err := m.collection.GetByID(ctx, id)
		if err != nil {
			continue
		}
		return len(doc.Embedding), nil
	}
	return 0, nil
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Reset drops the collection and recreates it empty
func (m *VectorDBManager) Reset(_ context.Context) error {
	name := m.collection.Name
	if err := m.DeleteCollection(); err != nil {
		return err
	}
	_, err := m.GetOrCreateCollection(name)
	return err
}

// Close is a no-op; the persistent db writes through on every add
func (m *VectorDBManager) Close() error {
	return nil
}

// FilePath is where Export writes the collection
func (m *VectorDBManager) FilePath() string {
	return m.filePath
}

// export to file
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// import from file
func (m *VectorDBManager) Import(ctx context.Context) error {
	err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// import replaces the collection object
	if _, err := m.GetOrCreateCollection(m.collection.Name); err != nil {
		return err
	}
	return nil
}
