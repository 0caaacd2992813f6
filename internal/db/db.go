package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"finops-agent/internal/config"
	"finops-agent/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:knowledge_chunks,alias:kc"`
	ID            string          `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	Title         string          `bun:"title"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

func newDocument(c models.ChunkEmbedding) Document {
	return Document{
		ID:         c.ID,
		Content:    c.Text,
		Source:     c.Source,
		Title:      c.Title,
		ChunkIndex: c.ChunkIndex,
		Embedding:  pgvector.NewVector(c.Embedding),
	}
}

type searchRow struct {
	Content    string  `bun:"content"`
	Source     string  `bun:"source"`
	Title      string  `bun:"title"`
	Similarity float64 `bun:"similarity"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the configured driver; "pq" uses lib/pq, anything else bun's pgdriver
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	if cfg.Driver == "pq" {
		return sql.Open("postgres", cfg.DSN)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// PGVectorStore keeps chunks in a postgres table searched with the cosine distance operator
type PGVectorStore struct {
	db *bun.DB
}

// NewPGVectorStore connects, ensures the schema and returns the store
func NewPGVectorStore(ctx context.Context, cfg *config.DatabaseConfig) (*PGVectorStore, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Debug().Str("driver", cfg.Driver).Msg("pgvector store ready")
	return &PGVectorStore{db: db}, nil
}

func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

func (s *PGVectorStore) Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = newDocument(c)
	}
	_, err := s.db.NewInsert().
		Model(&docs).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("source = EXCLUDED.source").
		Set("title = EXCLUDED.title").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error) {
	if k <= 0 {
		return []models.RetrievalResult{}, nil
	}
	query := pgvector.NewVector(embedding)
	var rows []searchRow
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		Column("content", "source", "title").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", query).
		OrderExpr("embedding <=> ?", query).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	out := make([]models.RetrievalResult, len(rows))
	for i, r := range rows {
		out[i] = models.RetrievalResult{Text: r.Content, Source: r.Source, Title: r.Title, Similarity: r.Similarity}
	}
	return out, nil
}

func (s *PGVectorStore) Dimension(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var dims []int
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("vector_dims(embedding)").
		Where("id IN (?)", bun.In(ids)).
		Limit(1).
		Scan(ctx, &dims)
	if err != nil {
		return 0, fmt.Errorf("failed to read vector length: %w", err)
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return dims[0], nil
}

// Reset drops and recreates the chunk table
func (s *PGVectorStore) Reset(ctx context.Context) error {
	if err := DropDocuments(ctx, s.db); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	return InitDB(ctx, s.db)
}

func (s *PGVectorStore) Close() error {
	return s.db.Close()
}
