//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package pgvector provides a PostgreSQL pgvector store implementation.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

var _ vectorstore.VectorStore = (*VectorStore)(nil)

const defaultLimit = 10

// SQL templates. The table name is validated at option time and injected via
// Sprintf; all values travel as bound parameters.
const (
	sqlCreateTable = `
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name VARCHAR(255),
			content TEXT,
			embedding vector(%d),
			metadata JSONB,
			created_at BIGINT,
			updated_at BIGINT
		)`

	sqlCreateIndex = `
		CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`

	sqlUpsertDocument = `
		INSERT INTO %s (id, name, content, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`

	sqlSelectDocument = `SELECT id, name, content, embedding, metadata, created_at, updated_at FROM %s WHERE id = $1 LIMIT 1`

	sqlDeleteDocument = `DELETE FROM %s WHERE id = $1`

	sqlCountDocuments = `SELECT COUNT(*) FROM %s`

	sqlSearchByVector = `
		SELECT id, name, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`
)

// VectorStore is the vector store for pgvector.
type VectorStore struct {
	pool   *pgxpool.Pool
	option options
}

// New creates a new pgvector vector store and prepares its table and index.
func New(opts ...Option) (*VectorStore, error) {
	option := defaultOptions
	for _, opt := range opts {
		opt(&option)
	}
	if option.user == "" {
		return nil, errors.New("pgvector user is required")
	}
	if option.password == "" {
		return nil, errors.New("pgvector password is required")
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		option.host, option.port, option.user, option.password, option.database, option.sslMode)

	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("pgvector create connection pool: %w", err)
	}

	vs := &VectorStore{pool: pool, option: option}
	if err := vs.initDB(context.Background()); err != nil {
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) initDB(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector enable extension: %w", err)
	}
	createTableSQL := fmt.Sprintf(sqlCreateTable, vs.option.table, vs.option.indexDimension)
	if _, err := vs.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("pgvector create table: %w", err)
	}
	indexSQL := fmt.Sprintf(sqlCreateIndex, vs.option.table, vs.option.table)
	if _, err := vs.pool.Exec(ctx, indexSQL); err != nil {
		return fmt.Errorf("pgvector create vector index: %w", err)
	}
	return nil
}

// Add stores a document with its embedding vector.
func (vs *VectorStore) Add(ctx context.Context, doc *document.Document, embedding []float64) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("pgvector document ID is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("pgvector embedding is required")
	}
	if len(embedding) != vs.option.indexDimension {
		return fmt.Errorf("pgvector embedding dimension mismatch: expected %d, got %d, table: %s",
			vs.option.indexDimension, len(embedding), vs.option.table)
	}

	upsertSQL := fmt.Sprintf(sqlUpsertDocument, vs.option.table)
	now := time.Now().Unix()
	vector := pgvector.NewVector(toFloat32(embedding))
	metadataJSON := mapToJSON(doc.Metadata)

	if _, err := vs.pool.Exec(ctx, upsertSQL,
		doc.ID, doc.Name, doc.Content, vector, metadataJSON, now, now); err != nil {
		return fmt.Errorf("pgvector insert document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID along with its embedding.
func (vs *VectorStore) Get(ctx context.Context, id string) (*document.Document, []float64, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("pgvector id is required")
	}
	selectSQL := fmt.Sprintf(sqlSelectDocument, vs.option.table)

	var (
		doc          document.Document
		vector       pgvector.Vector
		metadataJSON string
		createdAt    int64
		updatedAt    int64
	)
	err := vs.pool.QueryRow(ctx, selectSQL, id).Scan(
		&doc.ID, &doc.Name, &doc.Content, &vector, &metadataJSON, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("pgvector document not found: %s", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("pgvector query document: %w", err)
	}
	doc.Metadata = jsonToMap(metadataJSON)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return &doc, toFloat64(vector.Slice()), nil
}

// Delete removes a document and its embedding.
func (vs *VectorStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("pgvector id is required")
	}
	deleteSQL := fmt.Sprintf(sqlDeleteDocument, vs.option.table)
	if _, err := vs.pool.Exec(ctx, deleteSQL, id); err != nil {
		return fmt.Errorf("pgvector delete document: %w", err)
	}
	return nil
}

// Search performs cosine similarity search over the stored embeddings.
func (vs *VectorStore) Search(ctx context.Context, query *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	if query == nil || len(query.Vector) == 0 {
		return nil, fmt.Errorf("pgvector query vector is required")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	searchSQL := fmt.Sprintf(sqlSearchByVector, vs.option.table)
	vector := pgvector.NewVector(toFloat32(query.Vector))

	rows, err := vs.pool.Query(ctx, searchSQL, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	result := &vectorstore.SearchResult{}
	for rows.Next() {
		var (
			doc          document.Document
			metadataJSON string
			score        float64
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Content, &metadataJSON, &score); err != nil {
			return nil, fmt.Errorf("pgvector scan row: %w", err)
		}
		if score < query.MinScore {
			continue
		}
		doc.Metadata = jsonToMap(metadataJSON)
		result.Results = append(result.Results, &vectorstore.ScoredDocument{
			Document: &doc,
			Score:    score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector iterate rows: %w", err)
	}
	return result, nil
}

// Count counts documents in the vector store.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	countSQL := fmt.Sprintf(sqlCountDocuments, vs.option.table)
	var count int
	if err := vs.pool.QueryRow(ctx, countSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgvector count documents: %w", err)
	}
	return count, nil
}

// Close closes the connection pool.
func (vs *VectorStore) Close() error {
	vs.pool.Close()
	return nil
}

func toFloat32(embedding []float64) []float32 {
	out := make([]float32, len(embedding))
	for i, v := range embedding {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(embedding []float32) []float64 {
	out := make([]float64, len(embedding))
	for i, v := range embedding {
		out[i] = float64(v)
	}
	return out
}

func mapToJSON(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		log.Warnf("pgvector marshal metadata: %v", err)
		return "{}"
	}
	return string(b)
}

func jsonToMap(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		log.Warnf("pgvector unmarshal metadata: %v", err)
		return nil
	}
	return m
}
