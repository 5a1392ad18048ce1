//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory vector store implementation.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
)

// defaultMaxResults is the result cap used when a query sets no limit.
const defaultMaxResults = 10

var _ vectorstore.VectorStore = (*VectorStore)(nil)

// entry pairs a stored document with its embedding.
type entry struct {
	doc       *document.Document
	embedding []float64
}

// VectorStore is an in-memory vector store using cosine similarity. It is
// safe for concurrent use.
type VectorStore struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxResults int
}

// Option represents a functional option for configuring the store.
type Option func(*VectorStore)

// WithMaxResults sets the default result cap for searches without a limit.
func WithMaxResults(maxResults int) Option {
	return func(vs *VectorStore) {
		vs.maxResults = maxResults
	}
}

// New creates a new in-memory vector store.
func New(opts ...Option) *VectorStore {
	vs := &VectorStore{
		entries:    make(map[string]entry),
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(vs)
	}
	return vs
}

// Add stores a document with its embedding vector.
func (vs *VectorStore) Add(ctx context.Context, doc *document.Document, embedding []float64) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("inmemory document ID is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("inmemory embedding is required")
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	copied := make([]float64, len(embedding))
	copy(copied, embedding)
	vs.entries[doc.ID] = entry{doc: doc.Clone(), embedding: copied}
	return nil
}

// Get retrieves a document by ID along with its embedding.
func (vs *VectorStore) Get(ctx context.Context, id string) (*document.Document, []float64, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	e, ok := vs.entries[id]
	if !ok {
		return nil, nil, fmt.Errorf("inmemory document not found: %s", id)
	}
	return e.doc.Clone(), e.embedding, nil
}

// Delete removes a document and its embedding.
func (vs *VectorStore) Delete(ctx context.Context, id string) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if _, ok := vs.entries[id]; !ok {
		return fmt.Errorf("inmemory document not found: %s", id)
	}
	delete(vs.entries, id)
	return nil
}

// Search returns the documents most similar to the query vector.
func (vs *VectorStore) Search(ctx context.Context, query *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	if query == nil || len(query.Vector) == 0 {
		return nil, fmt.Errorf("inmemory query vector is required")
	}
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	var results []*vectorstore.ScoredDocument
	for _, e := range vs.entries {
		score := cosineSimilarity(query.Vector, e.embedding)
		if score < query.MinScore {
			continue
		}
		results = append(results, &vectorstore.ScoredDocument{
			Document: e.doc.Clone(),
			Score:    score,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	limit := query.Limit
	if limit <= 0 {
		limit = vs.maxResults
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return &vectorstore.SearchResult{Results: results}, nil
}

// Count counts documents in the vector store.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.entries), nil
}

// Close implements the vectorstore.VectorStore interface.
func (vs *VectorStore) Close() error {
	return nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
