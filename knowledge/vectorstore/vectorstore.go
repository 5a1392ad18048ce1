//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package vectorstore provides interfaces for vector storage and similarity
// search.
package vectorstore

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
)

// VectorStore defines the interface for vector storage and similarity
// search operations.
type VectorStore interface {
	// Add stores a document with its embedding vector. Adding an existing
	// document id overwrites the stored document.
	Add(ctx context.Context, doc *document.Document, embedding []float64) error

	// Get retrieves a document by ID along with its embedding.
	Get(ctx context.Context, id string) (*document.Document, []float64, error)

	// Delete removes a document and its embedding.
	Delete(ctx context.Context, id string) error

	// Search performs similarity search and returns the most similar
	// documents.
	Search(ctx context.Context, query *SearchQuery) (*SearchResult, error)

	// Count counts documents in the vector store.
	Count(ctx context.Context) (int, error)

	// Close closes the vector store connection.
	Close() error
}

// SearchQuery represents a search request.
type SearchQuery struct {
	// Vector is the query embedding vector.
	Vector []float64

	// Limit specifies the number of top results to return.
	Limit int

	// MinScore specifies the minimum similarity score threshold.
	MinScore float64
}

// SearchResult contains the results of a search operation.
type SearchResult struct {
	// Results contains the matching documents with their similarity scores.
	Results []*ScoredDocument
}

// ScoredDocument represents a document with its similarity score.
type ScoredDocument struct {
	// Document is the matched document.
	Document *document.Document

	// Score is the similarity score (0.0 to 1.0, higher is more similar).
	Score float64
}
