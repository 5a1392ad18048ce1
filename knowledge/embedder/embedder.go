//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides interfaces and implementations for text
// embedding.
package embedder

import (
	"context"
)

// Embedder is the interface that all embedders must implement.
//
// System-level failures (network issues, invalid parameters) are returned
// as errors. API-level failures that still produced a response are
// delivered as empty slices with logged warnings.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	// The embedding slice may be empty for API-level errors.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of the embeddings produced
	// by this embedder. Returns 0 if dimensions are not known.
	GetDimensions() int
}
