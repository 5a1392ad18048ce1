//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

// countingEmbedder counts calls and optionally fails after a threshold.
type countingEmbedder struct {
	mu        sync.Mutex
	calls     int
	failAfter int
}

func (e *countingEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failAfter > 0 && e.calls > e.failAfter {
		return nil, errors.New("quota exceeded")
	}
	return []float64{1, 0}, nil
}

func (e *countingEmbedder) GetDimensions() int { return 2 }

func newTestProcessor(emb embedder.Embedder, store vectorstore.VectorStore, opts ...Option) *Processor {
	return New(
		func(ctx context.Context, provider, apiKey, modelName string) (embedder.Embedder, error) {
			return emb, nil
		},
		func(collection string) (vectorstore.VectorStore, error) {
			return store, nil
		},
		opts...,
	)
}

func makeChunks(n int) []*document.Document {
	chunks := make([]*document.Document, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, &document.Document{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: strings.Repeat("x", 100),
		})
	}
	return chunks
}

func TestCapChunksCount(t *testing.T) {
	p := newTestProcessor(&countingEmbedder{}, inmemory.New(), WithMaxChunks(5))
	capped := p.capChunks(makeChunks(20), "big.pdf")
	assert.Len(t, capped, 5, "Chunk count cap truncates, never rejects")
}

func TestCapChunksChars(t *testing.T) {
	p := newTestProcessor(&countingEmbedder{}, inmemory.New(), WithMaxChars(350))
	capped := p.capChunks(makeChunks(10), "big.pdf")
	assert.Len(t, capped, 3, "Character cap keeps whole chunks under the budget")
}

func TestEmbedAndStoreAllChunks(t *testing.T) {
	emb := &countingEmbedder{}
	store := inmemory.New()
	p := newTestProcessor(emb, store, WithBatchSize(4))

	chunks := makeChunks(10)
	req := &workflow.IngestRequest{
		Filename: "doc.pdf",
		Metadata: map[string]any{"description": "test"},
	}
	stored, err := p.embedAndStore(context.Background(), chunks, emb, store, req)
	require.NoError(t, err)
	assert.Equal(t, 10, stored)
	assert.Equal(t, 10, emb.calls)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	doc, _, err := store.Get(context.Background(), "chunk-0")
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", doc.Metadata["source_file"])
	assert.Equal(t, "test", doc.Metadata["description"])
}

func TestEmbedAndStoreStopsOnFailure(t *testing.T) {
	emb := &countingEmbedder{failAfter: 3}
	store := inmemory.New()
	p := newTestProcessor(emb, store, WithBatchSize(2))

	stored, err := p.embedAndStore(context.Background(), makeChunks(10), emb, store,
		&workflow.IngestRequest{Filename: "doc.pdf"})
	require.Error(t, err)
	assert.Less(t, stored, 10, "Later batches are not attempted after a failure")
}

func TestIngestEmptyDocument(t *testing.T) {
	p := newTestProcessor(&countingEmbedder{}, inmemory.New())
	_, err := p.Ingest(context.Background(), &workflow.IngestRequest{
		Filename: "empty.pdf",
		Content:  nil,
	})
	assert.Error(t, err, "A document with no extractable text is an error")
}
