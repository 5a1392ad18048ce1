//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package ingest turns uploaded documents into searchable knowledge base
// chunks: extract text, chunk it, embed each chunk and store the vectors.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/chunking"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document/reader/pdf"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

// Processing caps. Oversized documents are truncated, not rejected, so an
// upload always yields something searchable.
const (
	// defaultMaxChunks caps how many chunks one document may produce.
	defaultMaxChunks = 200
	// defaultMaxChars caps how much extracted text is chunked.
	defaultMaxChars = 500_000
	// defaultBatchSize is the number of chunks embedded concurrently.
	defaultBatchSize = 50
	// defaultExtractTimeout bounds text extraction when the request does
	// not set one.
	defaultExtractTimeout = 15 * time.Second
	// defaultStoreTimeout bounds embedding and storage when the request
	// does not set one.
	defaultStoreTimeout = 30 * time.Second
)

var _ workflow.Ingestor = (*Processor)(nil)

// Processor ingests documents into vector store collections.
type Processor struct {
	embedderFunc workflow.EmbedderFunc
	storeFunc    workflow.VectorStoreFunc
	reader       *pdf.Reader
	maxChunks    int
	maxChars     int
	batchSize    int
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxChunks caps how many chunks one document may produce.
func WithMaxChunks(n int) Option {
	return func(p *Processor) { p.maxChunks = n }
}

// WithMaxChars caps how much extracted text is chunked.
func WithMaxChars(n int) Option {
	return func(p *Processor) { p.maxChars = n }
}

// WithBatchSize sets the number of chunks embedded concurrently.
func WithBatchSize(n int) Option {
	return func(p *Processor) { p.batchSize = n }
}

// WithReader replaces the document reader.
func WithReader(r *pdf.Reader) Option {
	return func(p *Processor) { p.reader = r }
}

// New creates an ingestion processor backed by the given embedder and
// vector store constructors.
func New(embedderFunc workflow.EmbedderFunc, storeFunc workflow.VectorStoreFunc, opts ...Option) *Processor {
	p := &Processor{
		embedderFunc: embedderFunc,
		storeFunc:    storeFunc,
		reader: pdf.New(
			pdf.WithChunkingStrategy(chunking.NewFixedSizeChunking()),
		),
		maxChunks: defaultMaxChunks,
		maxChars:  defaultMaxChars,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest implements workflow.Ingestor. It extracts the document text,
// chunks it, embeds every chunk and stores the vectors in the target
// collection. The returned count is the number of chunks stored.
func (p *Processor) Ingest(ctx context.Context, req *workflow.IngestRequest) (int, error) {
	chunks, err := p.extract(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text extracted from %s", req.Filename)
	}

	emb, err := p.embedderFunc(ctx, req.EmbeddingProvider, req.EmbeddingAPIKey, req.EmbeddingModel)
	if err != nil {
		return 0, fmt.Errorf("create embedder: %w", err)
	}
	store, err := p.storeFunc(req.Collection)
	if err != nil {
		return 0, fmt.Errorf("resolve collection %s: %w", req.Collection, err)
	}

	storeTimeout := req.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	stored, err := p.embedAndStore(storeCtx, chunks, emb, store, req)
	if err != nil {
		if storeCtx.Err() == context.DeadlineExceeded {
			return stored, fmt.Errorf("%w: document storage exceeded %s",
				workflow.ErrCollaboratorTimeout, storeTimeout)
		}
		return stored, err
	}
	return stored, nil
}

// extract runs text extraction under the extract ceiling. The PDF parser
// has no cancellation hook, so the ceiling bounds how long the caller
// waits; a runaway parse is abandoned, not interrupted.
func (p *Processor) extract(ctx context.Context, req *workflow.IngestRequest) ([]*document.Document, error) {
	extractTimeout := req.ExtractTimeout
	if extractTimeout <= 0 {
		extractTimeout = defaultExtractTimeout
	}
	extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	type extractResult struct {
		chunks []*document.Document
		err    error
	}
	resultCh := make(chan extractResult, 1)
	go func() {
		chunks, err := p.reader.ReadFromReader(req.Filename, bytes.NewReader(req.Content))
		resultCh <- extractResult{chunks: chunks, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("extract text from %s: %w", req.Filename, res.err)
		}
		return p.capChunks(res.chunks, req.Filename), nil
	case <-extractCtx.Done():
		return nil, fmt.Errorf("%w: text extraction exceeded %s",
			workflow.ErrCollaboratorTimeout, extractTimeout)
	}
}

// capChunks applies the chunk count and character caps.
func (p *Processor) capChunks(chunks []*document.Document, filename string) []*document.Document {
	if len(chunks) > p.maxChunks {
		log.Warnf("document %s produced %d chunks, keeping first %d", filename, len(chunks), p.maxChunks)
		chunks = chunks[:p.maxChunks]
	}
	total := 0
	for i, chunk := range chunks {
		total += len(chunk.Content)
		if total > p.maxChars {
			log.Warnf("document %s exceeds %d chars, keeping first %d chunks", filename, p.maxChars, i)
			return chunks[:i]
		}
	}
	return chunks
}

// embedAndStore embeds chunks in bounded concurrent batches and upserts
// them. It stops at the first batch with failures and reports how many
// chunks were stored.
func (p *Processor) embedAndStore(
	ctx context.Context,
	chunks []*document.Document,
	emb embedder.Embedder,
	store vectorstore.VectorStore,
	req *workflow.IngestRequest,
) (int, error) {
	pool, err := ants.NewPool(p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	stored := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			batchErr error
			ok       int
		)
		for _, chunk := range batch {
			chunk := chunk
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				if err := p.storeChunk(ctx, chunk, emb, store, req); err != nil {
					mu.Lock()
					if batchErr == nil {
						batchErr = err
					}
					mu.Unlock()
					return
				}
				mu.Lock()
				ok++
				mu.Unlock()
			}); err != nil {
				wg.Done()
				return stored, fmt.Errorf("submit chunk: %w", err)
			}
		}
		wg.Wait()
		stored += ok
		if batchErr != nil {
			return stored, batchErr
		}
	}
	return stored, nil
}

// storeChunk embeds one chunk and upserts it.
func (p *Processor) storeChunk(
	ctx context.Context,
	chunk *document.Document,
	emb embedder.Embedder,
	store vectorstore.VectorStore,
	req *workflow.IngestRequest,
) error {
	vector, err := emb.GetEmbedding(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
	}
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding for chunk %s", chunk.ID)
	}
	if chunk.Metadata == nil {
		chunk.Metadata = make(map[string]any)
	}
	for k, v := range req.Metadata {
		chunk.Metadata[k] = v
	}
	chunk.Metadata["source_file"] = req.Filename
	if err := store.Add(ctx, chunk, vector); err != nil {
		return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
	}
	return nil
}
