//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// DefaultCollection is the vector store collection used when a retrieval
// node does not name one.
const DefaultCollection = "kb_collection"

// defaultTopK is the number of chunks retrieved when the node does not
// configure one.
const defaultTopK = 5

// retrievalExecutor embeds the current query, searches the knowledge base
// and returns the retrieved chunks plus their concatenation. When the run
// attaches a document to the node, it is ingested first; ingestion failures
// degrade to a logged skip rather than failing the node.
type retrievalExecutor struct {
	exec *Executor
}

func (r *retrievalExecutor) Execute(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error) {
	cfg, _ := node.Config.(RetrievalConfig)
	override := rc.override(node.ID)

	apiKey := rc.APIKeys["embedding"]
	if apiKey == "" {
		apiKey = override.EmbeddingAPIKey
	}
	if apiKey == "" {
		apiKey = cfg.EmbeddingAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: embedding API key not provided for Knowledge Base", ErrMissingCredential)
	}

	provider := override.EmbeddingProvider
	if provider == "" {
		provider = cfg.EmbeddingProvider
	}
	if provider == "" {
		provider = "openai"
	}
	embeddingModel := override.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = cfg.EmbeddingModel
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	// An attached upload is ingested before querying so the new chunks are
	// searchable within this run. The attachment is run-scoped: it arrives
	// with the request and is gone when the run ends, so the stored
	// definition is never marked or mutated.
	if override.Upload != nil {
		r.ingestUpload(ctx, node, rc, override.Upload, collection, provider, apiKey, embeddingModel)
	}

	query := in.String("query")
	r.exec.sink.Send(ctx, rc.SessionID,
		logEvent(fmt.Sprintf("[%s] searching top %d chunks for query", node.ID, topK)))

	emb, err := r.embedQuery(ctx, provider, apiKey, embeddingModel, query)
	if err != nil {
		return nil, normalizeEmbeddingError(provider, err)
	}

	var docs []string
	if len(emb) > 0 {
		store, err := r.exec.storeFunc(collection)
		if err != nil {
			return nil, fmt.Errorf("resolve collection %s: %w", collection, err)
		}
		result, err := store.Search(ctx, &vectorstore.SearchQuery{
			Vector: emb,
			Limit:  topK,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		for _, scored := range result.Results {
			docs = append(docs, scored.Document.Content)
		}
	} else {
		r.exec.sink.Send(ctx, rc.SessionID,
			logEvent(fmt.Sprintf("[%s] no embedding generated for query", node.ID)))
	}

	joined := strings.Join(docs, "\n\n")
	r.exec.sink.Send(ctx, rc.SessionID,
		logEvent(fmt.Sprintf("[%s] retrieved %d chunks, context length %d chars", node.ID, len(docs), len(joined))))

	return Output{
		"context": joined,
		"chunks":  docs,
	}, nil
}

// embedQuery embeds the query text through the configured provider.
func (r *retrievalExecutor) embedQuery(ctx context.Context, provider, apiKey, modelName, query string) ([]float64, error) {
	if query == "" {
		return nil, nil
	}
	if r.exec.embedderFunc == nil {
		return nil, errors.New("no embedder configured")
	}
	emb, err := r.exec.embedderFunc(ctx, provider, apiKey, modelName)
	if err != nil {
		return nil, err
	}
	return emb.GetEmbedding(ctx, query)
}

// ingestUpload stores the attached document, degrading to a logged skip on
// timeout or failure so the query still runs.
func (r *retrievalExecutor) ingestUpload(
	ctx context.Context,
	node *Node,
	rc *RunContext,
	upload *Upload,
	collection, provider, apiKey, embeddingModel string,
) {
	if r.exec.ingestor == nil {
		log.Warnf("node %s has an attached upload but no ingestor is configured", node.ID)
		return
	}
	r.exec.sink.Send(ctx, rc.SessionID,
		logEvent(fmt.Sprintf("[%s] processing uploaded file: %s", node.ID, upload.Name)))

	stored, err := r.exec.ingestor.Ingest(ctx, &IngestRequest{
		Filename:          upload.Name,
		Content:           upload.Content,
		Collection:        collection,
		Metadata:          map[string]any{"description": fmt.Sprintf("uploaded via Knowledge Base node %s", node.ID)},
		EmbeddingProvider: provider,
		EmbeddingAPIKey:   apiKey,
		EmbeddingModel:    embeddingModel,
		ExtractTimeout:    r.exec.extractTimeout,
		StoreTimeout:      r.exec.ingestTimeout,
	})
	if err != nil {
		if errors.Is(err, ErrCollaboratorTimeout) || errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("file processing timeout for %s", upload.Name)
			r.exec.sink.Send(ctx, rc.SessionID,
				logEvent(fmt.Sprintf("[%s] file processing timeout for %s", node.ID, upload.Name)))
			return
		}
		log.Warnf("file processing error for %s: %v", upload.Name, err)
		r.exec.sink.Send(ctx, rc.SessionID,
			logEvent(fmt.Sprintf("[%s] file processing error: %v", node.ID, err)))
		return
	}
	r.exec.sink.Send(ctx, rc.SessionID,
		logEvent(fmt.Sprintf("[%s] file processed and stored: %d chunks", node.ID, stored)))
}
