//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// workflowd serves the workflow API: definition CRUD, graph execution with
// live event streaming, and knowledge base document upload.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strconv"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder"
	geminiembedder "trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder/gemini"
	openaiembedder "trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder/openai"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/ingest"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore/pgvector"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/model/provider"
	"trpc.group/trpc-go/trpc-workflow-go/notify"
	"trpc.group/trpc-go/trpc-workflow-go/server"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

func main() {
	addr := flag.String("addr", envOr("WORKFLOW_ADDR", ":8000"), "listen address")
	dbPath := flag.String("db", envOr("WORKFLOW_DB", "workflow.db"), "sqlite database path")
	logLevel := flag.String("log-level", envOr("WORKFLOW_LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log.SetLevel(*logLevel)

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	hub := notify.NewHub()
	storeFunc := newStoreFunc()
	ingestor := ingest.New(embedderFunc, storeFunc)

	executor := workflow.NewExecutor(
		workflow.WithEventSink(hub),
		workflow.WithEmbedderFunc(embedderFunc),
		workflow.WithVectorStoreFunc(storeFunc),
		workflow.WithModelFunc(modelFunc),
		workflow.WithIngestor(ingestor),
	)

	srv := server.New(st, executor, hub,
		server.WithIngestor(ingestor),
		server.WithEmbeddingDefaults(server.EmbeddingDefaults{
			Provider: os.Getenv("EMBEDDING_PROVIDER"),
			APIKey:   os.Getenv("EMBEDDING_API_KEY"),
			Model:    os.Getenv("EMBEDDING_MODEL"),
		}),
	)

	log.Infof("workflowd listening on %s", *addr)
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// embedderFunc builds an embedder for the provider named in a run request.
func embedderFunc(ctx context.Context, providerName, apiKey, modelName string) (embedder.Embedder, error) {
	switch providerName {
	case provider.Gemini:
		opts := []geminiembedder.Option{geminiembedder.WithAPIKey(apiKey)}
		if modelName != "" {
			opts = append(opts, geminiembedder.WithModel(modelName))
		}
		return geminiembedder.New(ctx, opts...)
	default:
		opts := []openaiembedder.Option{openaiembedder.WithAPIKey(apiKey)}
		if modelName != "" {
			opts = append(opts, openaiembedder.WithModel(modelName))
		}
		return openaiembedder.New(opts...), nil
	}
}

// modelFunc builds a chat model for the provider named in a run request.
func modelFunc(providerName, apiKey, modelName string) (model.Model, error) {
	return provider.New(context.Background(), providerName, apiKey, modelName)
}

// newStoreFunc returns a collection resolver. With PGVECTOR_HOST set, each
// collection maps to a pgvector table; otherwise collections live in
// process memory. Stores are cached per collection.
func newStoreFunc() workflow.VectorStoreFunc {
	var (
		mu     sync.Mutex
		stores = make(map[string]vectorstore.VectorStore)
	)
	return func(collection string) (vectorstore.VectorStore, error) {
		if collection == "" {
			collection = workflow.DefaultCollection
		}
		mu.Lock()
		defer mu.Unlock()
		if vs, ok := stores[collection]; ok {
			return vs, nil
		}
		vs, err := newVectorStore(collection)
		if err != nil {
			return nil, err
		}
		stores[collection] = vs
		return vs, nil
	}
}

func newVectorStore(collection string) (vectorstore.VectorStore, error) {
	host := os.Getenv("PGVECTOR_HOST")
	if host == "" {
		return inmemory.New(), nil
	}
	opts := []pgvector.Option{
		pgvector.WithHost(host),
		pgvector.WithUser(os.Getenv("PGVECTOR_USER")),
		pgvector.WithPassword(os.Getenv("PGVECTOR_PASSWORD")),
		pgvector.WithTable(collection),
	}
	if port := os.Getenv("PGVECTOR_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			log.Fatalf("invalid PGVECTOR_PORT %q: %v", port, err)
		}
		opts = append(opts, pgvector.WithPort(n))
	}
	if database := os.Getenv("PGVECTOR_DATABASE"); database != "" {
		opts = append(opts, pgvector.WithDatabase(database))
	}
	if dim := os.Getenv("PGVECTOR_DIMENSION"); dim != "" {
		n, err := strconv.Atoi(dim)
		if err != nil {
			log.Fatalf("invalid PGVECTOR_DIMENSION %q: %v", dim, err)
		}
		opts = append(opts, pgvector.WithIndexDimension(n))
	}
	return pgvector.New(opts...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
