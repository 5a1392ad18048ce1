//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI embedder implementation.
package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Defaults for the OpenAI embedding API.
const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-large"
	// DefaultDimensions matches text-embedding-3-large.
	DefaultDimensions = 3072
)

var _ embedder.Embedder = (*Embedder)(nil)

// Embedder generates embeddings through the OpenAI embeddings API.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
	apiKey     string
	baseURL    string
}

// Option represents a functional option for configuring the embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) { e.model = model }
}

// WithDimensions sets the embedding dimensions for text-embedding-3 models.
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) { e.dimensions = dimensions }
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(e *Embedder) { e.apiKey = apiKey }
}

// WithBaseURL sets the API endpoint base URL.
func WithBaseURL(baseURL string) Option {
	return func(e *Embedder) { e.baseURL = baseURL }
}

// New creates a new OpenAI embedder with the given options.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		model:      DefaultModel,
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(e)
	}
	var clientOpts []option.RequestOption
	if e.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(e.apiKey))
	}
	if e.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(e.baseURL))
	}
	e.client = openai.NewClient(clientOpts...)
	return e
}

// GetEmbedding implements the embedder.Embedder interface.
func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	request := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if isTextEmbedding3Model(e.model) {
		request.Dimensions = openai.Int(int64(e.dimensions))
	}

	response, err := e.client.Embeddings.New(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		log.Warn("received empty embedding response from OpenAI API")
		return []float64{}, nil
	}
	return response.Data[0].Embedding, nil
}

// GetDimensions implements the embedder.Embedder interface.
func (e *Embedder) GetDimensions() int {
	return e.dimensions
}

// isTextEmbedding3Model reports whether the model supports the dimensions
// parameter.
func isTextEmbedding3Model(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3")
}
