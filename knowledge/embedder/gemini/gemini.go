//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a Gemini embedder implementation.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Defaults for the Gemini embedding API.
const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "gemini-embedding-001"
	// DefaultDimensions is the default output dimensionality.
	DefaultDimensions = 3072
	// DefaultTaskType optimizes embeddings for retrieval.
	DefaultTaskType = "RETRIEVAL_DOCUMENT"
)

var _ embedder.Embedder = (*Embedder)(nil)

// Embedder generates embeddings through the Gemini API.
type Embedder struct {
	client        *genai.Client
	model         string
	dimensions    int
	taskType      string
	clientOptions *genai.ClientConfig
}

// Option represents a functional option for configuring the embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) { e.model = model }
}

// WithDimensions sets the output dimensionality.
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) { e.dimensions = dimensions }
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(e *Embedder) { e.clientOptions.APIKey = apiKey }
}

// WithTaskType sets the embedding task type.
func WithTaskType(taskType string) Option {
	return func(e *Embedder) { e.taskType = taskType }
}

// WithClientOptions replaces the whole client configuration.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(e *Embedder) { e.clientOptions = clientOptions }
}

// New creates a new Gemini embedder with the given options.
func New(ctx context.Context, opts ...Option) (*Embedder, error) {
	e := &Embedder{
		model:         DefaultModel,
		dimensions:    DefaultDimensions,
		taskType:      DefaultTaskType,
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clientOptions.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not provided")
	}
	client, err := genai.NewClient(ctx, e.clientOptions)
	if err != nil {
		return nil, err
	}
	e.client = client
	return e, nil
}

// GetEmbedding implements the embedder.Embedder interface.
func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	model := strings.TrimPrefix(e.model, "models/")
	content := genai.NewContentFromText(text, genai.RoleUser)
	dims := int32(e.dimensions)
	request := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
		TaskType:             e.taskType,
	}
	response, err := e.client.Models.EmbedContent(ctx, model, []*genai.Content{content}, request)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0].Values) == 0 {
		log.Warn("received empty embedding response from Gemini API")
		return []float64{}, nil
	}
	values := response.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

// GetDimensions implements the embedder.Embedder interface.
func (e *Embedder) GetDimensions() int {
	return e.dimensions
}
