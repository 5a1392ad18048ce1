//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package provider constructs chat models by provider name. The provider
// set is closed: anything outside the table is rejected.
package provider

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/model/gemini"
	"trpc.group/trpc-go/trpc-workflow-go/model/openai"
)

// Known provider names.
const (
	// OpenAI is the OpenAI chat completions API.
	OpenAI = "openai"
	// Grok is the xAI API, which speaks the OpenAI wire protocol.
	Grok = "grok"
	// Gemini is the Google Gemini API.
	Gemini = "gemini"
)

// grokBaseURL is the xAI OpenAI-compatible endpoint.
const grokBaseURL = "https://api.x.ai/v1"

// Default model names per provider.
const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGrokModel   = "grok-beta"
	defaultGeminiModel = "gemini-1.5-flash"
)

// constructor builds a model for one provider.
type constructor func(ctx context.Context, apiKey, modelName string) (model.Model, error)

// constructors is the closed provider table.
var constructors = map[string]constructor{
	OpenAI: func(ctx context.Context, apiKey, modelName string) (model.Model, error) {
		if modelName == "" {
			modelName = defaultOpenAIModel
		}
		return openai.New(modelName, openai.WithAPIKey(apiKey)), nil
	},
	Grok: func(ctx context.Context, apiKey, modelName string) (model.Model, error) {
		if modelName == "" {
			modelName = defaultGrokModel
		}
		return openai.New(modelName,
			openai.WithAPIKey(apiKey),
			openai.WithBaseURL(grokBaseURL),
		), nil
	},
	Gemini: func(ctx context.Context, apiKey, modelName string) (model.Model, error) {
		if modelName == "" {
			modelName = defaultGeminiModel
		}
		return gemini.New(ctx, modelName, gemini.WithAPIKey(apiKey))
	},
}

// New constructs a chat model for the named provider.
func New(ctx context.Context, provider, apiKey, modelName string) (model.Model, error) {
	ctor, ok := constructors[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	return ctor(ctx, apiKey, modelName)
}

// Supported reports whether the provider name is in the table.
func Supported(provider string) bool {
	_, ok := constructors[provider]
	return ok
}
