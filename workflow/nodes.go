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
	"fmt"
	"strings"
)

// queryExecutor resolves the query for the run: the node's configured
// default wins, otherwise the run context query flows through.
type queryExecutor struct{}

func (queryExecutor) Execute(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error) {
	query := rc.Query
	if cfg, ok := node.Config.(QueryConfig); ok && cfg.DefaultQuery != "" {
		query = cfg.DefaultQuery
	}
	return Output{"query": query}, nil
}

// outputExecutor passes through the first populated input among the
// priority-ordered ports. It performs no transformation.
type outputExecutor struct{}

func (outputExecutor) Execute(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error) {
	var value any
	for _, port := range []string{"output", "context", "input"} {
		if v, ok := in[port]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			value = v
			break
		}
	}
	if value == nil {
		value = ""
	}
	return Output{"final": value}, nil
}

// webSearchExecutor queries a web search provider and returns a fixed-shape
// bundle of result lines plus their joined form.
type webSearchExecutor struct {
	exec *Executor
}

func (w *webSearchExecutor) Execute(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error) {
	cfg, _ := node.Config.(WebSearchConfig)
	override := rc.override(node.ID)

	apiKey := rc.APIKeys["serp"]
	if apiKey == "" {
		apiKey = override.SearchAPIKey
	}
	if apiKey == "" {
		apiKey = cfg.SearchAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: search API key not provided", ErrMissingCredential)
	}

	query := cfg.SearchQuery
	if query == "" {
		query = in.String("query")
	}
	engine := cfg.SearchEngine
	if engine == "" {
		engine = "google"
	}
	numResults := cfg.NumResults
	if numResults <= 0 {
		numResults = 5
	}

	results, err := w.exec.searcher.Search(ctx, apiKey, engine, query, numResults)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	return Output{
		"web_results": results,
		"context":     strings.Join(results, "\n"),
	}, nil
}

// placeholderSearcher is the default web search collaborator. The concrete
// SERP call is provisioned outside the engine; this keeps the output
// contract exercisable without a provider account.
type placeholderSearcher struct{}

func (placeholderSearcher) Search(ctx context.Context, apiKey, engine, query string, numResults int) ([]string, error) {
	n := numResults
	if n > 3 {
		n = 3
	}
	results := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, fmt.Sprintf("Search result %d for %q from %s", i, query, engine))
	}
	return results, nil
}
