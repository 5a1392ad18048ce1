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
	"fmt"
	"strings"
)

// Provider error categories. Provider SDKs surface failures in different
// shapes, so classification inspects the error text for the HTTP status and
// the common marker strings, the same signals the providers embed in their
// messages.
type errorCategory int

const (
	categoryGeneric errorCategory = iota
	categoryUnauthorized
	categoryForbidden
	categoryNotFound
)

func classifyProviderError(err error) errorCategory {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authenticationerror"):
		return categoryUnauthorized
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return categoryForbidden
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return categoryNotFound
	default:
		return categoryGeneric
	}
}

// normalizeEmbeddingError translates an embedding provider failure into a
// user-facing message that distinguishes authentication, authorization and
// generic provider errors.
func normalizeEmbeddingError(provider string, err error) error {
	name := providerTitle(provider)
	switch classifyProviderError(err) {
	case categoryUnauthorized:
		return fmt.Errorf("invalid %s API key provided for embeddings, check the key on the Knowledge Base component", name)
	case categoryForbidden:
		return fmt.Errorf("API key does not have permission for %s embeddings, check the key permissions", name)
	default:
		return fmt.Errorf("embedding error (%s): %w", provider, err)
	}
}

// normalizeCompletionError translates a completion provider failure into a
// user-facing message covering authentication, authorization, unknown model
// and generic provider errors.
func normalizeCompletionError(provider string, err error) error {
	name := strings.ToUpper(provider)
	switch classifyProviderError(err) {
	case categoryUnauthorized:
		return fmt.Errorf("invalid %s API key provided, check the key on the LLM component", name)
	case categoryForbidden:
		return fmt.Errorf("API key does not have permission for %s, check the key permissions", name)
	case categoryNotFound:
		return fmt.Errorf("model not found for %s, check the model selection", name)
	default:
		return fmt.Errorf("LLM error (%s): %w", provider, err)
	}
}

func providerTitle(provider string) string {
	if provider == "" {
		return provider
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}
