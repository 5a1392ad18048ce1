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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCompletionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unauthorized status",
			err:  errors.New("POST https://api.openai.com: 401 Unauthorized"),
			want: "invalid OPENAI API key provided, check the key on the LLM component",
		},
		{
			name: "invalid api key marker",
			err:  errors.New("error code invalid_api_key"),
			want: "invalid GROK API key provided, check the key on the LLM component",
		},
		{
			name: "forbidden",
			err:  errors.New("403 Forbidden"),
			want: "API key does not have permission for GEMINI, check the key permissions",
		},
		{
			name: "model not found",
			err:  errors.New("404 model not found"),
			want: "model not found for OPENAI, check the model selection",
		},
	}

	providers := []string{"openai", "grok", "gemini", "openai"}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeCompletionError(providers[i], tt.err)
			assert.Equal(t, tt.want, got.Error())
		})
	}
}

func TestNormalizeCompletionErrorGenericWraps(t *testing.T) {
	cause := errors.New("connection reset")
	got := normalizeCompletionError("openai", cause)
	assert.ErrorIs(t, got, cause, "Unclassified errors keep the cause in the chain")
	assert.Contains(t, got.Error(), "LLM error (openai)")
}

func TestNormalizeEmbeddingError(t *testing.T) {
	got := normalizeEmbeddingError("openai", errors.New("AuthenticationError: bad key"))
	assert.Equal(t,
		"invalid Openai API key provided for embeddings, check the key on the Knowledge Base component",
		got.Error())

	cause := errors.New("timeout")
	got = normalizeEmbeddingError("gemini", cause)
	assert.ErrorIs(t, got, cause)
}
