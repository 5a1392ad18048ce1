//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIDefaults(t *testing.T) {
	m, err := New(context.Background(), OpenAI, "sk-test", "")
	require.NoError(t, err)
	info := m.Info()
	assert.Equal(t, defaultOpenAIModel, info.Name, "Empty model name picks the provider default")
}

func TestNewGrokSpeaksOpenAIProtocol(t *testing.T) {
	m, err := New(context.Background(), Grok, "xai-test", "grok-3")
	require.NoError(t, err)
	assert.Equal(t, "grok-3", m.Info().Name)
	assert.Equal(t, "openai", m.Info().Provider)
}

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(context.Background(), "anthropic", "key", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider: anthropic")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(OpenAI))
	assert.True(t, Supported(Grok))
	assert.True(t, Supported(Gemini))
	assert.False(t, Supported("mystery"))
}
