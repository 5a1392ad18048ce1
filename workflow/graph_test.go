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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeUnmarshalTypedConfig(t *testing.T) {
	raw := `{
		"id": "llm",
		"kind": "completion",
		"config": {
			"provider": "grok",
			"api_key": "sk-x",
			"temperature": 0.2,
			"stream": false,
			"custom_knob": 7
		}
	}`
	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, KindCompletion, n.Kind)

	cfg, ok := n.Config.(CompletionConfig)
	require.True(t, ok, "Expected CompletionConfig")
	assert.Equal(t, "grok", cfg.Provider)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, *cfg.Temperature, 1e-9)
	require.NotNil(t, cfg.Stream)
	assert.False(t, *cfg.Stream)

	require.NotNil(t, cfg.Extra, "Unknown keys are preserved")
	assert.Equal(t, float64(7), cfg.Extra["custom_knob"])
	assert.NotContains(t, cfg.Extra, "provider", "Typed keys stay out of Extra")
}

func TestNodeUnmarshalRetrievalDefaults(t *testing.T) {
	raw := `{"id":"kb","kind":"retrieval","config":{"embedding_api_key":"sk-emb","top_k":3}}`
	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	cfg, ok := n.Config.(RetrievalConfig)
	require.True(t, ok)
	assert.Equal(t, "sk-emb", cfg.EmbeddingAPIKey)
	assert.Equal(t, 3, cfg.TopK)
	assert.Nil(t, cfg.Extra, "No extra keys means nil Extra")
}

func TestNodeUnmarshalUnknownKindRoundTrips(t *testing.T) {
	raw := `{"id":"x","kind":"mystery","config":{"a":1}}`
	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n), "Bad kinds are rejected at run time, not decode time")
	assert.Equal(t, NodeKind("mystery"), n.Kind)
	assert.Nil(t, n.Config)
}

func TestGraphRoundTrip(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{
			{ID: "q", Kind: KindQuery, Config: QueryConfig{DefaultQuery: "hello"}},
			{ID: "out", Kind: KindOutput, Config: OutputConfig{}},
		},
		Edges: []*Edge{{Source: "q", Target: "out", SourcePort: "query"}},
	}

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded Graph
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Nodes, 2)
	cfg, ok := decoded.Nodes[0].Config.(QueryConfig)
	require.True(t, ok)
	assert.Equal(t, "hello", cfg.DefaultQuery)
	require.Len(t, decoded.Edges, 1)
	assert.Equal(t, "query", decoded.Edges[0].SourcePort)
}

func TestOutputNodePortPriority(t *testing.T) {
	out, err := outputExecutor{}.Execute(context.Background(), &Node{ID: "out", Kind: KindOutput},
		Inputs{"output": "", "context": "from kb", "input": "raw"}, &RunContext{})
	require.NoError(t, err)
	assert.Equal(t, "from kb", out["final"], "Empty strings are skipped in port priority")
}
