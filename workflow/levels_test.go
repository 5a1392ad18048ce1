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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, kind NodeKind) *Node {
	return &Node{ID: id, Kind: kind}
}

func edge(source, target string) *Edge {
	return &Edge{Source: source, Target: target}
}

func TestBuildLevelsDiamond(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{
			node("q", KindQuery),
			node("kb", KindRetrieval),
			node("web", KindWebSearch),
			node("llm", KindCompletion),
			node("out", KindOutput),
		},
		Edges: []*Edge{
			edge("q", "kb"),
			edge("q", "web"),
			edge("kb", "llm"),
			edge("web", "llm"),
			edge("llm", "out"),
		},
	}

	levels, err := BuildLevels(g)
	require.NoError(t, err)
	require.Len(t, levels, 4, "Expected four levels")
	assert.Equal(t, []string{"q"}, levels[0])
	assert.ElementsMatch(t, []string{"kb", "web"}, levels[1], "Independent nodes share a level")
	assert.Equal(t, []string{"llm"}, levels[2])
	assert.Equal(t, []string{"out"}, levels[3])
}

func TestBuildLevelsDisconnectedRoots(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{
			node("a", KindQuery),
			node("b", KindQuery),
			node("c", KindOutput),
		},
		Edges: []*Edge{edge("a", "c")},
	}

	levels, err := BuildLevels(g)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, levels[0], "All roots belong to the first level")
	assert.Equal(t, []string{"c"}, levels[1])
}

func TestBuildLevelsCycle(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{
			node("a", KindQuery),
			node("b", KindCompletion),
			node("c", KindOutput),
		},
		Edges: []*Edge{
			edge("a", "b"),
			edge("b", "c"),
			edge("c", "b"),
		},
	}

	levels, err := BuildLevels(g)
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.Nil(t, levels, "No partial schedule on cycle")
}

func TestBuildLevelsSelfLoop(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{node("a", KindQuery)},
		Edges: []*Edge{edge("a", "a")},
	}

	_, err := BuildLevels(g)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestBuildLevelsEmptyGraph(t *testing.T) {
	levels, err := BuildLevels(&Graph{})
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestBuildLevelsIgnoresDanglingEdges(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{node("a", KindQuery), node("b", KindOutput)},
		Edges: []*Edge{
			edge("a", "b"),
			edge("a", "ghost"),
			edge("ghost", "b"),
		},
	}

	levels, err := BuildLevels(g)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, []string{"a"}, levels[0])
	assert.Equal(t, []string{"b"}, levels[1])
}

func TestBuildLevelsIdempotent(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{
			node("q", KindQuery),
			node("llm", KindCompletion),
			node("out", KindOutput),
		},
		Edges: []*Edge{edge("q", "llm"), edge("llm", "out")},
	}

	first, err := BuildLevels(g)
	require.NoError(t, err)
	second, err := BuildLevels(g)
	require.NoError(t, err)
	assert.Equal(t, first, second, "Scheduling twice yields the same partition")
}
