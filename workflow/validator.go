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
	"fmt"
)

// Validate checks a workflow definition before it is persisted or executed.
// All problems accumulate into one ValidationError so a caller sees the full
// list at once; a nil return means the definition is executable.
func Validate(g *Graph) error {
	if g == nil {
		return &ValidationError{Problems: []string{"workflow definition is missing"}}
	}
	if len(g.Nodes) == 0 {
		return &ValidationError{Problems: []string{"Workflow must contain at least one component"}}
	}

	var problems []string

	problems = append(problems, checkNodes(g)...)
	problems = append(problems, checkEdges(g)...)

	// Connectivity and cycle rules only make sense over a structurally
	// sound graph.
	if len(problems) == 0 {
		problems = append(problems, checkConnectivity(g)...)
		if _, err := BuildLevels(g); errors.Is(err, ErrCycleDetected) {
			problems = append(problems, "workflow contains a cycle")
		}
		problems = append(problems, checkOrphans(g)...)
	}

	for _, n := range g.Nodes {
		problems = append(problems, ValidateNodeConfig(n)...)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// checkNodes verifies node ids are unique and node kinds are known, and
// that the required component kinds are present.
func checkNodes(g *Graph) []string {
	var problems []string
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			problems = append(problems, "node with empty id")
			continue
		}
		if seen[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id: %s", n.ID))
		}
		seen[n.ID] = true
		if !n.Kind.IsValid() {
			problems = append(problems, fmt.Sprintf("node %s has unknown kind: %s", n.ID, n.Kind))
		}
	}
	for _, kind := range []NodeKind{KindQuery, KindOutput} {
		if len(g.nodesOfKind(kind)) == 0 {
			problems = append(problems, fmt.Sprintf("workflow needs a %s component", kind.DisplayName()))
		}
	}
	return problems
}

// checkEdges verifies every edge endpoint names an existing node.
func checkEdges(g *Graph) []string {
	var problems []string
	ids := g.nodeSet()
	for _, e := range g.Edges {
		if _, ok := ids[e.Source]; !ok {
			problems = append(problems, fmt.Sprintf("edge references unknown source node: %s", e.Source))
		}
		if _, ok := ids[e.Target]; !ok {
			problems = append(problems, fmt.Sprintf("edge references unknown target node: %s", e.Target))
		}
	}
	return problems
}

// checkConnectivity enforces the per-kind wiring rules: query feeds
// something, output is fed, completion sits on a path, and retrieval or web
// search results reach a completion node when one exists, otherwise an
// output node directly.
func checkConnectivity(g *Graph) []string {
	var problems []string

	outDegree := make(map[string]int)
	inDegree := make(map[string]int)
	targetsOf := make(map[string][]string)
	for _, e := range g.Edges {
		outDegree[e.Source]++
		inDegree[e.Target]++
		targetsOf[e.Source] = append(targetsOf[e.Source], e.Target)
	}

	hasCompletion := len(g.nodesOfKind(KindCompletion)) > 0

	for _, n := range g.Nodes {
		switch n.Kind {
		case KindQuery:
			if outDegree[n.ID] == 0 {
				problems = append(problems,
					fmt.Sprintf("%s node %s must connect to a downstream component", n.Kind.DisplayName(), n.ID))
			}
		case KindOutput:
			if inDegree[n.ID] == 0 {
				problems = append(problems,
					fmt.Sprintf("%s node %s must receive an input connection", n.Kind.DisplayName(), n.ID))
			}
		case KindCompletion:
			if inDegree[n.ID] == 0 || outDegree[n.ID] == 0 {
				problems = append(problems,
					fmt.Sprintf("%s node %s must have both input and output connections", n.Kind.DisplayName(), n.ID))
			}
		case KindRetrieval, KindWebSearch:
			wantKind := KindCompletion
			if !hasCompletion {
				wantKind = KindOutput
			}
			connected := false
			for _, target := range targetsOf[n.ID] {
				if t, ok := g.NodeByID(target); ok && t.Kind == wantKind {
					connected = true
					break
				}
			}
			if !connected {
				problems = append(problems,
					fmt.Sprintf("%s node %s must connect to a %s component",
						n.Kind.DisplayName(), n.ID, wantKind.DisplayName()))
			}
		}
	}
	return problems
}

// checkOrphans reports nodes that appear in no edge at all.
func checkOrphans(g *Graph) []string {
	connected := make(map[string]bool)
	for _, e := range g.Edges {
		connected[e.Source] = true
		connected[e.Target] = true
	}
	var problems []string
	for _, n := range g.Nodes {
		if !connected[n.ID] {
			problems = append(problems, fmt.Sprintf("node %s is not connected to the workflow", n.ID))
		}
	}
	return problems
}

// ValidateNodeConfig checks the kind-specific required fields of one node.
// Credentials supplied at run time satisfy the executor but not this check:
// a persisted definition must be runnable without per-run overrides.
func ValidateNodeConfig(n *Node) []string {
	var problems []string
	switch n.Kind {
	case KindRetrieval:
		cfg, _ := n.Config.(RetrievalConfig)
		if cfg.EmbeddingAPIKey == "" {
			problems = append(problems,
				fmt.Sprintf("%s node %s requires an embedding API key", n.Kind.DisplayName(), n.ID))
		}
	case KindCompletion:
		cfg, _ := n.Config.(CompletionConfig)
		if cfg.Provider == "" {
			problems = append(problems,
				fmt.Sprintf("%s node %s requires a provider", n.Kind.DisplayName(), n.ID))
		}
		if cfg.APIKey == "" {
			problems = append(problems,
				fmt.Sprintf("%s node %s requires an API key", n.Kind.DisplayName(), n.ID))
		}
	case KindWebSearch:
		cfg, _ := n.Config.(WebSearchConfig)
		if cfg.SearchAPIKey == "" {
			problems = append(problems,
				fmt.Sprintf("%s node %s requires a search API key", n.Kind.DisplayName(), n.ID))
		}
	}
	return problems
}
