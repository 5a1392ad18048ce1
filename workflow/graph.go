//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package workflow provides the workflow graph model and its execution engine.
//
// A workflow is a directed acyclic graph of typed processing nodes. The
// executor schedules nodes into dependency levels, runs each level
// concurrently and routes node outputs into downstream input slots through
// named ports.
package workflow

import (
	"encoding/json"
	"fmt"
)

// NodeKind identifies the kind of work a node performs. The set of kinds is
// closed: the executor dispatches over these constants and rejects anything
// else at run time.
type NodeKind string

// Known node kinds.
const (
	// KindQuery resolves the user query for the run.
	KindQuery NodeKind = "query"
	// KindRetrieval embeds the query and searches the knowledge base.
	KindRetrieval NodeKind = "retrieval"
	// KindWebSearch queries a web search provider.
	KindWebSearch NodeKind = "web_search"
	// KindCompletion calls a language model, optionally streaming tokens.
	KindCompletion NodeKind = "completion"
	// KindOutput collects the run result.
	KindOutput NodeKind = "output"
)

// IsValid reports whether the kind is one of the known constants.
func (k NodeKind) IsValid() bool {
	switch k {
	case KindQuery, KindRetrieval, KindWebSearch, KindCompletion, KindOutput:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-facing component name used in validation
// messages.
func (k NodeKind) DisplayName() string {
	switch k {
	case KindQuery:
		return "User Query"
	case KindRetrieval:
		return "Knowledge Base"
	case KindWebSearch:
		return "Web Search"
	case KindCompletion:
		return "LLM Engine"
	case KindOutput:
		return "Output"
	default:
		return string(k)
	}
}

// NodeConfig is implemented by the per-kind configuration types.
type NodeConfig interface {
	kind() NodeKind
}

// QueryConfig configures a query node.
type QueryConfig struct {
	// DefaultQuery overrides the run query when set.
	DefaultQuery string `json:"default_query,omitempty"`
}

func (QueryConfig) kind() NodeKind { return KindQuery }

// RetrievalConfig configures a retrieval node.
type RetrievalConfig struct {
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
	EmbeddingAPIKey   string `json:"embedding_api_key,omitempty"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
	Collection        string `json:"collection_name,omitempty"`
	TopK              int    `json:"top_k,omitempty"`

	// Extra carries provider-specific settings that have no typed field.
	Extra map[string]any `json:"-"`
}

func (RetrievalConfig) kind() NodeKind { return KindRetrieval }

// WebSearchConfig configures a web search node.
type WebSearchConfig struct {
	SearchAPIKey string `json:"search_api_key,omitempty"`
	SearchEngine string `json:"search_engine,omitempty"`
	SearchQuery  string `json:"search_query,omitempty"`
	NumResults   int    `json:"num_results,omitempty"`

	Extra map[string]any `json:"-"`
}

func (WebSearchConfig) kind() NodeKind { return KindWebSearch }

// CompletionConfig configures a completion node.
type CompletionConfig struct {
	Provider     string   `json:"provider,omitempty"`
	APIKey       string   `json:"api_key,omitempty"`
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	Stream       *bool    `json:"stream,omitempty"`

	Extra map[string]any `json:"-"`
}

func (CompletionConfig) kind() NodeKind { return KindCompletion }

// OutputConfig configures an output node. Output nodes take no settings.
type OutputConfig struct{}

func (OutputConfig) kind() NodeKind { return KindOutput }

// Node is one configured unit of work in a workflow graph. Nodes are created
// at definition time and are immutable during a run.
type Node struct {
	// ID is unique within a graph.
	ID string `json:"id"`
	// Kind selects the executor for this node.
	Kind NodeKind `json:"kind"`
	// Config holds kind-specific settings. Its concrete type matches Kind.
	Config NodeConfig `json:"config,omitempty"`
}

// nodeJSON is the wire form of a Node with a raw config payload.
type nodeJSON struct {
	ID     string          `json:"id"`
	Kind   NodeKind        `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes a node and its kind-specific configuration.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID = raw.ID
	n.Kind = raw.Kind
	cfg, err := decodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}
	n.Config = cfg
	return nil
}

// MarshalJSON encodes a node with its configuration inline.
func (n *Node) MarshalJSON() ([]byte, error) {
	var cfg json.RawMessage
	if n.Config != nil {
		b, err := json.Marshal(n.Config)
		if err != nil {
			return nil, err
		}
		cfg = b
	}
	return json.Marshal(nodeJSON{ID: n.ID, Kind: n.Kind, Config: cfg})
}

// decodeConfig decodes a raw config payload into the typed form for the kind.
// Unknown kinds keep a nil config; the executor rejects them later so that a
// stored draft with a bad kind still round-trips.
func decodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	all := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	decode := func(dst any) error {
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	// extra keeps only the keys with no typed field on the kind's config.
	extra := func(knownKeys ...string) map[string]any {
		rest := map[string]any{}
		for k, v := range all {
			rest[k] = v
		}
		for _, k := range knownKeys {
			delete(rest, k)
		}
		if len(rest) == 0 {
			return nil
		}
		return rest
	}
	switch kind {
	case KindQuery:
		var cfg QueryConfig
		if err := decode(&cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case KindRetrieval:
		var cfg RetrievalConfig
		if err := decode(&cfg); err != nil {
			return nil, err
		}
		cfg.Extra = extra("embedding_provider", "embedding_api_key", "embedding_model",
			"collection_name", "top_k")
		return cfg, nil
	case KindWebSearch:
		var cfg WebSearchConfig
		if err := decode(&cfg); err != nil {
			return nil, err
		}
		cfg.Extra = extra("search_api_key", "search_engine", "search_query", "num_results")
		return cfg, nil
	case KindCompletion:
		var cfg CompletionConfig
		if err := decode(&cfg); err != nil {
			return nil, err
		}
		cfg.Extra = extra("provider", "api_key", "model", "system_prompt",
			"temperature", "max_tokens", "stream")
		return cfg, nil
	case KindOutput:
		return OutputConfig{}, nil
	default:
		return nil, nil
	}
}

// Edge is a directed data dependency between two nodes. After the source
// node produces its output bundle, the value selected by SourcePort is
// routed into the target node's input slot named by TargetPort.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	// SourcePort selects the output value. Empty selects the bundle's
	// single value when the bundle has exactly one entry.
	SourcePort string `json:"source_port,omitempty"`
	// TargetPort names the input slot. Empty falls back to SourcePort,
	// then to DefaultPort.
	TargetPort string `json:"target_port,omitempty"`
}

// DefaultPort is the input slot used when an edge names no ports.
const DefaultPort = "output"

// Graph is a workflow definition: a set of uniquely identified nodes and an
// ordered sequence of edges between them.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// nodeSet returns the set of node ids present in the graph.
func (g *Graph) nodeSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}
	return ids
}

// nodesOfKind returns the ids of all nodes with the given kind, in
// definition order.
func (g *Graph) nodesOfKind(kind NodeKind) []string {
	var ids []string
	for _, n := range g.Nodes {
		if n.Kind == kind {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// outgoing returns the outgoing edges per source node, preserving the
// definition order of the edge sequence. Edges whose endpoints are missing
// from the node set are skipped.
func (g *Graph) outgoing() map[string][]*Edge {
	ids := g.nodeSet()
	adj := make(map[string][]*Edge)
	for _, e := range g.Edges {
		if _, ok := ids[e.Source]; !ok {
			continue
		}
		if _, ok := ids[e.Target]; !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e)
	}
	return adj
}
