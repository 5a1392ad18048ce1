//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import "strings"

// Message is one prior conversation turn supplied with a run.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Upload is a document attached to a retrieval node for one run. Content is
// the raw file bytes (base64 on the wire).
type Upload struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// NodeOverride carries per-node settings supplied with a run request. They
// take effect for that run only and never modify the stored definition.
type NodeOverride struct {
	APIKey            string  `json:"api_key,omitempty"`
	EmbeddingAPIKey   string  `json:"embedding_api_key,omitempty"`
	EmbeddingProvider string  `json:"embedding_provider,omitempty"`
	EmbeddingModel    string  `json:"embedding_model,omitempty"`
	SearchAPIKey      string  `json:"search_api_key,omitempty"`
	Upload            *Upload `json:"uploaded_file,omitempty"`
}

// RunContext is the run-scoped input bundle. It is created once per
// execution request and read-only for node executors; its lifetime is one
// run.
type RunContext struct {
	// SessionID addresses the event channel for this run. Empty disables
	// event delivery.
	SessionID string `json:"session_id"`
	// Query is the free-form user query.
	Query string `json:"query"`
	// APIKeys maps a provider name to its secret.
	APIKeys map[string]string `json:"api_keys"`
	// Overrides maps a node id to its run-scoped settings.
	Overrides map[string]NodeOverride `json:"node_configs"`
	// ChatHistory holds prior conversation turns, oldest first.
	ChatHistory []Message `json:"chat_history"`
}

// override returns the run-scoped settings for a node, or the zero value.
func (rc *RunContext) override(nodeID string) NodeOverride {
	return rc.Overrides[nodeID]
}

// Inputs is a read snapshot of a node's accumulated input slots, keyed by
// port name. The executor owns the underlying slot map; executors must not
// retain or mutate the snapshot.
type Inputs map[string]any

// String returns the value of a slot when it is a non-empty string.
func (in Inputs) String(port string) string {
	if v, ok := in[port].(string); ok {
		return v
	}
	return ""
}

// StringList returns the value of a slot as a list of strings, coercing a
// single string into a one-element list.
func (in Inputs) StringList(port string) []string {
	switch v := in[port].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Output is the bundle of named values produced by one node invocation.
// Ownership transfers to the executor, which fans values out to downstream
// input slots.
type Output map[string]any

// firstValue returns an arbitrary value of the bundle. Single-entry bundles
// are the common case; for larger bundles the pick is unspecified, matching
// the routing contract for edges that name no source port.
func (o Output) firstValue() any {
	for _, v := range o {
		return v
	}
	return nil
}

// NodeOutput pairs an output node's id with the value it collected.
type NodeOutput struct {
	NodeID string `json:"node_id"`
	Value  any    `json:"value"`
}

// Text renders the collected value as a string for the run response.
func (o NodeOutput) Text() string {
	switch v := o.Value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "\n")
	case nil:
		return ""
	default:
		return ""
	}
}
