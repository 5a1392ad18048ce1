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
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/embedder"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/vectorstore"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// Default execution ceilings.
const (
	// defaultCompletionTimeout bounds one non-streaming completion call.
	defaultCompletionTimeout = 60 * time.Second
	// defaultStreamMaxDuration bounds the wall clock of one streaming
	// completion; reaching it truncates the stream silently.
	defaultStreamMaxDuration = 60 * time.Second
	// defaultStreamMaxTokens bounds the number of streamed tokens;
	// reaching it truncates the stream silently.
	defaultStreamMaxTokens = 5000
	// defaultExtractTimeout bounds document text extraction during a
	// retrieval node. Exceeding it skips ingestion and continues.
	defaultExtractTimeout = 15 * time.Second
	// defaultIngestTimeout bounds chunk embedding and storage during a
	// retrieval node. Exceeding it skips ingestion and continues.
	defaultIngestTimeout = 30 * time.Second
)

// NodeExecutor executes one node kind. Implementations receive a read
// snapshot of the node's accumulated inputs plus the run context and return
// a bundle of named outputs.
type NodeExecutor interface {
	Execute(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error)
}

// EmbedderFunc constructs an embedder for a provider with a run-supplied
// key. The model name may be empty to use the provider default.
type EmbedderFunc func(ctx context.Context, provider, apiKey, modelName string) (embedder.Embedder, error)

// VectorStoreFunc resolves the vector store backing a named collection.
type VectorStoreFunc func(collection string) (vectorstore.VectorStore, error)

// ModelFunc constructs a chat model for a provider with a run-supplied key.
// The model name may be empty to use the provider default.
type ModelFunc func(provider, apiKey, modelName string) (model.Model, error)

// Ingestor stores an uploaded document into a collection so it is
// searchable within the same run.
type Ingestor interface {
	Ingest(ctx context.Context, req *IngestRequest) (storedChunks int, err error)
}

// IngestRequest describes one document to ingest during a retrieval node.
type IngestRequest struct {
	Filename          string
	Content           []byte
	Collection        string
	Metadata          map[string]any
	EmbeddingProvider string
	EmbeddingAPIKey   string
	EmbeddingModel    string
	ExtractTimeout    time.Duration
	StoreTimeout      time.Duration
}

// WebSearcher performs a web search. The concrete provider call lives
// outside the engine; only the result shape is fixed here.
type WebSearcher interface {
	Search(ctx context.Context, apiKey, engine, query string, numResults int) ([]string, error)
}

// Executor turns a workflow definition into a level schedule and runs it
// against a run context, streaming progress events as it goes.
type Executor struct {
	sink         EventSink
	embedderFunc EmbedderFunc
	storeFunc    VectorStoreFunc
	modelFunc    ModelFunc
	ingestor     Ingestor
	searcher     WebSearcher

	completionTimeout time.Duration
	streamMaxDuration time.Duration
	streamMaxTokens   int
	extractTimeout    time.Duration
	ingestTimeout     time.Duration

	executors map[NodeKind]NodeExecutor
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEventSink sets the sink receiving run events. Defaults to a sink that
// discards everything.
func WithEventSink(sink EventSink) ExecutorOption {
	return func(e *Executor) { e.sink = sink }
}

// WithEmbedderFunc sets the embedder constructor used by retrieval nodes.
func WithEmbedderFunc(fn EmbedderFunc) ExecutorOption {
	return func(e *Executor) { e.embedderFunc = fn }
}

// WithVectorStoreFunc sets the collection resolver used by retrieval nodes.
func WithVectorStoreFunc(fn VectorStoreFunc) ExecutorOption {
	return func(e *Executor) { e.storeFunc = fn }
}

// WithModelFunc sets the chat model constructor used by completion nodes.
func WithModelFunc(fn ModelFunc) ExecutorOption {
	return func(e *Executor) { e.modelFunc = fn }
}

// WithIngestor sets the document ingestor used by retrieval nodes.
func WithIngestor(ing Ingestor) ExecutorOption {
	return func(e *Executor) { e.ingestor = ing }
}

// WithWebSearcher sets the web search collaborator.
func WithWebSearcher(s WebSearcher) ExecutorOption {
	return func(e *Executor) { e.searcher = s }
}

// WithCompletionTimeout bounds one non-streaming completion call.
func WithCompletionTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.completionTimeout = d }
}

// WithStreamCeilings bounds streaming completion by wall clock and token
// count. Either ceiling truncates the stream silently.
func WithStreamCeilings(maxDuration time.Duration, maxTokens int) ExecutorOption {
	return func(e *Executor) {
		e.streamMaxDuration = maxDuration
		e.streamMaxTokens = maxTokens
	}
}

// NewExecutor creates an executor with the given collaborators. The node
// kind dispatch table is fixed at construction; kinds outside it fail a run
// with ErrUnknownNodeKind.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		sink:              NopSink{},
		searcher:          placeholderSearcher{},
		completionTimeout: defaultCompletionTimeout,
		streamMaxDuration: defaultStreamMaxDuration,
		streamMaxTokens:   defaultStreamMaxTokens,
		extractTimeout:    defaultExtractTimeout,
		ingestTimeout:     defaultIngestTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.executors = map[NodeKind]NodeExecutor{
		KindQuery:      &queryExecutor{},
		KindRetrieval:  &retrievalExecutor{exec: e},
		KindWebSearch:  &webSearchExecutor{exec: e},
		KindCompletion: &completionExecutor{exec: e},
		KindOutput:     &outputExecutor{},
	}
	return e
}

// nodeResult carries one finished node invocation back to the scheduling
// loop.
type nodeResult struct {
	nodeID string
	out    Output
	err    error
}

// Execute runs the graph level by level. Nodes within a level run
// concurrently; the executor waits for the whole level before advancing.
// It returns the collected values of all output nodes in completion order.
//
// Any node failure aborts the run: the failure is returned to the caller
// and broadcast once as an error event. Already-started siblings are not
// cancelled, but their results are discarded.
func (e *Executor) Execute(ctx context.Context, g *Graph, rc *RunContext) ([]NodeOutput, error) {
	levels, err := BuildLevels(g)
	if err != nil {
		e.sink.Send(ctx, rc.SessionID, errorEvent(err.Error()))
		return nil, err
	}

	adj := g.outgoing()

	// Input slots are owned by this goroutine. Every node starts from the
	// run context's implicit inputs and accumulates routed values as
	// upstream nodes complete.
	slots := make(map[string]Inputs, len(g.Nodes))
	for _, n := range g.Nodes {
		slots[n.ID] = Inputs{
			"query":        rc.Query,
			"chat_history": rc.ChatHistory,
		}
	}

	e.sink.Send(ctx, rc.SessionID, logEvent(fmt.Sprintf("execution plan has %d levels", len(levels))))

	var outputs []NodeOutput
	for _, level := range levels {
		e.sink.Send(ctx, rc.SessionID,
			logEvent(fmt.Sprintf("executing level with %d node(s): %v", len(level), level)))

		// Buffered so stragglers of an aborted level never block.
		results := make(chan nodeResult, len(level))
		for _, id := range level {
			node, _ := g.NodeByID(id)
			in := snapshot(slots[id])
			go func(node *Node, in Inputs) {
				out, err := e.runNode(ctx, node, in, rc)
				results <- nodeResult{nodeID: node.ID, out: out, err: err}
			}(node, in)
		}

		// Merge results as nodes complete. The scheduler is the sole
		// writer of slots and outputs, and only writes after a node has
		// fully returned.
		for range level {
			res := <-results
			if res.err != nil {
				e.sink.Send(ctx, rc.SessionID, errorEvent(res.err.Error()))
				return nil, res.err
			}
			node, _ := g.NodeByID(res.nodeID)
			e.route(res.nodeID, res.out, adj, slots)
			if node.Kind == KindOutput {
				outputs = append(outputs, collectOutput(res.nodeID, res.out))
			}
		}
	}

	e.sink.Send(ctx, rc.SessionID, logEvent("graph execution finished"))
	return outputs, nil
}

// runNode dispatches one node to its kind executor.
func (e *Executor) runNode(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error) {
	executor, ok := e.executors[node.Kind]
	if !ok {
		return nil, &NodeError{NodeID: node.ID, Kind: node.Kind,
			Err: fmt.Errorf("%w: %s", ErrUnknownNodeKind, node.Kind)}
	}
	e.sink.Send(ctx, rc.SessionID,
		logEvent(fmt.Sprintf("[%s] executing %s node with input ports %v", node.ID, node.Kind, portNames(in))))
	out, err := executor.Execute(ctx, node, in, rc)
	if err != nil {
		log.Errorf("node %s execution failed: %v", node.ID, err)
		return nil, &NodeError{NodeID: node.ID, Kind: node.Kind, Err: err}
	}
	if out == nil {
		out = Output{}
	}
	return out, nil
}

// route fans a completed node's outputs into its downstream neighbors'
// input slots. Later-arriving edges into the same slot overwrite earlier
// ones; within one completing node, edges apply in definition order.
func (e *Executor) route(nodeID string, out Output, adj map[string][]*Edge, slots map[string]Inputs) {
	for _, edge := range adj[nodeID] {
		var val any
		if edge.SourcePort != "" {
			val = out[edge.SourcePort]
		} else {
			val = out.firstValue()
		}
		port := edge.TargetPort
		if port == "" {
			if edge.SourcePort != "" {
				port = edge.SourcePort
			} else {
				port = DefaultPort
			}
		}
		slots[edge.Target][port] = val
	}
}

// collectOutput extracts an output node's primary value, falling back
// through alternate field names, and finally to the whole bundle.
func collectOutput(nodeID string, out Output) NodeOutput {
	var value any
	if v, ok := out["final"]; ok && v != nil {
		value = v
	} else if v, ok := out[DefaultPort]; ok && v != nil {
		value = v
	} else {
		value = map[string]any(out)
	}
	return NodeOutput{NodeID: nodeID, Value: value}
}

// snapshot copies a node's slot map so executors never observe later
// writes.
func snapshot(in Inputs) Inputs {
	copied := make(Inputs, len(in))
	for k, v := range in {
		copied[k] = v
	}
	return copied
}

// portNames lists the populated input ports for progress logging.
func portNames(in Inputs) []string {
	names := make([]string, 0, len(in))
	for k := range in {
		names = append(names, k)
	}
	return names
}
