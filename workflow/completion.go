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
	"errors"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// maxPromptHistoryTurns caps how many prior conversation turns are folded
// into the prompt.
const maxPromptHistoryTurns = 6

// completionExecutor calls a chat model with a prompt assembled from the
// node's inputs. Streaming mode forwards each token as an event and is
// bounded by wall clock and token ceilings; hitting a ceiling keeps the
// text produced so far. Non-streaming mode is bounded by a hard timeout.
type completionExecutor struct {
	exec *Executor
}

func (c *completionExecutor) Execute(ctx context.Context, node *Node, in Inputs, rc *RunContext) (Output, error) {
	cfg, _ := node.Config.(CompletionConfig)
	override := rc.override(node.ID)

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	apiKey := rc.APIKeys[provider]
	if apiKey == "" {
		apiKey = override.APIKey
	}
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not provided, set it on the LLM component", ErrMissingCredential, provider)
	}

	if c.exec.modelFunc == nil {
		return nil, errors.New("no chat model configured")
	}
	m, err := c.exec.modelFunc(provider, apiKey, cfg.Model)
	if err != nil {
		return nil, normalizeCompletionError(provider, err)
	}

	prompt := buildPrompt(in, rc)
	stream := cfg.Stream == nil || *cfg.Stream

	var messages []model.Message
	if cfg.SystemPrompt != "" {
		messages = append(messages, model.NewSystemMessage(cfg.SystemPrompt))
	}
	messages = append(messages, model.NewUserMessage(prompt))

	req := &model.Request{
		Messages: messages,
		GenerationConfig: model.GenerationConfig{
			Stream:      stream,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
	}

	c.exec.sink.Send(ctx, rc.SessionID,
		logEvent(fmt.Sprintf("[%s] calling %s model (stream=%t)", node.ID, provider, stream)))

	if stream {
		return c.executeStreaming(ctx, node, rc, provider, m, req)
	}
	return c.executeBlocking(ctx, node, rc, provider, m, req)
}

// executeStreaming consumes the model's response channel, forwarding each
// token as an event. The stream is truncated once the wall clock or token
// ceiling is reached; truncation is not an error, but nothing is emitted
// after it, not even the done event.
func (c *completionExecutor) executeStreaming(
	ctx context.Context,
	node *Node,
	rc *RunContext,
	provider string,
	m model.Model,
	req *model.Request,
) (Output, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := m.GenerateContent(streamCtx, req)
	if err != nil {
		return nil, normalizeCompletionError(provider, err)
	}

	deadline := time.Now().Add(c.exec.streamMaxDuration)
	var sb strings.Builder
	tokens := 0
	truncated := false

consume:
	for rsp := range ch {
		if rsp.Error != nil {
			if sb.Len() == 0 {
				return nil, normalizeCompletionError(provider, errors.New(rsp.Error.Message))
			}
			log.Warnf("node %s stream error after %d tokens: %s", node.ID, tokens, rsp.Error.Message)
			break consume
		}
		for _, choice := range rsp.Choices {
			token := choice.Delta.Content
			// A model that ignored the stream flag delivers one complete
			// message; a final accumulated message after partials is not
			// re-counted.
			if token == "" && !rsp.IsPartial && tokens == 0 {
				token = choice.Message.Content
			}
			if token == "" {
				continue
			}
			sb.WriteString(token)
			tokens++
			c.exec.sink.Send(ctx, rc.SessionID, tokenEvent(node.ID, token))
			if tokens >= c.exec.streamMaxTokens {
				truncated = true
				break consume
			}
		}
		if time.Now().After(deadline) {
			truncated = true
			break consume
		}
	}
	if truncated {
		// Cancel via defer and keep what was produced. The ceilings exist
		// to stop runaway generations, not to fail the run.
		log.Warnf("node %s stream truncated at %d tokens", node.ID, tokens)
		return Output{"output": sb.String()}, nil
	}

	text := sb.String()
	c.exec.sink.Send(ctx, rc.SessionID, doneEvent(node.ID, text))
	return Output{"output": text}, nil
}

// executeBlocking performs one bounded completion call and returns the full
// text. Exceeding the timeout fails the node.
func (c *completionExecutor) executeBlocking(
	ctx context.Context,
	node *Node,
	rc *RunContext,
	provider string,
	m model.Model,
	req *model.Request,
) (Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.exec.completionTimeout)
	defer cancel()

	ch, err := m.GenerateContent(callCtx, req)
	if err != nil {
		return nil, normalizeCompletionError(provider, err)
	}

	var sb strings.Builder
	for {
		select {
		case rsp, ok := <-ch:
			if !ok {
				text := sb.String()
				c.exec.sink.Send(ctx, rc.SessionID, doneEvent(node.ID, text))
				return Output{"output": text}, nil
			}
			if rsp.Error != nil {
				return nil, normalizeCompletionError(provider, errors.New(rsp.Error.Message))
			}
			for _, choice := range rsp.Choices {
				if choice.Message.Content != "" {
					sb.Reset()
					sb.WriteString(choice.Message.Content)
				} else if choice.Delta.Content != "" {
					sb.WriteString(choice.Delta.Content)
				}
			}
		case <-callCtx.Done():
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: LLM request timed out after %s",
					ErrCollaboratorTimeout, c.exec.completionTimeout)
			}
			return nil, callCtx.Err()
		}
	}
}

// buildPrompt folds the conversation history and the node's routed inputs
// into a single prompt. Parts appear in a fixed order: recent history, the
// current query, retrieved context, then web results. A node wired with
// only a bare input falls back to that, and an unwired node still asks for
// a response.
func buildPrompt(in Inputs, rc *RunContext) string {
	var parts []string

	history := rc.ChatHistory
	if len(history) > maxPromptHistoryTurns {
		history = history[len(history)-maxPromptHistoryTurns:]
	}
	for _, msg := range history {
		label := "User"
		if msg.Role == RoleAssistant {
			label = "Assistant"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, msg.Content))
	}

	if query := in.String("query"); query != "" {
		parts = append(parts, fmt.Sprintf("Current User Query: %s", query))
	}
	if context := in.String("context"); context != "" {
		parts = append(parts, fmt.Sprintf("CONTEXT: %s", context))
	}
	if web := in.StringList("web_results"); len(web) > 0 {
		parts = append(parts, fmt.Sprintf("WEB: %s", strings.Join(web, "\n")))
	}

	if len(parts) == 0 {
		if input := in.String("input"); input != "" {
			return input
		}
		return "Please provide a response."
	}
	return strings.Join(parts, "\n\n")
}
