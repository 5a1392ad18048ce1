//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package model

import "time"

// Error types for API-level failures.
const (
	// ErrorTypeStreamError is reported when a streaming connection fails
	// mid-stream.
	ErrorTypeStreamError = "stream_error"
	// ErrorTypeAPIError is reported for request-level provider failures.
	ErrorTypeAPIError = "api_error"
)

// Object types for responses.
const (
	// ObjectTypeChatCompletion is the object type for full completions.
	ObjectTypeChatCompletion = "chat.completion"
	// ObjectTypeChatCompletionChunk is the object type for streamed chunks.
	ObjectTypeChatCompletionChunk = "chat.completion.chunk"
)

// Choice represents one completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`

	// Message is the full message content. Populated on final and
	// non-streaming responses.
	Message Message `json:"message,omitempty"`

	// Delta is the incremental message content. Populated on streamed
	// chunks.
	Delta Message `json:"delta,omitempty"`

	// FinishReason is the reason the choice finished, e.g. "stop",
	// "length".
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseError carries API-level error information.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return e.Message
}

// Response is one message from the model. A streaming request delivers a
// sequence of partial responses followed by one final accumulated response;
// a non-streaming request delivers a single final response.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`

	// Object describes the type of object returned.
	Object string `json:"object"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model that generated the response.
	Model string `json:"model"`

	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`

	// Usage contains token usage information (nil for partial responses).
	Usage *Usage `json:"usage,omitempty"`

	// Error contains API-level error information if the request failed.
	// This is nil for successful responses.
	Error *ResponseError `json:"error,omitempty"`

	// Timestamp is when this response was received.
	Timestamp time.Time `json:"timestamp"`

	// Done indicates the response sequence is complete.
	Done bool `json:"done"`

	// IsPartial indicates this is a partial streamed response.
	IsPartial bool `json:"is_partial"`
}
