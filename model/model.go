//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the chat model interface and its request/response
// types.
package model

import "context"

// Model is the interface that all chat models implement.
type Model interface {
	// GenerateContent generates content from the given request.
	//
	// Returns:
	// - A channel of Response objects for streaming results
	// - An error for system-level failures (prevents communication)
	//
	// The Response objects may carry their own Error field for API-level
	// errors. Non-streaming requests deliver a single Response on the
	// channel before it closes.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info describes a model instance.
type Info struct {
	// Name is the model name, e.g. "gpt-4o-mini".
	Name string
	// Provider is the provider name, e.g. "openai".
	Provider string
}
