//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides the Gemini chat model implementation.
package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// defaultChannelBufferSize is the default response channel buffer size.
const defaultChannelBufferSize = 256

// options holds the configuration for creating a model.
type options struct {
	channelBufferSize  int
	geminiClientConfig *genai.ClientConfig
}

// Option configures the model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(o *options) { o.geminiClientConfig.APIKey = apiKey }
}

// WithChannelBufferSize sets the response channel buffer size.
func WithChannelBufferSize(size int) Option {
	return func(o *options) { o.channelBufferSize = size }
}

// WithClientConfig replaces the whole client configuration.
func WithClientConfig(cfg *genai.ClientConfig) Option {
	return func(o *options) { o.geminiClientConfig = cfg }
}

// Model is a Gemini chat model.
type Model struct {
	client            *genai.Client
	name              string
	channelBufferSize int
}

// New creates a new Gemini model.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := &options{
		channelBufferSize:  defaultChannelBufferSize,
		geminiClientConfig: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(o)
	}
	client, err := genai.NewClient(ctx, o.geminiClientConfig)
	if err != nil {
		return nil, err
	}
	return &Model{
		client:            client,
		name:              name,
		channelBufferSize: o.channelBufferSize,
	}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: "gemini"}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(
	ctx context.Context,
	request *model.Request,
) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}

	contents, config := m.buildChatRequest(request)
	responseChan := make(chan *model.Response, m.channelBufferSize)
	go func() {
		defer close(responseChan)
		if request.Stream {
			m.handleStreamingResponse(ctx, contents, responseChan, config)
		} else {
			m.handleNonStreamingResponse(ctx, contents, responseChan, config)
		}
	}()
	return responseChan, nil
}

// buildChatRequest converts the request into Gemini contents plus
// generation config. System messages become the system instruction.
func (m *Model) buildChatRequest(request *model.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.TopP != nil {
		config.TopP = genai.Ptr(float32(*request.TopP))
	}
	if len(request.Stop) > 0 {
		config.StopSequences = request.Stop
	}

	var contents []*genai.Content
	for _, msg := range request.Messages {
		switch msg.Role {
		case model.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, config
}

// handleNonStreamingResponse handles non-streaming chat completion
// responses.
func (m *Model) handleNonStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	responseChan chan<- *model.Response,
	config *genai.GenerateContentConfig,
) {
	rsp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		sendResponse(ctx, responseChan, errorResponse(err))
		return
	}
	sendResponse(ctx, responseChan, m.buildResponse(rsp, false))
}

// handleStreamingResponse forwards each streamed chunk as a partial
// response, then delivers the accumulated text as the final response.
func (m *Model) handleStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	responseChan chan<- *model.Response,
	config *genai.GenerateContentConfig,
) {
	var sb strings.Builder
	var last *genai.GenerateContentResponse
	for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.name, contents, config) {
		if err != nil {
			sendResponse(ctx, responseChan, errorResponse(err))
			return
		}
		last = chunk
		partial := m.buildResponse(chunk, true)
		for _, c := range partial.Choices {
			sb.WriteString(c.Delta.Content)
		}
		select {
		case responseChan <- partial:
		case <-ctx.Done():
			return
		}
	}

	final := m.buildResponse(last, false)
	if len(final.Choices) > 0 {
		final.Choices[0].Message.Content = sb.String()
	} else {
		final.Choices = []model.Choice{{
			Message: model.Message{Role: model.RoleAssistant, Content: sb.String()},
		}}
	}
	sendResponse(ctx, responseChan, final)
}

// buildResponse converts one Gemini response into the shared form. Partial
// responses carry the chunk text in Delta, final ones in Message.
func (m *Model) buildResponse(rsp *genai.GenerateContentResponse, isPartial bool) *model.Response {
	object := model.ObjectTypeChatCompletion
	if isPartial {
		object = model.ObjectTypeChatCompletionChunk
	}
	response := &model.Response{
		Object:    object,
		Timestamp: time.Now(),
		Done:      !isPartial,
		IsPartial: isPartial,
	}
	if rsp == nil {
		return response
	}
	response.ID = rsp.ResponseID
	response.Model = rsp.ModelVersion
	response.Created = rsp.CreateTime.Unix()

	var sb strings.Builder
	var finishReason string
	for _, candidate := range rsp.Candidates {
		if candidate.FinishReason != "" {
			finishReason = string(candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}
	msg := model.Message{Role: model.RoleAssistant, Content: sb.String()}
	choice := model.Choice{}
	if isPartial {
		choice.Delta = msg
	} else {
		choice.Message = msg
	}
	if finishReason != "" {
		choice.FinishReason = &finishReason
	}
	response.Choices = []model.Choice{choice}

	if rsp.UsageMetadata != nil {
		response.Usage = &model.Usage{
			PromptTokens:     int(rsp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(rsp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(rsp.UsageMetadata.TotalTokenCount),
		}
	}
	return response
}

func errorResponse(err error) *model.Response {
	return &model.Response{
		Error: &model.ResponseError{
			Message: err.Error(),
			Type:    model.ErrorTypeAPIError,
		},
		Timestamp: time.Now(),
		Done:      true,
	}
}

func sendResponse(ctx context.Context, ch chan<- *model.Response, rsp *model.Response) {
	select {
	case ch <- rsp:
	case <-ctx.Done():
	}
}
