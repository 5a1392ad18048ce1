//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

func TestNewModelInfo(t *testing.T) {
	m := New("gpt-4o-mini", WithAPIKey("sk-test"))
	info := m.Info()
	assert.Equal(t, "gpt-4o-mini", info.Name)
	assert.Equal(t, "openai", info.Provider)
}

func TestGenerateContentNilRequest(t *testing.T) {
	m := New("gpt-4o-mini")
	_, err := m.GenerateContent(context.Background(), nil)
	assert.Error(t, err)
}

func TestConvertMessages(t *testing.T) {
	msgs := convertMessages([]model.Message{
		model.NewSystemMessage("be brief"),
		model.NewUserMessage("hi"),
		model.NewAssistantMessage("hello"),
	})
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem, "System role maps to a system message")
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

func TestGenerateContentNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "hello there"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{
				"prompt_tokens":     3,
				"completion_tokens": 2,
				"total_tokens":      5,
			},
		})
	}))
	defer srv.Close()

	m := New("test-model", WithAPIKey("sk-test"), WithBaseURL(srv.URL))
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	select {
	case rsp := <-ch:
		require.NotNil(t, rsp)
		require.Nil(t, rsp.Error)
		assert.True(t, rsp.Done)
		require.Len(t, rsp.Choices, 1)
		assert.Equal(t, "hello there", rsp.Choices[0].Message.Content)
		require.NotNil(t, rsp.Usage)
		assert.Equal(t, 5, rsp.Usage.TotalTokens)
	case <-time.After(5 * time.Second):
		t.Fatal("no response received")
	}

	_, open := <-ch
	assert.False(t, open, "Channel closes after the single response")
}

func TestGenerateContentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	m := New("test-model", WithAPIKey("sk-bad"), WithBaseURL(srv.URL),
		WithOpenAIOptions())
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err, "Transport-level setup succeeds; the failure arrives on the channel")

	select {
	case rsp := <-ch:
		require.NotNil(t, rsp)
		require.NotNil(t, rsp.Error)
		assert.Equal(t, model.ErrorTypeAPIError, rsp.Error.Type)
		assert.Contains(t, rsp.Error.Message, "Incorrect API key")
	case <-time.After(5 * time.Second):
		t.Fatal("no response received")
	}
}
