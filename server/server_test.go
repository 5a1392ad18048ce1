//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/notify"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

// echoModel answers with a fixed completion.
type echoModel struct {
	reply string
}

func (m *echoModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	ch := make(chan *model.Response, 1)
	ch <- &model.Response{
		Done:    true,
		Choices: []model.Choice{{Message: model.Message{Content: m.reply}}},
	}
	close(ch)
	return ch, nil
}

func (m *echoModel) Info() model.Info {
	return model.Info{Name: "echo", Provider: "test"}
}

func newTestServer(t *testing.T) (*httptest.Server, *notify.Hub) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := notify.NewHub()
	executor := workflow.NewExecutor(
		workflow.WithEventSink(hub),
		workflow.WithModelFunc(func(provider, apiKey, modelName string) (model.Model, error) {
			return &echoModel{reply: "the answer"}, nil
		}),
	)
	srv := httptest.NewServer(New(st, executor, hub).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rsp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { rsp.Body.Close() })
	return rsp
}

func decodeBody(t *testing.T, rsp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&out))
	return out
}

func simpleDefinition() map[string]any {
	return map[string]any{
		"name":        "simple",
		"description": "query to llm to output",
		"nodes": []map[string]any{
			{"id": "q", "kind": "query"},
			{"id": "llm", "kind": "completion", "config": map[string]any{
				"provider": "openai", "api_key": "sk-test", "stream": false,
			}},
			{"id": "out", "kind": "output"},
		},
		"edges": []map[string]any{
			{"source": "q", "target": "llm", "source_port": "query", "target_port": "query"},
			{"source": "llm", "target": "out", "source_port": "output", "target_port": "output"},
		},
	}
}

func createWorkflow(t *testing.T, srv *httptest.Server, def map[string]any) int64 {
	t.Helper()
	rsp := postJSON(t, srv.URL+"/api/workflows", def)
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	body := decodeBody(t, rsp)
	return int64(body["workflow_id"].(float64))
}

func TestCreateAndGetWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv, simpleDefinition())

	rsp, err := http.Get(fmt.Sprintf("%s/api/workflows/%d", srv.URL, id))
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)

	body := decodeBody(t, rsp)
	assert.Equal(t, "simple", body["name"])
	definition, ok := body["definition"].(map[string]any)
	require.True(t, ok, "Definition is returned as a JSON object")
	assert.Len(t, definition["nodes"], 3)
}

func TestCreateEmptyDraftBypassesValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv, map[string]any{"name": "draft", "nodes": []any{}, "edges": []any{}})
	assert.Greater(t, id, int64(0))
}

func TestCreateInvalidWorkflowRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	def := map[string]any{
		"name":  "broken",
		"nodes": []map[string]any{{"id": "q", "kind": "query"}},
		"edges": []any{},
	}
	rsp := postJSON(t, srv.URL+"/api/workflows", def)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}

func TestListWorkflows(t *testing.T) {
	srv, _ := newTestServer(t)
	createWorkflow(t, srv, simpleDefinition())

	rsp, err := http.Get(srv.URL + "/api/workflows")
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)

	body := decodeBody(t, rsp)
	workflows, ok := body["workflows"].([]any)
	require.True(t, ok)
	require.Len(t, workflows, 1)
	first := workflows[0].(map[string]any)
	assert.Equal(t, "simple", first["name"])
	assert.NotEmpty(t, first["created_at"])
}

func TestGetWorkflowNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rsp, err := http.Get(srv.URL + "/api/workflows/999")
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)

	rsp, err = http.Get(srv.URL + "/api/workflows/not-a-number")
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}

func TestExecuteWorkflowAndChatHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv, simpleDefinition())

	rsp := postJSON(t, fmt.Sprintf("%s/api/workflows/%d/execute", srv.URL, id), map[string]any{
		"query": "what is the answer?",
	})
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	body := decodeBody(t, rsp)
	assert.NotEmpty(t, body["session_id"], "A session id is assigned when the request has none")
	assert.Equal(t, "the answer", body["output"])

	history, err := http.Get(fmt.Sprintf("%s/api/workflows/%d/chat-history", srv.URL, id))
	require.NoError(t, err)
	defer history.Body.Close()
	require.Equal(t, http.StatusOK, history.StatusCode)

	logs := decodeBody(t, history)["chat_history"].([]any)
	require.Len(t, logs, 1, "Each execution stores one chat log")
	entry := logs[0].(map[string]any)
	assert.Equal(t, "what is the answer?", entry["user_query"])
	assert.Equal(t, "the answer", entry["response"])
}

func TestExecuteKeepsRequestedSessionID(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv, simpleDefinition())

	rsp := postJSON(t, fmt.Sprintf("%s/api/workflows/%d/execute", srv.URL, id), map[string]any{
		"query":      "hi",
		"session_id": "my-session",
	})
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "my-session", decodeBody(t, rsp)["session_id"])
}

func TestUpdateAndDeleteWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv, simpleDefinition())

	def := simpleDefinition()
	def["name"] = "renamed"
	data, err := json.Marshal(def)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/workflows/%d", srv.URL, id), bytes.NewReader(data))
	require.NoError(t, err)
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/workflows/%d", srv.URL, id), nil)
	require.NoError(t, err)
	rsp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)

	get, err := http.Get(fmt.Sprintf("%s/api/workflows/%d", srv.URL, id))
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)
}

func TestUpdateRejectsEmptyDefinition(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createWorkflow(t, srv, simpleDefinition())

	data, err := json.Marshal(map[string]any{"name": "wiped", "nodes": []any{}, "edges": []any{}})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/workflows/%d", srv.URL, id), bytes.NewReader(data))
	require.NoError(t, err)
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode, "Updates cannot empty out a saved workflow")
}

func TestUploadWithoutIngestor(t *testing.T) {
	srv, _ := newTestServer(t)
	rsp, err := http.Post(srv.URL+"/api/upload", "multipart/form-data", nil)
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, rsp.StatusCode)
}

func TestWebSocketReceivesEventsAndAcks(t *testing.T) {
	srv, hub := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sess-1"

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ObserverCount("sess-1") == 0 {
		require.True(t, time.Now().Before(deadline), "Connection never registered")
		time.Sleep(5 * time.Millisecond)
	}

	hub.Send(context.Background(), "sess-1", &workflow.Event{Type: "log", Message: "running"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt workflow.Event
	require.NoError(t, client.ReadJSON(&evt))
	assert.Equal(t, "running", evt.Message)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("ping")))
	var ack map[string]string
	require.NoError(t, client.ReadJSON(&ack))
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, "ok", ack["message"])
}
