//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

// dialHub spins up a test server that registers every incoming websocket
// with the hub under the given session and returns a connected client.
func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn := hub.Connect(sessionID, ws)
		t.Cleanup(func() {
			hub.Disconnect(conn)
			ws.Close()
		})
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForObservers(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ObserverCount(sessionID) != want {
		require.True(t, time.Now().Before(deadline), "Observer count never reached %d", want)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSendReachesObserver(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub, "s1")
	waitForObservers(t, hub, "s1", 1)

	hub.Send(context.Background(), "s1", &workflow.Event{Type: "log", Message: "level 1"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got workflow.Event
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "log", got.Type)
	assert.Equal(t, "level 1", got.Message)
}

func TestHubSendToOtherSessionIsInvisible(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub, "s1")
	waitForObservers(t, hub, "s1", 1)

	hub.Send(context.Background(), "s2", &workflow.Event{Type: "log", Message: "elsewhere"})
	hub.Send(context.Background(), "s1", &workflow.Event{Type: "done", Text: "mine"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got workflow.Event
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "done", got.Type, "Events are addressed per session")
}

func TestHubSendWithoutObserversIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.Send(context.Background(), "nobody", &workflow.Event{Type: "log"})
		hub.Send(context.Background(), "", &workflow.Event{Type: "log"})
		hub.Send(context.Background(), "nobody", nil)
	})
}

func TestHubConnectDisconnect(t *testing.T) {
	hub := NewHub()
	c1 := hub.Connect("s1", nil)
	c2 := hub.Connect("s1", nil)
	assert.Equal(t, 2, hub.ObserverCount("s1"))

	hub.Disconnect(c1)
	assert.Equal(t, 1, hub.ObserverCount("s1"))
	hub.Disconnect(c2)
	assert.Equal(t, 0, hub.ObserverCount("s1"))

	assert.NotPanics(t, func() { hub.Disconnect(nil) })
}
