//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package notify delivers run events to live websocket observers. Sessions
// are addressed by id; a session may have any number of observers, and
// delivery is best-effort.
package notify

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

var _ workflow.EventSink = (*Hub)(nil)

// Hub tracks the websocket connections observing each session.
type Hub struct {
	mu     sync.RWMutex
	active map[string][]*conn
}

// conn serializes writes to one websocket connection. Gorilla connections
// support one concurrent writer, so every write goes through the mutex.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string][]*conn)}
}

// Connect registers a websocket connection as an observer of the session.
// The returned handle must be passed to Disconnect when the connection
// closes.
func (h *Hub) Connect(sessionID string, ws *websocket.Conn) *Connection {
	c := &conn{ws: ws}
	h.mu.Lock()
	h.active[sessionID] = append(h.active[sessionID], c)
	h.mu.Unlock()
	log.Infof("ws connect %s", sessionID)
	return &Connection{sessionID: sessionID, conn: c}
}

// Disconnect removes an observer from its session.
func (h *Hub) Disconnect(c *Connection) {
	if c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.active[c.sessionID]
	for i, existing := range conns {
		if existing == c.conn {
			h.active[c.sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.active[c.sessionID]) == 0 {
		delete(h.active, c.sessionID)
	}
}

// Send implements workflow.EventSink. Failed writes are logged and never
// propagate; a dead observer must not fail a run.
func (h *Hub) Send(ctx context.Context, sessionID string, evt *workflow.Event) {
	if sessionID == "" || evt == nil {
		return
	}
	h.mu.RLock()
	conns := make([]*conn, len(h.active[sessionID]))
	copy(conns, h.active[sessionID])
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(evt); err != nil {
			log.Warnf("ws send to session %s failed: %v", sessionID, err)
		}
	}
}

// ObserverCount returns the number of observers on a session.
func (h *Hub) ObserverCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[sessionID])
}

// Connection is the handle for one registered observer.
type Connection struct {
	sessionID string
	conn      *conn
}

// WriteJSON writes a message to the observer's websocket, serialized with
// the hub's own writes to the same connection.
func (c *Connection) WriteJSON(v any) error {
	return c.conn.writeJSON(v)
}
