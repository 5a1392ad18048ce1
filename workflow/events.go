//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import "context"

// Event types delivered on the session event channel.
const (
	// EventTypeLog is a progress message.
	EventTypeLog = "log"
	// EventTypeError reports a fatal run error.
	EventTypeError = "error"
	// EventTypeToken carries one streamed completion token.
	EventTypeToken = "token"
	// EventTypeDone signals a completion node finished streaming.
	EventTypeDone = "done"
)

// Event is one structured message emitted during a run.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
	Token   string `json:"token,omitempty"`
	Text    string `json:"text,omitempty"`
}

// EventSink delivers run events to the observers of a session. Delivery is
// best-effort: implementations log failures and never return them, and the
// executor never blocks on delivery.
type EventSink interface {
	Send(ctx context.Context, sessionID string, evt *Event)
}

// NopSink discards all events. It is used when a run has no session.
type NopSink struct{}

// Send implements EventSink.
func (NopSink) Send(ctx context.Context, sessionID string, evt *Event) {}

// logEvent builds a progress event.
func logEvent(message string) *Event {
	return &Event{Type: EventTypeLog, Message: message}
}

// errorEvent builds a fatal error event.
func errorEvent(message string) *Event {
	return &Event{Type: EventTypeError, Message: message}
}

// tokenEvent builds a streamed token event.
func tokenEvent(nodeID, token string) *Event {
	return &Event{Type: EventTypeToken, NodeID: nodeID, Token: token}
}

// doneEvent builds a stream completion event.
func doneEvent(nodeID, text string) *Event {
	return &Event{Type: EventTypeDone, NodeID: nodeID, Text: text}
}
