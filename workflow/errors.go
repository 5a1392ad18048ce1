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
	"errors"
	"fmt"
	"strings"
)

// Error types for workflow execution.
const (
	ErrorTypeValidation          = "validation_error"
	ErrorTypeCycleDetected       = "cycle_detected_error"
	ErrorTypeUnknownNodeKind     = "unknown_node_kind_error"
	ErrorTypeMissingCredential   = "missing_credential_error"
	ErrorTypeCollaboratorTimeout = "collaborator_timeout_error"
	ErrorTypeCollaborator        = "collaborator_error"
)

// Errors.
var (
	// ErrCycleDetected indicates the graph contains a cycle and cannot be
	// scheduled.
	ErrCycleDetected = errors.New("cycle detected in workflow graph")
	// ErrUnknownNodeKind indicates a node's kind has no registered executor.
	ErrUnknownNodeKind = errors.New("unknown node kind")
	// ErrMissingCredential indicates a node requires an API key that was
	// not provided.
	ErrMissingCredential = errors.New("missing credential")
	// ErrCollaboratorTimeout indicates an external collaborator call
	// exceeded its deadline.
	ErrCollaboratorTimeout = errors.New("collaborator timeout")
)

// NodeError wraps a failure of one node invocation with the node identity.
// The run is aborted when any node fails.
type NodeError struct {
	NodeID string
	Kind   NodeKind
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error { return e.Err }

// ValidationError accumulates the full list of validation failures for a
// definition. It is returned before any execution happens.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "workflow validation failed: " + strings.Join(e.Problems, "; ")
}
