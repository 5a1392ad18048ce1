//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkflowCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorkflow(ctx, "rag", "a rag pipeline", `{"nodes":[],"edges":[]}`)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	wf, err := s.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rag", wf.Name)
	assert.Equal(t, "a rag pipeline", wf.Description)
	assert.Equal(t, `{"nodes":[],"edges":[]}`, wf.Definition)
	assert.False(t, wf.CreatedAt.IsZero())

	require.NoError(t, s.UpdateWorkflow(ctx, id, "rag2", "updated", `{"nodes":[],"edges":[]}`))
	wf, err = s.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rag2", wf.Name)

	require.NoError(t, s.DeleteWorkflow(ctx, id))
	_, err = s.GetWorkflow(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetWorkflow(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateWorkflow(ctx, 42, "x", "", "{}"), ErrNotFound)
	assert.ErrorIs(t, s.DeleteWorkflow(ctx, 42), ErrNotFound)
}

func TestListWorkflowsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := s.CreateWorkflow(ctx, fmt.Sprintf("wf-%d", i), "", "{}")
		require.NoError(t, err)
	}

	workflows, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 3)
	assert.Equal(t, "wf-3", workflows[0].Name, "Newest workflow listed first")
	assert.Equal(t, "wf-1", workflows[2].Name)
}

func TestChatHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	wfID, err := s.CreateWorkflow(ctx, "wf", "", "{}")
	require.NoError(t, err)
	otherID, err := s.CreateWorkflow(ctx, "other", "", "{}")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := s.SaveChatLog(ctx, wfID, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		require.NoError(t, err)
	}
	_, err = s.SaveChatLog(ctx, otherID, "other q", "other a")
	require.NoError(t, err)

	logs, err := s.ChatHistory(ctx, wfID, 3)
	require.NoError(t, err)
	require.Len(t, logs, 3, "Limit caps the history")
	assert.Equal(t, "q5", logs[0].UserQuery, "Newest log first")

	logs, err = s.ChatHistory(ctx, wfID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 5, "Non-positive limit falls back to the default")
	for _, cl := range logs {
		assert.Equal(t, wfID, cl.WorkflowID, "History is scoped to the workflow")
	}
}

func TestDeleteWorkflowCascadesChatLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	wfID, err := s.CreateWorkflow(ctx, "wf", "", "{}")
	require.NoError(t, err)
	_, err = s.SaveChatLog(ctx, wfID, "q", "a")
	require.NoError(t, err)

	require.NoError(t, s.DeleteWorkflow(ctx, wfID))
	logs, err := s.ChatHistory(ctx, wfID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs, "Chat logs are removed with their workflow")
}

func TestSaveDocument(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveDocument(context.Background(), "guide.pdf", "user guide", "")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
}
