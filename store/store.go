//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package store persists workflow definitions, chat logs and uploaded
// document records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// defaultHistoryLimit caps chat history queries that set no limit.
const defaultHistoryLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	definition TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chat_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id INTEGER NOT NULL REFERENCES workflows(id),
	user_query TEXT NOT NULL,
	response TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	document_metadata TEXT NOT NULL DEFAULT '{}'
);
`

// Workflow is one stored workflow definition. Definition is the raw JSON
// graph exactly as submitted.
type Workflow struct {
	ID          int64
	Name        string
	Description string
	Definition  string
	CreatedAt   time.Time
}

// ChatLog is one stored query/response pair for a workflow.
type ChatLog struct {
	ID         int64
	WorkflowID int64
	UserQuery  string
	Response   string
	CreatedAt  time.Time
}

// Document records one uploaded knowledge base document.
type Document struct {
	ID          int64
	Filename    string
	Description string
	UploadedAt  time.Time
	Metadata    string
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating tables as needed. Use
// ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite serializes writers; a second connection would only contend.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateWorkflow inserts a workflow definition and returns its id.
func (s *Store) CreateWorkflow(ctx context.Context, name, description, definition string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (name, description, definition) VALUES (?, ?, ?)`,
		name, description, definition)
	if err != nil {
		return 0, fmt.Errorf("insert workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert workflow: %w", err)
	}
	return id, nil
}

// GetWorkflow returns the workflow with the given id.
func (s *Store) GetWorkflow(ctx context.Context, id int64) (*Workflow, error) {
	var wf Workflow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, created_at FROM workflows WHERE id = ?`, id).
		Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Definition, &wf.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query workflow %d: %w", id, err)
	}
	return &wf, nil
}

// ListWorkflows returns all workflows, newest first.
func (s *Store) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, definition, created_at FROM workflows ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		var wf Workflow
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Definition, &wf.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return workflows, nil
}

// UpdateWorkflow replaces the name, description and definition of a
// workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, id int64, name, description, definition string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET name = ?, description = ?, definition = ? WHERE id = ?`,
		name, description, definition, id)
	if err != nil {
		return fmt.Errorf("update workflow %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update workflow %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteWorkflow removes a workflow and its chat logs.
func (s *Store) DeleteWorkflow(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete workflow %d: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_logs WHERE workflow_id = ?`, id); err != nil {
		return fmt.Errorf("delete chat logs of workflow %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workflow %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete workflow %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// SaveChatLog records one query/response pair for a workflow.
func (s *Store) SaveChatLog(ctx context.Context, workflowID int64, userQuery, response string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (workflow_id, user_query, response) VALUES (?, ?, ?)`,
		workflowID, userQuery, response)
	if err != nil {
		return 0, fmt.Errorf("insert chat log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert chat log: %w", err)
	}
	return id, nil
}

// ChatHistory returns the most recent chat logs of a workflow, newest
// first. A non-positive limit uses the default.
func (s *Store) ChatHistory(ctx context.Context, workflowID int64, limit int) ([]*ChatLog, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, user_query, response, created_at FROM chat_logs
		 WHERE workflow_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var logs []*ChatLog
	for rows.Next() {
		var cl ChatLog
		if err := rows.Scan(&cl.ID, &cl.WorkflowID, &cl.UserQuery, &cl.Response, &cl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat log: %w", err)
		}
		logs = append(logs, &cl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	return logs, nil
}

// SaveDocument records an uploaded document and returns its id.
func (s *Store) SaveDocument(ctx context.Context, filename, description, metadata string) (int64, error) {
	if metadata == "" {
		metadata = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (filename, description, document_metadata) VALUES (?, ?, ?)`,
		filename, description, metadata)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}
