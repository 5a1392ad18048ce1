//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the workflow HTTP API: definition CRUD, execution,
// document upload and the per-session websocket event channel.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/notify"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/workflow"
)

// defaultMaxUploadBytes caps uploaded document size.
const defaultMaxUploadBytes = 10 << 20

// EmbeddingDefaults supplies the embedding settings used for uploads that
// carry none of their own.
type EmbeddingDefaults struct {
	Provider string
	APIKey   string
	Model    string
}

// Server routes the workflow HTTP API.
type Server struct {
	router   *mux.Router
	store    *store.Store
	executor *workflow.Executor
	hub      *notify.Hub
	ingestor workflow.Ingestor
	upgrader websocket.Upgrader

	embedding      EmbeddingDefaults
	collection     string
	maxUploadBytes int64
}

// Option configures the Server instance.
type Option func(*Server)

// WithIngestor sets the document ingestor backing the upload endpoint.
// Without one, uploads are rejected.
func WithIngestor(ing workflow.Ingestor) Option {
	return func(s *Server) { s.ingestor = ing }
}

// WithEmbeddingDefaults sets the embedding settings used when an upload
// request names none.
func WithEmbeddingDefaults(d EmbeddingDefaults) Option {
	return func(s *Server) { s.embedding = d }
}

// WithCollection sets the knowledge base collection uploads land in.
func WithCollection(collection string) Option {
	return func(s *Server) { s.collection = collection }
}

// WithMaxUploadBytes caps uploaded document size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUploadBytes = n }
}

// New creates the HTTP server around its collaborators.
func New(st *store.Store, executor *workflow.Executor, hub *notify.Hub, opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		store:    st,
		executor: executor,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		collection:     workflow.DefaultCollection,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/workflows", s.handleCreateWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows", s.handleListWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{workflowID}", s.handleGetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{workflowID}", s.handleUpdateWorkflow).Methods(http.MethodPut)
	api.HandleFunc("/workflows/{workflowID}", s.handleDeleteWorkflow).Methods(http.MethodDelete)
	api.HandleFunc("/workflows/{workflowID}/execute", s.handleExecute).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{workflowID}/chat-history", s.handleChatHistory).Methods(http.MethodGet)
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)

	s.router.HandleFunc("/ws/{sessionID}", s.handleWebSocket)
}

// workflowRequest is the wire form of a workflow definition submission.
type workflowRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Nodes       []*workflow.Node `json:"nodes"`
	Edges       []*workflow.Edge `json:"edges"`
}

// executeRequest is the wire form of an execution submission.
type executeRequest struct {
	SessionID   string                           `json:"session_id"`
	Query       string                           `json:"query"`
	APIKeys     map[string]string                `json:"api_keys"`
	NodeConfigs map[string]workflow.NodeOverride `json:"node_configs"`
	ChatHistory []workflow.Message               `json:"chat_history"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	g := &workflow.Graph{Nodes: req.Nodes, Edges: req.Edges}
	// An empty definition is a draft and may be saved as-is.
	if len(g.Nodes) > 0 {
		if err := workflow.Validate(g); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	definition, err := json.Marshal(g)
	if err != nil {
		http.Error(w, "encode definition: "+err.Error(), http.StatusInternalServerError)
		return
	}
	id, err := s.store.CreateWorkflow(r.Context(), req.Name, req.Description, string(definition))
	if err != nil {
		http.Error(w, "failed to create workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": id,
		"message":     "Workflow created successfully",
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows(r.Context())
	if err != nil {
		http.Error(w, "failed to list workflows: "+err.Error(), http.StatusInternalServerError)
		return
	}
	items := make([]map[string]any, 0, len(workflows))
	for _, wf := range workflows {
		items = append(items, map[string]any{
			"id":          wf.ID,
			"workflow_id": wf.ID,
			"name":        wf.Name,
			"description": wf.Description,
			"created_at":  wf.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": items})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	// A definition that no longer parses is served as an empty draft rather
	// than failing the read.
	var definition json.RawMessage
	if json.Valid([]byte(wf.Definition)) {
		definition = json.RawMessage(wf.Definition)
	} else {
		log.Warnf("workflow %d has an unparseable definition", wf.ID)
		definition = json.RawMessage(`{"nodes":[],"edges":[]}`)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": wf.ID,
		"name":        wf.Name,
		"description": wf.Description,
		"definition":  definition,
	})
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := workflowID(w, r)
	if !ok {
		return
	}
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	g := &workflow.Graph{Nodes: req.Nodes, Edges: req.Edges}
	if err := workflow.Validate(g); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	definition, err := json.Marshal(g)
	if err != nil {
		http.Error(w, "encode definition: "+err.Error(), http.StatusInternalServerError)
		return
	}
	err = s.store.UpdateWorkflow(r.Context(), id, req.Name, req.Description, string(definition))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to update workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": id,
		"message":     "Workflow updated successfully",
	})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := workflowID(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteWorkflow(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to delete workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Workflow deleted successfully"})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var g workflow.Graph
	if err := json.Unmarshal([]byte(wf.Definition), &g); err != nil {
		http.Error(w, "stored definition is invalid: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	rc := &workflow.RunContext{
		SessionID:   sessionID,
		Query:       req.Query,
		APIKeys:     req.APIKeys,
		Overrides:   req.NodeConfigs,
		ChatHistory: req.ChatHistory,
	}

	outputs, err := s.executor.Execute(r.Context(), &g, rc)
	if err != nil {
		http.Error(w, "workflow execution failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var output string
	if len(outputs) > 0 {
		output = outputs[0].Text()
	}
	if _, err := s.store.SaveChatLog(r.Context(), wf.ID, req.Query, output); err != nil {
		log.Warnf("save chat log for workflow %d: %v", wf.ID, err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"output":     output,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	logs, err := s.store.ChatHistory(r.Context(), wf.ID, limit)
	if err != nil {
		http.Error(w, "failed to load chat history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	items := make([]map[string]any, 0, len(logs))
	for _, cl := range logs {
		items = append(items, map[string]any{
			"id":         cl.ID,
			"user_query": cl.UserQuery,
			"response":   cl.Response,
			"created_at": cl.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_history": items})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		http.Error(w, "document upload is not configured", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("file exceeds %dMB limit", s.maxUploadBytes>>20), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	if !isPDF(header) {
		http.Error(w, "only PDFs allowed", http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	description := r.FormValue("description")
	req := &workflow.IngestRequest{
		Filename:          header.Filename,
		Content:           content,
		Collection:        s.collection,
		Metadata:          map[string]any{"description": description},
		EmbeddingProvider: formOrDefault(r, "embedding_provider", s.embedding.Provider),
		EmbeddingAPIKey:   formOrDefault(r, "embedding_api_key", s.embedding.APIKey),
		EmbeddingModel:    formOrDefault(r, "embedding_model", s.embedding.Model),
	}
	stored, err := s.ingestor.Ingest(r.Context(), req)
	if err != nil {
		if errors.Is(err, workflow.ErrCollaboratorTimeout) {
			http.Error(w, "file processing timeout", http.StatusRequestTimeout)
			return
		}
		http.Error(w, "file processing error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	id, err := s.store.SaveDocument(r.Context(), header.Filename, description, "")
	if err != nil {
		http.Error(w, "database error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"document_id":   id,
		"stored_chunks": stored,
	})
}

// handleWebSocket registers the connection as a session observer and echoes
// an ack for every inbound frame until the peer disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("ws upgrade for session %s: %v", sessionID, err)
		return
	}
	conn := s.hub.Connect(sessionID, ws)
	defer func() {
		s.hub.Disconnect(conn)
		ws.Close()
	}()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		if err := conn.WriteJSON(map[string]string{"type": "ack", "message": "ok"}); err != nil {
			return
		}
	}
}

// lookupWorkflow resolves the path id to a stored workflow, writing the
// error response itself when the lookup fails.
func (s *Server) lookupWorkflow(w http.ResponseWriter, r *http.Request) (*store.Workflow, bool) {
	id, ok := workflowID(w, r)
	if !ok {
		return nil, false
	}
	wf, err := s.store.GetWorkflow(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "failed to load workflow: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return wf, true
}

func workflowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["workflowID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid workflow id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func isPDF(header *multipart.FileHeader) bool {
	if strings.EqualFold(header.Header.Get("Content-Type"), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(header.Filename), ".pdf")
}

func formOrDefault(r *http.Request, field, fallback string) string {
	if v := r.FormValue(field); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}
