//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package chunking provides document chunking strategies and utilities.
package chunking

import (
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
)

// Strategy defines the interface for document chunking strategies.
type Strategy interface {
	// Chunk splits a document into smaller chunks based on the strategy's
	// algorithm.
	Chunk(doc *document.Document) ([]*document.Document, error)
}

var (
	defaultChunkSize = 1000
	defaultOverlap   = 200
)

// cleanText normalizes whitespace in text content.
func cleanText(content string) string {
	processed := strings.TrimSpace(content)
	processed = strings.ReplaceAll(processed, "\r\n", "\n")
	processed = strings.ReplaceAll(processed, "\r", "\n")

	lines := strings.Split(processed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// createChunk builds a chunk document that inherits the parent's metadata.
func createChunk(parent *document.Document, content string, chunkNumber int) *document.Document {
	chunk := parent.Clone()
	chunk.ID = parent.ID + "_chunk_" + strconv.Itoa(chunkNumber)
	chunk.Content = content
	if chunk.Metadata == nil {
		chunk.Metadata = make(map[string]any)
	}
	chunk.Metadata["chunk_number"] = chunkNumber
	chunk.Metadata["parent_id"] = parent.ID
	return chunk
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
