//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package chunking

import (
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
)

// FixedSizeChunking splits text into fixed-size chunks with overlap.
type FixedSizeChunking struct {
	chunkSize int
	overlap   int
}

// Option represents a functional option for configuring FixedSizeChunking.
type Option func(*FixedSizeChunking)

// WithChunkSize sets the maximum size of each chunk in characters.
func WithChunkSize(size int) Option {
	return func(fsc *FixedSizeChunking) {
		fsc.chunkSize = size
	}
}

// WithOverlap sets the number of characters to overlap between chunks.
func WithOverlap(overlap int) Option {
	return func(fsc *FixedSizeChunking) {
		fsc.overlap = overlap
	}
}

// NewFixedSizeChunking creates a new fixed-size chunking strategy.
func NewFixedSizeChunking(opts ...Option) *FixedSizeChunking {
	fsc := &FixedSizeChunking{
		chunkSize: defaultChunkSize,
		overlap:   defaultOverlap,
	}
	for _, opt := range opts {
		opt(fsc)
	}
	if fsc.overlap >= fsc.chunkSize {
		fsc.overlap = min(defaultOverlap, fsc.chunkSize-1)
	}
	return fsc
}

// Chunk splits the document into fixed-size chunks with overlap.
func (f *FixedSizeChunking) Chunk(doc *document.Document) ([]*document.Document, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if doc.IsEmpty() {
		return nil, ErrEmptyDocument
	}

	content := cleanText(doc.Content)
	contentLength := len(content)

	if contentLength <= f.chunkSize {
		return []*document.Document{createChunk(doc, content, 1)}, nil
	}

	var chunks []*document.Document
	chunkNumber := 1
	start := 0

	for start+f.overlap < contentLength {
		end := min(start+f.chunkSize, contentLength)

		// Prefer breaking on whitespace to avoid splitting words, as long
		// as the break point advances past the overlap window.
		if end < contentLength {
			breakPoint := f.findBreakPoint(content, start, end)
			if breakPoint != -1 && breakPoint-start > f.overlap {
				end = breakPoint
			}
		}
		// Guarantee forward progress when the first whitespace sits inside
		// the overlap window.
		if end-start <= f.overlap {
			end = min(start+f.chunkSize, contentLength)
		}
		if end == start {
			end = start + f.chunkSize
		}

		chunks = append(chunks, createChunk(doc, content[start:end], chunkNumber))
		chunkNumber++
		if end == contentLength {
			break
		}
		start = end - f.overlap
	}
	return chunks, nil
}

// findBreakPoint looks for a whitespace break near the target position.
func (f *FixedSizeChunking) findBreakPoint(content string, start, targetEnd int) int {
	for i := targetEnd - 1; i > start; i-- {
		if isWhitespace(rune(content[i])) {
			return i + 1
		}
	}
	return -1
}
