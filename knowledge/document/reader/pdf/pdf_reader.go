//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package pdf provides the PDF document reader implementation.
package pdf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge/chunking"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge/document"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// defaultMaxPages caps how many pages are extracted from one document.
// Larger uploads keep the leading pages and drop the rest.
const defaultMaxPages = 100

// Reader reads PDF documents and applies chunking strategies.
type Reader struct {
	chunk            bool
	chunkingStrategy chunking.Strategy
	maxPages         int
}

// Option represents a functional option for configuring the PDF reader.
type Option func(*Reader)

// WithChunking enables or disables document chunking.
func WithChunking(chunk bool) Option {
	return func(r *Reader) {
		r.chunk = chunk
	}
}

// WithChunkingStrategy sets the chunking strategy to use.
func WithChunkingStrategy(strategy chunking.Strategy) Option {
	return func(r *Reader) {
		r.chunkingStrategy = strategy
	}
}

// WithMaxPages caps the number of pages extracted per document.
func WithMaxPages(n int) Option {
	return func(r *Reader) {
		r.maxPages = n
	}
}

// New creates a new PDF reader with the given options.
func New(opts ...Option) *Reader {
	r := &Reader{
		chunk:            true,
		chunkingStrategy: chunking.NewFixedSizeChunking(),
		maxPages:         defaultMaxPages,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFromReader reads PDF content from an io.Reader and returns documents.
func (r *Reader) ReadFromReader(name string, reader io.Reader) ([]*document.Document, error) {
	return r.readFromReader(reader, name)
}

// ReadFromFile reads PDF content from a file path and returns documents.
func (r *Reader) ReadFromFile(filePath string) ([]*document.Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	fileName := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return r.readFromReader(file, fileName)
}

// readFromReader extracts the text of each page and assembles one document,
// chunked when chunking is enabled.
func (r *Reader) readFromReader(reader io.Reader, name string) ([]*document.Document, error) {
	readerAt, size, err := toReaderAt(reader)
	if err != nil {
		return nil, err
	}
	pdfReader, err := pdf.NewReader(readerAt, size)
	if err != nil {
		return nil, err
	}

	var allText strings.Builder
	totalPage := pdfReader.NumPage()
	if totalPage > r.maxPages {
		log.Warnf("pdf %s has %d pages, extracting first %d", name, totalPage, r.maxPages)
		totalPage = r.maxPages
	}
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := pdfReader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		allText.WriteString(text)
		allText.WriteString("\n")
	}

	doc := document.New(allText.String(), name)
	if r.chunk {
		return r.chunkingStrategy.Chunk(doc)
	}
	return []*document.Document{doc}, nil
}

// toReaderAt adapts an io.Reader into the random-access form the PDF parser
// needs, buffering in memory when necessary.
func toReaderAt(r io.Reader) (io.ReaderAt, int64, error) {
	if ra, ok := r.(interface {
		io.ReaderAt
		io.Seeker
	}); ok {
		size, err := ra.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err := ra.Seek(0, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return ra, size, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
