//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package chunking

import "errors"

var (
	// ErrNilDocument is returned when the document to chunk is nil.
	ErrNilDocument = errors.New("document cannot be nil")
	// ErrEmptyDocument is returned when the document has no content.
	ErrEmptyDocument = errors.New("document content cannot be empty")
)
