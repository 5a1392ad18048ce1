//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package pgvector

// options holds the configuration for the pgvector store.
type options struct {
	host           string
	port           int
	user           string
	password       string
	database       string
	table          string
	sslMode        string
	indexDimension int
}

var defaultOptions = options{
	host:           "localhost",
	port:           5432,
	database:       "workflow",
	table:          "kb_collection",
	sslMode:        "disable",
	indexDimension: 3072,
}

// Option represents a functional option for configuring the store.
type Option func(*options)

// WithHost sets the PostgreSQL host.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithPort sets the PostgreSQL port.
func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

// WithUser sets the PostgreSQL user.
func WithUser(user string) Option {
	return func(o *options) { o.user = user }
}

// WithPassword sets the PostgreSQL password.
func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

// WithDatabase sets the PostgreSQL database name.
func WithDatabase(database string) Option {
	return func(o *options) { o.database = database }
}

// WithTable sets the table holding the collection.
func WithTable(table string) Option {
	return func(o *options) { o.table = table }
}

// WithIndexDimension sets the embedding dimension of the table.
func WithIndexDimension(dimension int) Option {
	return func(o *options) { o.indexDimension = dimension }
}

// WithSSLMode sets the PostgreSQL SSL mode.
func WithSSLMode(sslMode string) Option {
	return func(o *options) { o.sslMode = sslMode }
}
