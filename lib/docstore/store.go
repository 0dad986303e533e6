// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"time"
)

// Store is a live, path-addressed document collection.
type Store interface {
	// Subscribe registers for snapshots of the collection at path.
	// onSnapshot receives the complete ordered collection after every
	// change, starting with the current contents. onError receives a
	// terminal failure; no callbacks follow it. Callbacks for one
	// subscription are never invoked concurrently and arrive in the
	// order the store produced them. A callback may still arrive
	// after the returned Unsubscribe has been called.
	Subscribe(path string, order Order, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)

	// WriteFields merges patch into an existing document.
	WriteFields(ctx context.Context, path, id string, patch map[string]any) (WriteResult, error)

	// CreateDocument adds a document with a store-assigned ID.
	CreateDocument(ctx context.Context, path string, fields map[string]any) (WriteResult, error)

	// DeleteDocument removes a document. Deleting a missing document
	// is not an error.
	DeleteDocument(ctx context.Context, path, id string) error
}

// Document is one record in a collection snapshot.
type Document struct {
	ID     string
	Fields map[string]any
}

// Order selects the sort applied to snapshot documents. The zero
// value orders by ID.
type Order struct {
	Field      string
	Descending bool
}

// SnapshotFunc receives a full collection snapshot.
type SnapshotFunc func(documents []Document)

// ErrorFunc receives a terminal subscription failure.
type ErrorFunc func(err error)

// Unsubscribe releases a subscription. Safe to call more than once.
type Unsubscribe func()

// WriteResult describes a committed write.
type WriteResult struct {
	// ID is the document written. For CreateDocument it is the newly
	// assigned identifier.
	ID string

	// UpdateTime is the commit time the store substituted for
	// ServerTimestamp. It increases monotonically per store.
	UpdateTime time.Time
}
