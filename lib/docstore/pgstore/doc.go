// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pgstore is a docstore.Store backed by PostgreSQL.
//
// Documents are JSONB rows keyed by (path, id). Every write runs in a
// transaction that serializes on a commit-time row, merges the patch,
// and issues NOTIFY on the configured channel with the written path as
// payload. One dedicated connection LISTENs on that channel and
// refreshes the subscribed collections, so writes from any process
// sharing the database reach every subscriber.
//
// Timestamps inside documents are stored as RFC 3339 strings; readers
// normalize them with docstore.ParseTime.
package pgstore
