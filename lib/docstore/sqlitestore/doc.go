// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore is a docstore.Store persisted in a SQLite file.
//
// Documents live in one table keyed by (path, id) with CBOR-encoded
// field bodies. Writes run in IMMEDIATE transactions and stamp a commit
// time that increases strictly across every process sharing the file.
//
// Subscriptions re-read their collection after each local commit. When
// PollInterval is set, a poller also watches SQLite's data_version and
// refreshes every subscribed collection after commits made by other
// processes.
package sqlitestore
