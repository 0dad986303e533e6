// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package docstore defines the live document collection capability the
// dashboard engine consumes, independent of any particular database.
//
// A Store exposes four operations: subscribe to a collection and
// receive full-replacement snapshots, patch a document's fields,
// create a document, and delete a document. Implementations live in
// subpackages:
//
//   - memstore: in-process, used by tests and single-user sessions
//   - sqlitestore: an embedded SQLite file shared by local processes
//   - pgstore: PostgreSQL with LISTEN/NOTIFY for multi-user teams
//
// Field values are plain Go values (string, bool, numbers, time.Time,
// []any, map[string]any). Two sentinels are resolved by the store at
// write time: ServerTimestamp becomes the store's commit time, and
// Append extends an existing array instead of replacing it.
//
// Failures carry a *Error with a Code. Callers classify failures with
// IsCode or CodeOf rather than matching message text.
package docstore
