// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bugsync owns the live, authoritative local copy of a
// workspace's bugs, team members and sprints.
//
// A Manager opens three store subscriptions for the active workspace
// and republishes a full-replacement Snapshot whenever any of them
// delivers. Consumers read the latest Snapshot or Watch for new ones;
// nothing outside the Manager mutates its data.
//
// # Lifecycle
//
// The Manager is a small state machine:
//
//	Idle ──Start──▶ Starting ──subscribed──▶ Active
//	Active ──Start(other workspace) / Refetch──▶ Restarting ──▶ Active
//	any ──Stop──▶ Stopped ──Start──▶ Starting
//
// Start with the workspace already active is a no-op. Every teardown
// bumps a generation counter; callbacks carry the generation they were
// registered under and are ignored once it is stale, so a snapshot
// arriving after Stop or after a workspace switch cannot touch the
// published state.
//
// # Failures
//
// A subscription failure is classified, never returned. An
// authorization failure clears the affected collection and marks the
// feed access-denied; anything else marks the feed transient and keeps
// the last snapshot on screen. Refetch restarts all three feeds. With
// Options.RetryTransient set, transient feeds also resubscribe on their
// own with exponential backoff.
//
// # Optimistic writes
//
// After a successful write the mutation coordinator calls FoldPatch
// with the patch and the store's commit time. The patch is applied to
// the published view immediately and kept until a bugs snapshot shows
// an update time at or after the commit time, at which point the
// server copy is authoritative. An older snapshot arriving in between
// has the pending patch re-applied on top, so the view never regresses
// to pre-write data.
package bugsync
