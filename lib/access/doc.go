// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package access turns an identity and its organization role payload
// into a capability set, and decides whether the engine may subscribe
// to or mutate the active workspace.
//
// Resolve is pure. It grants nothing without an identity, a
// provisional read+update set while the role payload is still loading,
// and role defaults overridden by explicit permission flags once the
// payload is present. The Source field of the result records which of
// these applied, so callers can tell a provisional grant from a real
// one.
//
// Validator evaluates the readiness rules. Denials are returned as a
// Result, never as a panic. The first denial in a session is logged;
// repeats are suppressed until Reset, which the dashboard calls
// whenever subscriptions are torn down or restarted.
package access
