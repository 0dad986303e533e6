// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bugmutate performs validated, permission-checked writes to
// the active workspace's bugs.
//
// Every mutation runs the same sequence: re-check the caller's
// capabilities against the live principal, validate the patch, claim
// the bug in the in-flight set, write through the store, release the
// claim, then fold the committed patch into the synchronized view and
// post a notice. A bug already in flight is rejected with a Busy
// outcome before any store call; writes are never queued. Failures
// leave the local view untouched.
//
// Bulk applies one action to many bugs concurrently with a bounded
// number of workers. Each item is an independent mutation: a failure
// never cancels the others.
package bugmutate
