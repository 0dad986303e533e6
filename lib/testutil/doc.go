// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the engine's tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when waiting on store callbacks and watch channels.
// [Eventually] polls a condition for state that settles
// asynchronously, such as a subscription reaching Active. [Logger]
// routes slog output into the test log.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
