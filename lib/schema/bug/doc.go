// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bug defines the bug record, the team-member and sprint
// reference entities, and the field-level patches that mutate them.
//
// Documents arrive from the store as untyped field maps. DecodeBug,
// DecodeMember and DecodeSprint turn them into typed values and
// normalize every timestamp shape to a UTC time.Time, so no consumer
// needs to know how a particular store serialized a date. Patch.Apply
// reuses the same per-field decoding to fold a patch into a Bug.
//
// Status, Severity and Environment are closed sets. Priority is never
// an input: PriorityFor derives it from Severity, and a Patch that sets
// severity gains the matching priority through WithDerived.
package bug
