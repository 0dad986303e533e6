// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bug

// Action names used in capability checks, activity entries and
// instrumentation labels.
const (
	ActionRead            = "bug/read"
	ActionCreate          = "bug/create"
	ActionUpdate          = "bug/update"
	ActionDelete          = "bug/delete"
	ActionManageReference = "reference/manage"
)

// Collection names under a workspace.
const (
	CollectionBugs    = "bugs"
	CollectionMembers = "members"
	CollectionSprints = "sprints"
)
