// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace identifies the active bug collection context and
// computes the store paths that belong to it.
//
// A workspace lives either under an organization or under an
// individual account. The two kinds use different path roots, so the
// same workspace ID never aliases across kinds:
//
//	organizations/{org}/workspaces/{workspace}/bugs
//	individualAccounts/{user}/workspaces/{workspace}/bugs
//
// Team members belong to the organization (or the individual account),
// not to a workspace.
package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// Kind distinguishes organization workspaces from personal ones.
type Kind string

const (
	KindOrganization Kind = "organization"
	KindIndividual   Kind = "individual"
)

// ErrNotConfigured is wrapped by every Validate failure.
var ErrNotConfigured = errors.New("workspace not configured")

// Context is the active workspace selection.
type Context struct {
	Kind         Kind   `yaml:"kind"`
	Organization string `yaml:"organization"`
	Workspace    string `yaml:"workspace"`
	User         string `yaml:"user"`
}

// Validate reports which identifiers are missing. The error wraps
// ErrNotConfigured.
func (c Context) Validate() error {
	var missing []string
	switch c.Kind {
	case KindOrganization:
		if c.Organization == "" {
			missing = append(missing, "organization")
		}
	case KindIndividual:
		if c.User == "" {
			missing = append(missing, "user")
		}
	case "":
		missing = append(missing, "kind")
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrNotConfigured, c.Kind)
	}
	if c.Workspace == "" {
		missing = append(missing, "workspace")
	}
	for _, id := range []string{c.Organization, c.Workspace, c.User} {
		if strings.Contains(id, "/") {
			return fmt.Errorf("%w: identifier %q contains a path separator", ErrNotConfigured, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Configured reports whether Validate succeeds.
func (c Context) Configured() bool { return c.Validate() == nil }

// Key identifies the context for equality checks. Contexts with the
// same key address the same collections.
func (c Context) Key() string {
	switch c.Kind {
	case KindOrganization:
		return "org:" + c.Organization + "/" + c.Workspace
	case KindIndividual:
		return "user:" + c.User + "/" + c.Workspace
	}
	return ""
}

func (c Context) owner() string {
	if c.Kind == KindOrganization {
		return "organizations/" + c.Organization
	}
	return "individualAccounts/" + c.User
}

// Path returns the store path of a workspace collection. The members
// collection is owner-scoped rather than workspace-scoped.
func (c Context) Path(collection string) string {
	if collection == bug.CollectionMembers {
		return c.owner() + "/" + bug.CollectionMembers
	}
	return c.owner() + "/workspaces/" + c.Workspace + "/" + collection
}

// String returns a human-readable label for logs.
func (c Context) String() string {
	if key := c.Key(); key != "" {
		return key
	}
	return "unconfigured"
}
