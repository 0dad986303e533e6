// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"testing"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

func TestPathsDifferByKind(t *testing.T) {
	organization := Context{Kind: KindOrganization, Organization: "acme", Workspace: "web", User: "u1"}
	individual := Context{Kind: KindIndividual, Workspace: "web", User: "u1"}

	tests := []struct {
		context    Context
		collection string
		want       string
	}{
		{organization, bug.CollectionBugs, "organizations/acme/workspaces/web/bugs"},
		{organization, bug.CollectionSprints, "organizations/acme/workspaces/web/sprints"},
		{organization, bug.CollectionMembers, "organizations/acme/members"},
		{individual, bug.CollectionBugs, "individualAccounts/u1/workspaces/web/bugs"},
		{individual, bug.CollectionMembers, "individualAccounts/u1/members"},
	}
	for _, test := range tests {
		if got := test.context.Path(test.collection); got != test.want {
			t.Errorf("%s Path(%s) = %q, want %q", test.context, test.collection, got, test.want)
		}
	}
	if organization.Key() == individual.Key() {
		t.Error("organization and individual contexts share a key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		context Context
		ok      bool
	}{
		{"organization", Context{Kind: KindOrganization, Organization: "acme", Workspace: "web"}, true},
		{"individual", Context{Kind: KindIndividual, User: "u1", Workspace: "web"}, true},
		{"zero", Context{}, false},
		{"missing workspace", Context{Kind: KindOrganization, Organization: "acme"}, false},
		{"missing organization", Context{Kind: KindOrganization, Workspace: "web"}, false},
		{"individual missing user", Context{Kind: KindIndividual, Workspace: "web"}, false},
		{"unknown kind", Context{Kind: "team", Organization: "acme", Workspace: "web"}, false},
		{"separator", Context{Kind: KindOrganization, Organization: "acme/x", Workspace: "web"}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.context.Validate()
			if test.ok != (err == nil) {
				t.Fatalf("Validate() = %v, want ok=%v", err, test.ok)
			}
			if err != nil && !errors.Is(err, ErrNotConfigured) {
				t.Errorf("error %v does not wrap ErrNotConfigured", err)
			}
		})
	}
}
