// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// Identity is the signed-in user.
type Identity struct {
	UserID      string `json:"userId" yaml:"user_id"`
	Email       string `json:"email,omitempty" yaml:"email"`
	DisplayName string `json:"displayName,omitempty" yaml:"display_name"`
}

// Role is an organization role name.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleTester  Role = "tester"
	RoleViewer  Role = "viewer"
)

// rolePriority lists roles from most to least privileged.
var rolePriority = []Role{RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleTester, RoleViewer}

// Roles is a role list that unmarshals from either a single string or
// an array of strings.
type Roles []Role

func (r *Roles) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = parseRoles([]string{single})
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("role must be a string or a list of strings: %w", err)
	}
	*r = parseRoles(list)
	return nil
}

func (r *Roles) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*r = parseRoles([]string{node.Value})
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*r = parseRoles(list)
		return nil
	}
	return fmt.Errorf("line %d: role must be a string or a list of strings", node.Line)
}

func parseRoles(names []string) Roles {
	var roles Roles
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			roles = append(roles, Role(name))
		}
	}
	return roles
}

// PrimaryRole returns the most privileged role in roles. Unknown roles
// rank below every known role; an empty list returns "".
func PrimaryRole(roles []Role) Role {
	best, bestRank := Role(""), len(rolePriority)+1
	for _, role := range roles {
		rank := len(rolePriority)
		for i, known := range rolePriority {
			if role == known {
				rank = i
				break
			}
		}
		if rank < bestRank {
			best, bestRank = role, rank
		}
	}
	return best
}

// Permissions holds explicit per-capability flags. A nil flag defers
// to the role default.
type Permissions struct {
	CanReadBugs      *bool `json:"canReadBugs,omitempty" yaml:"can_read_bugs"`
	CanCreateBugs    *bool `json:"canCreateBugs,omitempty" yaml:"can_create_bugs"`
	CanUpdateBugs    *bool `json:"canUpdateBugs,omitempty" yaml:"can_update_bugs"`
	CanDeleteBugs    *bool `json:"canDeleteBugs,omitempty" yaml:"can_delete_bugs"`
	CanManageSprints *bool `json:"canManageSprints,omitempty" yaml:"can_manage_sprints"`
}

// RolePayload is the organization's record of the user's role and
// permissions.
type RolePayload struct {
	Role        Roles       `json:"role" yaml:"role"`
	Permissions Permissions `json:"permissions" yaml:"permissions"`
}

// Capability is an action that can be granted.
type Capability string

const (
	CapRead            Capability = bug.ActionRead
	CapCreate          Capability = bug.ActionCreate
	CapUpdate          Capability = bug.ActionUpdate
	CapDelete          Capability = bug.ActionDelete
	CapManageReference Capability = bug.ActionManageReference
)

// Source records how a capability set was derived.
type Source int

const (
	// SourceNone means there is no identity.
	SourceNone Source = iota

	// SourceProvisional means an identity exists but its role payload
	// has not loaded.
	SourceProvisional

	// SourceGranted means the set was derived from a loaded payload.
	SourceGranted
)

func (s Source) String() string {
	switch s {
	case SourceProvisional:
		return "provisional"
	case SourceGranted:
		return "granted"
	default:
		return "none"
	}
}

// Capabilities is the resolved set of allowed actions.
type Capabilities struct {
	Read            bool
	Create          bool
	Update          bool
	Delete          bool
	ManageReference bool
	Role            Role
	Source          Source
}

// Has reports whether c grants capability.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapRead:
		return c.Read
	case CapCreate:
		return c.Create
	case CapUpdate:
		return c.Update
	case CapDelete:
		return c.Delete
	case CapManageReference:
		return c.ManageReference
	}
	return false
}

// List returns the granted capabilities in a stable order.
func (c Capabilities) List() []Capability {
	var granted []Capability
	for _, capability := range []Capability{CapRead, CapCreate, CapUpdate, CapDelete, CapManageReference} {
		if c.Has(capability) {
			granted = append(granted, capability)
		}
	}
	return granted
}

func roleDefaults(role Role) Capabilities {
	switch role {
	case RoleOwner, RoleAdmin, RoleManager:
		return Capabilities{Read: true, Create: true, Update: true, Delete: true, ManageReference: true}
	case RoleMember, RoleTester:
		return Capabilities{Read: true, Create: true, Update: true}
	default:
		return Capabilities{Read: true}
	}
}

// Resolve derives the capability set for identity and payload.
func Resolve(identity *Identity, payload *RolePayload) Capabilities {
	if identity == nil || identity.UserID == "" {
		return Capabilities{Source: SourceNone}
	}
	if payload == nil {
		return Capabilities{Read: true, Update: true, Source: SourceProvisional}
	}

	role := PrimaryRole(payload.Role)
	capabilities := roleDefaults(role)
	override(&capabilities.Read, payload.Permissions.CanReadBugs)
	override(&capabilities.Create, payload.Permissions.CanCreateBugs)
	override(&capabilities.Update, payload.Permissions.CanUpdateBugs)
	override(&capabilities.Delete, payload.Permissions.CanDeleteBugs)
	override(&capabilities.ManageReference, payload.Permissions.CanManageSprints)
	capabilities.Role = role
	capabilities.Source = SourceGranted
	return capabilities
}

func override(target *bool, flag *bool) {
	if flag != nil {
		*target = *flag
	}
}
