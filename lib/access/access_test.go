// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

var (
	alice      = &Identity{UserID: "alice", Email: "alice@example.test"}
	configured = workspace.Context{Kind: workspace.KindOrganization, Organization: "acme", Workspace: "web"}
)

func boolPtr(b bool) *bool { return &b }

func TestResolveWithoutIdentity(t *testing.T) {
	capabilities := Resolve(nil, &RolePayload{Role: Roles{RoleOwner}})
	if len(capabilities.List()) != 0 || capabilities.Source != SourceNone {
		t.Errorf("Resolve(nil) = %+v, want nothing", capabilities)
	}
}

func TestResolveProvisional(t *testing.T) {
	capabilities := Resolve(alice, nil)
	if !capabilities.Read || !capabilities.Update {
		t.Errorf("provisional set missing read/update: %+v", capabilities)
	}
	if capabilities.Create || capabilities.Delete || capabilities.ManageReference {
		t.Errorf("provisional set too broad: %+v", capabilities)
	}
	if capabilities.Source != SourceProvisional {
		t.Errorf("Source = %s, want provisional", capabilities.Source)
	}
}

func TestResolveExplicitFlagsOverrideRole(t *testing.T) {
	payload := &RolePayload{
		Role: Roles{RoleViewer},
		Permissions: Permissions{
			CanUpdateBugs: boolPtr(true),
			CanReadBugs:   boolPtr(true),
		},
	}
	capabilities := Resolve(alice, payload)
	if !capabilities.Update {
		t.Error("explicit canUpdateBugs ignored")
	}
	if capabilities.Delete {
		t.Error("viewer gained delete")
	}

	admin := Resolve(alice, &RolePayload{Role: Roles{RoleAdmin}, Permissions: Permissions{CanDeleteBugs: boolPtr(false)}})
	if admin.Delete {
		t.Error("explicit canDeleteBugs=false ignored for admin")
	}
	if !admin.ManageReference || admin.Source != SourceGranted {
		t.Errorf("admin = %+v", admin)
	}
}

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		roles []Role
		want  Role
	}{
		{[]Role{RoleMember, RoleAdmin, RoleViewer}, RoleAdmin},
		{[]Role{"contractor", RoleViewer}, RoleViewer},
		{[]Role{"contractor"}, "contractor"},
		{[]Role{RoleOwner, RoleAdmin}, RoleOwner},
		{nil, ""},
	}
	for _, test := range tests {
		if got := PrimaryRole(test.roles); got != test.want {
			t.Errorf("PrimaryRole(%v) = %q, want %q", test.roles, got, test.want)
		}
	}
}

func TestRolesUnmarshalShapes(t *testing.T) {
	var single RolePayload
	if err := json.Unmarshal([]byte(`{"role":"Admin"}`), &single); err != nil {
		t.Fatalf("string role: %v", err)
	}
	var list RolePayload
	if err := json.Unmarshal([]byte(`{"role":["viewer","manager"]}`), &list); err != nil {
		t.Fatalf("list role: %v", err)
	}
	if PrimaryRole(single.Role) != RoleAdmin || PrimaryRole(list.Role) != RoleManager {
		t.Errorf("roles = %v / %v", single.Role, list.Role)
	}
	var bad RolePayload
	if err := json.Unmarshal([]byte(`{"role":7}`), &bad); err == nil {
		t.Error("numeric role accepted")
	}
}

func TestLoadPayloadJSONCAndYAML(t *testing.T) {
	directory := t.TempDir()
	jsoncPath := filepath.Join(directory, "permissions.jsonc")
	jsoncData := `{
		// granted by the org owner
		"role": ["member"],
		"permissions": {"canDeleteBugs": true,},
	}`
	if err := os.WriteFile(jsoncPath, []byte(jsoncData), 0o600); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(directory, "permissions.yaml")
	if err := os.WriteFile(yamlPath, []byte("role: manager\npermissions:\n  can_manage_sprints: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	fromJSONC, err := LoadPayload(jsoncPath)
	if err != nil {
		t.Fatalf("LoadPayload(jsonc): %v", err)
	}
	if capabilities := Resolve(alice, fromJSONC); !capabilities.Delete || !capabilities.Create {
		t.Errorf("jsonc capabilities = %+v", capabilities)
	}

	fromYAML, err := LoadPayload(yamlPath)
	if err != nil {
		t.Fatalf("LoadPayload(yaml): %v", err)
	}
	if capabilities := Resolve(alice, fromYAML); capabilities.ManageReference || !capabilities.Delete {
		t.Errorf("yaml capabilities = %+v", capabilities)
	}
}

func TestCanSubscribe(t *testing.T) {
	validator := NewValidator(ValidatorOptions{})
	granted := Resolve(alice, &RolePayload{Role: Roles{RoleMember}})

	tests := []struct {
		name         string
		identity     *Identity
		context      workspace.Context
		capabilities Capabilities
		reason       Reason
	}{
		{"ready", alice, configured, granted, ReasonNone},
		{"no identity", nil, configured, granted, ReasonNoIdentity},
		{"no context", alice, workspace.Context{}, granted, ReasonNotConfigured},
		{"no read", alice, configured, Capabilities{Update: true}, ReasonMissingCapability},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := validator.CanSubscribe(test.identity, test.context, test.capabilities)
			if result.Reason != test.reason {
				t.Errorf("Reason = %s, want %s", result.Reason, test.reason)
			}
			if result.Allowed() != (test.reason == ReasonNone) {
				t.Errorf("Allowed = %v", result.Allowed())
			}
		})
	}
}

func TestCanMutate(t *testing.T) {
	provisional := Resolve(alice, nil)

	lenient := NewValidator(ValidatorOptions{})
	if !lenient.CanMutate(alice, configured, provisional, CapUpdate).Allowed() {
		t.Error("provisional update denied in lenient mode")
	}
	denied := lenient.CanMutate(alice, configured, provisional, CapDelete)
	if denied.Reason != ReasonMissingCapability || denied.Capability != CapDelete {
		t.Errorf("provisional delete = %+v", denied)
	}
	if !bugerr.Is(denied.Err("delete"), bugerr.AccessDenied) {
		t.Errorf("Err() kind = %s", bugerr.KindOf(denied.Err("delete")))
	}

	strict := NewValidator(ValidatorOptions{RequireLoadedPermissions: true})
	if result := strict.CanMutate(alice, configured, provisional, CapUpdate); result.Reason != ReasonProvisional {
		t.Errorf("strict provisional update = %+v", result)
	}
	if !strict.CanSubscribe(alice, configured, provisional).Allowed() {
		t.Error("strict mode should still allow subscription")
	}

	unconfigured := lenient.CanMutate(alice, workspace.Context{}, provisional, CapUpdate)
	if !bugerr.Is(unconfigured.Err("update"), bugerr.NotConfigured) {
		t.Errorf("unconfigured Err() kind = %s", bugerr.KindOf(unconfigured.Err("update")))
	}
}

func TestDenialLoggedOncePerSession(t *testing.T) {
	var buffer bytes.Buffer
	validator := NewValidator(ValidatorOptions{Logger: slog.New(slog.NewJSONHandler(&buffer, nil))})

	for range 5 {
		validator.CanSubscribe(nil, configured, Capabilities{})
	}
	if count := strings.Count(buffer.String(), "access denied"); count != 1 {
		t.Fatalf("logged %d denials before Reset, want 1", count)
	}

	validator.Reset()
	validator.CanSubscribe(nil, configured, Capabilities{})
	if count := strings.Count(buffer.String(), "access denied"); count != 2 {
		t.Errorf("logged %d denials after Reset, want 2", count)
	}
}
