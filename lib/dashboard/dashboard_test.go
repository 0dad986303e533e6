// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dashboard

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/access"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugfilter"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmutate"
	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore/memstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/testutil"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

const (
	bugsPath    = "organizations/acme/workspaces/web/bugs"
	membersPath = "organizations/acme/members"
	timeout     = 5 * time.Second
)

var (
	epoch    = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	acme     = workspace.Context{Kind: workspace.KindOrganization, Organization: "acme", Workspace: "web"}
	other    = workspace.Context{Kind: workspace.KindOrganization, Organization: "acme", Workspace: "mobile"}
	identity = &access.Identity{UserID: "u1", Email: "ada@example.com"}
	owner    = &access.RolePayload{Role: access.Roles{access.RoleOwner}}
)

func newDashboard(t *testing.T) (*Dashboard, *memstore.Store) {
	t.Helper()
	fake := clock.Fake(epoch)
	store := memstore.New(memstore.Options{Clock: fake})
	store.Seed(bugsPath, "bug-aaa111", map[string]any{
		bug.FieldTitle:     "Login fails on Safari",
		bug.FieldStatus:    "Open",
		bug.FieldSeverity:  "High",
		bug.FieldCreatedAt: docstore.ServerTimestamp,
		bug.FieldUpdatedAt: docstore.ServerTimestamp,
	})
	store.Seed(bugsPath, "bug-bbb222", map[string]any{
		bug.FieldTitle:     "Typo on pricing page",
		bug.FieldStatus:    "Closed",
		bug.FieldSeverity:  "Low",
		bug.FieldCreatedAt: docstore.ServerTimestamp,
		bug.FieldUpdatedAt: docstore.ServerTimestamp,
	})
	store.Seed(membersPath, "u1", map[string]any{bug.FieldDisplayName: "Ada", bug.FieldRole: "owner"})

	d := New(Options{Store: store, Clock: fake})
	t.Cleanup(d.Close)
	return d, store
}

func waitReady(t *testing.T, d *Dashboard) State {
	t.Helper()
	var state State
	testutil.Eventually(t, timeout, func() bool {
		state = d.State()
		return !state.Loading && state.Access == AccessReady && len(state.RawBugs) > 0
	}, "dashboard ready")
	return state
}

func TestSetupRequiredWithoutWorkspace(t *testing.T) {
	d, store := newDashboard(t)
	d.SetIdentity(identity, owner)

	state := d.State()
	if state.Access != AccessSetupRequired {
		t.Fatalf("access = %v, want setup-required", state.Access)
	}
	if !bugerr.Is(state.LastError, bugerr.NotConfigured) {
		t.Fatalf("last error = %v, want not-configured", state.LastError)
	}
	if store.Subscribers(bugsPath) != 0 {
		t.Fatal("subscribed without a workspace")
	}
}

func TestReadyStateDerivesViews(t *testing.T) {
	d, _ := newDashboard(t)
	d.SetIdentity(identity, owner)
	d.SetContext(acme)

	state := waitReady(t, d)
	if len(state.RawBugs) != 2 || len(state.Filtered) != 2 {
		t.Fatalf("raw/filtered = %d/%d", len(state.RawBugs), len(state.Filtered))
	}
	if state.Metrics.Total != 2 || state.Metrics.Open != 1 {
		t.Fatalf("metrics = %+v", state.Metrics)
	}
	if state.Capabilities.Source != access.SourceGranted {
		t.Fatalf("capability source = %v", state.Capabilities.Source)
	}

	d.SetFilterSpec(bugfilter.Spec{Status: "Open"})
	state = d.State()
	if len(state.Filtered) != 1 || state.Filtered[0].ID != "bug-aaa111" {
		t.Fatalf("filtered = %+v", state.Filtered)
	}
	if len(state.RawBugs) != 2 {
		t.Fatal("filter changed the raw collection")
	}
	if state.Metrics.Total != 2 {
		t.Fatal("metrics should cover the raw collection")
	}
}

func TestNoReadAccessKeepsSubscriptionsClosed(t *testing.T) {
	d, store := newDashboard(t)
	denied := false
	d.SetIdentity(identity, &access.RolePayload{
		Role:        access.Roles{access.RoleMember},
		Permissions: access.Permissions{CanReadBugs: &denied},
	})
	d.SetContext(acme)

	state := d.State()
	if state.Access != AccessRestricted {
		t.Fatalf("access = %v, want restricted", state.Access)
	}
	if !bugerr.Is(state.LastError, bugerr.AccessDenied) {
		t.Fatalf("last error = %v", state.LastError)
	}
	if store.Subscribers(bugsPath) != 0 {
		t.Fatal("subscribed without read access")
	}
}

// syncBuffer is a bytes.Buffer safe for the engine's goroutines.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func TestRevocationAfterSignInLogsDenialAgain(t *testing.T) {
	fake := clock.Fake(epoch)
	store := memstore.New(memstore.Options{Clock: fake})
	store.Seed(bugsPath, "bug-aaa111", map[string]any{
		bug.FieldTitle:     "Login fails on Safari",
		bug.FieldStatus:    "Open",
		bug.FieldCreatedAt: docstore.ServerTimestamp,
		bug.FieldUpdatedAt: docstore.ServerTimestamp,
	})
	var logs syncBuffer
	d := New(Options{Store: store, Clock: fake, Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	t.Cleanup(d.Close)
	denials := func() int { return strings.Count(logs.String(), `"msg":"access denied"`) }

	// Workspace chosen before anyone signs in.
	d.SetContext(acme)
	if got := denials(); got != 1 {
		t.Fatalf("denials before sign-in = %d, want 1", got)
	}

	d.SetIdentity(identity, owner)
	waitReady(t, d)

	revoked := false
	d.SetIdentity(identity, &access.RolePayload{
		Role:        access.Roles{access.RoleMember},
		Permissions: access.Permissions{CanReadBugs: &revoked},
	})
	if got := denials(); got != 2 {
		t.Fatalf("denials after revocation = %d, want 2", got)
	}
	if state := d.State(); state.Access != AccessRestricted {
		t.Fatalf("access after revocation = %v, want restricted", state.Access)
	}
	testutil.Eventually(t, timeout, func() bool { return store.Subscribers(bugsPath) == 0 }, "subscriptions released")
}

func TestSignOutStopsSubscriptions(t *testing.T) {
	d, store := newDashboard(t)
	d.SetIdentity(identity, owner)
	d.SetContext(acme)
	waitReady(t, d)

	d.SetIdentity(nil, nil)
	testutil.Eventually(t, timeout, func() bool { return store.Subscribers(bugsPath) == 0 }, "subscriptions released")
	state := d.State()
	if state.Access != AccessRestricted || len(state.RawBugs) != 0 {
		t.Fatalf("after sign-out access = %v, bugs = %d", state.Access, len(state.RawBugs))
	}
}

func TestStoreDenialClearsOnlyAffectedFeed(t *testing.T) {
	d, store := newDashboard(t)
	d.SetIdentity(identity, owner)
	d.SetContext(acme)
	waitReady(t, d)

	store.Deny(bugsPath)
	var state State
	testutil.Eventually(t, timeout, func() bool {
		state = d.State()
		return state.Access == AccessRestricted
	}, "denial observed")
	if len(state.RawBugs) != 0 {
		t.Fatalf("bugs kept after denial: %d", len(state.RawBugs))
	}
	if len(state.Members) != 1 {
		t.Fatalf("members cleared by a bugs denial: %+v", state.Members)
	}
	if !bugerr.Is(state.LastError, bugerr.AccessDenied) {
		t.Fatalf("last error = %v", state.LastError)
	}

	store.Allow(bugsPath)
	if err := d.ManualRefetch(); err != nil {
		t.Fatalf("ManualRefetch: %v", err)
	}
	state = waitReady(t, d)
	if state.LastError != nil {
		t.Fatalf("last error after refetch = %v", state.LastError)
	}
}

func TestMutationPostsNoticeAndUpdatesView(t *testing.T) {
	d, _ := newDashboard(t)
	d.SetIdentity(identity, owner)
	d.SetContext(acme)
	waitReady(t, d)

	outcome := d.MutateStatus(context.Background(), "bug-aaa111", bug.StatusResolved)
	if !outcome.OK() {
		t.Fatalf("MutateStatus: %v", outcome.Err)
	}
	notice := testutil.RequireReceive(t, d.Notices(), timeout, "mutation notice")
	if notice.Err != nil || notice.BugID != "bug-aaa111" {
		t.Fatalf("notice = %+v", notice)
	}

	d.SetFilterSpec(bugfilter.Spec{Status: "Resolved"})
	state := d.State()
	if len(state.Filtered) != 1 || state.Filtered[0].ID != "bug-aaa111" {
		t.Fatalf("resolved view = %+v", state.Filtered)
	}
	if len(state.InFlight) != 0 {
		t.Fatalf("in flight = %v", state.InFlight)
	}
}

func TestMutationDeniedForViewer(t *testing.T) {
	d, store := newDashboard(t)
	d.SetIdentity(identity, &access.RolePayload{Role: access.Roles{access.RoleViewer}})
	d.SetContext(acme)
	waitReady(t, d)

	outcome := d.MutateTitle(context.Background(), "bug-aaa111", "Renamed")
	if outcome.Kind() != bugerr.AccessDenied {
		t.Fatalf("kind = %q, want access-denied", outcome.Kind())
	}
	notice := testutil.RequireReceive(t, d.Notices(), timeout, "denial notice")
	if !notice.AccessDenied() {
		t.Fatalf("notice = %+v", notice)
	}
	if store.Writes("bug-aaa111") != 0 {
		t.Fatal("denied mutation reached the store")
	}
}

func TestBulkActionThroughDashboard(t *testing.T) {
	d, store := newDashboard(t)
	d.SetIdentity(identity, owner)
	d.SetContext(acme)
	waitReady(t, d)

	result := d.BulkAction(context.Background(), []string{"bug-aaa111", "bug-bbb222"}, bugmutate.BulkReopen)
	if result.Succeeded != 2 {
		t.Fatalf("result = %+v", result)
	}
	for _, id := range []string{"bug-aaa111", "bug-bbb222"} {
		fields, _ := store.Document(bugsPath, id)
		if fields[bug.FieldStatus] != "Reopened" {
			t.Errorf("%s status = %v", id, fields[bug.FieldStatus])
		}
	}
}

func TestContextSwitchMovesSubscriptions(t *testing.T) {
	d, store := newDashboard(t)
	d.SetIdentity(identity, owner)
	d.SetContext(acme)
	waitReady(t, d)

	d.SetContext(other)
	testutil.Eventually(t, timeout, func() bool {
		return store.Subscribers(bugsPath) == 0 &&
			store.Subscribers("organizations/acme/workspaces/mobile/bugs") == 1
	}, "subscriptions moved to the new workspace")

	state := d.State()
	if state.Context != other || len(state.RawBugs) != 0 {
		t.Fatalf("context = %v, bugs = %d", state.Context, len(state.RawBugs))
	}
}

func TestWatchSignalsAndCloseEndsChannels(t *testing.T) {
	d, _ := newDashboard(t)
	updates, cancel := d.Watch()
	defer cancel()

	d.SetFilterSpec(bugfilter.Spec{Severity: "High"})
	testutil.RequireReceive(t, updates, timeout, "signal after filter change")

	d.Close()
	d.Close()
	testutil.Eventually(t, timeout, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, "watch channel closed")
	if _, ok := <-d.Notices(); ok {
		t.Fatal("notices channel open after Close")
	}
}
