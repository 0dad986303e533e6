// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/cli"
	"github.com/kweid-platfrom/frontend-sub008/lib/codec"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore/sqlitestore"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

var testWorkspace = workspace.Context{
	Kind:         workspace.KindOrganization,
	Organization: "acme",
	Workspace:    "web",
}

// fixture is a SQLite-backed workspace on disk plus a config file
// pointing at it.
type fixture struct {
	t          *testing.T
	dir        string
	dbPath     string
	configPath string
}

type fixtureOptions struct {
	// role, when set, writes a permissions file granting it.
	role string
	// omitWorkspace leaves the workspace section out of the config.
	omitWorkspace bool
}

func newFixture(t *testing.T, options fixtureOptions) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{t: t, dir: dir, dbPath: filepath.Join(dir, "data", "bugdash.db")}

	var config strings.Builder
	config.WriteString("environment: development\n")
	config.WriteString("store:\n  backend: sqlite\n  sqlite:\n")
	config.WriteString("    path: " + f.dbPath + "\n    pool_size: 4\n    poll_interval: 0s\n")
	config.WriteString("engine:\n  bulk_concurrency: 2\n  short_id_length: 6\n")
	if !options.omitWorkspace {
		config.WriteString("workspace:\n  kind: organization\n  organization: acme\n  workspace: web\n")
	}
	config.WriteString("identity:\n  user_id: dana\n  email: dana@example.com\n  display_name: Dana\n")
	if options.role != "" {
		permissionsPath := filepath.Join(dir, "permissions.jsonc")
		payload := "{\n  // granted by the organization\n  \"role\": \"" + options.role + "\",\n}\n"
		if err := os.WriteFile(permissionsPath, []byte(payload), 0644); err != nil {
			t.Fatalf("writing permissions: %v", err)
		}
		config.WriteString("  permissions_file: " + permissionsPath + "\n")
	}

	f.configPath = filepath.Join(dir, "bugdash.yaml")
	if err := os.WriteFile(f.configPath, []byte(config.String()), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.dbPath), 0755); err != nil {
		t.Fatalf("creating data dir: %v", err)
	}
	return f
}

// withStore opens a second handle on the fixture database.
func (f *fixture) withStore(fn func(store *sqlitestore.Store)) {
	f.t.Helper()
	store, err := sqlitestore.Open(sqlitestore.Options{Path: f.dbPath, PoolSize: 2})
	if err != nil {
		f.t.Fatalf("opening store: %v", err)
	}
	defer store.Close()
	fn(store)
}

func (f *fixture) seedBug(id string, fields map[string]any) {
	f.t.Helper()
	f.withStore(func(store *sqlitestore.Store) {
		if err := store.Seed(context.Background(), testWorkspace.Path(bug.CollectionBugs), id, fields); err != nil {
			f.t.Fatalf("seeding bug %s: %v", id, err)
		}
	})
}

func (f *fixture) seedMember(id, name, email string) {
	f.t.Helper()
	f.withStore(func(store *sqlitestore.Store) {
		fields := map[string]any{bug.FieldDisplayName: name, bug.FieldEmail: email}
		if err := store.Seed(context.Background(), testWorkspace.Path(bug.CollectionMembers), id, fields); err != nil {
			f.t.Fatalf("seeding member %s: %v", id, err)
		}
	})
}

func (f *fixture) bugFields(id string) map[string]any {
	f.t.Helper()
	var fields map[string]any
	f.withStore(func(store *sqlitestore.Store) {
		var ok bool
		var err error
		fields, ok, err = store.Document(context.Background(), testWorkspace.Path(bug.CollectionBugs), id)
		if err != nil {
			f.t.Fatalf("reading bug %s: %v", id, err)
		}
		if !ok {
			fields = nil
		}
	})
	return fields
}

// run executes the command tree with --config and a short load
// timeout appended to the subcommand flags.
func (f *fixture) run(args ...string) (string, error) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var stdout bytes.Buffer
	root := Root(ctx, &stdout)
	root.HelpOutput = &bytes.Buffer{}
	full := append([]string{}, args[0])
	full = append(full, "--config", f.configPath, "--load-timeout", "10s")
	full = append(full, args[1:]...)
	err := root.Execute(full)
	return stdout.String(), err
}

func (f *fixture) seedStandard() {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.seedMember("dana", "Dana", "dana@example.com")
	f.seedMember("lee", "Lee", "lee@example.com")
	f.seedBug("bug-000001", map[string]any{
		bug.FieldTitle:     "Login button misaligned",
		bug.FieldStatus:    "Open",
		bug.FieldSeverity:  "Low",
		bug.FieldAssignee:  "lee",
		bug.FieldCreatedAt: created,
	})
	f.seedBug("bug-000002", map[string]any{
		bug.FieldTitle:     "Checkout crashes on submit",
		bug.FieldStatus:    "Open",
		bug.FieldSeverity:  "Critical",
		bug.FieldAssignee:  "dana",
		bug.FieldCreatedAt: created.Add(time.Hour),
	})
	f.seedBug("bug-000003", map[string]any{
		bug.FieldTitle:      "Typo on settings page",
		bug.FieldStatus:     "Resolved",
		bug.FieldSeverity:   "Low",
		bug.FieldCreatedAt:  created.Add(2 * time.Hour),
		bug.FieldResolvedAt: created.Add(26 * time.Hour),
	})
}

func TestListJSONAppliesFilters(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.seedStandard()

	output, err := f.run("list", "-o", "json", "--status", "open", "--assignee", "me")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var bugs []bug.Bug
	if err := json.Unmarshal([]byte(output), &bugs); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, output)
	}
	if len(bugs) != 1 || bugs[0].ID != "bug-000002" {
		t.Fatalf("list = %+v, want only bug-000002", bugs)
	}
	if bugs[0].Priority != bug.PriorityUrgent {
		t.Errorf("priority = %q, want derived %q", bugs[0].Priority, bug.PriorityUrgent)
	}
}

func TestListTableNewestFirst(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.seedStandard()

	output, err := f.run("list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header, 3 rows and a footer:\n%s", len(lines), output)
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	for i, id := range []string{"000003", "000002", "000001"} {
		if !strings.HasPrefix(lines[i+1], id) {
			t.Errorf("row %d = %q, want short ID %s first", i, lines[i+1], id)
		}
	}
	if !strings.Contains(lines[2], "Dana") {
		t.Errorf("row for bug-000002 = %q, want the assignee's display name", lines[2])
	}
	if lines[4] != "3 of 3 bugs" {
		t.Errorf("footer = %q", lines[4])
	}
	if strings.Contains(output, "\x1b[") {
		t.Error("non-terminal output contains escape sequences")
	}
}

func TestStatusMutationPersists(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	output, err := f.run("status", "000001", "resolved")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, output)
	}
	if !strings.HasPrefix(output, "ok update status 000001") {
		t.Errorf("output = %q", output)
	}

	fields := f.bugFields("bug-000001")
	if fields[bug.FieldStatus] != "Resolved" {
		t.Errorf("stored status = %v, want Resolved", fields[bug.FieldStatus])
	}
	if _, ok := docstore.ParseTime(fields[bug.FieldResolvedAt]); !ok {
		t.Errorf("resolvedAt = %v, want a timestamp", fields[bug.FieldResolvedAt])
	}
}

func TestSeverityMutationDerivesPriority(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	if _, err := f.run("severity", "bug-000001", "high"); err != nil {
		t.Fatalf("severity: %v", err)
	}
	fields := f.bugFields("bug-000001")
	if fields[bug.FieldSeverity] != "High" || fields[bug.FieldPriority] != "High" {
		t.Errorf("stored severity/priority = %v/%v, want High/High", fields[bug.FieldSeverity], fields[bug.FieldPriority])
	}
}

func TestAssignByEmailAndUnassign(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	if _, err := f.run("assign", "000001", "DANA@example.com"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := f.bugFields("bug-000001")[bug.FieldAssignee]; got != "dana" {
		t.Errorf("assignee = %v, want dana", got)
	}

	if _, err := f.run("assign", "000001"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if got := f.bugFields("bug-000001")[bug.FieldAssignee]; got != nil && got != "" {
		t.Errorf("assignee after unassign = %v, want empty", got)
	}
}

func TestUnknownBugReference(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	_, err := f.run("status", "zzz", "open")
	if err == nil || !strings.Contains(err.Error(), `no bug matches "zzz"`) {
		t.Fatalf("err = %v, want a no-match error", err)
	}
}

func TestCreateReportsNewID(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	output, err := f.run("create", "-o", "json",
		"--title", "Search returns stale results",
		"--severity", "critical",
		"--environment", "production",
		"--step", "Search for shoes", "--step", "Edit a product",
		"--tags", "search, cache")
	if err != nil {
		t.Fatalf("create: %v\n%s", err, output)
	}
	var line outcomeLine
	if err := json.Unmarshal([]byte(output), &line); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, output)
	}
	if line.Op != "create" || line.BugID == "" || line.Error != "" {
		t.Fatalf("outcome = %+v", line)
	}

	fields := f.bugFields(line.BugID)
	if fields == nil {
		t.Fatalf("created bug %s not stored", line.BugID)
	}
	created := bug.DecodeBug(line.BugID, fields)
	if created.Reporter != "dana" || created.Status != bug.StatusNew || created.Priority != bug.PriorityUrgent {
		t.Errorf("created = reporter %q status %q priority %q", created.Reporter, created.Status, created.Priority)
	}
	if created.StepsToReproduce != "Search for shoes\nEdit a product" {
		t.Errorf("steps = %q", created.StepsToReproduce)
	}
	if len(created.Tags) != 2 || created.Tags[0] != "search" || created.Tags[1] != "cache" {
		t.Errorf("tags = %v", created.Tags)
	}
}

func TestProvisionalIdentityCannotCreate(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.seedStandard()

	output, err := f.run("create", "--title", "Anything")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 1 {
		t.Fatalf("err = %v, want exit code 1", err)
	}
	if !strings.HasPrefix(output, "access-denied create") {
		t.Errorf("output = %q, want an access-denied line", output)
	}
}

func TestBulkFailuresExitTwo(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	output, err := f.run("bulk", "delete", "000001", "000002")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 2 {
		t.Fatalf("err = %v, want exit code 2", err)
	}
	if !strings.Contains(output, "delete: 0 succeeded, 2 failed") {
		t.Errorf("output missing summary:\n%s", output)
	}
	if f.bugFields("bug-000001") == nil {
		t.Error("bug-000001 deleted without the delete capability")
	}
}

func TestBulkCloseSucceeds(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})
	f.seedStandard()

	output, err := f.run("bulk", "close", "000001", "000002", "000001")
	if err != nil {
		t.Fatalf("bulk: %v\n%s", err, output)
	}
	if !strings.Contains(output, "close: 2 succeeded, 0 failed, 1 skipped") {
		t.Errorf("output missing summary:\n%s", output)
	}
	for _, id := range []string{"bug-000001", "bug-000002"} {
		if got := f.bugFields(id)[bug.FieldStatus]; got != "Closed" {
			t.Errorf("%s status = %v, want Closed", id, got)
		}
	}
}

func TestBulkRejectsUnknownAction(t *testing.T) {
	f := newFixture(t, fixtureOptions{role: "member"})

	_, err := f.run("bulk", "archive", "000001")
	if err == nil || !strings.Contains(err.Error(), `unknown bulk action "archive"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestMetricsJSON(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.seedStandard()

	output, err := f.run("metrics", "-o", "json")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	var metrics struct {
		Total             int
		Open              int
		Resolved          int
		ResolutionSamples int
	}
	if err := json.Unmarshal([]byte(output), &metrics); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, output)
	}
	if metrics.Total != 3 || metrics.Open != 2 || metrics.Resolved != 1 || metrics.ResolutionSamples != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestExportWritesCBORSnapshot(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.seedStandard()

	exportPath := filepath.Join(f.dir, "snapshot.cbor")
	if _, err := f.run("export", "--file", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	var snapshot struct {
		Bugs    []bug.Bug        `cbor:"bugs"`
		Members []bug.TeamMember `cbor:"members"`
	}
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if len(snapshot.Bugs) != 3 || len(snapshot.Members) != 2 {
		t.Errorf("export has %d bugs and %d members, want 3 and 2", len(snapshot.Bugs), len(snapshot.Members))
	}
	if snapshot.Bugs[0].ID != "bug-000003" {
		t.Errorf("first exported bug = %s, want the newest", snapshot.Bugs[0].ID)
	}
}

func TestWorkspaceSetupRequired(t *testing.T) {
	f := newFixture(t, fixtureOptions{omitWorkspace: true})

	_, err := f.run("list")
	if err == nil || !strings.Contains(err.Error(), "workspace setup required") {
		t.Fatalf("err = %v, want a setup-required error", err)
	}
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	_, err := f.run("list", "-o", "yaml")
	if err == nil || !strings.Contains(err.Error(), "--output must be one of") {
		t.Fatalf("err = %v", err)
	}
}

func TestVersionFlag(t *testing.T) {
	var stdout bytes.Buffer
	if err := Root(context.Background(), &stdout).Execute([]string{"--version"}); err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "bugdash ") {
		t.Errorf("output = %q", stdout.String())
	}
}
