// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmetrics"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmutate"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

func TestBugTableAlignsColumns(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out, 6)
	r.bugTable([]bug.Bug{
		{ID: "abcdef123456", Title: "Short", Status: bug.StatusInProgress, Severity: bug.SeverityCritical, Priority: bug.PriorityUrgent, Assignee: "u1"},
		{ID: "zz9999", Title: strings.Repeat("x", 80), Status: bug.StatusNew, Severity: bug.SeverityLow, Priority: bug.PriorityLow,
			DueDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
	}, []bug.TeamMember{{ID: "u1", DisplayName: "Dana"}})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	titleColumn := strings.Index(lines[0], "TITLE")
	for _, line := range lines[1:] {
		if len(line) < titleColumn {
			t.Fatalf("row shorter than header: %q", line)
		}
	}
	if !strings.HasPrefix(lines[1], "123456  In Progress") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[1], "Dana") || !strings.Contains(lines[2], "2026-04-01") {
		t.Errorf("rows missing assignee or due date:\n%s", out.String())
	}
	if !strings.HasSuffix(lines[2], "…") || strings.Contains(lines[2], strings.Repeat("x", maxTitleWidth)) {
		t.Errorf("long title not truncated: %q", lines[2])
	}
}

func TestBugTableEmpty(t *testing.T) {
	var out bytes.Buffer
	newRenderer(&out, 6).bugTable(nil, nil)
	if out.String() != "no bugs match\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestMetricsRendering(t *testing.T) {
	var out bytes.Buffer
	metrics := bugmetrics.Compute([]bug.Bug{
		{ID: "a", Status: bug.StatusOpen, Severity: bug.SeverityHigh, Source: bug.SourceManual},
		{ID: "b", Status: bug.StatusClosed, Severity: bug.SeverityLow, Source: bug.SourceAPI},
	})
	newRenderer(&out, 6).metrics(metrics)

	output := out.String()
	for _, want := range []string{"total", "resolution rate", "50.0%", "In Progress", "Critical", "SOURCE", "api"} {
		if !strings.Contains(output, want) {
			t.Errorf("metrics output missing %q:\n%s", want, output)
		}
	}
}

func TestOutcomeLines(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out, 6)
	r.outcome(bugmutate.Outcome{Op: bugmutate.OpStatus, BugID: "abcdef123456"})
	r.outcome(bugmutate.Outcome{Op: bugmutate.OpCreate, BugID: "abcdef123456"})
	r.outcome(bugmutate.Outcome{
		Op:    bugmutate.OpTitle,
		BugID: "abcdef123456",
		Err:   bugerr.New(bugerr.Busy, bugmutate.OpTitle, "a write to this bug is already in progress"),
	})
	r.outcome(bugmutate.Outcome{Op: bugmutate.OpDelete, BugID: "x", Err: errors.New("boom")})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	want := []string{
		"ok update status 123456",
		"ok create abcdef123456",
		"busy update title 123456: ",
		"internal delete x: boom",
	}
	for i, prefix := range want {
		if i >= len(lines) || !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}
