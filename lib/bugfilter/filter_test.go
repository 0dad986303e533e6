// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugfilter

import (
	"fmt"
	"testing"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// Wednesday.
var now = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

func ids(bugs []bug.Bug) string {
	var out []string
	for _, b := range bugs {
		out = append(out, b.ID)
	}
	return fmt.Sprint(out)
}

func sample() []bug.Bug {
	return []bug.Bug{
		{ID: "bug-aaa111", Title: "Login button unresponsive", Status: bug.StatusOpen, Severity: bug.SeverityHigh,
			Assignee: "alice", Reporter: "carol", Environment: bug.EnvironmentProduction, Sprint: "s1",
			Tags: []string{"ui", "regression"}, DueDate: now.AddDate(0, 0, -2)},
		{ID: "bug-bbb222", Title: "Slow dashboard", Description: "Charts take 10s to RENDER", Status: bug.StatusClosed,
			Severity: bug.SeverityLow, Reporter: "dave", Tags: []string{"perf"}, DueDate: now.Add(2 * time.Hour)},
		{ID: "bug-ccc333", Title: "Crash on export", Status: bug.StatusInProgress, Severity: bug.SeverityCritical,
			Assignee: "bob", Environment: bug.EnvironmentStaging, DueDate: now.AddDate(0, 0, 6)},
		{ID: "bug-ddd444", Title: "Typo in footer", Status: bug.StatusOpen, Severity: bug.SeverityLow},
	}
}

func TestAllSentinelReturnsInputUnchanged(t *testing.T) {
	bugs := sample()
	specs := []Spec{
		{},
		{Status: All, Severity: All, Assignee: All, Reporter: All, Environment: All, Sprint: All, DueDate: DateAll},
		{Search: "   "},
	}
	for _, spec := range specs {
		result := Apply(bugs, spec, now)
		if len(result) != len(bugs) || &result[0] != &bugs[0] {
			t.Errorf("Apply(%+v) did not return its input", spec)
		}
	}
	if Apply(nil, Spec{}, now) != nil {
		t.Error("Apply(nil, all) should return nil")
	}
}

func TestStatusScenario(t *testing.T) {
	bugs := []bug.Bug{{ID: "1", Status: bug.StatusOpen}, {ID: "2", Status: bug.StatusClosed}}
	if result := Apply(bugs, Spec{Status: "Open"}, now); len(result) != 1 || result[0].ID != "1" {
		t.Errorf("status filter = %s", ids(result))
	}
}

func TestTagIntersection(t *testing.T) {
	bugs := []bug.Bug{{ID: "tagged", Tags: []string{"ui", "regression"}}}
	if result := Apply(bugs, Spec{Tags: []string{"regression", "perf"}}, now); len(result) != 1 {
		t.Error("overlapping tag set should match")
	}
	if result := Apply(bugs, Spec{Tags: []string{"perf", "security"}}, now); len(result) != 0 {
		t.Error("disjoint tag set should not match")
	}
	if result := Apply(bugs, Spec{Tags: []string{}}, now); len(result) != 1 {
		t.Error("empty tag selection should match everything")
	}
}

func TestExactMatchDimensions(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{"severity", Spec{Severity: "Low"}, "[bug-bbb222 bug-ddd444]"},
		{"case sensitive", Spec{Severity: "low"}, "[]"},
		{"assignee", Spec{Assignee: "bob"}, "[bug-ccc333]"},
		{"unassigned", Spec{Assignee: Unassigned}, "[bug-bbb222 bug-ddd444]"},
		{"reporter", Spec{Reporter: "carol"}, "[bug-aaa111]"},
		{"environment missing is non-match", Spec{Environment: "Production"}, "[bug-aaa111]"},
		{"sprint", Spec{Sprint: "s1"}, "[bug-aaa111]"},
		{"conjunction", Spec{Status: "Open", Severity: "Low"}, "[bug-ddd444]"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ids(Apply(sample(), test.spec, now)); got != test.want {
				t.Errorf("Apply = %s, want %s", got, test.want)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"LOGIN", "[bug-aaa111]"},
		{"render", "[bug-bbb222]"},
		{"ccc333", "[bug-ccc333]"},
		// Only the trailing six characters of the ID are searchable.
		{"bug-", "[]"},
		{"  typo ", "[bug-ddd444]"},
	}
	for _, test := range tests {
		if got := ids(Apply(sample(), Spec{Search: test.term}, now)); got != test.want {
			t.Errorf("search %q = %s, want %s", test.term, got, test.want)
		}
	}
}

func TestDateBuckets(t *testing.T) {
	tests := []struct {
		bucket DateBucket
		want   string
	}{
		{DateOverdue, "[bug-aaa111]"},
		{DateDueToday, "[bug-bbb222]"},
		{DateThisWeek, "[bug-aaa111 bug-bbb222]"},
		{DateNoDueDate, "[bug-ddd444]"},
	}
	for _, test := range tests {
		if got := ids(Apply(sample(), Spec{DueDate: test.bucket}, now)); got != test.want {
			t.Errorf("bucket %s = %s, want %s", test.bucket, got, test.want)
		}
	}
}

func TestDateBucketsFollowEvaluationInstant(t *testing.T) {
	bugs := []bug.Bug{{ID: "due", Status: bug.StatusOpen, DueDate: now.Add(2 * time.Hour)}}
	if len(Apply(bugs, Spec{DueDate: DateOverdue}, now)) != 0 {
		t.Fatal("bug due later today reported overdue")
	}
	tomorrow := now.AddDate(0, 0, 1)
	if len(Apply(bugs, Spec{DueDate: DateOverdue}, tomorrow)) != 1 {
		t.Error("bug not overdue the next day")
	}
}

func TestFromMap(t *testing.T) {
	spec, err := FromMap(map[string]string{
		DimensionStatus:  "Open",
		DimensionTags:    "ui, perf,",
		DimensionDueDate: string(DateOverdue),
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if spec.Status != "Open" || len(spec.Tags) != 2 || spec.DueDate != DateOverdue {
		t.Errorf("spec = %+v", spec)
	}
	if _, err := FromMap(map[string]string{"colour": "red"}); err == nil {
		t.Error("unknown dimension accepted")
	}
	if _, err := FromMap(map[string]string{DimensionDueDate: "someday"}); err == nil {
		t.Error("unknown bucket accepted")
	}
}

func TestEngineShortIDLength(t *testing.T) {
	engine := Engine{ShortIDLength: 3}
	if got := ids(engine.Apply(sample(), Spec{Search: "333"}, now)); got != "[bug-ccc333]" {
		t.Errorf("short search = %s", got)
	}
	if got := ids(engine.Apply(sample(), Spec{Search: "c333"}, now)); got != "[]" {
		t.Errorf("search beyond short ID = %s", got)
	}
}
