// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"fmt"
	"testing"
	"time"
)

var commitTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestApplyPatchResolvesSentinels(t *testing.T) {
	existing := map[string]any{
		"title":       "Login button unresponsive",
		"activityLog": []any{map[string]any{"action": "created"}},
		"sprintId":    "sprint-1",
	}
	patch := map[string]any{
		"status":      "Closed",
		"updatedAt":   ServerTimestamp,
		"activityLog": Append(map[string]any{"action": "status"}),
		"sprintId":    nil,
	}

	result := ApplyPatch(existing, patch, commitTime)

	if result["status"] != "Closed" {
		t.Errorf("status = %v, want Closed", result["status"])
	}
	if got, ok := result["updatedAt"].(time.Time); !ok || !got.Equal(commitTime) {
		t.Errorf("updatedAt = %v, want %v", result["updatedAt"], commitTime)
	}
	if log := AsSlice(result["activityLog"]); len(log) != 2 {
		t.Errorf("activityLog has %d entries, want 2", len(log))
	}
	if _, present := result["sprintId"]; present {
		t.Error("nil patch value should remove sprintId")
	}

	if len(AsSlice(existing["activityLog"])) != 1 {
		t.Error("ApplyPatch modified its input")
	}
	if _, present := existing["status"]; present {
		t.Error("ApplyPatch added a key to its input")
	}
}

func TestApplyPatchServerTimestampIfUnset(t *testing.T) {
	earlier := commitTime.Add(-time.Hour)
	patch := map[string]any{"resolvedAt": ServerTimestampIfUnset}

	kept := ApplyPatch(map[string]any{"resolvedAt": earlier}, patch, commitTime)
	if got, ok := kept["resolvedAt"].(time.Time); !ok || !got.Equal(earlier) {
		t.Errorf("set field: resolvedAt = %v, want %v", kept["resolvedAt"], earlier)
	}

	for name, existing := range map[string]map[string]any{
		"absent": {"title": "x"},
		"null":   {"resolvedAt": nil},
	} {
		stamped := ApplyPatch(existing, patch, commitTime)
		if got, ok := stamped["resolvedAt"].(time.Time); !ok || !got.Equal(commitTime) {
			t.Errorf("%s field: resolvedAt = %v, want %v", name, stamped["resolvedAt"], commitTime)
		}
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"time", want, true},
		{"time in other zone", want.In(time.FixedZone("UTC+5", 5*3600)), true},
		{"rfc3339", "2026-03-02T09:00:00Z", true},
		{"rfc3339 offset", "2026-03-02T14:00:00+05:00", true},
		{"unix seconds int64", want.Unix(), true},
		{"unix seconds float", float64(want.Unix()), true},
		{"unix millis", want.UnixMilli(), true},
		{"seconds map", map[string]any{"seconds": want.Unix(), "nanoseconds": 0}, true},
		{"underscore map", map[string]any{"_seconds": float64(want.Unix())}, true},
		{"empty string", "", false},
		{"garbage", "next tuesday", false},
		{"zero", 0, false},
		{"nil", nil, false},
		{"zero time", time.Time{}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := ParseTime(test.value)
			if ok != test.ok {
				t.Fatalf("ParseTime(%v) ok = %v, want %v", test.value, ok, test.ok)
			}
			if ok && !got.Equal(want) {
				t.Errorf("ParseTime(%v) = %v, want %v", test.value, got, want)
			}
			if ok && got.Location() != time.UTC {
				t.Errorf("ParseTime(%v) location = %v, want UTC", test.value, got.Location())
			}
		})
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2026-03-02")
	if !ok {
		t.Fatal("date-only string rejected")
	}
	if want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSortDocuments(t *testing.T) {
	documents := []Document{
		{ID: "b", Fields: map[string]any{"createdAt": commitTime}},
		{ID: "missing", Fields: map[string]any{}},
		{ID: "a", Fields: map[string]any{"createdAt": commitTime.Add(time.Hour).Format(time.RFC3339Nano)}},
		{ID: "c", Fields: map[string]any{"createdAt": commitTime}},
	}

	SortDocuments(documents, Order{Field: "createdAt", Descending: true})

	var ids []string
	for _, document := range documents {
		ids = append(ids, document.ID)
	}
	if got, want := fmt.Sprint(ids), "[a b c missing]"; got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("writing bug: %w", Errorf(CodePermissionDenied, "rule rejected write"))
	if !IsCode(wrapped, CodePermissionDenied) {
		t.Errorf("CodeOf(wrapped) = %q, want %q", CodeOf(wrapped), CodePermissionDenied)
	}
	if got := CodeOf(fmt.Errorf("call: %w", context.DeadlineExceeded)); got != CodeDeadlineExceeded {
		t.Errorf("CodeOf(deadline) = %q", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if IsCode(nil, "") {
		t.Error("IsCode(nil) should be false")
	}
}
