// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// resolveBug finds the bug a user typed: a full ID, or a suffix of one
// (the short form the table shows). A suffix must match exactly one
// bug.
func resolveBug(bugs []bug.Bug, reference string) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("empty bug reference")
	}
	var matches []string
	for _, b := range bugs {
		if b.ID == reference {
			return b.ID, nil
		}
		if strings.HasSuffix(b.ID, reference) {
			matches = append(matches, b.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no bug matches %q", reference)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous: matches %s", reference, strings.Join(matches, ", "))
	}
}

// resolveBugs resolves every reference, failing on the first miss.
func resolveBugs(bugs []bug.Bug, references []string) ([]string, error) {
	ids := make([]string, 0, len(references))
	for _, reference := range references {
		id, err := resolveBug(bugs, reference)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveMember matches a member by ID, email or display name, ignoring
// case for the latter two.
func resolveMember(members []bug.TeamMember, reference string) (string, error) {
	var matches []string
	for _, member := range members {
		if member.ID == reference {
			return member.ID, nil
		}
		if strings.EqualFold(member.Email, reference) || strings.EqualFold(member.DisplayName, reference) {
			matches = append(matches, member.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no team member matches %q", reference)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous: matches members %s", reference, strings.Join(matches, ", "))
	}
}

// resolveSprint matches a sprint by ID or name.
func resolveSprint(sprints []bug.Sprint, reference string) (string, error) {
	for _, sprint := range sprints {
		if sprint.ID == reference || strings.EqualFold(sprint.Name, reference) {
			return sprint.ID, nil
		}
	}
	return "", fmt.Errorf("no sprint matches %q", reference)
}

// parseEnum matches value against allowed ignoring case and treating
// dashes and underscores as spaces, so "in-progress" finds
// "In Progress".
func parseEnum[E ~string](kind string, value string, allowed []E) (E, error) {
	normalized := normalizeEnum(value)
	names := make([]string, len(allowed))
	for i, candidate := range allowed {
		if normalizeEnum(string(candidate)) == normalized {
			return candidate, nil
		}
		names[i] = string(candidate)
	}
	var zero E
	return zero, fmt.Errorf("unknown %s %q (want one of: %s)", kind, value, strings.Join(names, ", "))
}

func normalizeEnum(value string) string {
	value = strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(value))
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func parseStatus(value string) (bug.Status, error) {
	return parseEnum("status", value, bug.Statuses)
}

func parseSeverity(value string) (bug.Severity, error) {
	return parseEnum("severity", value, bug.Severities)
}

func parseEnvironment(value string) (bug.Environment, error) {
	return parseEnum("environment", value, bug.Environments)
}

func parseSprintStatus(value string) (bug.SprintStatus, error) {
	return parseEnum("sprint status", value, []bug.SprintStatus{bug.SprintPlanning, bug.SprintActive, bug.SprintCompleted})
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty
// input yields the zero time.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", value)
	}
	return t.UTC(), nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
