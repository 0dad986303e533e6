// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bugfilter derives the filtered bug view from a snapshot.
//
// Every dimension of a Spec is a conjunction term. The empty string and
// All both mean "no constraint", so the zero Spec matches everything.
// Exact-match dimensions compare case-sensitively; search is a
// case-insensitive substring match over the title, the description and
// the short form of the ID; tags match when the bug shares at least one
// tag with the selection. Date buckets are evaluated against the
// instant passed to Apply, never cached.
//
// Apply never reorders. When a Spec constrains nothing it returns its
// input slice unchanged.
package bugfilter

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// All is the sentinel for "no constraint" on any dimension.
const All = "all"

// Unassigned selects bugs with no assignee.
const Unassigned = "unassigned"

// DefaultShortIDLength is how many trailing ID characters search
// matches against.
const DefaultShortIDLength = 6

// DateBucket selects bugs by due date relative to now.
type DateBucket string

const (
	DateAll       DateBucket = All
	DateOverdue   DateBucket = "overdue"
	DateDueToday  DateBucket = "due-today"
	DateThisWeek  DateBucket = "this-week"
	DateNoDueDate DateBucket = "no-due-date"
)

// Dimension names accepted by Set and FromMap.
const (
	DimensionStatus      = "status"
	DimensionSeverity    = "severity"
	DimensionAssignee    = "assignee"
	DimensionReporter    = "reporter"
	DimensionEnvironment = "environment"
	DimensionSprint      = "sprint"
	DimensionTags        = "tags"
	DimensionSearch      = "search"
	DimensionDueDate     = "due"
)

// Spec is a declarative bug selection.
type Spec struct {
	Status      string     `yaml:"status" json:"status,omitempty"`
	Severity    string     `yaml:"severity" json:"severity,omitempty"`
	Assignee    string     `yaml:"assignee" json:"assignee,omitempty"`
	Reporter    string     `yaml:"reporter" json:"reporter,omitempty"`
	Environment string     `yaml:"environment" json:"environment,omitempty"`
	Sprint      string     `yaml:"sprint" json:"sprint,omitempty"`
	Tags        []string   `yaml:"tags" json:"tags,omitempty"`
	Search      string     `yaml:"search" json:"search,omitempty"`
	DueDate     DateBucket `yaml:"due" json:"due,omitempty"`
}

func unconstrained(value string) bool { return value == "" || value == All }

// IsAll reports whether s constrains nothing.
func (s Spec) IsAll() bool {
	return unconstrained(s.Status) &&
		unconstrained(s.Severity) &&
		unconstrained(s.Assignee) &&
		unconstrained(s.Reporter) &&
		unconstrained(s.Environment) &&
		unconstrained(s.Sprint) &&
		len(s.Tags) == 0 &&
		strings.TrimSpace(s.Search) == "" &&
		unconstrained(string(s.DueDate))
}

// Set assigns one dimension. Tags take a comma-separated list.
func (s *Spec) Set(dimension, value string) error {
	switch dimension {
	case DimensionStatus:
		s.Status = value
	case DimensionSeverity:
		s.Severity = value
	case DimensionAssignee:
		s.Assignee = value
	case DimensionReporter:
		s.Reporter = value
	case DimensionEnvironment:
		s.Environment = value
	case DimensionSprint:
		s.Sprint = value
	case DimensionTags:
		s.Tags = nil
		if value == All {
			return nil
		}
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				s.Tags = append(s.Tags, tag)
			}
		}
	case DimensionSearch:
		s.Search = value
	case DimensionDueDate:
		bucket := DateBucket(value)
		switch bucket {
		case "", DateAll, DateOverdue, DateDueToday, DateThisWeek, DateNoDueDate:
			s.DueDate = bucket
		default:
			return fmt.Errorf("unknown due date bucket %q", value)
		}
	default:
		return fmt.Errorf("unknown filter dimension %q", dimension)
	}
	return nil
}

// FromMap builds a Spec from dimension/value pairs. Absent keys mean
// All.
func FromMap(values map[string]string) (Spec, error) {
	var spec Spec
	for _, dimension := range slices.Sorted(maps.Keys(values)) {
		if err := spec.Set(dimension, values[dimension]); err != nil {
			return Spec{}, err
		}
	}
	return spec, nil
}

// Engine applies specs with configurable search and calendar
// settings. The zero Engine uses DefaultShortIDLength, the location of
// now, and Monday week starts.
type Engine struct {
	ShortIDLength int
	Location      *time.Location
}

// Apply filters bugs with the zero Engine.
func Apply(bugs []bug.Bug, spec Spec, now time.Time) []bug.Bug {
	return Engine{}.Apply(bugs, spec, now)
}

// Apply returns the bugs matching spec, in input order. An
// unconstrained spec returns bugs itself.
func (e Engine) Apply(bugs []bug.Bug, spec Spec, now time.Time) []bug.Bug {
	if spec.IsAll() {
		return bugs
	}
	matcher := e.compile(spec, now)
	filtered := make([]bug.Bug, 0, len(bugs))
	for _, b := range bugs {
		if matcher.match(b) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// Match reports whether one bug satisfies spec.
func (e Engine) Match(b bug.Bug, spec Spec, now time.Time) bool {
	return e.compile(spec, now).match(b)
}

type matcher struct {
	spec        Spec
	search      string
	shortLength int
	bucket      func(bug.Bug) bool
}

func (e Engine) compile(spec Spec, now time.Time) matcher {
	shortLength := e.ShortIDLength
	if shortLength <= 0 {
		shortLength = DefaultShortIDLength
	}
	if e.Location != nil {
		now = now.In(e.Location)
	}
	return matcher{
		spec:        spec,
		search:      strings.ToLower(strings.TrimSpace(spec.Search)),
		shortLength: shortLength,
		bucket:      bucketPredicate(spec.DueDate, now),
	}
}

func (m matcher) match(b bug.Bug) bool {
	return exact(m.spec.Status, string(b.Status)) &&
		exact(m.spec.Severity, string(b.Severity)) &&
		m.matchAssignee(b) &&
		exact(m.spec.Reporter, b.Reporter) &&
		exact(m.spec.Environment, string(b.Environment)) &&
		exact(m.spec.Sprint, b.Sprint) &&
		m.matchTags(b) &&
		m.matchSearch(b) &&
		m.bucket(b)
}

// exact treats a missing field as a non-match unless the selection is
// unconstrained.
func exact(selection, value string) bool {
	if unconstrained(selection) {
		return true
	}
	return value != "" && value == selection
}

func (m matcher) matchAssignee(b bug.Bug) bool {
	if m.spec.Assignee == Unassigned {
		return b.Assignee == ""
	}
	return exact(m.spec.Assignee, b.Assignee)
}

func (m matcher) matchTags(b bug.Bug) bool {
	if len(m.spec.Tags) == 0 {
		return true
	}
	for _, tag := range m.spec.Tags {
		if b.HasTag(tag) {
			return true
		}
	}
	return false
}

func (m matcher) matchSearch(b bug.Bug) bool {
	if m.search == "" {
		return true
	}
	for _, field := range []string{b.Title, b.Description, b.ShortID(m.shortLength)} {
		if strings.Contains(strings.ToLower(field), m.search) {
			return true
		}
	}
	return false
}

func bucketPredicate(bucket DateBucket, now time.Time) func(bug.Bug) bool {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfTomorrow := startOfToday.AddDate(0, 0, 1)
	// Weeks start on Monday.
	offset := (int(startOfToday.Weekday()) + 6) % 7
	startOfWeek := startOfToday.AddDate(0, 0, -offset)
	endOfWeek := startOfWeek.AddDate(0, 0, 7)

	switch bucket {
	case DateOverdue:
		return func(b bug.Bug) bool {
			return !b.DueDate.IsZero() && b.DueDate.Before(startOfToday) && !b.Status.IsTerminal()
		}
	case DateDueToday:
		return func(b bug.Bug) bool { return within(b.DueDate, startOfToday, startOfTomorrow) }
	case DateThisWeek:
		return func(b bug.Bug) bool { return within(b.DueDate, startOfWeek, endOfWeek) }
	case DateNoDueDate:
		return func(b bug.Bug) bool { return b.DueDate.IsZero() }
	default:
		return func(bug.Bug) bool { return true }
	}
}

func within(t, start, end time.Time) bool {
	return !t.IsZero() && !t.Before(start) && t.Before(end)
}
