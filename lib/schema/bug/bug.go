// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bug

import (
	"strings"
	"time"
)

// Document field names as stored.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldStatus           = "status"
	FieldSeverity         = "severity"
	FieldPriority         = "priority"
	FieldAssignee         = "assignee"
	FieldReporter         = "reporter"
	FieldSprint           = "sprintId"
	FieldEnvironment      = "environment"
	FieldTags             = "tags"
	FieldSource           = "source"
	FieldCategory         = "category"
	FieldFrequency        = "frequency"
	FieldSteps            = "stepsToReproduce"
	FieldExpectedBehavior = "expectedBehavior"
	FieldActualBehavior   = "actualBehavior"
	FieldEvidence         = "evidence"
	FieldAttachments      = "attachments"
	FieldComments         = "comments"
	FieldActivity         = "activityLog"
	FieldDueDate          = "dueDate"
	FieldCreatedAt        = "createdAt"
	FieldUpdatedAt        = "updatedAt"
	FieldResolvedAt       = "resolvedAt"

	FieldDisplayName = "displayName"
	FieldEmail       = "email"
	FieldRole        = "role"
	FieldName        = "name"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
)

// Bug is a tracked defect.
type Bug struct {
	ID          string      `cbor:"id"`
	Title       string      `cbor:"title"`
	Description string      `cbor:"description,omitempty"`
	Status      Status      `cbor:"status"`
	Severity    Severity    `cbor:"severity"`
	Priority    Priority    `cbor:"priority"`
	Assignee    string      `cbor:"assignee,omitempty"`
	Reporter    string      `cbor:"reporter,omitempty"`
	Sprint      string      `cbor:"sprint,omitempty"`
	Environment Environment `cbor:"environment,omitempty"`
	Tags        []string    `cbor:"tags,omitempty"`
	Source      Source      `cbor:"source,omitempty"`
	Category    string      `cbor:"category,omitempty"`
	Frequency   string      `cbor:"frequency,omitempty"`

	StepsToReproduce string `cbor:"steps,omitempty"`
	ExpectedBehavior string `cbor:"expected,omitempty"`
	ActualBehavior   string `cbor:"actual,omitempty"`

	Evidence    Evidence        `cbor:"evidence"`
	Attachments []Attachment    `cbor:"attachments,omitempty"`
	Comments    []Comment       `cbor:"comments,omitempty"`
	Activity    []ActivityEntry `cbor:"activity,omitempty"`

	DueDate    time.Time `cbor:"due_date"`
	CreatedAt  time.Time `cbor:"created_at"`
	UpdatedAt  time.Time `cbor:"updated_at"`
	ResolvedAt time.Time `cbor:"resolved_at"`
}

// Clone returns a copy of b that shares no slices with it.
func (b Bug) Clone() Bug {
	clone := b
	clone.Tags = cloneSlice(b.Tags)
	clone.Attachments = cloneSlice(b.Attachments)
	clone.Comments = cloneSlice(b.Comments)
	clone.Activity = cloneSlice(b.Activity)
	return clone
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// ShortID returns the last n characters of the ID, the form shown in
// lists and matched by free-text search.
func (b Bug) ShortID(n int) string {
	if n <= 0 || len(b.ID) <= n {
		return b.ID
	}
	return b.ID[len(b.ID)-n:]
}

// HasTag reports whether b carries tag.
func (b Bug) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Evidence records which diagnostic captures accompany a bug.
type Evidence struct {
	VideoURL    string `cbor:"video_url,omitempty"`
	NetworkLogs bool   `cbor:"network_logs,omitempty"`
	ConsoleLogs bool   `cbor:"console_logs,omitempty"`
}

// HasAny reports whether at least one kind of evidence is present.
func (e Evidence) HasAny() bool {
	return strings.TrimSpace(e.VideoURL) != "" || e.NetworkLogs || e.ConsoleLogs
}

// Attachment is a file linked to a bug.
type Attachment struct {
	Name string `cbor:"name"`
	URL  string `cbor:"url"`
}

// Comment is a discussion entry on a bug.
type Comment struct {
	ID        string    `cbor:"id,omitempty"`
	Author    string    `cbor:"author"`
	Text      string    `cbor:"text"`
	CreatedAt time.Time `cbor:"created_at"`
}

// ActivityEntry records one change to a bug.
type ActivityEntry struct {
	Action string    `cbor:"action"`
	Actor  string    `cbor:"actor,omitempty"`
	Detail string    `cbor:"detail,omitempty"`
	At     time.Time `cbor:"at"`
}

// Fields encodes the entry for storage.
func (a ActivityEntry) Fields() map[string]any {
	fields := map[string]any{"action": a.Action}
	if a.Actor != "" {
		fields["actor"] = a.Actor
	}
	if a.Detail != "" {
		fields["detail"] = a.Detail
	}
	if !a.At.IsZero() {
		fields["at"] = a.At
	}
	return fields
}

// TeamMember is an organization member who can be assigned bugs.
type TeamMember struct {
	ID          string `cbor:"id"`
	DisplayName string `cbor:"display_name"`
	Email       string `cbor:"email,omitempty"`
	Role        string `cbor:"role,omitempty"`
}

// Sprint is a time-boxed iteration bugs can be scheduled into.
type Sprint struct {
	ID        string       `cbor:"id"`
	Name      string       `cbor:"name"`
	Status    SprintStatus `cbor:"status,omitempty"`
	StartDate time.Time    `cbor:"start_date"`
	EndDate   time.Time    `cbor:"end_date"`
	CreatedAt time.Time    `cbor:"created_at"`
}
