// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bug

import (
	"fmt"
	"strings"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
)

// DecodeBug builds a Bug from stored fields. Unknown fields are
// ignored, malformed values leave the field at its zero value, and
// Priority is always recomputed from Severity.
func DecodeBug(id string, fields map[string]any) Bug {
	b := Bug{ID: id}
	for key, value := range fields {
		setField(&b, key, value, time.Time{})
	}
	b.Priority = PriorityFor(b.Severity)
	return b
}

// DecodeMember builds a TeamMember from stored fields. Members without
// a display name fall back to their email, then their ID.
func DecodeMember(id string, fields map[string]any) TeamMember {
	member := TeamMember{
		ID:          id,
		DisplayName: asString(fields[FieldDisplayName]),
		Email:       asString(fields[FieldEmail]),
		Role:        firstString(fields[FieldRole]),
	}
	if member.DisplayName == "" {
		member.DisplayName = member.Email
	}
	if member.DisplayName == "" {
		member.DisplayName = id
	}
	return member
}

// DecodeSprint builds a Sprint from stored fields.
func DecodeSprint(id string, fields map[string]any) Sprint {
	sprint := Sprint{
		ID:     id,
		Name:   asString(fields[FieldName]),
		Status: SprintStatus(asString(fields[FieldStatus])),
	}
	sprint.StartDate, _ = docstore.ParseTime(fields[FieldStartDate])
	sprint.EndDate, _ = docstore.ParseTime(fields[FieldEndDate])
	sprint.CreatedAt, _ = docstore.ParseTime(fields[FieldCreatedAt])
	return sprint
}

// setField decodes one stored value into b. now replaces the
// ServerTimestamp sentinels, which only appear in local patches.
func setField(b *Bug, key string, value any, now time.Time) {
	if appended, ok := value.(docstore.AppendValues); ok {
		appendField(b, key, appended.Values, now)
		return
	}
	switch key {
	case FieldTitle:
		b.Title = asString(value)
	case FieldDescription:
		b.Description = asString(value)
	case FieldStatus:
		b.Status = Status(asString(value))
	case FieldSeverity:
		b.Severity = Severity(asString(value))
	case FieldAssignee:
		b.Assignee = asString(value)
	case FieldReporter:
		b.Reporter = asString(value)
	case FieldSprint:
		b.Sprint = asString(value)
	case FieldEnvironment:
		b.Environment = Environment(asString(value))
	case FieldTags:
		b.Tags = asStrings(value)
	case FieldSource:
		b.Source = Source(asString(value))
	case FieldCategory:
		b.Category = asString(value)
	case FieldFrequency:
		b.Frequency = asString(value)
	case FieldSteps:
		b.StepsToReproduce = joinLines(value)
	case FieldExpectedBehavior:
		b.ExpectedBehavior = asString(value)
	case FieldActualBehavior:
		b.ActualBehavior = asString(value)
	case FieldEvidence:
		b.Evidence = decodeEvidence(value)
	case FieldAttachments:
		b.Attachments = decodeList(value, decodeAttachment)
	case FieldComments:
		b.Comments = decodeList(value, decodeComment)
	case FieldActivity:
		b.Activity = decodeList(value, decodeActivity)
	case FieldDueDate:
		b.DueDate = timeValue(value, now)
	case FieldCreatedAt:
		b.CreatedAt = timeValue(value, now)
	case FieldUpdatedAt:
		b.UpdatedAt = timeValue(value, now)
	case FieldResolvedAt:
		if docstore.IsServerTimestampIfUnset(value) && !b.ResolvedAt.IsZero() {
			return
		}
		b.ResolvedAt = timeValue(value, now)
	}
}

func appendField(b *Bug, key string, values []any, now time.Time) {
	switch key {
	case FieldTags:
		for _, value := range values {
			if tag := asString(value); tag != "" && !b.HasTag(tag) {
				b.Tags = append(b.Tags, tag)
			}
		}
	case FieldAttachments:
		b.Attachments = append(b.Attachments, decodeList(values, decodeAttachment)...)
	case FieldComments:
		b.Comments = append(b.Comments, decodeList(values, decodeComment)...)
	case FieldActivity:
		for _, entry := range decodeList(values, decodeActivity) {
			if entry.At.IsZero() {
				entry.At = now
			}
			b.Activity = append(b.Activity, entry)
		}
	}
}

func timeValue(value any, now time.Time) time.Time {
	if docstore.IsServerTimestamp(value) || docstore.IsServerTimestampIfUnset(value) {
		return now.UTC()
	}
	t, _ := docstore.ParseTime(value)
	return t
}

func decodeEvidence(value any) Evidence {
	fields, ok := value.(map[string]any)
	if !ok {
		return Evidence{}
	}
	return Evidence{
		VideoURL:    asString(fields["videoUrl"]),
		NetworkLogs: present(fields["networkLogs"]),
		ConsoleLogs: present(fields["consoleLogs"]),
	}
}

// present reports whether a log capture field holds anything: true,
// a non-blank string, or a non-empty list.
func present(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case map[string]any:
		return len(v) > 0
	}
	return len(docstore.AsSlice(value)) > 0
}

func decodeList[T any](value any, decode func(map[string]any) (T, bool)) []T {
	items := docstore.AsSlice(value)
	if len(items) == 0 {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if decoded, ok := decode(fields); ok {
			out = append(out, decoded)
		}
	}
	return out
}

func decodeAttachment(fields map[string]any) (Attachment, bool) {
	attachment := Attachment{Name: asString(fields["name"]), URL: asString(fields["url"])}
	return attachment, attachment.URL != "" || attachment.Name != ""
}

func decodeComment(fields map[string]any) (Comment, bool) {
	comment := Comment{
		ID:     asString(fields["id"]),
		Author: asString(fields["author"]),
		Text:   asString(fields["text"]),
	}
	comment.CreatedAt, _ = docstore.ParseTime(fields["createdAt"])
	return comment, comment.Text != ""
}

func decodeActivity(fields map[string]any) (ActivityEntry, bool) {
	entry := ActivityEntry{
		Action: asString(fields["action"]),
		Actor:  asString(fields["actor"]),
		Detail: asString(fields["detail"]),
	}
	entry.At, _ = docstore.ParseTime(fields["at"])
	return entry, entry.Action != ""
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case Status:
		return string(v)
	case Severity:
		return string(v)
	case Priority:
		return string(v)
	case Environment:
		return string(v)
	case Source:
		return string(v)
	case SprintStatus:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// firstString accepts a string or a list of strings and returns the
// first entry.
func firstString(value any) string {
	if s := asString(value); s != "" {
		return s
	}
	if list := asStrings(value); len(list) > 0 {
		return list[0]
	}
	return ""
}

func asStrings(value any) []string {
	if s, ok := value.([]string); ok {
		return append([]string(nil), s...)
	}
	items := docstore.AsSlice(value)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// joinLines accepts reproduction steps as a single string or a list of
// step strings.
func joinLines(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return strings.Join(asStrings(value), "\n")
}
