// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bug

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
)

// Patch is a set of field-level changes to one bug, keyed by the Field
// constants. A nil value clears the field.
type Patch map[string]any

// ValidationError describes a patch or draft rejected before any store
// call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid bug change: " + e.Reason
	}
	return fmt.Sprintf("invalid bug change: %s: %s", e.Field, e.Reason)
}

// immutableFields are assigned by the store or derived, never patched
// directly.
var immutableFields = []string{FieldCreatedAt, FieldUpdatedAt, FieldResolvedAt, "id"}

// Validate checks enum membership and field shapes. A priority is only
// accepted alongside the severity it derives from.
func (p Patch) Validate() error {
	if len(p) == 0 {
		return &ValidationError{Reason: "empty patch"}
	}
	for _, key := range p.Keys() {
		if slices.Contains(immutableFields, key) {
			return &ValidationError{Field: key, Reason: "field is store-managed"}
		}
		if err := validateField(key, p[key]); err != nil {
			return err
		}
	}
	if priority, ok := p[FieldPriority]; ok {
		severity, hasSeverity := p[FieldSeverity]
		if !hasSeverity {
			return &ValidationError{Field: FieldPriority, Reason: "priority is derived from severity and cannot be set alone"}
		}
		if want := PriorityFor(Severity(asString(severity))); asString(priority) != string(want) {
			return &ValidationError{Field: FieldPriority, Reason: fmt.Sprintf("severity %s requires priority %s", asString(severity), want)}
		}
	}
	return nil
}

func validateField(key string, value any) error {
	switch key {
	case FieldStatus:
		if status := Status(asString(value)); !status.IsKnown() {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("unknown status %q", asString(value))}
		}
	case FieldSeverity:
		if severity := Severity(asString(value)); !severity.IsKnown() {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("unknown severity %q", asString(value))}
		}
	case FieldEnvironment:
		if environment := Environment(asString(value)); !environment.IsKnown() {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("unknown environment %q", asString(value))}
		}
	case FieldTitle:
		if strings.TrimSpace(asString(value)) == "" {
			return &ValidationError{Field: key, Reason: "title must not be empty"}
		}
	case FieldAssignee, FieldSprint, FieldDescription, FieldCategory, FieldFrequency,
		FieldExpectedBehavior, FieldActualBehavior, FieldReporter:
		if _, ok := value.(string); !ok && value != nil {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("want text, got %T", value)}
		}
	case FieldSteps:
		if !isTextOrTextList(value) {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("want text or a list of steps, got %T", value)}
		}
	case FieldDueDate:
		if value == nil {
			return nil
		}
		if _, ok := docstore.ParseTime(value); !ok {
			return &ValidationError{Field: key, Reason: "unrecognized date"}
		}
	case FieldTags:
		if _, ok := value.(docstore.AppendValues); ok {
			return nil
		}
		if value != nil && docstore.AsSlice(value) == nil {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("want a list of tags, got %T", value)}
		}
	}
	return nil
}

// isTextOrTextList accepts nil, a string, or a list whose items are
// all strings.
func isTextOrTextList(value any) bool {
	switch v := value.(type) {
	case nil, string, []string:
		return true
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// WithDerived returns a copy of p with dependent fields added: the
// priority for a severity change, and the resolution timestamp for a
// status change. Entering a terminal status stamps resolvedAt unless
// the bug already has one, so Resolved to Closed keeps the original
// resolution time; a non-terminal status clears it.
func (p Patch) WithDerived() Patch {
	derived := p.Clone()
	if severity, ok := p[FieldSeverity]; ok {
		derived[FieldPriority] = string(PriorityFor(Severity(asString(severity))))
	}
	if status, ok := p[FieldStatus]; ok {
		if Status(asString(status)).IsTerminal() {
			derived[FieldResolvedAt] = docstore.ServerTimestampIfUnset
		} else {
			derived[FieldResolvedAt] = nil
		}
	}
	return derived
}

// Apply returns b with p folded in. ServerTimestamp values resolve to
// at.
func (p Patch) Apply(b Bug, at time.Time) Bug {
	result := b.Clone()
	for _, key := range p.Keys() {
		setField(&result, key, p[key], at)
	}
	result.Priority = PriorityFor(result.Severity)
	return result
}

// Clone returns a shallow copy of p.
func (p Patch) Clone() Patch {
	return maps.Clone(p)
}

// Keys returns the patched field names in sorted order.
func (p Patch) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Fields returns p as a store field map.
func (p Patch) Fields() map[string]any {
	fields := make(map[string]any, len(p))
	for key, value := range p {
		fields[key] = storeValue(value)
	}
	return fields
}

// storeValue converts typed enum values to plain strings so every
// store serializes them the same way.
func storeValue(value any) any {
	switch v := value.(type) {
	case Status, Severity, Priority, Environment, Source, SprintStatus:
		return asString(v)
	case []string:
		return slices.Clone(v)
	}
	return value
}

// ValidateDraft checks a bug about to be created.
func ValidateDraft(draft Bug) error {
	if strings.TrimSpace(draft.Title) == "" {
		return &ValidationError{Field: FieldTitle, Reason: "title must not be empty"}
	}
	if draft.Status != "" && !draft.Status.IsKnown() {
		return &ValidationError{Field: FieldStatus, Reason: fmt.Sprintf("unknown status %q", draft.Status)}
	}
	if draft.Severity != "" && !draft.Severity.IsKnown() {
		return &ValidationError{Field: FieldSeverity, Reason: fmt.Sprintf("unknown severity %q", draft.Severity)}
	}
	if draft.Environment != "" && !draft.Environment.IsKnown() {
		return &ValidationError{Field: FieldEnvironment, Reason: fmt.Sprintf("unknown environment %q", draft.Environment)}
	}
	return nil
}

// CreationFields encodes a draft for CreateDocument. Status defaults to
// New, severity to Medium, and source to manual; priority and the
// store timestamps are filled in.
func CreationFields(draft Bug, actor string) map[string]any {
	if draft.Status == "" {
		draft.Status = StatusNew
	}
	if draft.Severity == "" {
		draft.Severity = SeverityMedium
	}
	if draft.Source == "" {
		draft.Source = SourceManual
	}
	if draft.Reporter == "" {
		draft.Reporter = actor
	}

	fields := map[string]any{
		FieldTitle:     strings.TrimSpace(draft.Title),
		FieldStatus:    string(draft.Status),
		FieldSeverity:  string(draft.Severity),
		FieldPriority:  string(PriorityFor(draft.Severity)),
		FieldSource:    string(draft.Source),
		FieldReporter:  draft.Reporter,
		FieldCreatedAt: docstore.ServerTimestamp,
		FieldUpdatedAt: docstore.ServerTimestamp,
		FieldActivity:  []any{ActivityEntry{Action: "created", Actor: actor}.Fields()},
	}
	optional := map[string]string{
		FieldDescription:      draft.Description,
		FieldAssignee:         draft.Assignee,
		FieldSprint:           draft.Sprint,
		FieldEnvironment:      string(draft.Environment),
		FieldCategory:         draft.Category,
		FieldFrequency:        draft.Frequency,
		FieldSteps:            draft.StepsToReproduce,
		FieldExpectedBehavior: draft.ExpectedBehavior,
		FieldActualBehavior:   draft.ActualBehavior,
	}
	for key, value := range optional {
		if value != "" {
			fields[key] = value
		}
	}
	if len(draft.Tags) > 0 {
		fields[FieldTags] = slices.Clone(draft.Tags)
	}
	if draft.Evidence.HasAny() {
		fields[FieldEvidence] = map[string]any{
			"videoUrl":    draft.Evidence.VideoURL,
			"networkLogs": draft.Evidence.NetworkLogs,
			"consoleLogs": draft.Evidence.ConsoleLogs,
		}
	}
	if len(draft.Attachments) > 0 {
		attachments := make([]any, len(draft.Attachments))
		for i, attachment := range draft.Attachments {
			attachments[i] = map[string]any{"name": attachment.Name, "url": attachment.URL}
		}
		fields[FieldAttachments] = attachments
	}
	if !draft.DueDate.IsZero() {
		fields[FieldDueDate] = draft.DueDate.UTC()
	}
	return fields
}

// SprintFields encodes a new sprint for CreateDocument.
func SprintFields(sprint Sprint) map[string]any {
	if sprint.Status == "" {
		sprint.Status = SprintPlanning
	}
	fields := map[string]any{
		FieldName:      strings.TrimSpace(sprint.Name),
		FieldStatus:    string(sprint.Status),
		FieldCreatedAt: docstore.ServerTimestamp,
	}
	if !sprint.StartDate.IsZero() {
		fields[FieldStartDate] = sprint.StartDate.UTC()
	}
	if !sprint.EndDate.IsZero() {
		fields[FieldEndDate] = sprint.EndDate.UTC()
	}
	return fields
}

// ValidateSprint checks a sprint about to be created.
func ValidateSprint(sprint Sprint) error {
	if strings.TrimSpace(sprint.Name) == "" {
		return &ValidationError{Field: FieldName, Reason: "sprint name must not be empty"}
	}
	if !sprint.StartDate.IsZero() && !sprint.EndDate.IsZero() && sprint.EndDate.Before(sprint.StartDate) {
		return &ValidationError{Field: FieldEndDate, Reason: "sprint ends before it starts"}
	}
	switch sprint.Status {
	case "", SprintPlanning, SprintActive, SprintCompleted:
	default:
		return &ValidationError{Field: FieldStatus, Reason: fmt.Sprintf("unknown sprint status %q", sprint.Status)}
	}
	return nil
}
