// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bug

import "slices"

// Status is a bug's workflow state.
type Status string

const (
	StatusNew        Status = "New"
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
	StatusReopened   Status = "Reopened"
)

// Statuses lists every valid Status in workflow order.
var Statuses = []Status{StatusNew, StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusReopened}

// IsKnown reports whether s is one of Statuses.
func (s Status) IsKnown() bool { return slices.Contains(Statuses, s) }

// IsTerminal reports whether s counts as resolved for metrics and
// resolution timestamps.
func (s Status) IsTerminal() bool { return s == StatusResolved || s == StatusClosed }

// Severity is the reporter-assessed impact of a bug.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Severities lists every valid Severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// IsKnown reports whether s is one of Severities.
func (s Severity) IsKnown() bool { return slices.Contains(Severities, s) }

// Priority is the scheduling urgency, derived from Severity.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// PriorityFor returns the priority a severity implies. Unknown
// severities map to PriorityMedium.
func PriorityFor(severity Severity) Priority {
	switch severity {
	case SeverityCritical:
		return PriorityUrgent
	case SeverityHigh:
		return PriorityHigh
	case SeverityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Environment is where a bug was observed.
type Environment string

const (
	EnvironmentDevelopment Environment = "Development"
	EnvironmentTesting     Environment = "Testing"
	EnvironmentStaging     Environment = "Staging"
	EnvironmentProduction  Environment = "Production"
)

// Environments lists every valid Environment.
var Environments = []Environment{EnvironmentDevelopment, EnvironmentTesting, EnvironmentStaging, EnvironmentProduction}

// IsKnown reports whether e is one of Environments.
func (e Environment) IsKnown() bool { return slices.Contains(Environments, e) }

// Source identifies how a bug entered the system.
type Source string

const (
	SourceManual    Source = "manual"
	SourceRecorder  Source = "recorder"
	SourceExtension Source = "extension"
	SourceAPI       Source = "api"
	SourceImport    Source = "import"
)

// SprintStatus is a sprint's lifecycle state.
type SprintStatus string

const (
	SprintPlanning  SprintStatus = "planning"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)
