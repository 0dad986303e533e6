// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugmetrics

import (
	"testing"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

var created = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestComputeEmpty(t *testing.T) {
	for _, input := range [][]bug.Bug{nil, {}} {
		metrics := Compute(input)
		if metrics.Total != 0 || metrics.ResolutionRate != 0 || metrics.EvidenceCoverage != 0 ||
			metrics.AverageResolution != 0 || metrics.AverageCompleteness != 0 {
			t.Errorf("Compute(%v) = %+v, want zeros", input, metrics)
		}
		if metrics.ByStatus == nil || metrics.BySeverity == nil || metrics.BySource == nil {
			t.Error("Compute returned nil maps")
		}
	}
}

func TestCompute(t *testing.T) {
	bugs := []bug.Bug{
		{Status: bug.StatusResolved, Severity: bug.SeverityHigh, Source: bug.SourceRecorder,
			Evidence:  bug.Evidence{VideoURL: "https://v.test/1"},
			CreatedAt: created, ResolvedAt: created.Add(2 * time.Hour)},
		{Status: bug.StatusClosed, Severity: bug.SeverityHigh,
			CreatedAt: created, ResolvedAt: created.Add(4 * time.Hour)},
		// Closed without a resolution timestamp: counts as resolved but
		// not as a duration sample.
		{Status: bug.StatusClosed, Severity: bug.SeverityLow, CreatedAt: created},
		{Status: bug.StatusOpen, Severity: bug.SeverityCritical, Evidence: bug.Evidence{ConsoleLogs: true}},
	}

	metrics := Compute(bugs)

	if metrics.Total != 4 || metrics.Resolved != 3 || metrics.Open != 1 {
		t.Errorf("totals = %d/%d/%d", metrics.Total, metrics.Resolved, metrics.Open)
	}
	if metrics.ResolutionRate != 75 {
		t.Errorf("ResolutionRate = %v, want 75", metrics.ResolutionRate)
	}
	if metrics.EvidenceCoverage != 50 {
		t.Errorf("EvidenceCoverage = %v, want 50", metrics.EvidenceCoverage)
	}
	if metrics.ResolutionSamples != 2 || metrics.AverageResolution != 3*time.Hour {
		t.Errorf("AverageResolution = %v over %d", metrics.AverageResolution, metrics.ResolutionSamples)
	}
	if metrics.BySeverity[bug.SeverityHigh] != 2 || metrics.ByStatus[bug.StatusClosed] != 2 {
		t.Errorf("histograms = %v %v", metrics.BySeverity, metrics.ByStatus)
	}
	if metrics.BySource[bug.SourceManual] != 3 || metrics.BySource[bug.SourceRecorder] != 1 {
		t.Errorf("BySource = %v", metrics.BySource)
	}
}

func TestCompleteness(t *testing.T) {
	full := bug.Bug{
		Title:            "Checkout total ignores discount",
		StepsToReproduce: "1. add item\n2. apply code",
		ExpectedBehavior: "discounted total",
		ActualBehavior:   "full price",
		Attachments:      []bug.Attachment{{Name: "cart.png", URL: "https://files.test/cart.png"}},
		Evidence:         bug.Evidence{NetworkLogs: true},
		Environment:      bug.EnvironmentProduction,
		Severity:         bug.SeverityHigh,
		Category:         "payments",
		Frequency:        "always",
	}
	if got := Completeness(full); got != 100 {
		t.Errorf("Completeness(full) = %d, want 100", got)
	}
	if got := Completeness(bug.Bug{}); got != 0 {
		t.Errorf("Completeness(empty) = %d, want 0", got)
	}
	if got := Completeness(bug.Bug{Title: "Crash", Severity: bug.SeverityLow}); got != 10 {
		t.Errorf("Completeness(short title + severity) = %d, want 10", got)
	}

	total := 0
	for _, c := range checks {
		total += c.weight
	}
	if total != 100 {
		t.Errorf("weights sum to %d, want 100", total)
	}

	metrics := Compute([]bug.Bug{full, {}})
	if metrics.AverageCompleteness != 50 {
		t.Errorf("AverageCompleteness = %v, want 50", metrics.AverageCompleteness)
	}
}
