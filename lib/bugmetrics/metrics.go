// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bugmetrics computes dashboard statistics from a bug
// snapshot. Compute is pure and allocation-light; it is rerun on every
// snapshot rather than maintained incrementally.
package bugmetrics

import (
	"strings"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// Metrics summarizes a set of bugs. Percentages are in [0, 100].
type Metrics struct {
	Total    int `cbor:"total"`
	Open     int `cbor:"open"`
	Resolved int `cbor:"resolved"`

	ByStatus   map[bug.Status]int   `cbor:"by_status"`
	BySeverity map[bug.Severity]int `cbor:"by_severity"`
	BySource   map[bug.Source]int   `cbor:"by_source"`

	// ResolutionRate is the share of bugs in a terminal status.
	ResolutionRate float64 `cbor:"resolution_rate"`

	// EvidenceCoverage is the share of bugs with video, network or
	// console evidence.
	EvidenceCoverage float64 `cbor:"evidence_coverage"`

	// AverageResolution is the mean time from creation to resolution
	// over ResolutionSamples bugs. Bugs missing either timestamp are
	// excluded.
	AverageResolution time.Duration `cbor:"average_resolution"`
	ResolutionSamples int           `cbor:"resolution_samples"`

	// AverageCompleteness is the mean Completeness score.
	AverageCompleteness float64 `cbor:"average_completeness"`
}

// Compute derives Metrics from bugs. An empty input yields zero values
// and empty, non-nil maps.
func Compute(bugs []bug.Bug) Metrics {
	metrics := Metrics{
		Total:      len(bugs),
		ByStatus:   make(map[bug.Status]int),
		BySeverity: make(map[bug.Severity]int),
		BySource:   make(map[bug.Source]int),
	}
	if len(bugs) == 0 {
		return metrics
	}

	var withEvidence, completeness int
	var resolutionTotal time.Duration
	for _, b := range bugs {
		metrics.ByStatus[b.Status]++
		metrics.BySeverity[b.Severity]++
		source := b.Source
		if source == "" {
			source = bug.SourceManual
		}
		metrics.BySource[source]++

		if b.Status.IsTerminal() {
			metrics.Resolved++
		}
		if b.Evidence.HasAny() {
			withEvidence++
		}
		if !b.CreatedAt.IsZero() && !b.ResolvedAt.IsZero() && !b.ResolvedAt.Before(b.CreatedAt) {
			resolutionTotal += b.ResolvedAt.Sub(b.CreatedAt)
			metrics.ResolutionSamples++
		}
		completeness += Completeness(b)
	}

	metrics.Open = metrics.Total - metrics.Resolved
	metrics.ResolutionRate = percent(metrics.Resolved, metrics.Total)
	metrics.EvidenceCoverage = percent(withEvidence, metrics.Total)
	metrics.AverageCompleteness = float64(completeness) / float64(metrics.Total)
	if metrics.ResolutionSamples > 0 {
		metrics.AverageResolution = resolutionTotal / time.Duration(metrics.ResolutionSamples)
	}
	return metrics
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

// minimumTitleLength is the shortest title that counts as descriptive.
const minimumTitleLength = 10

type check struct {
	weight int
	passes func(bug.Bug) bool
}

// checks sum to 100.
var checks = []check{
	{15, func(b bug.Bug) bool { return len(strings.TrimSpace(b.Title)) >= minimumTitleLength }},
	{15, func(b bug.Bug) bool { return filled(b.StepsToReproduce) }},
	{10, func(b bug.Bug) bool { return filled(b.ExpectedBehavior) }},
	{10, func(b bug.Bug) bool { return filled(b.ActualBehavior) }},
	{10, func(b bug.Bug) bool { return len(b.Attachments) > 0 }},
	{15, func(b bug.Bug) bool { return b.Evidence.HasAny() }},
	{5, func(b bug.Bug) bool { return b.Environment.IsKnown() }},
	{10, func(b bug.Bug) bool { return b.Severity.IsKnown() }},
	{5, func(b bug.Bug) bool { return filled(b.Category) }},
	{5, func(b bug.Bug) bool { return filled(b.Frequency) }},
}

func filled(s string) bool { return strings.TrimSpace(s) != "" }

// Completeness scores how thoroughly a bug is documented, from 0 to
// 100.
func Completeness(b bug.Bug) int {
	score := 0
	for _, c := range checks {
		if c.passes(b) {
			score += c.weight
		}
	}
	return score
}
