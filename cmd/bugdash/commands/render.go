// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmetrics"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmutate"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/tui"
)

// maxTitleWidth truncates long titles in the bug table.
const maxTitleWidth = 60

// renderer writes human-readable output. Colors are applied only when
// the destination is a terminal.
type renderer struct {
	w             io.Writer
	styled        bool
	theme         tui.Theme
	shortIDLength int
}

func newRenderer(w io.Writer, shortIDLength int) *renderer {
	styled := false
	if file, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(file.Fd()))
	}
	return &renderer{w: w, styled: styled, theme: tui.DefaultTheme, shortIDLength: shortIDLength}
}

func (r *renderer) paint(color lipgloss.Color, bold bool, text string) string {
	if !r.styled || text == "" {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Bold(bold).Render(text)
}

func (r *renderer) faint(text string) string {
	return r.paint(r.theme.FaintText, false, text)
}

// cell is one table cell: the plain text measures the column and the
// color paints it afterwards.
type cell struct {
	text  string
	color lipgloss.Color
	bold  bool
}

// table writes rows with left-aligned, space-padded columns. Widths are
// measured on the plain text so escape sequences never skew alignment.
func (r *renderer) table(header []string, rows [][]cell) {
	widths := make([]int, len(header))
	for i, title := range header {
		widths[i] = lipgloss.Width(title)
	}
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c.text))
		}
	}

	line := make([]string, len(header))
	for i, title := range header {
		line[i] = r.paint(r.theme.HeaderForeground, true, pad(title, widths[i], i == len(header)-1))
	}
	fmt.Fprintln(r.w, strings.Join(line, "  "))

	for _, row := range rows {
		for i, c := range row {
			line[i] = r.paint(c.color, c.bold, pad(c.text, widths[i], i == len(row)-1))
		}
		fmt.Fprintln(r.w, strings.Join(line, "  "))
	}
}

// pad right-pads text to width. The last column is left unpadded.
func pad(text string, width int, last bool) string {
	if last {
		return text
	}
	if gap := width - lipgloss.Width(text); gap > 0 {
		return text + strings.Repeat(" ", gap)
	}
	return text
}

func truncate(text string, width int) string {
	if lipgloss.Width(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// memberNames maps member IDs to display names.
func memberNames(members []bug.TeamMember) map[string]string {
	names := make(map[string]string, len(members))
	for _, member := range members {
		names[member.ID] = member.DisplayName
	}
	return names
}

// bugTable prints one row per bug.
func (r *renderer) bugTable(bugs []bug.Bug, members []bug.TeamMember) {
	if len(bugs) == 0 {
		fmt.Fprintln(r.w, r.faint("no bugs match"))
		return
	}
	names := memberNames(members)
	rows := make([][]cell, 0, len(bugs))
	for _, b := range bugs {
		assignee := names[b.Assignee]
		if assignee == "" {
			assignee = b.Assignee
		}
		if assignee == "" {
			assignee = "-"
		}
		due := "-"
		if !b.DueDate.IsZero() {
			due = b.DueDate.Format(time.DateOnly)
		}
		rows = append(rows, []cell{
			{text: b.ShortID(r.shortIDLength), color: r.theme.FaintText},
			{text: string(b.Status), color: r.theme.StatusColor(b.Status)},
			{text: string(b.Severity), color: r.theme.SeverityColor(b.Severity), bold: b.Severity == bug.SeverityCritical},
			{text: string(b.Priority), color: r.theme.NormalText},
			{text: assignee, color: r.theme.NormalText},
			{text: due, color: r.theme.FaintText},
			{text: truncate(b.Title, maxTitleWidth), color: r.theme.NormalText},
		})
	}
	r.table([]string{"ID", "STATUS", "SEVERITY", "PRIORITY", "ASSIGNEE", "DUE", "TITLE"}, rows)
}

// metrics prints the summary counters and the per-dimension counts.
func (r *renderer) metrics(m bugmetrics.Metrics) {
	rows := [][]cell{
		{{text: "total"}, {text: fmt.Sprint(m.Total)}},
		{{text: "open"}, {text: fmt.Sprint(m.Open)}},
		{{text: "resolved"}, {text: fmt.Sprint(m.Resolved)}},
		{{text: "resolution rate"}, {text: fmt.Sprintf("%.1f%%", m.ResolutionRate)}},
		{{text: "evidence coverage"}, {text: fmt.Sprintf("%.1f%%", m.EvidenceCoverage)}},
		{{text: "average completeness"}, {text: fmt.Sprintf("%.1f%%", m.AverageCompleteness)}},
	}
	resolution := "-"
	if m.ResolutionSamples > 0 {
		resolution = fmt.Sprintf("%s over %d bugs", m.AverageResolution.Round(time.Minute), m.ResolutionSamples)
	}
	rows = append(rows, []cell{{text: "average resolution"}, {text: resolution}})
	for _, row := range rows {
		row[0].color = r.theme.FaintText
		row[1].color = r.theme.NormalText
		row[1].bold = true
	}
	r.table([]string{"METRIC", "VALUE"}, rows)

	fmt.Fprintln(r.w)
	statusRows := make([][]cell, 0, len(bug.Statuses))
	for _, status := range bug.Statuses {
		statusRows = append(statusRows, []cell{
			{text: string(status), color: r.theme.StatusColor(status)},
			{text: fmt.Sprint(m.ByStatus[status]), color: r.theme.NormalText},
		})
	}
	r.table([]string{"STATUS", "COUNT"}, statusRows)

	fmt.Fprintln(r.w)
	severityRows := make([][]cell, 0, len(bug.Severities))
	for _, severity := range bug.Severities {
		severityRows = append(severityRows, []cell{
			{text: string(severity), color: r.theme.SeverityColor(severity)},
			{text: fmt.Sprint(m.BySeverity[severity]), color: r.theme.NormalText},
		})
	}
	r.table([]string{"SEVERITY", "COUNT"}, severityRows)

	if len(m.BySource) > 0 {
		fmt.Fprintln(r.w)
		sources := make([]bug.Source, 0, len(m.BySource))
		for source := range m.BySource {
			sources = append(sources, source)
		}
		slices.Sort(sources)
		sourceRows := make([][]cell, 0, len(sources))
		for _, source := range sources {
			sourceRows = append(sourceRows, []cell{
				{text: string(source), color: r.theme.NormalText},
				{text: fmt.Sprint(m.BySource[source]), color: r.theme.NormalText},
			})
		}
		r.table([]string{"SOURCE", "COUNT"}, sourceRows)
	}
}

// outcome prints one mutation result line. Created documents show
// their full ID; everything else uses the short form.
func (r *renderer) outcome(outcome bugmutate.Outcome) {
	target := outcome.BugID
	created := outcome.Op == bugmutate.OpCreate || outcome.Op == bugmutate.OpCreateSprint
	if !created && r.shortIDLength > 0 && len(target) > r.shortIDLength {
		target = target[len(target)-r.shortIDLength:]
	}
	if target == "" {
		target = "-"
	}
	if outcome.OK() {
		fmt.Fprintf(r.w, "%s %s %s\n", r.paint(r.theme.Success, true, "ok"), outcome.Op, target)
		return
	}
	color := r.theme.Failure
	if outcome.Kind() == bugerr.Busy {
		color = r.theme.Warning
	}
	fmt.Fprintf(r.w, "%s %s %s: %v\n", r.paint(color, true, string(outcome.Kind())), outcome.Op, target, outcome.Err)
}
