// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// Theme is the color palette for terminal output.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Severity colors, indexed critical, high, medium, low.
	SeverityColors [4]lipgloss.Color

	StatusNew        lipgloss.Color
	StatusOpen       lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusResolved   lipgloss.Color
	StatusClosed     lipgloss.Color
	StatusReopened   lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color

	// Mutation outcome colors.
	Success lipgloss.Color
	Warning lipgloss.Color
	Failure lipgloss.Color
}

// SeverityColor returns the color for a severity. Unknown values
// return NormalText.
func (theme Theme) SeverityColor(severity bug.Severity) lipgloss.Color {
	switch severity {
	case bug.SeverityCritical:
		return theme.SeverityColors[0]
	case bug.SeverityHigh:
		return theme.SeverityColors[1]
	case bug.SeverityMedium:
		return theme.SeverityColors[2]
	case bug.SeverityLow:
		return theme.SeverityColors[3]
	default:
		return theme.NormalText
	}
}

// StatusColor returns the color for a status. Unknown values return
// FaintText.
func (theme Theme) StatusColor(status bug.Status) lipgloss.Color {
	switch status {
	case bug.StatusNew:
		return theme.StatusNew
	case bug.StatusOpen:
		return theme.StatusOpen
	case bug.StatusInProgress:
		return theme.StatusInProgress
	case bug.StatusResolved:
		return theme.StatusResolved
	case bug.StatusClosed:
		return theme.StatusClosed
	case bug.StatusReopened:
		return theme.StatusReopened
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SeverityColors: [4]lipgloss.Color{
		lipgloss.Color("196"), // critical: bright red
		lipgloss.Color("208"), // high: orange
		lipgloss.Color("75"),  // medium: blue
		lipgloss.Color("245"), // low: gray
	},

	StatusNew:        lipgloss.Color("117"), // light blue
	StatusOpen:       lipgloss.Color("114"), // green
	StatusInProgress: lipgloss.Color("220"), // amber
	StatusResolved:   lipgloss.Color("141"), // light purple
	StatusClosed:     lipgloss.Color("245"), // gray
	StatusReopened:   lipgloss.Color("203"), // salmon

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),

	Success: lipgloss.Color("114"),
	Warning: lipgloss.Color("220"),
	Failure: lipgloss.Color("196"),
}
