// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the terminal color palette shared by bugdash's
// text output. Colors are lipgloss ANSI 256-color codes; callers decide
// whether to style at all (plain output when stdout is not a terminal).
package tui
