// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/pacwrap/pacwrap/liberror"
)

// ProgressStyle selects how live events render.
type ProgressStyle int

const (
	// ProgressBasic prints plain lines for installs, warnings, errors
	// and summaries, and one completion line per download.
	ProgressBasic ProgressStyle = iota

	// ProgressCondensed aggregates download progress into per-package
	// completion lines.
	ProgressCondensed

	// ProgressCondensedForeign renders foreign packages condensed and
	// everything else basic.
	ProgressCondensedForeign

	// ProgressCondensedLocal renders local packages condensed and
	// foreign ones basic.
	ProgressCondensedLocal

	// ProgressVerbose prints every event, including a received/total
	// line for each download progress update.
	ProgressVerbose
)

// SummaryStyle selects the end-of-run summary rendering.
type SummaryStyle int

const (
	SummaryBasic SummaryStyle = iota
	SummaryBasicForeign
	SummaryTable
	SummaryTableForeign
)

var progressStyleNames = map[string]ProgressStyle{
	"basic":             ProgressBasic,
	"condensed":         ProgressCondensed,
	"condensed-foreign": ProgressCondensedForeign,
	"condensed-local":   ProgressCondensedLocal,
	"verbose":           ProgressVerbose,
}

var summaryStyleNames = map[string]SummaryStyle{
	"basic":         SummaryBasic,
	"basic-foreign": SummaryBasicForeign,
	"table":         SummaryTable,
	"table-foreign": SummaryTableForeign,
}

// ParseProgressStyle parses the configuration spelling of a progress
// style.
func ParseProgressStyle(name string) (ProgressStyle, error) {
	if style, ok := progressStyleNames[name]; ok {
		return style, nil
	}
	return 0, liberror.New(liberror.Config, "unknown progress style %q", name)
}

// ParseSummaryStyle parses the configuration spelling of a summary
// style.
func ParseSummaryStyle(name string) (SummaryStyle, error) {
	if style, ok := summaryStyleNames[name]; ok {
		return style, nil
	}
	return 0, liberror.New(liberror.Config, "unknown summary style %q", name)
}

// Visual styles, resolved against the terminal's color support once
// at startup. When the output profile has no color at all (dumb
// terminal, redirected log file), styling is dropped entirely so the
// attribute escape sequences never reach the file.
var (
	styleContainer lipgloss.Style
	styleOk        lipgloss.Style
	styleWarn      lipgloss.Style
	styleErr       lipgloss.Style
	styleDim       lipgloss.Style
)

func init() {
	if !colorEnabled() {
		plain := lipgloss.NewStyle()
		styleContainer = plain
		styleOk = plain
		styleWarn = plain
		styleErr = plain
		styleDim = plain
		return
	}
	styleContainer = lipgloss.NewStyle().Bold(true)
	styleOk = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleErr = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleDim = lipgloss.NewStyle().Faint(true)
}

// colorEnabled reports whether the output profile supports color at
// all.
func colorEnabled() bool {
	return termenv.ColorProfile() != termenv.Ascii
}
