// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/pacwrap/pacwrap/transaction"
)

// Summary writes the end-of-run fleet summary.
func Summary(out io.Writer, style SummaryStyle, results []transaction.Result) {
	switch style {
	case SummaryTable, SummaryTableForeign:
		summaryTable(out, style, results)
	default:
		summaryBasic(out, style, results)
	}

	succeeded, skipped, failed := 0, 0, 0
	var netBytes int64
	for _, result := range results {
		switch result.State {
		case transaction.StateDone:
			succeeded++
			netBytes += result.Summary.NetBytes
		case transaction.StateSkipped:
			skipped++
		default:
			failed++
		}
	}
	fmt.Fprintf(out, "%d succeeded, %d skipped, %d failed, %s net\n",
		succeeded, skipped, failed, humanize.IBytes(uint64(max64(netBytes, 0))))
}

func summaryBasic(out io.Writer, style SummaryStyle, results []transaction.Result) {
	for _, result := range results {
		line := fmt.Sprintf("%s: %s", styleContainer.Render(result.ID), renderState(result))
		if result.Summary.Added+result.Summary.Removed > 0 {
			line += fmt.Sprintf(" (+%d -%d, %s)", result.Summary.Added, result.Summary.Removed,
				humanize.IBytes(uint64(max64(result.Summary.NetBytes, 0))))
		}
		fmt.Fprintln(out, line)
		if style == SummaryBasicForeign {
			for _, pkg := range result.SkippedForeign {
				fmt.Fprintf(out, "  %s %s\n", styleDim.Render("foreign:"), pkg)
			}
		}
		for _, override := range result.Overrides {
			fmt.Fprintf(out, "  %s %s\n", styleWarn.Render("override:"), override)
		}
	}
}

func summaryTable(out io.Writer, style SummaryStyle, results []transaction.Result) {
	writer := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "CONTAINER\tSTATE\tADDED\tREMOVED\tNET\tFOREIGN")
	for _, result := range results {
		foreign := ""
		if style == SummaryTableForeign && len(result.SkippedForeign) > 0 {
			foreign = fmt.Sprintf("%d skipped", len(result.SkippedForeign))
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\n",
			result.ID, result.State,
			result.Summary.Added, result.Summary.Removed,
			humanize.IBytes(uint64(max64(result.Summary.NetBytes, 0))), foreign)
	}
	writer.Flush()
}

func renderState(result transaction.Result) string {
	switch result.State {
	case transaction.StateDone:
		return styleOk.Render("done")
	case transaction.StateSkipped:
		return styleWarn.Render("skipped")
	case transaction.StateCancelled:
		return styleWarn.Render("cancelled")
	default:
		if result.Err != nil {
			return styleErr.Render("failed") + ": " + result.Err.Error()
		}
		return styleErr.Render(result.State.String())
	}
}
