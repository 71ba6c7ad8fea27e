// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"sort"

	"github.com/pacwrap/pacwrap/agent"
)

// Intent is the operator's request, already parsed by the CLI.
type Intent struct {
	// Mode is the transaction mode applied to every target.
	Mode agent.Mode

	// Targets maps container ids to explicitly requested packages.
	// A container with an empty package list is still a target (for
	// synchronisation); an empty map with Upgrade mode targets every
	// present container.
	Targets map[string][]string

	// Flags is the transaction flag bitmap.
	Flags agent.Flags
}

// PerContainerWork is the planned work for one container.
type PerContainerWork struct {
	// ID is the container.
	ID string

	// Mode is the transaction mode.
	Mode agent.Mode

	// Resident are requested packages available in the container's
	// enabled repositories.
	Resident []string

	// Foreign are requested packages available only upstream. They
	// are reported and skipped unless the plan forces foreign
	// handling.
	Foreign []string

	// Flags is the flag bitmap forwarded to the agent.
	Flags agent.Flags

	// NeedsAgent reports whether the commit stage must run the
	// sandboxed agent at all.
	NeedsAgent bool
}

// Plan is the fleet-wide transaction plan: per-container work in
// topological execution order.
type Plan struct {
	// Order is the execution order, a topological order of the
	// involved containers with lexicographic tie-break.
	Order []string

	// Work maps container id to its planned work.
	Work map[string]*PerContainerWork

	// Mode and Flags echo the intent.
	Mode  agent.Mode
	Flags agent.Flags
}

// TargetCount returns how many containers have non-empty work.
func (p *Plan) TargetCount() int {
	count := 0
	for _, work := range p.Work {
		if len(work.Resident) > 0 || len(work.Foreign) > 0 || work.NeedsAgent {
			count++
		}
	}
	return count
}

// Preview renders the plan as deterministic lines, one per container
// in execution order. Planning does not depend on the preview flag, so
// the lines for an intent are the same with or without `--preview`.
func (p *Plan) Preview() []string {
	var lines []string
	for _, id := range p.Order {
		work := p.Work[id]
		if work == nil {
			continue
		}
		line := id + ": " + work.Mode.String()
		if len(work.Resident) > 0 {
			line += " install"
			for _, pkg := range sortedCopy(work.Resident) {
				line += " " + pkg
			}
		}
		if len(work.Foreign) > 0 {
			if work.Flags.Has(agent.FlagForceForeign) {
				line += " foreign"
			} else {
				line += " skip-foreign"
			}
			for _, pkg := range sortedCopy(work.Foreign) {
				line += " " + pkg
			}
		}
		lines = append(lines, line)
	}
	return lines
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
