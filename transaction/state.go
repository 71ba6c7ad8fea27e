// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import "fmt"

// State is a container's position in the transaction pipeline.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StatePrepared
	StateStaged
	StateCommitted
	StatePublished
	StateDone
	StateFailed
	StateCancelled
	StateSkipped
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StatePlanning:  "planning",
	StatePrepared:  "prepared",
	StateStaged:    "staged",
	StateCommitted: "committed",
	StatePublished: "published",
	StateDone:      "done",
	StateFailed:    "failed",
	StateCancelled: "cancelled",
	StateSkipped:   "skipped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateCancelled, StateSkipped:
		return true
	}
	return false
}

// Durable reports whether the container's package database has been
// mutated. Failures at or past a durable state are repaired by the
// next run, not rolled back.
func (s State) Durable() bool {
	return s >= StateCommitted && s != StateCancelled && s != StateSkipped
}

// advance validates a pipeline transition. The pipeline is strictly
// linear; jumping states is a bug in the aggregator, not a runtime
// condition, so violations panic.
func (s State) advance(next State) State {
	valid := next == StateFailed || next == StateCancelled ||
		(next == s+1 && next <= StateDone)
	if !valid {
		panic(fmt.Sprintf("transaction: invalid transition %v -> %v", s, next))
	}
	return next
}
