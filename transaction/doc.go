// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package transaction plans and executes package transactions across
// the container fleet.
//
// The planner turns operator intent into per-container work, walking
// the dependency graph in topological order and classifying each
// requested package as resident (serviceable from the container's own
// repositories) or foreign (only installed upstream). The aggregator
// then drives every container through the transaction state machine:
//
//	Idle → Planning → Prepared → Staged → Committed → Published → Done
//
// Planning and Prepared are freely revertible. Staging runs the
// filesystem dedup so the agent sees a current tree. Commit hands the
// container to the sandboxed agent and is durable once it returns;
// a failure after Commit leaves a partially-updated warning that the
// next run repairs by re-staging and re-publishing. Publish rewrites
// the container metadata behind an fsync barrier.
//
// Fleet scheduling is by topological wave: independent siblings run
// concurrently, a failure skips every transitive dependent, and the
// remaining subgraphs continue.
package transaction
