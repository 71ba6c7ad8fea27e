// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package proc enumerates and terminates container processes.
//
// Enumeration scans /proc and keeps processes whose user namespace
// matches the namespace identity captured in the container's instance
// record at launch, so an operator's unrelated processes are never
// touched even when their command lines look alike. A depth filter
// restricts results to processes at most N fork levels below the
// agent.
//
// Termination is SIGTERM, a configurable grace period, then SIGKILL
// for whatever is left, followed by a wait for the pids to disappear.
package proc
