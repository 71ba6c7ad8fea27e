// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgdb is the semantic layer over the package manager
// backend: repository definitions from repositories.conf, signature
// policy parsing, and the [Store] interface the planner and the agent
// query for installed, syncable and foreign packages.
//
// The driver process never links libalpm. It works against [Store],
// whose in-memory implementation ([MemoryStore]) also backs the
// planner tests. The agent links the real backend via pkgdb/alpm.
package pkgdb
