// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package liberror defines pacwrap's error taxonomy.
//
// Every operation that can fail in a way the operator must act on
// returns an [*Error] tagged with a [Kind]. The CLI maps the kind of
// the outermost taxonomy error to a process exit code via [ExitCodeFor];
// everything else (plumbing failures wrapped with fmt.Errorf) exits as
// a transaction failure.
//
// Errors are values. Nothing in pacwrap panics on an expected
// condition; panics are reserved for programmer errors such as an
// impossible state-machine transition.
package liberror
