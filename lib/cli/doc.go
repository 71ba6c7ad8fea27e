// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the pacwrap
// binary: a command tree dispatched by name, pflag flag sets parsed
// lazily per command, and tabwriter-formatted help.
package cli
