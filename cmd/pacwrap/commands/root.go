// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the pacwrap command tree.
package commands

import (
	"github.com/pacwrap/pacwrap/lib/cli"
)

// Root returns the top-level pacwrap command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "pacwrap",
		Summary: "containerised Arch package management",
		Description: "pacwrap operates a fleet of unprivileged containers sharing an\n" +
			"Arch-style package backend, with hardlink deduplication across\n" +
			"container roots.",
		Subcommands: []*cli.Command{
			composeCommand(),
			syncCommand(),
			upgradeCommand(),
			removeCommand(),
			deleteCommand(),
			listCommand(),
			descCommand(),
			psCommand(),
			killCommand(),
			logCommand(),
		},
	}
}
