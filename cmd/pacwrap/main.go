// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/pacwrap/pacwrap/cmd/pacwrap/commands"
	"github.com/pacwrap/pacwrap/liberror"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (transaction
		// summaries) return a cli.ExitError with the desired code; no
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(liberror.ExitCodeFor(err))
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
