// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// pacwrap-agent is the in-container side of the agent protocol. The
// driver launches it inside a bubblewrap namespace with two inherited
// descriptors: the parameter blob on PACWRAP_PARAM_FD and the event
// stream on PACWRAP_EVENT_FD. It must never be run by hand.
package main

import (
	"fmt"
	"os"

	"github.com/pacwrap/pacwrap/lib/process"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "transact" {
		process.Fatal(fmt.Errorf("usage: pacwrap-agent transact (launched by pacwrap, not interactively)"))
	}
	if err := run(); err != nil {
		process.Fatal(err)
	}
}
