// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"

	"github.com/pacwrap/pacwrap/liberror"
)

// Fatal writes "error: err" to stderr and exits with the exit code
// mapped from err's error kind. This is the standard pacwrap binary
// entrypoint error handler; use it in main() for errors from run()
// where the structured logger may not be initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(liberror.ExitCodeFor(err))
}
