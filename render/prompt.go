// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pacwrap/pacwrap/liberror"
)

// Confirm asks the operator to proceed. Returns UserAbort when the
// answer is anything but yes. Under noConfirm, or when stdin is not a
// terminal, the transaction proceeds unprompted.
func Confirm(out io.Writer, prompt string, noConfirm bool) error {
	if noConfirm {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return liberror.New(liberror.UserAbort, "aborted")
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		return liberror.New(liberror.UserAbort, "aborted")
	}
	return nil
}
