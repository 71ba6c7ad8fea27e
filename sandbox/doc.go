// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox builds the unprivileged namespace the agent runs
// in: the bubblewrap command line from a container's mount plan, and
// the seccomp filter the agent installs on itself before touching the
// package database.
//
// The sandbox always unshares the user namespace; pid, ipc and uts
// namespaces follow. Network stays shared: the agent downloads
// packages. The environment is cleared and rebuilt from the
// allowlist in the agent parameters, so nothing leaks from the
// operator's shell into the container.
package sandbox
