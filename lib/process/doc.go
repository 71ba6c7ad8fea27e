// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers shared by the
// pacwrap driver and the in-container agent.
package process
