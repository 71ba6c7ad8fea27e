// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package alpm binds the pkgdb store interface to libalpm through the
// go-alpm cgo bindings. Only the agent links this package; the driver
// plans against metadata-derived memory stores and never loads
// libalpm into the outer process.
package alpm
