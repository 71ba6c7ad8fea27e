// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging provides the transaction log and the slog handler
// that routes structured records into it.
//
// The transaction log ($DATA/pacwrap.log) is an append-only,
// line-oriented file shared by the driver and every agent. Each line
// carries an ISO-8601 UTC timestamp, the operation id, the container
// id (or "-" for fleet-level records), and the message. The file is
// opened with O_APPEND so concurrent writers interleave at line
// granularity without locking.
package logging
