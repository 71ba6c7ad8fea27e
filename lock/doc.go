// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package lock provides per-container advisory locks and the live
// instance registry.
//
// Locks are BSD flock(2) locks on $DATA/container/<id>.lck. Mutating
// operations hold the exclusive lock for the whole commit stage;
// planning and read operations take it shared. Fleet operations
// acquire locks in topological order, which rules out deadlock.
//
// The instance registry is a directory of one small CBOR record per
// agent pid ($DATA/instances/<pid>), created with O_EXCL so no
// cross-process locking is needed. Records whose pid is gone are
// garbage-collected during enumeration.
package lock
