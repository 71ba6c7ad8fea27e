// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup materialises a container's effective filesystem by
// hardlinking files from its ancestor roots into the target root, so
// content shared across the fleet exists as a single inode.
//
// Sources are applied farthest ancestor first, nearest last, with
// last-writer-wins per path. A file already present in the target is
// left alone when it is the same inode; replaced with a hardlink when
// its identity (size, mtime, and a lazily computed SHA256) matches
// the source; and otherwise reported as a local override and kept,
// unless the sync runs with force. Paths recorded in the container's
// tombstone list are neither materialised nor allowed to survive in
// the target.
//
// All writes go to a temporary sibling and are renamed into place, so
// an interrupted sync leaves the prior committed state plus orphan
// temporaries, which the next sync reclaims before doing anything
// else.
package dedup
