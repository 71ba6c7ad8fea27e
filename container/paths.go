// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"path/filepath"

	"github.com/pacwrap/pacwrap/lib/config"
	"github.com/pacwrap/pacwrap/liberror"
)

// maxSymbolicHops bounds symbolic target chains. A chain longer than
// this is treated as cyclic.
const maxSymbolicHops = 8

// Paths maps container identifiers to their on-disk locations. All
// returned paths are absolute. Identifiers must have passed ParseID;
// the registry guarantees this for every handle it returns, which
// also rules out path traversal through crafted ids.
type Paths struct {
	env config.Environment
}

// NewPaths returns a path resolver over the given environment.
func NewPaths(env config.Environment) Paths {
	return Paths{env: env}
}

// Dir is the container's state directory: $DATA/container/<id>.
func (p Paths) Dir(id string) string {
	return filepath.Join(p.env.ContainerDataDir(), id)
}

// Root is the container's OS tree.
func (p Paths) Root(id string) string {
	return filepath.Join(p.Dir(id), "root")
}

// Home is the container's user data directory.
func (p Paths) Home(id string) string {
	return filepath.Join(p.Dir(id), "home")
}

// LocalDB is the container's package database directory.
func (p Paths) LocalDB(id string) string {
	return filepath.Join(p.Dir(id), "local")
}

// MetaFile is the container's metadata file.
func (p Paths) MetaFile(id string) string {
	return filepath.Join(p.Dir(id), "meta")
}

// TombstoneFile is the container's tombstone list.
func (p Paths) TombstoneFile(id string) string {
	return filepath.Join(p.Dir(id), "tombstones")
}

// LockFile is the container's advisory lock file. It lives beside the
// container directory, not inside it, so removal of the container
// does not race the lock.
func (p Paths) LockFile(id string) string {
	return filepath.Join(p.env.ContainerDataDir(), id+".lck")
}

// ConfigFile is the container's configuration file.
func (p Paths) ConfigFile(id string) string {
	return filepath.Join(p.env.ContainerConfigDir(), id+".yml")
}

// CacheDir is the shared package cache, identical for all containers.
func (p Paths) CacheDir() string {
	return p.env.PackageCacheDir()
}

// ResolveSymbolic follows symbolic targets from id until a
// non-symbolic container is reached. At most maxSymbolicHops links
// are followed; exceeding the limit, or reaching an unknown
// container, fails.
func ResolveSymbolic(handles map[string]*Handle, id string) (string, error) {
	current := id
	for hop := 0; hop <= maxSymbolicHops; hop++ {
		handle, ok := handles[current]
		if !ok {
			return "", liberror.New(liberror.DepMissing, "symbolic target %q not configured", current).In(id)
		}
		if handle.Type != Symbolic {
			return current, nil
		}
		current = handle.Target
	}
	return "", liberror.New(liberror.DepCycle, "symbolic chain exceeds %d hops", maxSymbolicHops).In(id)
}
