// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"sort"
)

// Package is the slice of package state the core needs.
type Package struct {
	// Name is the package name.
	Name string `cbor:"name"`

	// Version is the installed or candidate version string.
	Version string `cbor:"version"`

	// Explicit is true when the package was installed by explicit
	// request rather than as a dependency.
	Explicit bool `cbor:"explicit,omitempty"`
}

// Store is the package database view of one container. The driver
// uses [MemoryStore]; the agent binds the libalpm implementation in
// pkgdb/alpm.
type Store interface {
	// Installed lists packages in the container's local database.
	Installed() ([]Package, error)

	// Available looks a package up in the container's enabled sync
	// repositories.
	Available(name string) (Package, bool, error)
}

// Classification partitions requested targets by where they can be
// serviced for a given container.
type Classification struct {
	// Resident targets exist in the container's enabled repositories
	// and are operated on normally.
	Resident []string

	// Foreign targets are absent from the container's repositories
	// but installed somewhere upstream. They are read-only for this
	// container unless the transaction forces foreign handling.
	Foreign []string

	// Unknown targets exist neither in the repositories nor
	// upstream. The planner rejects them.
	Unknown []string
}

// Classify splits targets against the container's repository view
// and the set of packages installed in its ancestor containers.
// Upstream state wins: a package already installed in an ancestor is
// foreign here even when the repositories could also serve it,
// because its files arrive by hardlink and its database entry lives
// upstream.
func Classify(targets []string, store Store, upstreamInstalled map[string]struct{}) (Classification, error) {
	var c Classification
	for _, target := range targets {
		if _, upstream := upstreamInstalled[target]; upstream {
			c.Foreign = append(c.Foreign, target)
			continue
		}
		_, available, err := store.Available(target)
		if err != nil {
			return Classification{}, err
		}
		if available {
			c.Resident = append(c.Resident, target)
		} else {
			c.Unknown = append(c.Unknown, target)
		}
	}
	sort.Strings(c.Resident)
	sort.Strings(c.Foreign)
	sort.Strings(c.Unknown)
	return c, nil
}

// Optimistic wraps a store with an all-accepting repository view.
// The driver uses it because the outer process never reads sync
// databases: the agent is the authority on availability and fails
// cleanly on genuinely unknown packages.
func Optimistic(inner Store) Store {
	return optimistic{inner: inner}
}

type optimistic struct {
	inner Store
}

func (o optimistic) Installed() ([]Package, error) {
	return o.inner.Installed()
}

func (o optimistic) Available(name string) (Package, bool, error) {
	return Package{Name: name}, true, nil
}

// InstalledSet collects the names of a store's installed packages.
func InstalledSet(store Store) (map[string]struct{}, error) {
	installed, err := store.Installed()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(installed))
	for _, pkg := range installed {
		set[pkg.Name] = struct{}{}
	}
	return set, nil
}
