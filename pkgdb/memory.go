// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import "sort"

// MemoryStore is the in-memory [Store]. The driver uses it for
// planning against metadata-derived state, and it is the package's
// test double.
type MemoryStore struct {
	installed map[string]Package
	available map[string]Package
}

// NewMemoryStore builds a store from installed packages and the
// candidate set of the enabled repositories.
func NewMemoryStore(installed, available []Package) *MemoryStore {
	store := &MemoryStore{
		installed: make(map[string]Package, len(installed)),
		available: make(map[string]Package, len(available)),
	}
	for _, pkg := range installed {
		store.installed[pkg.Name] = pkg
	}
	for _, pkg := range available {
		store.available[pkg.Name] = pkg
	}
	return store
}

// Installed implements [Store].
func (s *MemoryStore) Installed() ([]Package, error) {
	out := make([]Package, 0, len(s.installed))
	for _, pkg := range s.installed {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Available implements [Store].
func (s *MemoryStore) Available(name string) (Package, bool, error) {
	pkg, ok := s.available[name]
	return pkg, ok, nil
}

// Install records a package as installed. Test helper.
func (s *MemoryStore) Install(pkg Package) {
	s.installed[pkg.Name] = pkg
}

// Remove drops a package from the installed set. Test helper.
func (s *MemoryStore) Remove(name string) {
	delete(s.installed, name)
}
