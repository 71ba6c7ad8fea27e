// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package alpm

import (
	goalpm "github.com/Jguer/go-alpm/v2"

	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/pkgdb"
)

// Store is the libalpm-backed pkgdb.Store for one container root.
type Store struct {
	handle  *goalpm.Handle
	localDB goalpm.IDB
	syncDBs []goalpm.IDB

	// callbacks and downloads carry the observer state registered by
	// SetCallbacks; see callbacks.go.
	callbacks Callbacks
	downloads *downloadState
}

// Open initialises libalpm over the container root mounted at root,
// with its local database at dbPath and the shared download cache at
// cacheDir, and registers the configured sync repositories.
func Open(root, dbPath, cacheDir string, repos []pkgdb.Repository) (*Store, error) {
	handle, err := goalpm.Initialize(root, dbPath)
	if err != nil {
		return nil, liberror.Wrap(liberror.Package, err, "initialising libalpm at %s", root)
	}

	store := &Store{handle: handle}

	if err := handle.SetCacheDirs(cacheDir); err != nil {
		handle.Release()
		return nil, liberror.Wrap(liberror.Package, err, "setting cache directory")
	}

	localDB, err := handle.LocalDB()
	if err != nil {
		handle.Release()
		return nil, liberror.Wrap(liberror.Package, err, "opening local database")
	}
	store.localDB = localDB

	for _, repo := range repos {
		syncDB, err := handle.RegisterSyncDB(repo.Name, sigLevel(repo.SigLevel))
		if err != nil {
			handle.Release()
			return nil, liberror.Wrap(liberror.Package, err, "registering repository %s", repo.Name)
		}
		syncDB.SetServers(repo.Servers)
		store.syncDBs = append(store.syncDBs, syncDB)
	}
	return store, nil
}

// Close releases the libalpm handle.
func (s *Store) Close() error {
	if err := s.handle.Release(); err != nil {
		return liberror.Wrap(liberror.Package, err, "releasing libalpm handle")
	}
	return nil
}

// Installed implements pkgdb.Store.
func (s *Store) Installed() ([]pkgdb.Package, error) {
	var out []pkgdb.Package
	for _, pkg := range s.localDB.PkgCache().Slice() {
		out = append(out, pkgdb.Package{
			Name:     pkg.Name(),
			Version:  pkg.Version(),
			Explicit: pkg.Reason() == goalpm.PkgReasonExplicit,
		})
	}
	return out, nil
}

// Available implements pkgdb.Store. Repositories are consulted in
// registration order, which follows the repositories.conf order, so
// repository priority matches pacman semantics.
func (s *Store) Available(name string) (pkgdb.Package, bool, error) {
	for _, db := range s.syncDBs {
		if pkg := db.Pkg(name); pkg != nil {
			return pkgdb.Package{Name: pkg.Name(), Version: pkg.Version()}, true, nil
		}
	}
	return pkgdb.Package{}, false, nil
}

// RefreshDatabases downloads fresh copies of every sync database.
// force re-downloads even when the mirror reports no change.
func (s *Store) RefreshDatabases(force bool) error {
	for _, db := range s.syncDBs {
		if err := db.Update(force); err != nil {
			return liberror.Wrap(liberror.Package, err, "refreshing database %s", db.Name())
		}
	}
	return nil
}

// sigLevel maps the pkgdb policy onto libalpm's bitfield.
func sigLevel(level pkgdb.SigLevel) goalpm.SigLevel {
	if level&pkgdb.SigNever != 0 {
		return 0
	}
	var out goalpm.SigLevel
	if level&pkgdb.SigPackage != 0 {
		out |= goalpm.SigPackage
	}
	if level&pkgdb.SigPackageOptional != 0 {
		out |= goalpm.SigPackage | goalpm.SigPackageOptional
	}
	if level&pkgdb.SigDatabase != 0 {
		out |= goalpm.SigDatabase
	}
	if level&pkgdb.SigDatabaseOptional != 0 {
		out |= goalpm.SigDatabase | goalpm.SigDatabaseOptional
	}
	if level&pkgdb.SigTrustAll != 0 {
		out |= goalpm.SigPackageUnknownOk | goalpm.SigDatabaseUnknownOk
	}
	return out
}
