// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package alpm

import (
	"strings"
	"time"

	goalpm "github.com/Jguer/go-alpm/v2"

	"github.com/pacwrap/pacwrap/liberror"
)

// CommitRequest describes one libalpm transaction.
type CommitRequest struct {
	// Upgrade runs a system upgrade in addition to the explicit
	// targets.
	Upgrade bool

	// Remove removes the targets instead of installing them.
	Remove bool

	// Targets are package names, resolved against the sync
	// repositories (or the local database for removals).
	Targets []string

	// Retries and Backoff form the download retry policy. The whole
	// commit is retried on download-classified failures because
	// libalpm performs downloads inside the commit; already-fetched
	// packages are served from the cache on the next attempt.
	Retries int
	Backoff time.Duration
}

// Commit runs one transaction against the store's handle.
func (s *Store) Commit(request CommitRequest) error {
	attempts := request.Retries
	if attempts < 1 {
		attempts = 1
	}
	backoff := request.Backoff

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		err = s.commitOnce(request)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return liberror.Wrap(liberror.AgentPackage, err, "download retries exhausted")
}

func (s *Store) commitOnce(request CommitRequest) error {
	if err := s.handle.TransInit(goalpm.TransFlagAllDeps); err != nil {
		return liberror.Wrap(liberror.Package, err, "initialising transaction")
	}
	defer s.handle.TransRelease()

	if request.Upgrade {
		if err := s.handle.SyncSysupgrade(false); err != nil {
			return liberror.Wrap(liberror.Package, err, "computing system upgrade")
		}
	}

	for _, target := range request.Targets {
		if request.Remove {
			pkg := s.localDB.Pkg(target)
			if pkg == nil {
				return liberror.New(liberror.Package, "package %q is not installed", target)
			}
			if err := s.handle.RemovePkg(pkg); err != nil {
				return liberror.Wrap(liberror.Package, err, "queueing removal of %s", target)
			}
			continue
		}
		pkg := s.findSyncPackage(target)
		if pkg == nil {
			return liberror.New(liberror.Package, "package %q not found in repositories", target)
		}
		if err := s.handle.AddPkg(pkg); err != nil {
			return liberror.Wrap(liberror.Package, err, "queueing install of %s", target)
		}
	}

	if err := s.handle.TransPrepare(); err != nil {
		return liberror.Wrap(liberror.Package, err, "preparing transaction")
	}
	if err := s.handle.TransCommit(); err != nil {
		return liberror.Wrap(liberror.Package, err, "committing transaction")
	}
	return nil
}

func (s *Store) findSyncPackage(name string) goalpm.IPackage {
	for _, db := range s.syncDBs {
		if pkg := db.Pkg(name); pkg != nil {
			return pkg
		}
	}
	return nil
}

// retryable classifies libalpm failures worth retrying: download and
// mirror errors. Dependency and file-conflict errors are not going to
// improve on a second attempt.
func retryable(err error) bool {
	message := strings.ToLower(err.Error())
	for _, marker := range []string{"download", "retriev", "transfer", "timeout", "temporary failure"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
