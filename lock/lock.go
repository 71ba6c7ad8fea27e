// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/pacwrap/pacwrap/liberror"
)

// Lock is a held advisory lock on one container.
type Lock struct {
	container string
	file      *os.File
	exclusive bool
}

// Acquire takes the lock at path for container. Exclusive locks are
// for mutation, shared locks for planning and reads. The call does
// not block: a held conflicting lock fails immediately with a Lock
// error so the CLI can exit with the contention code.
func Acquire(path, container string, exclusive bool) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, liberror.Wrap(liberror.IO, err, "creating lock directory").In(container)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, liberror.Wrap(liberror.IO, err, "opening lock file %s", path).In(container)
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(file.Fd()), how|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, liberror.New(liberror.Lock, "container is locked by another invocation").In(container)
		}
		return nil, liberror.Wrap(liberror.IO, err, "locking %s", path).In(container)
	}
	return &Lock{container: container, file: file, exclusive: exclusive}, nil
}

// Upgrade re-acquires the lock exclusively. Used when a transaction
// moves from planning to commit. Non-blocking like Acquire; on
// contention the shared lock is retained.
func (l *Lock) Upgrade() error {
	if l.exclusive {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return liberror.New(liberror.Lock, "container is locked by another invocation").In(l.container)
		}
		return liberror.Wrap(liberror.IO, err, "upgrading lock").In(l.container)
	}
	l.exclusive = true
	return nil
}

// Container returns the locked container's id.
func (l *Lock) Container() string {
	return l.container
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		file.Close()
		return liberror.Wrap(liberror.IO, err, "unlocking").In(l.container)
	}
	return file.Close()
}
