// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package alpm

import (
	goalpm "github.com/Jguer/go-alpm/v2"
)

// Callbacks are the transaction observers the agent supplies. They
// fire on the goroutine running Commit (libalpm invokes its hooks
// synchronously), so implementations may write to the event stream
// without further serialisation.
type Callbacks struct {
	// DownloadStart fires when a file transfer begins, with its
	// total size in bytes when the mirror reports one.
	DownloadStart func(file string, total int64)

	// DownloadProgress fires with the bytes received since the
	// previous call for the same file.
	DownloadProgress func(file string, delta int64)

	// DownloadDone fires when a file transfer completes.
	DownloadDone func(file string)

	// Install fires once per package as libalpm starts operating on
	// it (install, upgrade or removal).
	Install func(pkg string)

	// Hook fires when install hooks enter or leave a phase.
	Hook func(name, phase string)
}

// downloadState tracks per-file transfer offsets so the raw
// (transferred, total) pairs libalpm reports become start/delta
// events.
type downloadState struct {
	started     map[string]bool
	transferred map[string]int64
}

// SetCallbacks registers the observers on the libalpm handle. Call
// before Commit; the zero Callbacks value unregisters nothing but
// turns every notification into a no-op.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks = cb
	s.downloads = &downloadState{
		started:     make(map[string]bool),
		transferred: make(map[string]int64),
	}
	s.handle.SetEventCallback(s.onEvent, nil)
	s.handle.SetProgressCallback(s.onProgress, nil)
	s.handle.SetDownloadCallback(s.onDownload, nil)
}

// onEvent receives libalpm's coarse transaction events. Only the
// hook lifecycle is forwarded; package add/remove reporting comes
// from the progress callback, which carries names.
func (s *Store) onEvent(_ interface{}, event goalpm.EventType) {
	if s.callbacks.Hook == nil {
		return
	}
	switch event {
	case goalpm.EventHookStart:
		s.callbacks.Hook("transaction hooks", "start")
	case goalpm.EventHookDone:
		s.callbacks.Hook("transaction hooks", "done")
	case goalpm.EventHookRunStart:
		s.callbacks.Hook("hook", "running")
	case goalpm.EventHookRunDone:
		s.callbacks.Hook("hook", "done")
	}
}

// onProgress receives per-package operation progress. The percent
// stream is too chatty for the event protocol, so only the start of
// each package operation (percent zero) is forwarded.
func (s *Store) onProgress(_ interface{}, progress goalpm.Progress, pkg string, percent, _, _ int) {
	if s.callbacks.Install == nil || percent != 0 || pkg == "" {
		return
	}
	switch progress {
	case goalpm.ProgressAddStart, goalpm.ProgressUpgradeStart, goalpm.ProgressRemoveStart:
		s.callbacks.Install(pkg)
	}
}

// onDownload receives raw transfer counters from libalpm and
// translates them into start/delta/done notifications.
func (s *Store) onDownload(_ interface{}, file string, transferred, total int64) {
	state := s.downloads
	if state == nil {
		return
	}
	if !state.started[file] {
		state.started[file] = true
		state.transferred[file] = 0
		if s.callbacks.DownloadStart != nil {
			s.callbacks.DownloadStart(file, total)
		}
	}
	if delta := transferred - state.transferred[file]; delta > 0 {
		state.transferred[file] = transferred
		if s.callbacks.DownloadProgress != nil {
			s.callbacks.DownloadProgress(file, delta)
		}
	}
	if total > 0 && transferred >= total {
		delete(state.started, file)
		delete(state.transferred, file)
		if s.callbacks.DownloadDone != nil {
			s.callbacks.DownloadDone(file)
		}
	}
}
