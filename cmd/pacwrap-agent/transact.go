// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/lib/logging"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/pkgdb/alpm"
	"github.com/pacwrap/pacwrap/sandbox"
)

// Mount-plan locations, fixed by the driver's sandbox construction.
const (
	rootMount  = sandbox.AgentMountRoot
	cacheMount = sandbox.AgentMountCache
	shareMount = sandbox.AgentMountShare
)

func run() error {
	paramFile, err := inheritedFd(agent.ParamFdEnv)
	if err != nil {
		return err
	}
	defer paramFile.Close()
	eventFile, err := inheritedFd(agent.EventFdEnv)
	if err != nil {
		return err
	}
	defer eventFile.Close()

	params, err := agent.ReadParams(paramFile)
	if err != nil {
		return err
	}

	events := agent.NewEventWriter(eventFile)

	log, err := logging.Open(filepath.Join(shareMount, "pacwrap.log"), "pacwrap-agent", params.Container)
	if err != nil {
		// The share mount may be read-only in odd configurations; a
		// lost agent log must not abort the transaction.
		log = nil
	} else {
		defer log.Close()
	}

	if err := transact(params, events, log); err != nil {
		record(log, logging.Error, params.Container, "transaction error: %v", err)
		events.Send(agent.TagError, agent.ErrorEvent{
			Kind:    int(liberror.KindOf(err)),
			Message: err.Error(),
		})
		events.Finish(agent.DoneErr, liberror.KindOf(err))
		return err
	}
	return events.Finish(agent.DoneOk, 0)
}

func transact(params *agent.Params, events *agent.EventWriter, log *logging.TransactionLog) error {
	// The mount plan is the security boundary: refuse to operate if
	// the expected mounts are not declared.
	for _, required := range []string{rootMount, cacheMount} {
		if !params.WithinMounts(required) {
			return liberror.New(liberror.AgentBadHandshake, "mount plan omits %s", required)
		}
	}

	if params.Seccomp {
		if err := sandbox.ApplyFilter(); err != nil {
			return err
		}
	}

	store, err := alpm.Open(rootMount, filepath.Join(shareMount, "local"), cacheMount, params.Repositories)
	if err != nil {
		return err
	}
	defer store.Close()

	if params.Flags.Has(agent.FlagRefresh) {
		if err := store.RefreshDatabases(params.Flags.Has(agent.FlagForceDatabase)); err != nil {
			return err
		}
	}
	if params.Mode == agent.DatabaseOnly {
		events.Send(agent.TagSummary, agent.Summary{})
		return nil
	}

	targets := append([]string(nil), params.Resident...)
	foreign := map[string]bool{}
	if params.Flags.Has(agent.FlagForceForeign) {
		for _, pkg := range params.Foreign {
			targets = append(targets, pkg)
			foreign[pkg] = true
		}
	}

	installedBefore, err := installedCount(store)
	if err != nil {
		return err
	}
	bytesBefore := treeBytes(rootMount)

	// libalpm drives the event stream during commit: downloads, per
	// package operation starts, and hook phases. The callbacks fire
	// on this goroutine, which is the event writer's contract.
	store.SetCallbacks(alpm.Callbacks{
		DownloadStart: func(file string, total int64) {
			events.Send(agent.TagDownloadStart, agent.DownloadStart{
				Package: packageOfFile(file), Bytes: total})
		},
		DownloadProgress: func(file string, delta int64) {
			events.Send(agent.TagDownloadProgress, agent.DownloadProgress{
				Package: packageOfFile(file), Delta: delta})
		},
		Install: func(pkg string) {
			events.Send(agent.TagInstallStart, agent.InstallStart{
				Package: pkg, Foreign: foreign[pkg]})
		},
		Hook: func(name, phase string) {
			events.Send(agent.TagHook, agent.Hook{Name: name, Phase: phase})
		},
	})

	request := alpm.CommitRequest{
		Upgrade: params.Mode == agent.Upgrade,
		Remove:  params.Mode == agent.Remove,
		Targets: targets,
		Retries: params.DownloadRetries,
		Backoff: time.Duration(params.DownloadBackoffMillis) * time.Millisecond,
	}
	if len(targets) > 0 || request.Upgrade {
		if err := store.Commit(request); err != nil {
			return err
		}
	}

	propagateLinkerCache(events, log, params.Container)

	installedAfter, err := installedCount(store)
	if err != nil {
		return err
	}
	summary := agent.Summary{NetBytes: treeBytes(rootMount) - bytesBefore}
	if installedAfter > installedBefore {
		summary.Added = installedAfter - installedBefore
	} else {
		summary.Removed = installedBefore - installedAfter
	}
	record(log, logging.Info, params.Container, "%s complete: +%d -%d",
		params.Mode, summary.Added, summary.Removed)
	return events.Send(agent.TagSummary, summary)
}

func installedCount(store *alpm.Store) (int, error) {
	installed, err := store.Installed()
	if err != nil {
		return 0, err
	}
	return len(installed), nil
}

// propagateLinkerCache copies the regenerated ld.so.cache back into
// the staged root so hardlink dedup does not resurrect a stale one.
// Absence is fine: minimal containers may not run ldconfig at all.
func propagateLinkerCache(events *agent.EventWriter, log *logging.TransactionLog, container string) {
	source := "/etc/ld.so.cache"
	dest := filepath.Join(rootMount, "etc/ld.so.cache")
	data, err := os.ReadFile(source)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			message := "failed to propagate ld.so.cache: " + err.Error()
			events.Send(agent.TagWarning, agent.Warning{Message: message})
			record(log, logging.Warn, container, "%s", message)
		}
		return
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		message := "failed to propagate ld.so.cache: " + err.Error()
		events.Send(agent.TagWarning, agent.Warning{Message: message})
		record(log, logging.Warn, container, "%s", message)
	}
}

// treeBytes sums regular file sizes under root. Walk errors yield a
// partial sum; the figure feeds the summary line, nothing load
// bearing.
func treeBytes(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// packageOfFile reduces a download filename to the package it
// belongs to for display: the archive and signature suffixes go,
// database downloads keep their name.
func packageOfFile(file string) string {
	file = strings.TrimSuffix(file, ".sig")
	for _, suffix := range []string{".pkg.tar.zst", ".pkg.tar.xz", ".pkg.tar.gz", ".pkg.tar"} {
		if trimmed := strings.TrimSuffix(file, suffix); trimmed != file {
			return trimmed
		}
	}
	return file
}

func inheritedFd(envVar string) (*os.File, error) {
	value := os.Getenv(envVar)
	fd, err := strconv.Atoi(value)
	if err != nil || fd < 3 {
		return nil, liberror.New(liberror.AgentBadHandshake, "%s is %q, want an inherited descriptor", envVar, value)
	}
	return os.NewFile(uintptr(fd), envVar), nil
}

func record(log *logging.TransactionLog, level logging.Level, container, format string, args ...any) {
	if log != nil {
		log.Record(level, container, format, args...)
	}
}
