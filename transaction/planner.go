// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"sort"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/pkgdb"
)

// StoreProvider resolves the package database view of one container.
// The driver backs it with metadata-derived memory stores; tests
// inject fixtures.
type StoreProvider func(id string) (pkgdb.Store, error)

// BuildPlan computes the fleet plan for an intent. The registry must
// already contain speculative handles for containers being created.
func BuildPlan(registry *container.Registry, intent Intent, stores StoreProvider) (*Plan, error) {
	targets := make(map[string][]string, len(intent.Targets))
	for id, packages := range intent.Targets {
		targets[id] = packages
	}

	// An upgrade with no explicit targets means the whole present
	// fleet.
	if len(targets) == 0 {
		if intent.Mode != agent.Upgrade && intent.Mode != agent.Synchronize {
			return nil, liberror.New(liberror.Plan, "no targets for %s", intent.Mode)
		}
		for _, id := range registry.Present() {
			targets[id] = nil
		}
	}

	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	order, err := registry.Closure(ids)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Order: order,
		Work:  make(map[string]*PerContainerWork, len(order)),
		Mode:  intent.Mode,
		Flags: intent.Flags,
	}

	for _, id := range order {
		handle, err := registry.Handle(id)
		if err != nil {
			return nil, err
		}
		if handle.Type == container.Symbolic {
			// Symbolic containers carry no package state; their
			// resolved target is in the closure already.
			continue
		}

		requested, isTarget := targets[id]
		if !isTarget && !intent.Flags.Has(agent.FlagTargetOnly) {
			// Dependency pulled into the closure: refresh it so
			// dependents stage against current state.
			if intent.Mode == agent.Synchronize || intent.Mode == agent.Upgrade {
				requested = nil
				isTarget = true
			}
		}
		if !isTarget {
			continue
		}

		// Creates take the explicit set from configuration when the
		// command line names none.
		if intent.Flags.Has(agent.FlagCreate) && len(requested) == 0 {
			requested = handle.Packages
		}

		work, err := planContainer(registry, handle, requested, intent, stores)
		if err != nil {
			return nil, err
		}
		plan.Work[id] = work
	}
	return plan, nil
}

// planContainer computes one container's work.
func planContainer(registry *container.Registry, handle *container.Handle, requested []string, intent Intent, stores StoreProvider) (*PerContainerWork, error) {
	work := &PerContainerWork{
		ID:    handle.ID,
		Mode:  intent.Mode,
		Flags: intent.Flags,
	}

	switch intent.Mode {
	case agent.FilesystemOnly:
		// No package work; staging alone.
		return work, nil
	case agent.Remove:
		// Removal targets need no repository classification: they
		// are checked against the local database by the agent, and
		// foreign packages are refused there unless forced.
		work.Resident = sortedCopy(requested)
		work.NeedsAgent = len(requested) > 0
		return work, nil
	}

	store, err := stores(handle.ID)
	if err != nil {
		return nil, err
	}

	upstream := make(map[string]struct{})
	ancestors, err := registry.Ancestors(handle.ID)
	if err != nil {
		return nil, err
	}
	for _, ancestor := range ancestors {
		ancestorStore, err := stores(ancestor)
		if err != nil {
			return nil, err
		}
		installed, err := pkgdb.InstalledSet(ancestorStore)
		if err != nil {
			return nil, liberror.Wrap(liberror.Package, err, "reading upstream state of %s", ancestor).In(handle.ID)
		}
		for name := range installed {
			upstream[name] = struct{}{}
		}
	}

	classified, err := pkgdb.Classify(requested, store, upstream)
	if err != nil {
		return nil, liberror.Wrap(liberror.Package, err, "classifying targets").In(handle.ID)
	}
	if len(classified.Unknown) > 0 {
		return nil, liberror.New(liberror.Plan,
			"target %q not found in repositories or upstream", classified.Unknown[0]).In(handle.ID)
	}

	work.Resident = classified.Resident
	work.Foreign = classified.Foreign
	// A refresh or upgrade needs the agent even with no explicit
	// targets; a pure no-op sync of an up-to-date container does not.
	work.NeedsAgent = len(work.Resident) > 0 ||
		(len(work.Foreign) > 0 && intent.Flags.Has(agent.FlagForceForeign)) ||
		intent.Mode == agent.Upgrade ||
		intent.Mode == agent.DatabaseOnly ||
		intent.Flags.Has(agent.FlagRefresh) ||
		intent.Flags.Has(agent.FlagCreate)
	return work, nil
}

// MetadataStore derives a driver-side package view from recorded
// container metadata: the explicit package set as the installed set
// and the union of the fleet's repositories as availability. It backs
// planning when the local databases are not mounted.
func MetadataStore(handle *container.Handle, available []pkgdb.Package) pkgdb.Store {
	var installed []pkgdb.Package
	if handle.Meta != nil {
		for _, name := range handle.Meta.Packages {
			installed = append(installed, pkgdb.Package{Name: name, Explicit: true})
		}
	} else {
		for _, name := range handle.Packages {
			installed = append(installed, pkgdb.Package{Name: name, Explicit: true})
		}
	}
	return pkgdb.NewMemoryStore(installed, available)
}
