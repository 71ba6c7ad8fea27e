// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/dedup"
	"github.com/pacwrap/pacwrap/lib/logging"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/lock"
	"github.com/pacwrap/pacwrap/pkgdb"
)

// Committer runs the commit stage for one container. The production
// implementation launches the sandboxed agent; tests substitute a
// fake.
type Committer interface {
	Commit(ctx context.Context, work *PerContainerWork, params *agent.Params) (agent.Summary, error)
}

// Aggregator drives a plan across the fleet.
type Aggregator struct {
	// Registry is the fleet registry the plan was built against.
	Registry *container.Registry

	// Syncer is the dedup engine, shared across the fleet run.
	Syncer *dedup.Syncer

	// Committer runs agent transactions.
	Committer Committer

	// Repositories is the enabled repository list forwarded to every
	// agent.
	Repositories []pkgdb.Repository

	// Environment is the allowlisted environment for agents.
	Environment map[string]string

	// DownloadRetries and DownloadBackoffMillis form the agent retry
	// policy.
	DownloadRetries       int
	DownloadBackoffMillis int

	// ForceFilesystem replaces local overrides during staging.
	ForceFilesystem bool

	// Parallelism bounds concurrently running containers within a
	// topological wave.
	Parallelism int

	// Log is the transaction log; may be nil in tests.
	Log *logging.TransactionLog
}

// Result is the outcome for one container.
type Result struct {
	// ID is the container.
	ID string

	// State is the terminal state reached.
	State State

	// Summary is the agent's reported effect, zero when no agent
	// ran.
	Summary agent.Summary

	// Overrides are diverged paths reported by staging.
	Overrides []string

	// SkippedForeign lists foreign targets that were not acted on.
	SkippedForeign []string

	// Err is the failure, nil unless State is Failed, Cancelled or
	// Skipped.
	Err error
}

// Execute runs the plan. Containers in the same topological wave run
// concurrently; a failure marks all transitive dependents skipped and
// the rest of the fleet continues. The returned results are ordered
// by the plan's execution order.
func (a *Aggregator) Execute(ctx context.Context, plan *Plan) []Result {
	results := make(map[string]*Result, len(plan.Order))
	var mu sync.Mutex

	halted := make(map[string]string) // container -> failed dependency

	for _, wave := range a.waves(plan) {
		group, waveCtx := errgroup.WithContext(ctx)
		limit := a.Parallelism
		if limit < 1 {
			limit = 1
		}
		group.SetLimit(limit)

		for _, id := range wave {
			id := id
			work := plan.Work[id]
			if work == nil {
				continue
			}

			mu.Lock()
			blockedOn, blocked := halted[id]
			mu.Unlock()
			if blocked {
				mu.Lock()
				results[id] = &Result{ID: id, State: StateSkipped,
					Err: liberror.New(liberror.Plan, "skipped: dependency %s failed", blockedOn).In(id)}
				mu.Unlock()
				continue
			}

			group.Go(func() error {
				result := a.runContainer(waveCtx, plan, work)
				mu.Lock()
				results[id] = result
				if result.State == StateFailed || result.State == StateCancelled {
					for _, dependent := range a.Registry.Dependents(id, plan.Order) {
						if _, already := halted[dependent]; !already {
							halted[dependent] = id
						}
					}
				}
				mu.Unlock()
				// Container failures do not abort the wave; ctx
				// cancellation propagates separately.
				return nil
			})
		}
		group.Wait()
	}

	ordered := make([]Result, 0, len(results))
	for _, id := range plan.Order {
		if result := results[id]; result != nil {
			ordered = append(ordered, *result)
		}
	}
	return ordered
}

// runContainer walks one container through the pipeline.
func (a *Aggregator) runContainer(ctx context.Context, plan *Plan, work *PerContainerWork) *Result {
	result := &Result{ID: work.ID, State: StateIdle}
	state := StateIdle

	fail := func(err error) *Result {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			result.State = state.advance(StateCancelled)
			result.Err = liberror.New(liberror.AgentCancelled, "cancelled during %s", state).In(work.ID)
		} else {
			result.State = state.advance(StateFailed)
			if state.Durable() {
				err = liberror.Wrap(liberror.KindOf(err), err,
					"partially updated, next run repairs from %s", state).In(work.ID)
			}
			result.Err = err
		}
		a.record(logging.Error, work.ID, "failed at %s: %v", state, result.Err)
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	handle, err := a.Registry.Handle(work.ID)
	if err != nil {
		return fail(err)
	}
	paths := a.Registry.Paths()

	// Planning: lock shared, build the agent parameters.
	state = state.advance(StatePlanning)
	held, err := lock.Acquire(paths.LockFile(work.ID), work.ID, false)
	if err != nil {
		return fail(err)
	}
	defer held.Release()

	params := &agent.Params{
		Container:             work.ID,
		Mode:                  work.Mode,
		Flags:                 work.Flags,
		Repositories:          a.Repositories,
		SigLevel:              pkgdb.SigLevelDefault,
		Resident:              work.Resident,
		Foreign:               work.Foreign,
		Environment:           a.Environment,
		Seccomp:               handle.Seccomp,
		DownloadRetries:       a.DownloadRetries,
		DownloadBackoffMillis: a.DownloadBackoffMillis,
		Nonce:                 agent.NewNonce(),
	}
	state = state.advance(StatePrepared)
	a.record(logging.Info, work.ID, "prepared %s", work.Mode)

	// Staging: exclusive lock, dedup against ancestors, tombstones.
	if err := held.Upgrade(); err != nil {
		return fail(err)
	}
	tombstones, err := container.LoadTombstones(paths.TombstoneFile(work.ID))
	if err != nil {
		return fail(err)
	}
	if work.Mode != agent.DatabaseOnly {
		ancestors, err := a.Registry.Ancestors(work.ID)
		if err != nil {
			return fail(err)
		}
		roots := make([]string, 0, len(ancestors))
		for _, ancestor := range ancestors {
			if a.Registry.Handles()[ancestor].Type.HasRoot() {
				roots = append(roots, paths.Root(ancestor))
			}
		}
		report, err := a.Syncer.Sync(ctx, work.ID, paths.Root(work.ID), roots, tombstones, a.ForceFilesystem)
		if err != nil {
			return fail(err)
		}
		result.Overrides = report.Overrides
		for _, override := range report.Overrides {
			level := logging.Warn
			if !a.ForceFilesystem {
				a.record(level, work.ID, "local override retained: %s", override)
			} else {
				a.record(level, work.ID, "local override replaced: %s", override)
			}
		}
	}
	state = state.advance(StateStaged)

	// Commit: the agent mutates the package database.
	if len(work.Foreign) > 0 && !work.Flags.Has(agent.FlagForceForeign) {
		result.SkippedForeign = sortedCopy(work.Foreign)
		a.record(logging.Warn, work.ID, "skipping foreign targets: %v", result.SkippedForeign)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if work.NeedsAgent {
		summary, err := a.Committer.Commit(ctx, work, params)
		if err != nil {
			return fail(err)
		}
		result.Summary = summary
	}
	state = state.advance(StateCommitted)

	// Publish: metadata update behind the fsync barrier.
	if err := a.publish(ctx, handle, work, tombstones); err != nil {
		return fail(err)
	}
	state = state.advance(StatePublished)

	state = state.advance(StateDone)
	result.State = state
	a.record(logging.Info, work.ID, "done: +%d -%d %d bytes",
		result.Summary.Added, result.Summary.Removed, result.Summary.NetBytes)
	return result
}

// publish records the transaction in container metadata. Rewriting
// metadata is idempotent, so a failed publish is retried wholesale by
// the next run.
func (a *Aggregator) publish(ctx context.Context, handle *container.Handle, work *PerContainerWork, tombstones *container.Tombstones) error {
	paths := a.Registry.Paths()

	meta := handle.Meta
	if meta == nil {
		meta = container.NewMetadata(nil, handle.Dependencies)
	}
	meta.Dependencies = append([]string(nil), handle.Dependencies...)
	meta.Packages = updateExplicit(meta.Packages, work)
	meta.Touch()

	if work.Mode != agent.DatabaseOnly {
		entries, err := a.Syncer.CollectManifest(ctx, paths.Root(work.ID))
		if err != nil {
			return err
		}
		if err := meta.SetManifest(entries); err != nil {
			return liberror.Wrap(liberror.Internal, err, "building manifest").In(work.ID)
		}
	}

	if err := container.SaveMetadata(meta, paths.MetaFile(work.ID)); err != nil {
		return err
	}
	if err := tombstones.Save(paths.TombstoneFile(work.ID)); err != nil {
		return err
	}
	handle.Meta = meta
	return nil
}

// updateExplicit computes the post-transaction explicit package set.
func updateExplicit(current []string, work *PerContainerWork) []string {
	set := make(map[string]struct{}, len(current))
	for _, name := range current {
		set[name] = struct{}{}
	}
	switch work.Mode {
	case agent.Remove:
		for _, name := range work.Resident {
			delete(set, name)
		}
	default:
		for _, name := range work.Resident {
			set[name] = struct{}{}
		}
		if work.Flags.Has(agent.FlagForceForeign) {
			for _, name := range work.Foreign {
				set[name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// waves groups the plan's order into topological levels: everything
// in one wave is independent of everything else in it.
func (a *Aggregator) waves(plan *Plan) [][]string {
	inPlan := make(map[string]struct{}, len(plan.Order))
	for _, id := range plan.Order {
		inPlan[id] = struct{}{}
	}
	level := make(map[string]int, len(plan.Order))
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if l, ok := level[id]; ok {
			return l
		}
		max := 0
		handle := a.Registry.Handles()[id]
		if handle != nil {
			for _, dep := range handle.Dependencies {
				if _, ok := inPlan[dep]; !ok {
					continue
				}
				if l := levelOf(dep) + 1; l > max {
					max = l
				}
			}
		}
		level[id] = max
		return max
	}

	byLevel := make(map[int][]string)
	maxLevel := 0
	for _, id := range plan.Order {
		l := levelOf(id)
		byLevel[l] = append(byLevel[l], id)
		if l > maxLevel {
			maxLevel = l
		}
	}
	waves := make([][]string, 0, maxLevel+1)
	for l := 0; l <= maxLevel; l++ {
		sort.Strings(byLevel[l])
		waves = append(waves, byLevel[l])
	}
	return waves
}

func (a *Aggregator) record(level logging.Level, id, format string, args ...any) {
	if a.Log != nil {
		if err := a.Log.Record(level, id, format, args...); err != nil {
			slog.Warn("transaction log write failed", "container", id, "error", err)
		}
	}
}
