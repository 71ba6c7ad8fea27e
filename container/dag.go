// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"sort"

	"github.com/pacwrap/pacwrap/liberror"
)

// Closure returns the dependency closure of targets in topological
// order: every container before anything that depends on it, ties
// broken lexicographically so fleet operations are deterministic.
// Symbolic containers contribute their resolved target to the
// closure. The graph is validated on the way: cycles and missing
// dependencies fail with the offending edge.
func (r *Registry) Closure(targets []string) ([]string, error) {
	closure := make(map[string]struct{})
	var visit func(id string) error
	visit = func(id string) error {
		if _, seen := closure[id]; seen {
			return nil
		}
		handle, ok := r.handles[id]
		if !ok {
			return liberror.New(liberror.DepMissing, "container %q not configured", id)
		}
		if handle.Type == Symbolic {
			resolved, err := ResolveSymbolic(r.handles, id)
			if err != nil {
				return err
			}
			closure[id] = struct{}{}
			return visit(resolved)
		}
		closure[id] = struct{}{}
		for _, dep := range handle.Dependencies {
			if _, ok := r.handles[dep]; !ok {
				return liberror.New(liberror.DepMissing,
					"dependency %q of %q not configured", dep, id)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range targets {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	ordered, err := r.sortTopological(closure)
	if err != nil {
		return nil, err
	}
	for _, id := range ordered {
		if err := r.validateAncestry(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// sortTopological is Kahn's algorithm over the subgraph induced by
// members, draining ready nodes in lexicographic order. A non-empty
// remainder is a cycle; the reported edge is the lexicographically
// first edge inside it.
func (r *Registry) sortTopological(members map[string]struct{}) ([]string, error) {
	indegree := make(map[string]int, len(members))
	dependents := make(map[string][]string, len(members))
	for id := range members {
		indegree[id] += 0
		for _, dep := range r.edges(id) {
			if _, ok := members[dep]; !ok {
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, degree := range indegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(members))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)

		released := dependents[id]
		sort.Strings(released)
		for _, dependent := range released {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(ordered) != len(members) {
		return nil, r.cycleError(members, indegree)
	}
	return ordered, nil
}

// edges returns the outgoing dependency edges of id inside the graph:
// declared dependencies, or the resolved target for symbolic
// containers.
func (r *Registry) edges(id string) []string {
	handle := r.handles[id]
	if handle == nil {
		return nil
	}
	if handle.Type == Symbolic {
		return []string{handle.Target}
	}
	return handle.Dependencies
}

// cycleError names the lexicographically first edge between
// still-cyclic nodes, which is the minimal reproducer an operator
// needs to break the cycle.
func (r *Registry) cycleError(members map[string]struct{}, indegree map[string]int) error {
	var cyclic []string
	for id, degree := range indegree {
		if degree > 0 {
			cyclic = append(cyclic, id)
		}
	}
	sort.Strings(cyclic)
	inCycle := make(map[string]struct{}, len(cyclic))
	for _, id := range cyclic {
		inCycle[id] = struct{}{}
	}
	for _, id := range cyclic {
		deps := append([]string(nil), r.edges(id)...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := inCycle[dep]; ok {
				return liberror.New(liberror.DepCycle,
					"dependency cycle through edge %s -> %s", id, dep)
			}
		}
	}
	return liberror.New(liberror.DepCycle, "dependency cycle detected")
}

// validateAncestry enforces the graph-level type rules for one
// container: slices and aggregates require exactly one base ancestor,
// and may not depend on aggregates or symbolic containers.
func (r *Registry) validateAncestry(id string) error {
	handle := r.handles[id]
	if handle.Type == Base || handle.Type == Symbolic {
		return nil
	}

	for _, dep := range handle.Dependencies {
		depHandle := r.handles[dep]
		if depHandle == nil {
			return liberror.New(liberror.DepMissing, "dependency %q not configured", dep).In(id)
		}
		switch depHandle.Type {
		case Aggregate:
			return liberror.New(liberror.Config,
				"%s depends on aggregate %q; aggregates are leaves", handle.Type, dep).In(id)
		case Symbolic:
			return liberror.New(liberror.Config,
				"%s depends on symbolic %q; depend on its target instead", handle.Type, dep).In(id)
		}
	}

	bases := 0
	ancestors, err := r.Ancestors(id)
	if err != nil {
		return err
	}
	for _, ancestor := range ancestors {
		if r.handles[ancestor].Type == Base {
			bases++
		}
	}
	if bases != 1 {
		return liberror.New(liberror.Config,
			"%s has %d base ancestors, want exactly 1", handle.Type, bases).In(id)
	}
	return nil
}

// Ancestors returns the strict ancestors of id in topological order:
// the base first, nearer ancestors later. This is exactly the source
// order the dedup engine wants, where nearer ancestors overwrite
// farther ones.
func (r *Registry) Ancestors(id string) ([]string, error) {
	if _, ok := r.handles[id]; !ok {
		return nil, liberror.New(liberror.DepMissing, "container %q not configured", id)
	}

	closure := make(map[string]struct{})
	var visit func(string) error
	visit = func(current string) error {
		for _, dep := range r.edges(current) {
			if _, ok := r.handles[dep]; !ok {
				return liberror.New(liberror.DepMissing,
					"dependency %q of %q not configured", dep, current)
			}
			if _, seen := closure[dep]; seen {
				continue
			}
			closure[dep] = struct{}{}
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(id); err != nil {
		return nil, err
	}
	return r.sortTopological(closure)
}

// Dependents returns the sorted transitive dependents of id among the
// given fleet members. Used to skip downstream containers after a
// failure.
func (r *Registry) Dependents(id string, fleet []string) []string {
	reaches := func(from string) bool {
		seen := make(map[string]struct{})
		var walk func(string) bool
		walk = func(current string) bool {
			for _, dep := range r.edges(current) {
				if dep == id {
					return true
				}
				if _, ok := seen[dep]; ok {
					continue
				}
				seen[dep] = struct{}{}
				if walk(dep) {
					return true
				}
			}
			return false
		}
		return walk(from)
	}

	var out []string
	for _, member := range fleet {
		if member != id && reaches(member) {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return out
}

// insertSorted inserts value into a sorted slice, keeping it sorted.
func insertSorted(sorted []string, value string) []string {
	at := sort.SearchStrings(sorted, value)
	sorted = append(sorted, "")
	copy(sorted[at+1:], sorted[at:])
	sorted[at] = value
	return sorted
}
