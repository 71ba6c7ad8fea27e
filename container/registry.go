// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/pacwrap/pacwrap/lib/config"
	"github.com/pacwrap/pacwrap/liberror"
)

// Registry holds every configured container for one invocation. It is
// rebuilt on each command and never shared across processes; all
// cross-process coordination goes through the lock files.
type Registry struct {
	paths   Paths
	handles map[string]*Handle
}

// LoadRegistry reads every container configuration under
// $CONFIG/container/ and the metadata of each initialised container.
func LoadRegistry(env config.Environment) (*Registry, error) {
	paths := NewPaths(env)
	registry := &Registry{paths: paths, handles: make(map[string]*Handle)}

	entries, err := os.ReadDir(env.ContainerConfigDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return registry, nil
		}
		return nil, liberror.Wrap(liberror.Config, err, "reading %s", env.ContainerConfigDir())
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		id := strings.TrimSuffix(name, ".yml")
		handle, err := LoadHandle(id, paths.ConfigFile(id))
		if err != nil {
			return nil, err
		}
		handle.Meta, err = LoadMetadata(paths.MetaFile(id))
		if err != nil {
			return nil, err
		}
		registry.handles[id] = handle
	}
	return registry, nil
}

// Paths returns the registry's path resolver.
func (r *Registry) Paths() Paths {
	return r.paths
}

// Handle returns the handle for id.
func (r *Registry) Handle(id string) (*Handle, error) {
	handle, ok := r.handles[id]
	if !ok {
		return nil, liberror.New(liberror.DepMissing, "container %q not configured", id)
	}
	return handle, nil
}

// Handles exposes the full id→handle map. Callers must not mutate it.
func (r *Registry) Handles() map[string]*Handle {
	return r.handles
}

// Declared returns every configured container id, sorted.
func (r *Registry) Declared() []string {
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Present returns the sorted ids of containers with an initialised
// root. Symbolic containers are present when their resolved target
// is.
func (r *Registry) Present() []string {
	var ids []string
	for id, handle := range r.handles {
		target := id
		if handle.Type == Symbolic {
			resolved, err := ResolveSymbolic(r.handles, id)
			if err != nil {
				continue
			}
			target = resolved
		}
		if info, err := os.Stat(r.paths.Root(target)); err == nil && info.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Insert adds a speculative handle for a container being created. The
// id must not collide with a configured container.
func (r *Registry) Insert(handle *Handle) error {
	if _, exists := r.handles[handle.ID]; exists {
		return liberror.New(liberror.Plan, "container already exists").In(handle.ID)
	}
	if err := handle.validate(); err != nil {
		return err
	}
	r.handles[handle.ID] = handle
	return nil
}

// Remove drops a handle from the in-memory registry. On-disk state is
// the caller's responsibility.
func (r *Registry) Remove(id string) {
	delete(r.handles, id)
}
