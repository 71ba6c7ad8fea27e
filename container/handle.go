// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pacwrap/pacwrap/liberror"
)

// Handle is a loaded container: its declared configuration plus, when
// the container is initialised, the metadata recorded by the last
// successful transaction.
type Handle struct {
	// ID is the validated container identifier.
	ID string

	// Type is the container type.
	Type Type

	// Target is the aliased container id for symbolic containers,
	// empty otherwise.
	Target string

	// Dependencies lists direct upstream container ids.
	Dependencies []string

	// Packages is the explicit package set declared in configuration.
	Packages []string

	// Seccomp controls whether the agent installs the syscall filter.
	// Defaults to true.
	Seccomp bool

	// UserNS controls unsharing of a nested user namespace for
	// interactive shells. Package transactions always run in one.
	UserNS bool

	// RetainSession keeps the agent's session alive after the
	// transaction for debugging.
	RetainSession bool

	// Filesystem, Permissions and DBus are opaque configuration
	// module lists owned by external collaborators. The core forwards
	// them to the sandbox mount planner without interpreting their
	// contents beyond the module tag.
	Filesystem  []ConfigModule
	Permissions []ConfigModule
	DBus        []ConfigModule

	// Meta is the recorded metadata, nil until the container has
	// completed a transaction.
	Meta *Metadata
}

// ConfigModule is one tagged entry of an opaque configuration
// section. Module dispatch is by tag; the body stays encoded until a
// collaborator that understands the tag decodes it.
type ConfigModule struct {
	// Tag identifies the module variant ("root", "home", "dev", ...).
	Tag string

	// Body is the raw YAML node of the whole module entry.
	Body yaml.Node
}

// UnmarshalYAML captures the module tag and retains the raw node.
func (m *ConfigModule) UnmarshalYAML(node *yaml.Node) error {
	var probe struct {
		Tag string `yaml:"mod"`
	}
	if err := node.Decode(&probe); err != nil {
		return err
	}
	m.Tag = probe.Tag
	m.Body = *node
	return nil
}

// MarshalYAML re-emits the retained node.
func (m ConfigModule) MarshalYAML() (any, error) {
	return &m.Body, nil
}

// handleConfig is the YAML shape of $CONFIG/container/<id>.yml. The
// identifier comes from the filename, never from the file body.
type handleConfig struct {
	Type          Type           `yaml:"type"`
	Target        string         `yaml:"target,omitempty"`
	Dependencies  []string       `yaml:"dependencies,omitempty"`
	Packages      []string       `yaml:"packages,omitempty"`
	Seccomp       *bool          `yaml:"seccomp,omitempty"`
	UserNS        bool           `yaml:"userns,omitempty"`
	RetainSession bool           `yaml:"retain_session,omitempty"`
	Filesystem    []ConfigModule `yaml:"filesystem,omitempty"`
	Permissions   []ConfigModule `yaml:"permissions,omitempty"`
	DBus          []ConfigModule `yaml:"dbus,omitempty"`
}

// LoadHandle reads one container configuration file.
func LoadHandle(id, path string) (*Handle, error) {
	if _, err := ParseID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, liberror.Wrap(liberror.Config, err, "reading container config %s", path)
	}
	var cfg handleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, liberror.Wrap(liberror.Config, err, "parsing container config %s", path)
	}

	handle := &Handle{
		ID:            id,
		Type:          cfg.Type,
		Target:        cfg.Target,
		Dependencies:  cfg.Dependencies,
		Packages:      cfg.Packages,
		Seccomp:       cfg.Seccomp == nil || *cfg.Seccomp,
		UserNS:        cfg.UserNS,
		RetainSession: cfg.RetainSession,
		Filesystem:    cfg.Filesystem,
		Permissions:   cfg.Permissions,
		DBus:          cfg.DBus,
	}
	if err := handle.validate(); err != nil {
		return nil, err
	}
	return handle, nil
}

// validate enforces the structural rules that do not require the rest
// of the graph. Graph-level rules (ancestry, cycles) live in dag.go.
func (h *Handle) validate() error {
	switch h.Type {
	case Base:
		if len(h.Dependencies) > 0 {
			return liberror.New(liberror.Config, "base container declares dependencies").In(h.ID)
		}
	case Symbolic:
		if h.Target == "" {
			return liberror.New(liberror.Config, "symbolic container has no target").In(h.ID)
		}
		if !ValidID(h.Target) {
			return liberror.New(liberror.Config, "symbolic target %q is not a valid id", h.Target).In(h.ID)
		}
		if len(h.Dependencies) > 0 || len(h.Packages) > 0 {
			return liberror.New(liberror.Config, "symbolic container declares package state").In(h.ID)
		}
	case Slice, Aggregate:
		if len(h.Dependencies) == 0 {
			return liberror.New(liberror.Config, "%s container declares no dependencies", h.Type).In(h.ID)
		}
	}
	for _, dep := range h.Dependencies {
		if !ValidID(dep) {
			return liberror.New(liberror.Config, "invalid dependency id %q", dep).In(h.ID)
		}
		if dep == h.ID {
			return liberror.New(liberror.DepCycle, "container depends on itself").In(h.ID)
		}
	}
	return nil
}

// SaveHandle writes the handle's configuration back to path. Used by
// compose to persist newly created containers.
func SaveHandle(h *Handle, path string) error {
	seccomp := h.Seccomp
	cfg := handleConfig{
		Type:          h.Type,
		Target:        h.Target,
		Dependencies:  h.Dependencies,
		Packages:      h.Packages,
		UserNS:        h.UserNS,
		RetainSession: h.RetainSession,
		Filesystem:    h.Filesystem,
		Permissions:   h.Permissions,
		DBus:          h.DBus,
	}
	if !seccomp {
		cfg.Seccomp = &seccomp
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return liberror.Wrap(liberror.Config, err, "encoding container config").In(h.ID)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return liberror.Wrap(liberror.IO, err, "writing container config %s", path).In(h.ID)
	}
	return nil
}
