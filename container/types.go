// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Type is the container type. The type determines a container's place
// in the dependency graph and what operations are legal on it.
type Type int

const (
	// Base is a dependency-free root of the graph. The filesystem of
	// every other container is derived from exactly one base.
	Base Type = iota

	// Slice is a shared middle layer: one base ancestor, optionally
	// other slices. Slices carry common package sets (toolkits,
	// runtimes) that several aggregates hardlink from.
	Slice

	// Aggregate is a user-facing leaf: one base ancestor, optionally
	// several slices. Only aggregates accept arbitrary end-user
	// package installs.
	Aggregate

	// Symbolic is an alias resolving to another container's root. It
	// has no package state of its own but may carry its own
	// permission and mount configuration.
	Symbolic
)

var typeNames = [...]string{
	Base:      "base",
	Slice:     "slice",
	Aggregate: "aggregate",
	Symbolic:  "symbolic",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType parses the YAML spelling of a container type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return Type(t), nil
		}
	}
	return 0, fmt.Errorf("unknown container type %q", name)
}

// MarshalYAML encodes the type as its lowercase name.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML decodes the lowercase type name.
func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// HasRoot reports whether this container type owns an on-disk root.
// Symbolic containers borrow their target's root.
func (t Type) HasRoot() bool {
	return t != Symbolic
}
