// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package container models the container fleet: identifiers, the
// container type system, on-disk layout, per-container metadata and
// tombstones, and the registry that loads configured containers and
// resolves their dependency graph.
//
// The package is organized around the fleet data flow:
//
//   - id.go: container identifier validation
//   - types.go: the Base/Slice/Aggregate/Symbolic type system
//   - handle.go: configuration loading into container handles
//   - paths.go: the path resolver, including symbolic resolution
//   - metadata.go: the versioned CBOR metadata file
//   - tombstone.go: recorded deletions of upstream paths
//   - registry.go: enumeration of declared and present containers
//   - dag.go: dependency closure, topological order, cycle detection
package container
