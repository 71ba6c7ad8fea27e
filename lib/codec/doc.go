// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides pacwrap's standard CBOR encoding configuration.
//
// Pacwrap uses two serialization formats with a clear boundary:
//
//   - YAML for operator-facing configuration: pacwrap.yml and the
//     per-container configuration files under $CONFIG/container/.
//   - CBOR for internal state and protocols: the container metadata
//     file, tombstone lists, instance records, the agent parameter
//     payload, and agent event payloads.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every pacwrap package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (metadata files, instance records):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
