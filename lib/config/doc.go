// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config resolves pacwrap's directory environment and loads
// the global configuration file.
//
// The environment ($CONFIG, $DATA, $CACHE and derived paths) is
// resolved exactly once at startup into an immutable [Environment]
// record and threaded through the rest of the system. The process
// environment is read elsewhere only for PACWRAP_VERBOSE (logging)
// and for the locale and terminal variables forwarded to agents.
// Overrides come from
// PACWRAP_CONFIG_DIR, PACWRAP_DATA_DIR and PACWRAP_CACHE_DIR, with
// XDG-style defaults under the user's home directory otherwise.
//
// The global configuration file ($CONFIG/pacwrap.yml) carries operator
// preferences: progress and summary styles, the agent download retry
// policy, dedup parallelism, and the kill grace period. A missing file
// is not an error; every field has a default.
package config
