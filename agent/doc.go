// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the wire contract between the pacwrap
// driver and the in-container agent, and the driver side of running
// one agent.
//
// The transport is two inherited file descriptors: the agent reads a
// single parameter blob from one and streams framed events back on
// the other. Descriptor numbers travel in the PACWRAP_PARAM_FD and
// PACWRAP_EVENT_FD environment variables; stdio is forwarded
// separately for interactive prompts.
//
// The parameter blob is a fixed header (magic, version, payload
// length) followed by a CBOR payload. The event stream is a sequence
// of tag+length framed CBOR payloads ending in exactly one Done
// frame; an agent that exits without sending Done is reported as
// protocol truncation.
package agent
