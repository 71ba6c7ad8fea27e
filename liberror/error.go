// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package liberror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for exit-code mapping and fleet policy
// decisions (which failures halt dependents, which are warnings).
type Kind int

const (
	// Internal is an unexpected condition that indicates a bug rather
	// than an environmental or user problem.
	Internal Kind = iota

	// Config is a malformed or missing configuration file or field.
	Config

	// IO is a filesystem failure outside the dedup engine.
	IO

	// Lock means a container's advisory lock is held by another
	// invocation.
	Lock

	// DepCycle is a dependency cycle in the container graph, including
	// a symbolic container that resolves back to itself.
	DepCycle

	// DepMissing is a declared dependency with no corresponding
	// container.
	DepMissing

	// Plan is a planner rejection: bad target set, type rule violation,
	// or a name conflict on create.
	Plan

	// Sandbox is a namespace or seccomp setup failure reported by the
	// launcher or the kernel.
	Sandbox

	// AgentBadHandshake means the agent rejected the parameter blob:
	// wrong magic, unknown version, or nonce mismatch.
	AgentBadHandshake

	// AgentProtocolTruncated means the agent exited without
	// terminating its event stream with a Done frame.
	AgentProtocolTruncated

	// AgentCancelled means the agent was terminated by operator
	// cancellation.
	AgentCancelled

	// AgentPackage is a package operation failure inside the agent
	// after retries were exhausted.
	AgentPackage

	// DedupLocalOverride reports locally diverged files. Only an error
	// under --force filesystem; otherwise surfaced as a warning.
	DedupLocalOverride

	// DedupIO is a filesystem failure inside the dedup engine.
	DedupIO

	// Package is a package database failure on the driver side.
	Package

	// UserAbort means the operator declined a confirmation prompt.
	UserAbort
)

var kindNames = map[Kind]string{
	Internal:               "internal",
	Config:                 "config",
	IO:                     "io",
	Lock:                   "lock",
	DepCycle:               "dependency cycle",
	DepMissing:             "missing dependency",
	Plan:                   "plan",
	Sandbox:                "sandbox",
	AgentBadHandshake:      "agent handshake",
	AgentProtocolTruncated: "agent protocol truncated",
	AgentCancelled:         "cancelled",
	AgentPackage:           "agent package",
	DedupLocalOverride:     "local override",
	DedupIO:                "dedup io",
	Package:                "package",
	UserAbort:              "aborted",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Exit codes, per the documented CLI contract.
const (
	ExitSuccess     = 0
	ExitUser        = 1
	ExitTransaction = 2
	ExitConfig      = 3
	ExitAgent       = 4
	ExitLock        = 5
)

// ExitCode returns the process exit code for an error kind.
func (k Kind) ExitCode() int {
	switch k {
	case Config:
		return ExitConfig
	case Lock:
		return ExitLock
	case Sandbox, AgentBadHandshake, AgentProtocolTruncated:
		return ExitAgent
	case DepCycle, DepMissing, Plan, UserAbort:
		return ExitUser
	default:
		return ExitTransaction
	}
}

// Error is a kind-tagged error. Container is the container the error
// concerns, when there is one; fleet-level errors leave it empty.
type Error struct {
	Kind      Kind
	Container string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var prefix string
	if e.Container != "" {
		prefix = e.Container + ": "
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s%s: %v", prefix, e.Message, e.Err)
	case e.Message != "":
		return prefix + e.Message
	case e.Err != nil:
		return prefix + e.Err.Error()
	default:
		return prefix + e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with a kind and a context message. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// In returns a copy of the error attributed to a container.
func (e *Error) In(container string) *Error {
	clone := *e
	clone.Container = container
	return &clone
}

// KindOf returns the kind of the outermost taxonomy error in err's
// chain. Errors outside the taxonomy report as Internal.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Internal
}

// IsKind reports whether err's chain contains a taxonomy error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var tagged *Error
	for current := err; current != nil; {
		if errors.As(current, &tagged) {
			if tagged.Kind == kind {
				return true
			}
			current = tagged.Err
			continue
		}
		return false
	}
	return false
}

// ExitCodeFor returns the exit code for err: 0 for nil, the kind
// mapping for taxonomy errors, and transaction failure otherwise.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return KindOf(err).ExitCode()
}
