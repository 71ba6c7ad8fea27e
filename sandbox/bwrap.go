// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"sort"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/liberror"
)

// BwrapExecutable is the namespace launcher binary.
const BwrapExecutable = "bwrap"

// AgentMountRoot is where the target container root appears inside
// the namespace.
const AgentMountRoot = "/mnt/fs"

// AgentMountCache is the shared package cache inside the namespace.
const AgentMountCache = "/mnt/cache"

// AgentMountShare is the shared state directory (transaction log)
// inside the namespace.
const AgentMountShare = "/mnt/share"

// Options describes one agent sandbox.
type Options struct {
	// Mounts is the declared mount plan. The same plan travels in
	// the agent parameters so the agent can refuse paths outside it.
	Mounts []agent.Mount

	// Environment is the allowlisted environment, set after
	// --clearenv.
	Environment map[string]string

	// RealUID and RealGID are the operator's ids, forwarded so the
	// agent can report ownership correctly.
	RealUID int
	RealGID int

	// RetainSession skips --new-session for debugging shells.
	RetainSession bool

	// Command is the in-namespace command, normally the
	// pacwrap-agent binary and its arguments.
	Command []string
}

// Command builds the full bwrap argv for the options. The two
// protocol descriptors (3 and 4) survive into the namespace because
// bwrap only closes descriptors it is told to.
func Command(opts Options) ([]string, error) {
	if len(opts.Command) == 0 {
		return nil, liberror.New(liberror.Internal, "sandbox command is empty")
	}
	if len(opts.Mounts) == 0 {
		return nil, liberror.New(liberror.Sandbox, "sandbox has no mount plan")
	}

	path, err := Path()
	if err != nil {
		return nil, err
	}

	args := []string{path,
		"--unshare-user",
		"--unshare-pid",
		"--unshare-ipc",
		"--unshare-uts",
		"--die-with-parent",
	}
	if !opts.RetainSession {
		args = append(args, "--new-session")
	}

	args = append(args, "--proc", "/proc", "--dev", "/dev", "--tmpfs", "/tmp")

	for _, mount := range opts.Mounts {
		if mount.Writable {
			args = append(args, "--bind", mount.Source, mount.Dest)
		} else {
			args = append(args, "--ro-bind", mount.Source, mount.Dest)
		}
	}

	args = append(args, "--clearenv")
	keys := make([]string, 0, len(opts.Environment))
	for key := range opts.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--setenv", key, opts.Environment[key])
	}
	args = append(args,
		"--setenv", "PACWRAP_ROOT", AgentMountRoot,
		"--setenv", "PACWRAP_REAL_UID", fmt.Sprintf("%d", opts.RealUID),
		"--setenv", "PACWRAP_REAL_GID", fmt.Sprintf("%d", opts.RealGID),
	)

	args = append(args, "--")
	args = append(args, opts.Command...)
	return args, nil
}

// DefaultMounts builds the standard agent mount plan: the container
// root, package cache and share directory writable, the ancestor roots
// read-only.
func DefaultMounts(targetRoot, cacheDir, shareDir string, ancestorRoots []string) []agent.Mount {
	mounts := []agent.Mount{
		{Source: targetRoot, Dest: AgentMountRoot, Writable: true},
		{Source: cacheDir, Dest: AgentMountCache, Writable: true},
		{Source: shareDir, Dest: AgentMountShare, Writable: true},
	}
	for i, root := range ancestorRoots {
		mounts = append(mounts, agent.Mount{
			Source: root,
			Dest:   fmt.Sprintf("/mnt/dep/%d", i),
		})
	}
	return mounts
}

// Path locates the bwrap executable.
func Path() (string, error) {
	for _, candidate := range []string{"/usr/bin/bwrap", "/usr/local/bin/bwrap", "/bin/bwrap"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", liberror.New(liberror.Sandbox, "bwrap not found in standard locations")
}
