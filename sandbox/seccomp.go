// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	seccomp "github.com/elastic/go-seccomp-bpf"

	"github.com/pacwrap/pacwrap/liberror"
)

// deniedSyscalls are refused inside the agent namespace. The list is
// the documented pacwrap policy: no tracing, no mount manipulation
// beyond what bwrap already performed, no kernel module or kexec
// operations, no system control.
var deniedSyscalls = []string{
	"ptrace",
	"mount",
	"umount",
	"umount2",
	"move_mount",
	"open_tree",
	"pivot_root",
	"init_module",
	"finit_module",
	"delete_module",
	"kexec_load",
	"kexec_file_load",
	"reboot",
	"swapon",
	"swapoff",
}

// Policy returns the agent seccomp policy: allow by default, deny the
// documented list with EPERM so failures read as permission errors
// rather than killed processes.
func Policy() seccomp.Policy {
	return seccomp.Policy{
		DefaultAction: seccomp.ActionAllow,
		Syscalls: []seccomp.SyscallGroup{
			{
				Action: seccomp.ActionErrno,
				Names:  deniedSyscalls,
			},
		},
	}
}

// ApplyFilter installs the policy on the calling process and all
// threads. Called by the agent before opening the package database;
// containers with seccomp disabled skip it.
func ApplyFilter() error {
	filter := seccomp.Filter{
		NoNewPrivs: true,
		Flag:       seccomp.FilterFlagTSync,
		Policy:     Policy(),
	}
	if err := seccomp.LoadFilter(filter); err != nil {
		return liberror.Wrap(liberror.Sandbox, err, "loading seccomp filter")
	}
	return nil
}
