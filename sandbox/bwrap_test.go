// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"slices"
	"testing"

	"github.com/pacwrap/pacwrap/agent"
)

func testOptions() Options {
	return Options{
		Mounts: DefaultMounts(
			"/data/container/editor/root",
			"/cache/pkg",
			"/data",
			[]string{"/data/container/base/root", "/data/container/common/root"},
		),
		Environment: map[string]string{"LANG": "en_US.UTF-8", "PATH": "/usr/bin"},
		RealUID:     1000,
		RealGID:     1000,
		Command:     []string{"/usr/bin/pacwrap-agent", "transact"},
	}
}

func TestCommandShape(t *testing.T) {
	t.Parallel()

	if _, err := Path(); err != nil {
		t.Skip("bwrap not installed")
	}

	args, err := Command(testOptions())
	if err != nil {
		t.Fatalf("Command: %v", err)
	}

	for _, want := range []string{"--unshare-user", "--unshare-pid", "--die-with-parent", "--clearenv", "--new-session"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %s", want)
		}
	}

	// The command follows the -- separator verbatim.
	sep := slices.Index(args, "--")
	if sep < 0 || sep+2 >= len(args) {
		t.Fatalf("no command separator in %v", args)
	}
	if args[sep+1] != "/usr/bin/pacwrap-agent" || args[sep+2] != "transact" {
		t.Errorf("command tail = %v", args[sep+1:])
	}

	// Target root is writable, ancestor roots are not.
	if !containsTriple(args, "--bind", "/data/container/editor/root", AgentMountRoot) {
		t.Error("target root not bind-mounted writable")
	}
	if !containsTriple(args, "--ro-bind", "/data/container/base/root", "/mnt/dep/0") {
		t.Error("ancestor root not bind-mounted read-only")
	}
}

func TestCommandEnvironmentDeterministic(t *testing.T) {
	t.Parallel()

	if _, err := Path(); err != nil {
		t.Skip("bwrap not installed")
	}

	first, err := Command(testOptions())
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	for i := 0; i < 8; i++ {
		again, err := Command(testOptions())
		if err != nil {
			t.Fatalf("Command: %v", err)
		}
		if !slices.Equal(first, again) {
			t.Fatal("argv not deterministic across builds")
		}
	}
}

func TestCommandRejectsEmptyPlan(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Mounts = nil
	if _, err := Command(opts); err == nil {
		t.Error("Command accepted empty mount plan")
	}

	opts = testOptions()
	opts.Command = nil
	if _, err := Command(opts); err == nil {
		t.Error("Command accepted empty command")
	}
}

func TestRetainSessionSkipsNewSession(t *testing.T) {
	t.Parallel()

	if _, err := Path(); err != nil {
		t.Skip("bwrap not installed")
	}

	opts := testOptions()
	opts.RetainSession = true
	args, err := Command(opts)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if slices.Contains(args, "--new-session") {
		t.Error("--new-session present despite RetainSession")
	}
}

func TestDefaultMountsMatchAgentContract(t *testing.T) {
	t.Parallel()

	mounts := DefaultMounts("/t/root", "/c/pkg", "/t/share", []string{"/a/root"})
	params := agent.Params{Mounts: mounts}
	if !params.WithinMounts(AgentMountRoot + "/usr/bin/nvim") {
		t.Error("agent cannot reach its own root mount")
	}
	if params.WithinMounts("/etc/shadow") {
		t.Error("mount plan leaks host paths")
	}
}

func TestPolicyDeniesDocumentedList(t *testing.T) {
	t.Parallel()

	policy := Policy()
	if len(policy.Syscalls) != 1 {
		t.Fatalf("policy groups = %d, want 1", len(policy.Syscalls))
	}
	names := policy.Syscalls[0].Names
	for _, syscall := range []string{"ptrace", "mount", "umount2", "kexec_load", "init_module", "pivot_root", "reboot"} {
		if !slices.Contains(names, syscall) {
			t.Errorf("policy does not deny %s", syscall)
		}
	}
}

func containsTriple(args []string, flag, a, b string) bool {
	for i := 0; i+2 < len(args); i++ {
		if args[i] == flag && args[i+1] == a && args[i+2] == b {
			return true
		}
	}
	return false
}
