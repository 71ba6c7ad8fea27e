// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package proc

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"golang.org/x/sys/unix"
)

// writeProc builds one fake /proc/<pid> entry. nsFile controls which
// shared file backs ns/user, so tests can model namespace membership
// through hardlinked inodes.
func writeProc(t *testing.T, root string, pid, ppid int, comm, nsFile string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	if err := os.MkdirAll(filepath.Join(dir, "ns"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	stat := strconv.Itoa(pid) + " (" + comm + ") S " + strconv.Itoa(ppid) + " 0 0"
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0644); err != nil {
		t.Fatalf("WriteFile stat: %v", err)
	}
	cmdline := comm + "\x00--flag\x00"
	if err := os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0644); err != nil {
		t.Fatalf("WriteFile cmdline: %v", err)
	}
	if err := os.Link(nsFile, filepath.Join(dir, "ns", "user")); err != nil {
		t.Fatalf("Link ns: %v", err)
	}
}

func nsInode(t *testing.T, path string) uint64 {
	t.Helper()
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return stat.Ino
}

// fixture: host init (1), agent (100) in container ns, two
// descendants (101 at depth 1, 102 at depth 2), and an unrelated
// host process (200) whose parent happens to be the agent.
func buildFixture(t *testing.T) (root string, containerNS, hostNS uint64) {
	t.Helper()
	root = t.TempDir()
	hostFile := filepath.Join(root, "host-ns")
	containerFile := filepath.Join(root, "container-ns")
	for _, path := range []string{hostFile, containerFile} {
		if err := os.WriteFile(path, []byte("ns"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	writeProc(t, root, 1, 0, "init", hostFile)
	writeProc(t, root, 100, 1, "pacwrap-agent", containerFile)
	writeProc(t, root, 101, 100, "pacman-hook", containerFile)
	writeProc(t, root, 102, 101, "sh", containerFile)
	writeProc(t, root, 200, 100, "leaked-host-tool", hostFile)

	return root, nsInode(t, containerFile), nsInode(t, hostFile)
}

func TestSnapshotParsesEntries(t *testing.T) {
	t.Parallel()

	root, _, _ := buildFixture(t)
	table, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	agent, ok := table.processes[100]
	if !ok {
		t.Fatal("agent missing from table")
	}
	if agent.Comm != "pacwrap-agent" || agent.PPID != 1 {
		t.Errorf("agent = %+v", agent)
	}
	if len(agent.Cmdline) != 2 || agent.Cmdline[1] != "--flag" {
		t.Errorf("Cmdline = %v", agent.Cmdline)
	}
}

func TestContaineredMatchesNamespaceAncestry(t *testing.T) {
	t.Parallel()

	root, containerNS, _ := buildFixture(t)
	table, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	processes := table.Containered(100, containerNS, -1)
	pids := make([]int, 0, len(processes))
	for _, process := range processes {
		pids = append(pids, process.PID)
	}
	want := []int{100, 101, 102}
	if len(pids) != len(want) {
		t.Fatalf("pids = %v, want %v", pids, want)
	}
	for i := range want {
		if pids[i] != want[i] {
			t.Fatalf("pids = %v, want %v", pids, want)
		}
	}

	// Depths follow the fork chain.
	for _, process := range processes {
		wantDepth := map[int]int{100: 0, 101: 1, 102: 2}[process.PID]
		if process.Depth != wantDepth {
			t.Errorf("pid %d depth = %d, want %d", process.PID, process.Depth, wantDepth)
		}
	}
}

func TestContaineredDepthFilter(t *testing.T) {
	t.Parallel()

	root, containerNS, _ := buildFixture(t)
	table, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	processes := table.Containered(100, containerNS, 1)
	if len(processes) != 2 {
		t.Fatalf("depth-1 result = %+v", processes)
	}
	for _, process := range processes {
		if process.PID == 102 {
			t.Error("depth filter leaked depth-2 process")
		}
	}
}

func TestContaineredRejectsRecycledPid(t *testing.T) {
	t.Parallel()

	root, _, hostNS := buildFixture(t)
	table, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// The instance record says the agent lived in hostNS-unrelated
	// namespace; pid 100 does not match, so nothing is returned.
	processes := table.Containered(100, hostNS+999, -1)
	if len(processes) != 0 {
		t.Errorf("recycled pid matched: %+v", processes)
	}
}

func TestContaineredExcludesHostNamespaceChildren(t *testing.T) {
	t.Parallel()

	root, containerNS, _ := buildFixture(t)
	table, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, process := range table.Containered(100, containerNS, -1) {
		if process.PID == 200 {
			t.Error("host-namespace child matched container ancestry")
		}
	}
}

func TestParseStatWithParenComm(t *testing.T) {
	t.Parallel()

	comm, ppid, err := parseStat("42 (weird) name) S 7 0 0")
	if err != nil {
		t.Fatalf("parseStat: %v", err)
	}
	if comm != "weird) name" || ppid != 7 {
		t.Errorf("comm = %q, ppid = %d", comm, ppid)
	}
}

func TestKillEmpty(t *testing.T) {
	t.Parallel()

	if err := Kill(nil, 0); err != nil {
		t.Errorf("Kill(nil) = %v", err)
	}
}

func TestKillGonePid(t *testing.T) {
	t.Parallel()

	// A pid above pid_max is never alive, so Kill returns after the
	// first liveness sweep.
	if err := Kill([]int{1 << 30}, 100000000); err != nil {
		t.Errorf("Kill = %v", err)
	}
}
