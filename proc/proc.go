// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package proc

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pacwrap/pacwrap/liberror"
)

// Process is one entry of the process table.
type Process struct {
	// PID and PPID identify the process and its parent.
	PID  int
	PPID int

	// Comm is the kernel task name.
	Comm string

	// Cmdline is the argument vector, empty for kernel threads.
	Cmdline []string

	// UserNS is the user namespace inode of the process.
	UserNS uint64

	// Depth is the fork distance from the matched agent process.
	// Zero for the agent itself; -1 before matching.
	Depth int
}

// Table is a snapshot of the host process table.
type Table struct {
	procRoot  string
	processes map[int]*Process
}

// Snapshot scans procRoot (normally "/proc"). Entries that vanish
// mid-scan are skipped; a process table is always racing the world.
func Snapshot(procRoot string) (*Table, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, liberror.Wrap(liberror.IO, err, "reading %s", procRoot)
	}

	table := &Table{procRoot: procRoot, processes: make(map[int]*Process)}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		process, err := readProcess(procRoot, pid)
		if err != nil {
			continue
		}
		table.processes[pid] = process
	}
	return table, nil
}

// readProcess parses one /proc/<pid> directory.
func readProcess(procRoot string, pid int) (*Process, error) {
	dir := filepath.Join(procRoot, strconv.Itoa(pid))

	stat, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return nil, err
	}
	comm, ppid, err := parseStat(string(stat))
	if err != nil {
		return nil, err
	}

	process := &Process{PID: pid, PPID: ppid, Comm: comm, Depth: -1}

	if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil && len(cmdline) > 0 {
		parts := strings.Split(strings.TrimRight(string(cmdline), "\x00"), "\x00")
		process.Cmdline = parts
	}

	var nsStat unix.Stat_t
	if err := unix.Stat(filepath.Join(dir, "ns", "user"), &nsStat); err == nil {
		process.UserNS = nsStat.Ino
	}
	return process, nil
}

// parseStat extracts comm and ppid from /proc/<pid>/stat. The comm
// field is parenthesised and may itself contain parentheses and
// spaces, so parse from the last closing one.
func parseStat(stat string) (comm string, ppid int, err error) {
	open := strings.IndexByte(stat, '(')
	closing := strings.LastIndexByte(stat, ')')
	if open < 0 || closing < open {
		return "", 0, errors.New("malformed stat line")
	}
	comm = stat[open+1 : closing]
	fields := strings.Fields(stat[closing+1:])
	if len(fields) < 2 {
		return "", 0, errors.New("malformed stat line")
	}
	ppid, err = strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, err
	}
	return comm, ppid, nil
}

// Containered returns the processes belonging to a container: the
// agent process plus descendants that share its user namespace, each
// annotated with fork depth from the agent. maxDepth < 0 means
// unlimited.
func (t *Table) Containered(agentPID int, userNS uint64, maxDepth int) []Process {
	agent, ok := t.processes[agentPID]
	if !ok {
		return nil
	}
	if userNS != 0 && agent.UserNS != userNS {
		// The instance record does not match reality; pid was
		// recycled by an unrelated process.
		return nil
	}

	depth := map[int]int{agentPID: 0}
	var out []Process
	agentCopy := *agent
	agentCopy.Depth = 0
	out = append(out, agentCopy)

	// Repeated sweeps instead of building a child index: process
	// tables are small and sweeps keep the ordering by pid stable.
	changed := true
	for changed {
		changed = false
		for pid, process := range t.processes {
			if _, seen := depth[pid]; seen {
				continue
			}
			parentDepth, ok := depth[process.PPID]
			if !ok {
				continue
			}
			if userNS != 0 && process.UserNS != userNS {
				continue
			}
			depth[pid] = parentDepth + 1
			if maxDepth < 0 || parentDepth+1 <= maxDepth {
				copied := *process
				copied.Depth = parentDepth + 1
				out = append(out, copied)
			}
			changed = true
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// Kill terminates the given processes: SIGTERM, wait out the grace
// period, SIGKILL survivors, then wait until every pid is gone.
func Kill(pids []int, grace time.Duration) error {
	if len(pids) == 0 {
		return nil
	}
	for _, pid := range pids {
		unix.Kill(pid, unix.SIGTERM)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !anyAlive(pids) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, pid := range pids {
		if alive(pid) {
			unix.Kill(pid, unix.SIGKILL)
		}
	}

	// SIGKILL cannot be ignored; only an unkillable (D-state) process
	// lingers past this loop.
	deadline = time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !anyAlive(pids) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return liberror.New(liberror.IO, "processes survived SIGKILL: %v", survivors(pids))
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func anyAlive(pids []int) bool {
	for _, pid := range pids {
		if alive(pid) {
			return true
		}
	}
	return false
}

func survivors(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if alive(pid) {
			out = append(out, pid)
		}
	}
	return out
}
