// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pacwrap/pacwrap/lib/codec"
	"github.com/pacwrap/pacwrap/liberror"
)

// Instance is one live container process, recorded so other
// invocations can enumerate and terminate it.
type Instance struct {
	// Container is the container the agent operates on.
	Container string `cbor:"container"`

	// AgentPID is the pid of the sandboxed process as seen from the
	// host namespace.
	AgentPID int `cbor:"agent_pid"`

	// StartedAt is when the instance launched, unix seconds.
	StartedAt int64 `cbor:"started_at"`

	// UserCmd is the operator command that launched the instance.
	UserCmd string `cbor:"user_cmd"`

	// UserNS is the user namespace identity of the agent, as read
	// from /proc/<pid>/ns/user at launch. Process control matches
	// descendants against it.
	UserNS uint64 `cbor:"userns"`
}

// InstanceRegistry reads and writes instance records under a
// directory, one file per pid.
type InstanceRegistry struct {
	dir string
}

// NewInstanceRegistry returns a registry rooted at dir.
func NewInstanceRegistry(dir string) *InstanceRegistry {
	return &InstanceRegistry{dir: dir}
}

// Register writes the record for instance.AgentPID. The file is
// created exclusively: a colliding pid means a stale record from a
// recycled pid, which is replaced.
func (r *InstanceRegistry) Register(instance Instance) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return liberror.Wrap(liberror.IO, err, "creating instance directory")
	}
	data, err := codec.Marshal(instance)
	if err != nil {
		return liberror.Wrap(liberror.Internal, err, "encoding instance record")
	}

	path := r.recordPath(instance.AgentPID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		if err := os.Remove(path); err != nil {
			return liberror.Wrap(liberror.IO, err, "replacing stale instance record")
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	}
	if err != nil {
		return liberror.Wrap(liberror.IO, err, "creating instance record %s", path)
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return liberror.Wrap(liberror.IO, err, "writing instance record %s", path)
	}
	return nil
}

// Unregister removes the record for pid. A missing record is fine:
// cancellation paths race normal teardown.
func (r *InstanceRegistry) Unregister(pid int) error {
	if err := os.Remove(r.recordPath(pid)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return liberror.Wrap(liberror.IO, err, "removing instance record for pid %d", pid)
	}
	return nil
}

// List returns live instances sorted by container then pid. Records
// whose pid no longer exists are deleted on the way.
func (r *InstanceRegistry) List() ([]Instance, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, liberror.Wrap(liberror.IO, err, "reading instance directory")
	}

	var instances []Instance
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		path := r.recordPath(pid)
		if !pidAlive(pid) {
			os.Remove(path)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var instance Instance
		if err := codec.Unmarshal(data, &instance); err != nil {
			// Corrupt record: reclaim it rather than wedging ps.
			os.Remove(path)
			continue
		}
		instances = append(instances, instance)
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].Container != instances[j].Container {
			return instances[i].Container < instances[j].Container
		}
		return instances[i].AgentPID < instances[j].AgentPID
	})
	return instances, nil
}

// ByContainer returns the live instances for one container.
func (r *InstanceRegistry) ByContainer(container string) ([]Instance, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []Instance
	for _, instance := range all {
		if instance.Container == container {
			out = append(out, instance)
		}
	}
	return out, nil
}

func (r *InstanceRegistry) recordPath(pid int) string {
	return filepath.Join(r.dir, strconv.Itoa(pid))
}

// pidAlive reports whether a process with the given pid exists.
// Signal 0 probes existence without delivering anything; EPERM still
// means the process exists.
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// NewInstance builds a record for a just-launched agent.
func NewInstance(container string, agentPID int, userCmd string, userNS uint64) Instance {
	return Instance{
		Container: container,
		AgentPID:  agentPID,
		StartedAt: time.Now().Unix(),
		UserCmd:   userCmd,
		UserNS:    userNS,
	}
}

// Age returns how long the instance has been running.
func (i Instance) Age() time.Duration {
	return time.Since(time.Unix(i.StartedAt, 0))
}

// String formats the record for ps output.
func (i Instance) String() string {
	return fmt.Sprintf("%s pid=%d age=%s cmd=%q", i.Container, i.AgentPID, i.Age().Round(time.Second), i.UserCmd)
}
