// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/lock"
	"github.com/pacwrap/pacwrap/sandbox"
)

// AgentExecutable is the in-container agent binary name.
const AgentExecutable = "pacwrap-agent"

// EventSink receives agent events attributed to their container.
// The progress renderer implements it.
type EventSink interface {
	Event(id string, event agent.Event)
}

// AgentCommitter is the production [Committer]: it wraps the agent in
// a bubblewrap namespace, registers the instance, and drives the
// protocol.
type AgentCommitter struct {
	// Registry resolves container paths.
	Registry *container.Registry

	// Instances is the live instance registry.
	Instances *lock.InstanceRegistry

	// Events receives the merged event stream; may be nil.
	Events EventSink

	// Grace is the SIGTERM-to-SIGKILL delay on cancellation.
	Grace time.Duration

	// Interactive forwards operator stdio into the agent.
	Interactive bool

	// DisableSandbox executes the agent directly instead of through
	// bwrap. Debugging only.
	DisableSandbox bool
}

// Commit implements [Committer].
func (c *AgentCommitter) Commit(ctx context.Context, work *PerContainerWork, params *agent.Params) (agent.Summary, error) {
	paths := c.Registry.Paths()

	ancestors, err := c.Registry.Ancestors(work.ID)
	if err != nil {
		return agent.Summary{}, err
	}
	var ancestorRoots []string
	for _, ancestor := range ancestors {
		if c.Registry.Handles()[ancestor].Type.HasRoot() {
			ancestorRoots = append(ancestorRoots, paths.Root(ancestor))
		}
	}

	params.Mounts = sandbox.DefaultMounts(
		paths.Root(work.ID), paths.CacheDir(), paths.Dir(work.ID), ancestorRoots)

	agentPath, err := exec.LookPath(AgentExecutable)
	if err != nil {
		return agent.Summary{}, liberror.Wrap(liberror.Sandbox, err, "locating %s", AgentExecutable).In(work.ID)
	}

	handle, err := c.Registry.Handle(work.ID)
	if err != nil {
		return agent.Summary{}, err
	}

	var argv []string
	if c.DisableSandbox || work.Flags.Has(agent.FlagDisableSandbox) {
		argv = []string{agentPath, "transact"}
	} else {
		argv, err = sandbox.Command(sandbox.Options{
			Mounts:        params.Mounts,
			Environment:   params.Environment,
			RealUID:       os.Getuid(),
			RealGID:       os.Getgid(),
			RetainSession: handle.RetainSession,
			Command:       []string{agentPath, "transact"},
		})
		if err != nil {
			return agent.Summary{}, err
		}
	}

	var summary agent.Summary
	opts := agent.DriverOptions{
		Argv:        argv,
		Env:         []string{},
		Interactive: c.Interactive && !work.Flags.Has(agent.FlagNoConfirm),
		Grace:       c.Grace,
		OnStart: func(pid int) {
			instance := lock.NewInstance(work.ID, pid, strings.Join(os.Args, " "), readUserNS(pid))
			if c.Instances != nil {
				c.Instances.Register(instance)
			}
		},
		Handle: func(event agent.Event) error {
			if event.Tag == agent.TagSummary {
				event.Decode(&summary)
			}
			if c.Events != nil {
				c.Events.Event(work.ID, event)
			}
			return nil
		},
	}

	done, err := agent.Run(ctx, params, opts)
	if c.Instances != nil {
		// The pid is gone once Run returns; sweep our record.
		if instances, listErr := c.Instances.ByContainer(work.ID); listErr == nil {
			for _, instance := range instances {
				c.Instances.Unregister(instance.AgentPID)
			}
		}
	}
	if err != nil {
		return summary, err
	}
	if err := agent.DoneError(work.ID, done); err != nil {
		return summary, err
	}
	return summary, nil
}

// readUserNS reads the user namespace inode of a pid, the identity
// later used to match container descendants. Zero when unreadable,
// which matches nothing.
func readUserNS(pid int) uint64 {
	var stat unix.Stat_t
	if err := unix.Stat(userNSPath(pid), &stat); err != nil {
		return 0
	}
	return stat.Ino
}

func userNSPath(pid int) string {
	return "/proc/" + strconv.Itoa(pid) + "/ns/user"
}
