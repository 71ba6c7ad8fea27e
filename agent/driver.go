// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pacwrap/pacwrap/liberror"
)

// DriverOptions configures one agent run.
type DriverOptions struct {
	// Argv is the full agent command line, typically a bwrap
	// invocation ending in the pacwrap-agent binary.
	Argv []string

	// Env is the complete child environment. The driver appends the
	// descriptor variables.
	Env []string

	// Interactive forwards the operator's stdio for prompts. Off
	// under --noconfirm.
	Interactive bool

	// Grace is the SIGTERM-to-SIGKILL delay on cancellation.
	Grace time.Duration

	// OnStart is invoked with the child pid after a successful
	// start, before any event arrives. Used to register the instance
	// record.
	OnStart func(pid int)

	// Handle receives every non-terminal event as it arrives.
	Handle func(Event) error
}

// Run launches the agent, streams it the parameter blob, and drains
// its event stream until Done. Cancellation of ctx sends SIGTERM,
// waits out the grace period, then SIGKILLs.
//
// The returned Done is valid when error is nil. A stream without a
// terminal Done frame, whatever the exit status, reports protocol
// truncation.
func Run(ctx context.Context, params *Params, opts DriverOptions) (Done, error) {
	if len(opts.Argv) == 0 {
		return Done{}, liberror.New(liberror.Internal, "empty agent command")
	}
	if opts.Grace <= 0 {
		opts.Grace = 10 * time.Second
	}

	paramRead, paramWrite, err := os.Pipe()
	if err != nil {
		return Done{}, liberror.Wrap(liberror.IO, err, "creating parameter pipe")
	}
	eventRead, eventWrite, err := os.Pipe()
	if err != nil {
		paramRead.Close()
		paramWrite.Close()
		return Done{}, liberror.Wrap(liberror.IO, err, "creating event pipe")
	}

	cmd := exec.Command(opts.Argv[0], opts.Argv[1:]...)
	// The child sees the pipe ends as descriptors 3 and 4; every
	// other inherited descriptor is closed by the Go runtime.
	cmd.ExtraFiles = []*os.File{paramRead, eventWrite}
	cmd.Env = append(append([]string(nil), opts.Env...),
		fmt.Sprintf("%s=3", ParamFdEnv),
		fmt.Sprintf("%s=4", EventFdEnv),
	)
	if opts.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		paramRead.Close()
		paramWrite.Close()
		eventRead.Close()
		eventWrite.Close()
		return Done{}, liberror.Wrap(liberror.Sandbox, err, "starting agent").In(params.Container)
	}
	// The child holds its own copies now.
	paramRead.Close()
	eventWrite.Close()

	if opts.OnStart != nil {
		opts.OnStart(cmd.Process.Pid)
	}

	// Parameter blob first: the agent reads it before emitting
	// anything, and closing the write end is its end-of-parameters
	// signal.
	writeErr := WriteParams(paramWrite, params)
	paramWrite.Close()

	// Drain concurrently with the child's lifetime. If the driver
	// stopped reading, the agent's next write would block and wedge
	// the transaction.
	type drainResult struct {
		done Done
		err  error
	}
	drained := make(chan drainResult, 1)
	go func() {
		done, err := Drain(eventRead, opts.Handle)
		drained <- drainResult{done: done, err: err}
	}()

	// Cancellation watcher.
	cancelDone := make(chan struct{})
	go func() {
		defer close(cancelDone)
		select {
		case <-ctx.Done():
			cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-time.After(opts.Grace):
				cmd.Process.Kill()
			case <-cancelDone:
			}
		case <-cancelDone:
		}
	}()

	waitErr := cmd.Wait()
	close(cancelDone)
	// The child is gone; the write end of the event pipe is closed,
	// so the drain goroutine terminates promptly.
	result := <-drained
	eventRead.Close()

	if writeErr != nil {
		// EPIPE here means the agent died before reading its
		// parameters; the drain result carries the better error.
		if !errors.Is(writeErr, syscall.EPIPE) {
			return Done{}, writeErr
		}
	}
	if result.err != nil {
		return Done{}, result.err
	}
	if ctx.Err() != nil && result.done.Status != DoneErr {
		// The agent was told to stop but claimed success; trust the
		// stream, the transaction committed before the signal landed.
		return result.done, nil
	}
	if waitErr != nil && result.done.Status == DoneOk {
		return Done{}, liberror.Wrap(liberror.AgentProtocolTruncated, waitErr,
			"agent exited non-zero after Done{Ok}").In(params.Container)
	}
	return result.done, nil
}

// DoneError converts a Done frame into the corresponding taxonomy
// error, or nil for success.
func DoneError(container string, done Done) error {
	if done.Status == DoneOk {
		return nil
	}
	kind := liberror.Kind(done.Kind)
	switch kind {
	case liberror.AgentCancelled, liberror.AgentPackage, liberror.AgentBadHandshake,
		liberror.Sandbox, liberror.Package, liberror.Config:
	default:
		kind = liberror.AgentPackage
	}
	return liberror.New(kind, "agent reported failure").In(container)
}
