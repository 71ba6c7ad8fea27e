// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/dedup"
	"github.com/pacwrap/pacwrap/lib/cli"
	"github.com/pacwrap/pacwrap/lib/config"
	"github.com/pacwrap/pacwrap/lib/logging"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/lock"
	"github.com/pacwrap/pacwrap/pkgdb"
	"github.com/pacwrap/pacwrap/render"
	"github.com/pacwrap/pacwrap/transaction"
)

// session is everything a command needs, resolved once per
// invocation.
type session struct {
	env      config.Environment
	global   config.Global
	registry *container.Registry
	log      *logging.TransactionLog
	cancel   context.CancelFunc

	// ctx is cancelled on SIGINT/SIGTERM.
	ctx context.Context
}

// newSession resolves the environment, loads configuration and the
// registry, opens the transaction log, and wires signal handling.
// SIGPIPE is ignored process-wide; the renderer tolerates closed
// stdout.
func newSession() (*session, error) {
	signal.Ignore(syscall.SIGPIPE)

	env, err := config.Resolve(nil)
	if err != nil {
		return nil, err
	}
	global, err := config.LoadGlobal(env)
	if err != nil {
		return nil, err
	}
	registry, err := container.LoadRegistry(env)
	if err != nil {
		return nil, err
	}

	operationID := uuid.NewString()[:8]
	log, err := logging.Open(env.LogFile(), "pacwrap", operationID)
	if err != nil {
		return nil, err
	}
	logging.Setup(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return &session{
		env:      env,
		global:   global,
		registry: registry,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (s *session) Close() {
	s.cancel()
	s.log.Close()
}

// stores returns the driver-side store provider: metadata-derived
// installed sets behind an optimistic repository view. The driver
// never reads sync databases; the agent is the authority on
// availability and fails cleanly on unknown packages.
func (s *session) stores() transaction.StoreProvider {
	return func(id string) (pkgdb.Store, error) {
		handle, err := s.registry.Handle(id)
		if err != nil {
			return nil, err
		}
		return pkgdb.Optimistic(transaction.MetadataStore(handle, nil)), nil
	}
}

func (s *session) repositories() ([]pkgdb.Repository, error) {
	return pkgdb.LoadRepositories(s.env.RepositoriesFile())
}

// execute drives a plan through the aggregator with rendering, and
// returns the exit error for the command.
func (s *session) execute(plan *transaction.Plan, noConfirm bool) error {
	if plan.Flags.Has(agent.FlagPreview) {
		for _, line := range plan.Preview() {
			os.Stdout.WriteString(line + "\n")
		}
		return nil
	}

	if plan.TargetCount() == 0 {
		os.Stdout.WriteString("nothing to do\n")
		return nil
	}

	if err := render.Confirm(os.Stdout, "Proceed with transaction?", noConfirm); err != nil {
		return err
	}

	repos, err := s.repositories()
	if err != nil {
		return err
	}

	progressStyle, err := render.ParseProgressStyle(s.global.Progress)
	if err != nil {
		return err
	}
	summaryStyle, err := render.ParseSummaryStyle(s.global.Summary)
	if err != nil {
		return err
	}
	renderer := render.NewRenderer(os.Stdout, progressStyle)

	aggregator := &transaction.Aggregator{
		Registry: s.registry,
		Syncer:   dedup.New(s.global.Parallelism),
		Committer: &transaction.AgentCommitter{
			Registry:    s.registry,
			Instances:   lock.NewInstanceRegistry(s.env.InstanceDir()),
			Events:      renderer,
			Grace:       s.global.KillGrace(),
			Interactive: !noConfirm,
		},
		Repositories:          repos,
		Environment:           allowedEnvironment(),
		DownloadRetries:       s.global.Downloads.Retries,
		DownloadBackoffMillis: s.global.Downloads.BackoffMillis,
		ForceFilesystem:       plan.Flags.Has(agent.FlagFilesystemSync),
		Parallelism:           s.global.Parallelism,
		Log:                   s.log,
	}

	results := aggregator.Execute(s.ctx, plan)
	renderer.Close()
	render.Summary(os.Stdout, summaryStyle, results)

	for _, result := range results {
		switch result.State {
		case transaction.StateDone:
		case transaction.StateSkipped:
		default:
			return &cli.ExitError{Code: liberror.ExitCodeFor(result.Err)}
		}
	}
	return nil
}

// allowedEnvironment is the environment allowlist forwarded into
// agents. Locale and terminal identity only; credentials and search
// paths never cross the boundary.
func allowedEnvironment() map[string]string {
	out := map[string]string{
		"PATH": "/usr/local/bin:/usr/bin:/bin",
	}
	for _, key := range []string{"LANG", "TERM", "COLORTERM", "TZ"} {
		if value := os.Getenv(key); value != "" {
			out[key] = value
		}
	}
	return out
}

// parseTargets turns "CONTAINER [PKG...]" arguments into an intent
// target map.
func parseTargets(args []string) (map[string][]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	id := args[0]
	if !container.ValidID(id) {
		return nil, liberror.New(liberror.Plan, "invalid container id %q", id)
	}
	targets := map[string][]string{id: nil}
	for _, pkg := range args[1:] {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		targets[id] = append(targets[id], pkg)
	}
	return targets, nil
}

// killGraceOr returns the configured grace unless a flag overrode it.
func (s *session) killGraceOr(seconds int) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return s.global.KillGrace()
}

// lockContainer takes a container's exclusive lock.
func lockContainer(paths container.Paths, id string) (*lock.Lock, error) {
	return lock.Acquire(paths.LockFile(id), id, true)
}
