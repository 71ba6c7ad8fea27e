// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/spf13/pflag"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/lib/cli"
	"github.com/pacwrap/pacwrap/transaction"
)

// transactionFlags are the flags shared by sync, upgrade and remove.
type transactionFlags struct {
	refresh        bool
	preview        bool
	noConfirm      bool
	targetOnly     bool
	forceForeign   bool
	forceDatabase  bool
	filesystemSync bool
	lazyLoad       bool
	disableSandbox bool
}

func (f *transactionFlags) register(set *pflag.FlagSet) {
	set.BoolVarP(&f.refresh, "refresh", "y", false, "refresh sync databases")
	set.BoolVar(&f.preview, "preview", false, "plan without mutating state")
	set.BoolVar(&f.noConfirm, "noconfirm", false, "skip confirmation prompts")
	set.BoolVar(&f.targetOnly, "target-only", false, "operate on named targets only, not their dependencies")
	set.BoolVar(&f.forceForeign, "force-foreign", false, "operate on foreign packages locally")
	set.BoolVar(&f.forceDatabase, "force-database", false, "re-download databases even when unchanged")
	set.BoolVar(&f.filesystemSync, "force", false, "replace locally diverged files during staging")
	set.BoolVar(&f.lazyLoad, "lazy-load", false, "defer foreign database loading until first query")
	set.BoolVar(&f.disableSandbox, "disable-sandbox", false, "run the agent without bwrap (debugging)")
}

func (f *transactionFlags) bitmap() agent.Flags {
	var flags agent.Flags
	if f.refresh {
		flags |= agent.FlagRefresh
	}
	if f.preview {
		flags |= agent.FlagPreview
	}
	if f.noConfirm {
		flags |= agent.FlagNoConfirm
	}
	if f.targetOnly {
		flags |= agent.FlagTargetOnly
	}
	if f.forceForeign {
		flags |= agent.FlagForceForeign
	}
	if f.forceDatabase {
		flags |= agent.FlagForceDatabase
	}
	if f.filesystemSync {
		flags |= agent.FlagFilesystemSync
	}
	if f.lazyLoad {
		flags |= agent.FlagLazyLoad
	}
	if f.disableSandbox {
		flags |= agent.FlagDisableSandbox
	}
	return flags
}

func syncCommand() *cli.Command {
	var (
		flags   transactionFlags
		dbOnly  bool
		fsOnly  bool
	)

	return &cli.Command{
		Name:    "sync",
		Summary: "synchronise containers with their configuration",
		Usage:   "pacwrap sync [flags] [CONTAINER [PKG...]]",
		Examples: []cli.Example{
			{Description: "install neovim into editor", Command: "pacwrap sync editor neovim"},
			{Description: "refresh databases and sync everything", Command: "pacwrap sync -y"},
		},
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("sync", pflag.ContinueOnError)
			flags.register(set)
			set.BoolVar(&dbOnly, "db-only", false, "refresh databases without touching filesystems")
			set.BoolVar(&fsOnly, "fs-only", false, "restage filesystems without package operations")
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			mode := agent.Synchronize
			switch {
			case dbOnly:
				mode = agent.DatabaseOnly
			case fsOnly:
				mode = agent.FilesystemOnly
			}
			plan, err := transaction.BuildPlan(session.registry, transaction.Intent{
				Mode:    mode,
				Targets: targets,
				Flags:   flags.bitmap(),
			}, session.stores())
			if err != nil {
				return err
			}
			return session.execute(plan, flags.noConfirm)
		},
	}
}

func upgradeCommand() *cli.Command {
	var flags transactionFlags

	return &cli.Command{
		Name:    "upgrade",
		Summary: "upgrade containers, the whole fleet by default",
		Usage:   "pacwrap upgrade [flags] [CONTAINER...]",
		Examples: []cli.Example{
			{Description: "upgrade everything", Command: "pacwrap upgrade -y"},
			{Description: "upgrade one container", Command: "pacwrap upgrade editor"},
		},
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("upgrade", pflag.ContinueOnError)
			flags.register(set)
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			targets := make(map[string][]string, len(args))
			for _, id := range args {
				parsed, err := parseTargets([]string{id})
				if err != nil {
					return err
				}
				for key := range parsed {
					targets[key] = nil
				}
			}
			plan, err := transaction.BuildPlan(session.registry, transaction.Intent{
				Mode:    agent.Upgrade,
				Targets: targets,
				Flags:   flags.bitmap(),
			}, session.stores())
			if err != nil {
				return err
			}
			return session.execute(plan, flags.noConfirm)
		},
	}
}

func removeCommand() *cli.Command {
	var flags transactionFlags

	return &cli.Command{
		Name:    "remove",
		Summary: "remove packages from a container",
		Usage:   "pacwrap remove [flags] CONTAINER PKG...",
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("remove", pflag.ContinueOnError)
			flags.register(set)
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			plan, err := transaction.BuildPlan(session.registry, transaction.Intent{
				Mode:    agent.Remove,
				Targets: targets,
				Flags:   flags.bitmap() | agent.FlagTargetOnly,
			}, session.stores())
			if err != nil {
				return err
			}
			return session.execute(plan, flags.noConfirm)
		},
	}
}
