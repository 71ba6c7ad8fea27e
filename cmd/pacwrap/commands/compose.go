// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/lib/cli"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/transaction"
)

func composeCommand() *cli.Command {
	var (
		containerType string
		dependencies  []string
		fromConfig    bool
		noConfirm     bool
		preview       bool
	)

	return &cli.Command{
		Name:    "compose",
		Summary: "create containers and initialise their roots",
		Usage:   "pacwrap compose [flags] CONTAINER [PKG...]",
		Examples: []cli.Example{
			{Description: "create a base container", Command: "pacwrap compose --type base base"},
			{Description: "create a slice with gtk3 over base", Command: "pacwrap compose --type slice --dep base common gtk3"},
			{Description: "initialise every declared container", Command: "pacwrap compose --from-config"},
		},
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("compose", pflag.ContinueOnError)
			set.StringVar(&containerType, "type", "", "container type: base, slice, aggregate, symbolic")
			set.StringSliceVar(&dependencies, "dep", nil, "dependency container (repeatable)")
			set.BoolVar(&fromConfig, "from-config", false, "compose every declared container")
			set.BoolVar(&noConfirm, "noconfirm", false, "skip confirmation prompts")
			set.BoolVar(&preview, "preview", false, "plan without mutating state")
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			targets := make(map[string][]string)
			switch {
			case fromConfig:
				if len(args) > 0 {
					return liberror.New(liberror.Plan, "--from-config takes no positional targets")
				}
				for _, id := range session.registry.Declared() {
					targets[id] = nil
				}
			case len(args) > 0:
				id := args[0]
				if containerType != "" {
					// A new container: write its configuration, then
					// insert the speculative handle.
					parsed, err := container.ParseType(containerType)
					if err != nil {
						return liberror.Wrap(liberror.Plan, err, "parsing --type")
					}
					handle := &container.Handle{
						ID:           id,
						Type:         parsed,
						Dependencies: dependencies,
						Packages:     args[1:],
						Seccomp:      true,
					}
					if err := session.registry.Insert(handle); err != nil {
						return err
					}
					if !preview {
						if err := os.MkdirAll(session.env.ContainerConfigDir(), 0755); err != nil {
							return liberror.Wrap(liberror.IO, err, "creating config directory")
						}
						if err := container.SaveHandle(handle, session.registry.Paths().ConfigFile(id)); err != nil {
							return err
						}
					}
					targets[id] = args[1:]
				} else {
					parsed, err := parseTargets(args)
					if err != nil {
						return err
					}
					targets = parsed
				}
			default:
				return liberror.New(liberror.Plan, "compose needs a container or --from-config")
			}

			flags := agent.FlagCreate | agent.FlagFilesystemSync | agent.FlagRefresh
			if noConfirm {
				flags |= agent.FlagNoConfirm
			}
			if preview {
				flags |= agent.FlagPreview
			}

			plan, err := transaction.BuildPlan(session.registry, transaction.Intent{
				Mode:    agent.Synchronize,
				Targets: targets,
				Flags:   flags,
			}, session.stores())
			if err != nil {
				return err
			}
			return session.execute(plan, noConfirm)
		},
	}
}
