// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/lib/cli"
	"github.com/pacwrap/pacwrap/liberror"
)

func listCommand() *cli.Command {
	var declaredOnly bool

	return &cli.Command{
		Name:    "list",
		Summary: "list containers",
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("list", pflag.ContinueOnError)
			set.BoolVar(&declaredOnly, "declared", false, "include containers without an initialised root")
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			present := make(map[string]bool)
			for _, id := range session.registry.Present() {
				present[id] = true
			}
			ids := session.registry.Present()
			if declaredOnly {
				ids = session.registry.Declared()
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "CONTAINER\tTYPE\tSTATE\tPACKAGES\tDEPENDS")
			for _, id := range ids {
				handle, err := session.registry.Handle(id)
				if err != nil {
					return err
				}
				state := "declared"
				if present[id] {
					state = "present"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\n",
					id, handle.Type, state, len(handle.Packages), strings.Join(handle.Dependencies, ","))
			}
			return writer.Flush()
		},
	}
}

func descCommand() *cli.Command {
	return &cli.Command{
		Name:    "desc",
		Summary: "describe one container",
		Usage:   "pacwrap desc CONTAINER",
		Run: func(args []string) error {
			if len(args) != 1 {
				return liberror.New(liberror.Plan, "desc takes exactly one container")
			}
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			handle, err := session.registry.Handle(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("container: %s\n", handle.ID)
			fmt.Printf("type: %s\n", handle.Type)
			if handle.Type == container.Symbolic {
				resolved, err := container.ResolveSymbolic(session.registry.Handles(), handle.ID)
				if err != nil {
					return err
				}
				fmt.Printf("target: %s (resolves to %s)\n", handle.Target, resolved)
			}
			if len(handle.Dependencies) > 0 {
				fmt.Printf("dependencies: %s\n", strings.Join(handle.Dependencies, ", "))
			}
			if len(handle.Packages) > 0 {
				fmt.Printf("packages: %s\n", strings.Join(handle.Packages, ", "))
			}
			fmt.Printf("seccomp: %v\n", handle.Seccomp)
			if handle.Meta != nil {
				fmt.Printf("meta version: %d\n", handle.Meta.MetaVersion)
				fmt.Printf("explicit: %s\n", strings.Join(handle.Meta.Packages, ", "))
			} else {
				fmt.Println("state: not initialised")
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	var noConfirm bool

	return &cli.Command{
		Name:    "delete",
		Summary: "delete a container's state and configuration",
		Usage:   "pacwrap delete [flags] CONTAINER",
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			set.BoolVar(&noConfirm, "noconfirm", false, "skip confirmation prompts")
			return set
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return liberror.New(liberror.Plan, "delete takes exactly one container")
			}
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			id := args[0]
			handle, err := session.registry.Handle(id)
			if err != nil {
				return err
			}

			// Refuse while something still depends on it.
			if dependents := session.registry.Dependents(id, session.registry.Declared()); len(dependents) > 0 {
				return liberror.New(liberror.Plan, "containers depend on %s: %s", id, strings.Join(dependents, ", "))
			}

			if err := deleteContainer(session, handle); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", id)
			return nil
		},
	}
}

// deleteContainer removes a container's on-disk state under its
// exclusive lock, then its configuration. Roots are rebuildable from
// configuration plus repositories, so deletion is cheap to undo as
// long as the configuration file is kept; we remove it last so a
// failure leaves a recomposable container.
func deleteContainer(s *session, handle *container.Handle) error {
	paths := s.registry.Paths()
	// Hold the exclusive lock for the whole removal.
	held, err := lockContainer(paths, handle.ID)
	if err != nil {
		return err
	}
	defer held.Release()

	if err := os.RemoveAll(paths.Dir(handle.ID)); err != nil {
		return liberror.Wrap(liberror.IO, err, "removing container state").In(handle.ID)
	}
	if err := os.Remove(paths.ConfigFile(handle.ID)); err != nil && !os.IsNotExist(err) {
		return liberror.Wrap(liberror.IO, err, "removing container configuration").In(handle.ID)
	}
	os.Remove(paths.LockFile(handle.ID))
	s.registry.Remove(handle.ID)
	return nil
}
