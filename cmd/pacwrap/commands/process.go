// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/pacwrap/pacwrap/lib/cli"
	"github.com/pacwrap/pacwrap/lib/logging"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/lock"
	"github.com/pacwrap/pacwrap/proc"
)

func psCommand() *cli.Command {
	var (
		all   bool
		depth int
	)

	return &cli.Command{
		Name:    "ps",
		Summary: "list live container processes",
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("ps", pflag.ContinueOnError)
			set.BoolVar(&all, "all", false, "show every descendant, not only the agents")
			set.IntVar(&depth, "depth", 1, "maximum fork depth below the agent with --all")
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			registry := lock.NewInstanceRegistry(session.env.InstanceDir())
			instances, err := registry.List()
			if err != nil {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "CONTAINER\tPID\tDEPTH\tAGE\tCOMMAND")
			if all {
				table, err := proc.Snapshot("/proc")
				if err != nil {
					return err
				}
				for _, instance := range instances {
					for _, process := range table.Containered(instance.AgentPID, instance.UserNS, depth) {
						fmt.Fprintf(writer, "%s\t%d\t%d\t%s\t%s\n",
							instance.Container, process.PID, process.Depth,
							instance.Age().Round(time.Second), strings.Join(process.Cmdline, " "))
					}
				}
			} else {
				for _, instance := range instances {
					fmt.Fprintf(writer, "%s\t%d\t0\t%s\t%s\n",
						instance.Container, instance.AgentPID,
						instance.Age().Round(time.Second), instance.UserCmd)
				}
			}
			return writer.Flush()
		},
	}
}

func killCommand() *cli.Command {
	var graceSeconds int

	return &cli.Command{
		Name:    "kill",
		Summary: "terminate a container's processes",
		Usage:   "pacwrap kill [flags] CONTAINER",
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("kill", pflag.ContinueOnError)
			set.IntVar(&graceSeconds, "grace", 0, "seconds between SIGTERM and SIGKILL (default from config)")
			return set
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return liberror.New(liberror.Plan, "kill takes exactly one container")
			}
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			id := args[0]
			if _, err := session.registry.Handle(id); err != nil {
				return err
			}

			registry := lock.NewInstanceRegistry(session.env.InstanceDir())
			instances, err := registry.ByContainer(id)
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				fmt.Printf("no live instances of %s\n", id)
				return nil
			}

			table, err := proc.Snapshot("/proc")
			if err != nil {
				return err
			}
			var pids []int
			for _, instance := range instances {
				// Only processes whose namespace ancestry matches the
				// recorded instance are fair game.
				for _, process := range table.Containered(instance.AgentPID, instance.UserNS, -1) {
					pids = append(pids, process.PID)
				}
			}
			if err := proc.Kill(pids, session.killGraceOr(graceSeconds)); err != nil {
				return err
			}
			for _, instance := range instances {
				registry.Unregister(instance.AgentPID)
			}
			fmt.Printf("terminated %d processes of %s\n", len(pids), id)
			return nil
		},
	}
}

func logCommand() *cli.Command {
	var tail int

	return &cli.Command{
		Name:    "log",
		Summary: "show the transaction log",
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("log", pflag.ContinueOnError)
			set.IntVarP(&tail, "tail", "t", 50, "number of trailing lines")
			return set
		},
		Run: func(args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			defer session.Close()

			lines, err := logging.Tail(session.env.LogFile(), tail)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
}
