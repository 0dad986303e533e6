// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the bugdash command tree. Every data command
// opens the configured store, runs one dashboard over it for the
// lifetime of the command, and closes both before returning.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/cli"
	"github.com/kweid-platfrom/frontend-sub008/lib/version"
)

// Root returns the bugdash command tree. Commands write their results
// to stdout and stop blocking work when ctx is cancelled.
func Root(ctx context.Context, stdout io.Writer) *cli.Command {
	var showVersion bool
	return &cli.Command{
		Name:    "bugdash",
		Summary: "Synchronized bug tracking dashboard",
		Description: `bugdash keeps a workspace's bugs, team members and sprints in sync
with the configured store and applies changes to them.

The config file is read from --config or $BUGDASH_CONFIG.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("bugdash", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*cli.Command{
			listCommand(ctx, stdout),
			watchCommand(ctx, stdout),
			metricsCommand(ctx, stdout),
			statusCommand(ctx, stdout),
			severityCommand(ctx, stdout),
			assignCommand(ctx, stdout),
			environmentCommand(ctx, stdout),
			titleCommand(ctx, stdout),
			deleteCommand(ctx, stdout),
			createCommand(ctx, stdout),
			sprintCreateCommand(ctx, stdout),
			bulkCommand(ctx, stdout),
			exportCommand(ctx, stdout),
			versionCommand(stdout),
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintln(stdout, "bugdash "+version.Info())
				return nil
			}
			return fmt.Errorf("subcommand required\n\nRun 'bugdash --help' for usage.")
		},
	}
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintln(stdout, "bugdash "+version.Full())
			return nil
		},
	}
}
