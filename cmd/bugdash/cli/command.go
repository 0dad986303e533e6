// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the bugdash binary: one
// level of subcommands with lazily built pflag sets, generated help,
// typo suggestions, and output helpers.
package cli

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node in the bugdash command tree.
type Command struct {
	Name string

	// Summary is the one-line entry in the parent's command listing.
	// Description, when set, replaces it in the command's own help.
	Summary     string
	Description string

	// Usage overrides the generated "<path> [flags]" usage line.
	Usage    string
	Examples []Example

	// Flags builds a fresh flag set. It may be called more than once
	// per invocation, so it must not carry parse state between calls.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	// On a command with subcommands it runs when the first argument
	// is not a subcommand name.
	Run func(args []string) error

	// HelpOutput receives help text; nil inherits the parent's, and
	// the root defaults to os.Stderr.
	HelpOutput io.Writer

	parent *Command
}

// Example is one entry in a command's help.
type Example struct {
	Description string
	Command     string
}

// Execute runs the command line args against c.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}
	if len(args) > 0 && len(c.Subcommands) > 0 && !strings.HasPrefix(args[0], "-") {
		return c.dispatch(args[0], args[1:])
	}
	if c.Run == nil {
		c.PrintHelp(c.helpOutput())
		return errors.New("subcommand required")
	}
	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(positional)
}

func (c *Command) dispatch(name string, args []string) error {
	names := make([]string, len(c.Subcommands))
	for i, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(args)
		}
		names[i] = sub.Name
	}
	suggestion := closest(name, names)
	if suggestion != "" {
		suggestion = fmt.Sprintf("%q", suggestion)
	}
	return c.usageError(fmt.Sprintf("unknown command %q", name), suggestion)
}

func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		// Parse leaves the set half-filled; look names up in a fresh one.
		fresh := c.Flags()
		suggestion := ""
		if unknown := firstUnknownFlag(args, fresh); unknown != "" {
			if match := closest(unknown, flagNames(fresh)); match != "" {
				suggestion = "--" + match
			}
		}
		return nil, c.usageError(err.Error(), suggestion)
	}
	return flagSet.Args(), nil
}

// usageError reports a command-line mistake with an optional
// suggestion and a pointer to c's help.
func (c *Command) usageError(message, suggestion string) error {
	if suggestion != "" {
		message += " (did you mean " + suggestion + "?)"
	}
	return fmt.Errorf("%s\n\nRun '%s --help' for usage.", message, c.fullName())
}

// PrintHelp writes c's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	if blurb := cmp.Or(c.Description, c.Summary); blurb != "" {
		fmt.Fprintf(w, "%s\n\n", blurb)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintln(w, "\nCommands:")
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}
	if c.Flags != nil {
		if usage := c.Flags().FlagUsages(); usage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}
	if len(c.Examples) > 0 {
		fmt.Fprintln(w, "\nExamples:")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n\n", example.Command)
		}
	}
	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for details on a command.\n", c.fullName())
	}
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

// fullName is the command path as typed, e.g. "bugdash list".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func (c *Command) helpOutput() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.HelpOutput != nil {
			return command.HelpOutput
		}
	}
	return os.Stderr
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
