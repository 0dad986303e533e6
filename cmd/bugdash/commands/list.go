// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/cli"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugfilter"
	"github.com/kweid-platfrom/frontend-sub008/lib/codec"
	"github.com/kweid-platfrom/frontend-sub008/lib/dashboard"
)

// filterParams are the list and watch filter flags. Enum values are
// matched loosely; assignee and sprint accept names as well as IDs.
type filterParams struct {
	Status      string
	Severity    string
	Assignee    string
	Reporter    string
	Environment string
	Sprint      string
	Tags        string
	Search      string
	Due         string
}

func (p *filterParams) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.Status, "status", "", "only bugs in this status")
	flagSet.StringVar(&p.Severity, "severity", "", "only bugs of this severity")
	flagSet.StringVar(&p.Assignee, "assignee", "", `only bugs assigned to this member ("me", "unassigned", an ID, email or name)`)
	flagSet.StringVar(&p.Reporter, "reporter", "", "only bugs reported by this member")
	flagSet.StringVar(&p.Environment, "environment", "", "only bugs seen in this environment")
	flagSet.StringVar(&p.Sprint, "sprint", "", "only bugs in this sprint (ID or name)")
	flagSet.StringVar(&p.Tags, "tags", "", "only bugs carrying any of these comma-separated tags")
	flagSet.StringVar(&p.Search, "search", "", "case-insensitive text in the title, description or short ID")
	flagSet.StringVar(&p.Due, "due", "", "due date bucket: overdue, due-today, this-week or no-due-date")
}

// spec builds a filter spec against the loaded state, resolving member
// and sprint references to IDs.
func (p *filterParams) spec(state dashboard.State, userID string) (bugfilter.Spec, error) {
	values := map[string]string{}
	if p.Status != "" && p.Status != bugfilter.All {
		status, err := parseStatus(p.Status)
		if err != nil {
			return bugfilter.Spec{}, err
		}
		values[bugfilter.DimensionStatus] = string(status)
	}
	if p.Severity != "" && p.Severity != bugfilter.All {
		severity, err := parseSeverity(p.Severity)
		if err != nil {
			return bugfilter.Spec{}, err
		}
		values[bugfilter.DimensionSeverity] = string(severity)
	}
	if p.Environment != "" && p.Environment != bugfilter.All {
		environment, err := parseEnvironment(p.Environment)
		if err != nil {
			return bugfilter.Spec{}, err
		}
		values[bugfilter.DimensionEnvironment] = string(environment)
	}
	for dimension, reference := range map[string]string{
		bugfilter.DimensionAssignee: p.Assignee,
		bugfilter.DimensionReporter: p.Reporter,
	} {
		switch {
		case reference == "" || reference == bugfilter.All:
		case reference == "me":
			if userID == "" {
				return bugfilter.Spec{}, fmt.Errorf("--%s me requires identity.user_id in the config", dimension)
			}
			values[dimension] = userID
		case reference == bugfilter.Unassigned && dimension == bugfilter.DimensionAssignee:
			values[dimension] = bugfilter.Unassigned
		default:
			id, err := resolveMember(state.Members, reference)
			if err != nil {
				// Reporters and assignees may have left the team.
				id = reference
			}
			values[dimension] = id
		}
	}
	if p.Sprint != "" && p.Sprint != bugfilter.All {
		id, err := resolveSprint(state.Sprints, p.Sprint)
		if err != nil {
			return bugfilter.Spec{}, err
		}
		values[bugfilter.DimensionSprint] = id
	}
	if p.Tags != "" {
		values[bugfilter.DimensionTags] = p.Tags
	}
	if p.Search != "" {
		values[bugfilter.DimensionSearch] = p.Search
	}
	if p.Due != "" {
		values[bugfilter.DimensionDueDate] = p.Due
	}
	return bugfilter.FromMap(values)
}

func listCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var (
		params sessionParams
		filter filterParams
	)
	return &cli.Command{
		Name:    "list",
		Summary: "Print the bugs of the configured workspace",
		Description: `Load the workspace once and print the bugs that match the filter
flags, most recently created first.`,
		Usage: "bugdash list [flags]",
		Examples: []cli.Example{
			{Description: "Open critical bugs assigned to me", Command: "bugdash list --status open --severity critical --assignee me"},
			{Description: "Overdue bugs as JSON", Command: "bugdash list --due overdue -o json"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			params.addFlags(flagSet)
			filter.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				state, err := s.filtered(ctx, &filter)
				if err != nil {
					return err
				}
				return s.emit(state.Filtered, func() {
					s.out.bugTable(state.Filtered, state.Members)
					fmt.Fprintln(stdout, s.out.faint(fmt.Sprintf("%d of %d bugs", len(state.Filtered), len(state.RawBugs))))
				})
			})
		},
	}
}

// filtered waits for the initial load, applies filter, and returns the
// resulting state.
func (s *session) filtered(ctx context.Context, filter *filterParams) (dashboard.State, error) {
	state, err := s.awaitReady(ctx)
	if err != nil {
		return state, err
	}
	spec, err := filter.spec(state, s.config.Identity.UserID)
	if err != nil {
		return state, err
	}
	s.dashboard.SetFilterSpec(spec)
	return s.dashboard.State(), nil
}

// emit writes value in the requested machine format, or calls table
// for the default human format.
func (s *session) emit(value any, table func()) error {
	switch s.params.Output {
	case outputJSON:
		return cli.WriteJSON(s.stdout, value)
	case outputCBOR:
		return codec.NewEncoder(s.stdout).Encode(value)
	default:
		table()
		return nil
	}
}

func watchCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var (
		params sessionParams
		filter filterParams
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Stream changes to the workspace until interrupted",
		Description: `Keep the workspace subscribed and print one line each time the
synchronized content changes. Stops on SIGINT or SIGTERM.`,
		Usage: "bugdash watch [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			params.addFlags(flagSet)
			filter.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				if _, err := s.filtered(ctx, &filter); err != nil {
					return err
				}
				return s.watch(ctx)
			})
		},
	}
}

// watch prints a line for every content change until ctx ends.
// Changes that leave the digest unchanged are skipped.
func (s *session) watch(ctx context.Context) error {
	updates, cancel := s.dashboard.Watch()
	defer cancel()
	notices := s.dashboard.Notices()

	lastDigest := ""
	for {
		state := s.dashboard.State()
		if state.Digest != lastDigest {
			lastDigest = state.Digest
			if err := s.emitChange(state); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-updates:
			if !ok {
				return nil
			}
		case notice, ok := <-notices:
			if !ok {
				return nil
			}
			s.logger.Info("mutation finished", "op", notice.Op, "bug", notice.BugID, "kind", string(notice.Kind()))
		}
	}
}

type changeLine struct {
	Version  uint64 `json:"version" cbor:"version"`
	Sync     string `json:"sync" cbor:"sync"`
	Access   string `json:"access" cbor:"access"`
	Bugs     int    `json:"bugs" cbor:"bugs"`
	Shown    int    `json:"shown" cbor:"shown"`
	Open     int    `json:"open" cbor:"open"`
	InFlight int    `json:"in_flight" cbor:"in_flight"`
	Error    string `json:"error,omitempty" cbor:"error,omitempty"`
}

func (s *session) emitChange(state dashboard.State) error {
	line := changeLine{
		Version:  state.Version,
		Sync:     state.Sync.String(),
		Access:   state.Access.String(),
		Bugs:     len(state.RawBugs),
		Shown:    len(state.Filtered),
		Open:     state.Metrics.Open,
		InFlight: len(state.InFlight),
	}
	if state.LastError != nil {
		line.Error = state.LastError.Error()
	}
	return s.emit(line, func() {
		text := fmt.Sprintf("v%d %s bugs=%d shown=%d open=%d in-flight=%d",
			line.Version, line.Sync, line.Bugs, line.Shown, line.Open, line.InFlight)
		if line.Error != "" {
			text += " error=" + s.out.paint(s.out.theme.Failure, false, line.Error)
		}
		fmt.Fprintln(s.stdout, text)
	})
}

func metricsCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var params sessionParams
	return &cli.Command{
		Name:    "metrics",
		Summary: "Print summary metrics for every bug in the workspace",
		Description: `Print counts by status, severity and source, the resolution rate,
evidence coverage, mean resolution time and mean report completeness.
Metrics cover every bug in the workspace regardless of filters.`,
		Usage: "bugdash metrics [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("metrics", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				state, err := s.awaitReady(ctx)
				if err != nil {
					return err
				}
				return s.emit(state.Metrics, func() { s.out.metrics(state.Metrics) })
			})
		},
	}
}

func exportCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var (
		params sessionParams
		file   string
	)
	return &cli.Command{
		Name:    "export",
		Summary: "Write the synchronized snapshot as CBOR",
		Description: `Load the workspace and write its bugs, members, sprints and feed
statuses as one CBOR document, to --file or stdout.`,
		Usage: "bugdash export [--file path]",
		Examples: []cli.Example{
			{Description: "Snapshot to a file", Command: "bugdash export --file workspace.cbor"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.StringVarP(&file, "file", "f", "", "write to this file instead of stdout")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				if _, err := s.awaitReady(ctx); err != nil {
					return err
				}
				snapshot := s.dashboard.Snapshot()
				if file == "" {
					return codec.NewEncoder(stdout).Encode(snapshot)
				}
				return writeSnapshotFile(file, snapshot)
			})
		},
	}
}

func writeSnapshotFile(path string, snapshot any) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()
	return codec.NewEncoder(out).Encode(snapshot)
}
