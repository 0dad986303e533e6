// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/cli"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmutate"
	"github.com/kweid-platfrom/frontend-sub008/lib/dashboard"
)

// mutation describes a single-bug change command. apply receives the
// resolved bug ID and the remaining positional arguments.
type mutation struct {
	name        string
	summary     string
	description string
	usage       string
	examples    []cli.Example
	minArgs     int
	maxArgs     int // negative means unbounded
	apply       func(ctx context.Context, s *session, state dashboard.State, bugID string, args []string) (bugmutate.Outcome, error)
}

func mutationCommand(ctx context.Context, stdout io.Writer, m mutation) *cli.Command {
	var params sessionParams
	return &cli.Command{
		Name:        m.name,
		Summary:     m.summary,
		Description: m.description,
		Usage:       m.usage,
		Examples:    m.examples,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(m.name, pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < m.minArgs || (m.maxArgs >= 0 && len(args) > m.maxArgs) {
				return fmt.Errorf("usage: %s", m.usage)
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				state, err := s.awaitReady(ctx)
				if err != nil {
					return err
				}
				bugID, err := resolveBug(state.RawBugs, args[0])
				if err != nil {
					return err
				}
				outcome, err := m.apply(ctx, s, state, bugID, args[1:])
				if err != nil {
					return err
				}
				return s.report(outcome)
			})
		},
	}
}

// report prints a mutation outcome and returns its error, so a failed
// mutation exits non-zero.
func (s *session) report(outcome bugmutate.Outcome) error {
	if err := s.emit(outcomeRecord(outcome), func() { s.out.outcome(outcome) }); err != nil {
		return err
	}
	if !outcome.OK() {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// outcomeLine is the machine-readable form of bugmutate.Outcome.
type outcomeLine struct {
	Op         string `json:"op" cbor:"op"`
	BugID      string `json:"bug_id,omitempty" cbor:"bug_id,omitempty"`
	UpdateTime string `json:"update_time,omitempty" cbor:"update_time,omitempty"`
	Kind       string `json:"kind,omitempty" cbor:"kind,omitempty"`
	Error      string `json:"error,omitempty" cbor:"error,omitempty"`
}

func outcomeRecord(outcome bugmutate.Outcome) outcomeLine {
	line := outcomeLine{Op: outcome.Op, BugID: outcome.BugID, Kind: string(outcome.Kind())}
	if !outcome.UpdateTime.IsZero() {
		line.UpdateTime = outcome.UpdateTime.UTC().Format(time.RFC3339Nano)
	}
	if outcome.Err != nil {
		line.Error = outcome.Err.Error()
	}
	return line
}

func statusCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	return mutationCommand(ctx, stdout, mutation{
		name:    "status",
		summary: "Move a bug to a new status",
		description: `Move a bug to a new status. Entering Resolved or Closed records the
resolution time; leaving them clears it.`,
		usage: "bugdash status <bug> <status>",
		examples: []cli.Example{
			{Description: "Start work on a bug", Command: "bugdash status a1b2c3 in-progress"},
		},
		minArgs: 2,
		maxArgs: 2,
		apply: func(ctx context.Context, s *session, _ dashboard.State, bugID string, args []string) (bugmutate.Outcome, error) {
			status, err := parseStatus(args[0])
			if err != nil {
				return bugmutate.Outcome{}, err
			}
			return s.dashboard.MutateStatus(ctx, bugID, status), nil
		},
	})
}

func severityCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	return mutationCommand(ctx, stdout, mutation{
		name:        "severity",
		summary:     "Change a bug's severity",
		description: "Change a bug's severity. The priority follows: Critical is Urgent, High is High, Medium is Medium, Low is Low.",
		usage:       "bugdash severity <bug> <severity>",
		minArgs:     2,
		maxArgs:     2,
		apply: func(ctx context.Context, s *session, _ dashboard.State, bugID string, args []string) (bugmutate.Outcome, error) {
			severity, err := parseSeverity(args[0])
			if err != nil {
				return bugmutate.Outcome{}, err
			}
			return s.dashboard.MutateSeverity(ctx, bugID, severity), nil
		},
	})
}

func assignCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	return mutationCommand(ctx, stdout, mutation{
		name:    "assign",
		summary: "Assign a bug to a team member, or unassign it",
		description: `Assign a bug to a team member named by ID, email or display name.
Without a member the bug is unassigned.`,
		usage: "bugdash assign <bug> [member]",
		examples: []cli.Example{
			{Description: "Assign by email", Command: "bugdash assign a1b2c3 dana@example.com"},
			{Description: "Unassign", Command: "bugdash assign a1b2c3"},
		},
		minArgs: 1,
		maxArgs: 2,
		apply: func(ctx context.Context, s *session, state dashboard.State, bugID string, args []string) (bugmutate.Outcome, error) {
			memberID := ""
			if len(args) == 1 {
				id, err := resolveMember(state.Members, args[0])
				if err != nil {
					return bugmutate.Outcome{}, err
				}
				memberID = id
			}
			return s.dashboard.MutateAssignment(ctx, bugID, memberID), nil
		},
	})
}

func environmentCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	return mutationCommand(ctx, stdout, mutation{
		name:    "environment",
		summary: "Change where a bug was observed",
		usage:   "bugdash environment <bug> <environment>",
		minArgs: 2,
		maxArgs: 2,
		apply: func(ctx context.Context, s *session, _ dashboard.State, bugID string, args []string) (bugmutate.Outcome, error) {
			environment, err := parseEnvironment(args[0])
			if err != nil {
				return bugmutate.Outcome{}, err
			}
			return s.dashboard.MutateEnvironment(ctx, bugID, environment), nil
		},
	})
}

func titleCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	return mutationCommand(ctx, stdout, mutation{
		name:    "title",
		summary: "Rename a bug",
		usage:   "bugdash title <bug> <title>...",
		minArgs: 2,
		maxArgs: -1,
		apply: func(ctx context.Context, s *session, _ dashboard.State, bugID string, args []string) (bugmutate.Outcome, error) {
			return s.dashboard.MutateTitle(ctx, bugID, strings.Join(args, " ")), nil
		},
	})
}

func deleteCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	return mutationCommand(ctx, stdout, mutation{
		name:        "delete",
		summary:     "Delete a bug",
		description: "Delete a bug. Requires the delete capability.",
		usage:       "bugdash delete <bug>",
		minArgs:     1,
		maxArgs:     1,
		apply: func(ctx context.Context, s *session, _ dashboard.State, bugID string, _ []string) (bugmutate.Outcome, error) {
			return s.dashboard.DeleteEntity(ctx, bugID), nil
		},
	})
}

func bulkCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var params sessionParams
	actions := make([]string, len(bugmutate.BulkActions))
	for i, action := range bugmutate.BulkActions {
		actions[i] = string(action)
	}
	return &cli.Command{
		Name:    "bulk",
		Summary: "Apply one action to many bugs",
		Description: fmt.Sprintf(`Apply one action (%s) to every listed bug. Each bug
is written independently: one failure never stops the rest. A bug
listed more than once is written once and the repeats are counted as
skipped. Exits 2 when any bug failed.`, strings.Join(actions, ", ")),
		Usage: "bugdash bulk <action> <bug>...",
		Examples: []cli.Example{
			{Description: "Close three bugs", Command: "bugdash bulk close a1b2c3 d4e5f6 0a9b8c"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("bulk", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: bugdash bulk <action> <bug>...")
			}
			action, err := bugmutate.ParseBulkAction(args[0])
			if err != nil {
				return err
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				state, err := s.awaitReady(ctx)
				if err != nil {
					return err
				}
				ids, err := resolveBugs(state.RawBugs, args[1:])
				if err != nil {
					return err
				}
				result := s.dashboard.BulkAction(ctx, ids, action)
				return s.reportBulk(result)
			})
		},
	}
}

type bulkRecord struct {
	Action    string        `json:"action" cbor:"action"`
	Succeeded int           `json:"succeeded" cbor:"succeeded"`
	Failed    int           `json:"failed" cbor:"failed"`
	Skipped   int           `json:"skipped" cbor:"skipped"`
	Outcomes  []outcomeLine `json:"outcomes" cbor:"outcomes"`
}

func (s *session) reportBulk(result bugmutate.BulkResult) error {
	record := bulkRecord{
		Action:    string(result.Action),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Outcomes:  make([]outcomeLine, len(result.Outcomes)),
	}
	for i, outcome := range result.Outcomes {
		record.Outcomes[i] = outcomeRecord(outcome)
	}
	err := s.emit(record, func() {
		for _, outcome := range result.Outcomes {
			s.out.outcome(outcome)
		}
		summary := fmt.Sprintf("%s: %d succeeded, %d failed", result.Action, result.Succeeded, result.Failed)
		if result.Skipped > 0 {
			summary += fmt.Sprintf(", %d skipped", result.Skipped)
		}
		fmt.Fprintln(s.stdout, s.out.faint(summary))
	})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return &cli.ExitError{Code: 2}
	}
	return nil
}
