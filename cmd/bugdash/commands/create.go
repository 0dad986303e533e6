// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/cli"
	"github.com/kweid-platfrom/frontend-sub008/lib/dashboard"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

type createParams struct {
	Title       string
	Description string
	Severity    string
	Status      string
	Environment string
	Assignee    string
	Sprint      string
	Tags        string
	Category    string
	Frequency   string
	Steps       []string
	Expected    string
	Actual      string
	Due         string
	VideoURL    string
	NetworkLogs bool
	ConsoleLogs bool
}

func (p *createParams) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&p.Title, "title", "t", "", "bug title (required)")
	flagSet.StringVar(&p.Description, "description", "", "longer description")
	flagSet.StringVar(&p.Severity, "severity", "", "severity (default Medium)")
	flagSet.StringVar(&p.Status, "status", "", "initial status (default New)")
	flagSet.StringVar(&p.Environment, "environment", "", "where the bug was observed")
	flagSet.StringVar(&p.Assignee, "assignee", "", "team member ID, email or name")
	flagSet.StringVar(&p.Sprint, "sprint", "", "sprint ID or name")
	flagSet.StringVar(&p.Tags, "tags", "", "comma-separated tags")
	flagSet.StringVar(&p.Category, "category", "", "category, e.g. UI or performance")
	flagSet.StringVar(&p.Frequency, "frequency", "", "how often the bug reproduces")
	flagSet.StringArrayVar(&p.Steps, "step", nil, "reproduction step; repeat for each step")
	flagSet.StringVar(&p.Expected, "expected", "", "expected behavior")
	flagSet.StringVar(&p.Actual, "actual", "", "actual behavior")
	flagSet.StringVar(&p.Due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	flagSet.StringVar(&p.VideoURL, "video-url", "", "link to a screen recording")
	flagSet.BoolVar(&p.NetworkLogs, "network-logs", false, "network logs were captured")
	flagSet.BoolVar(&p.ConsoleLogs, "console-logs", false, "console logs were captured")
}

// draft builds the bug to create, resolving references against state.
func (p *createParams) draft(state dashboard.State) (bug.Bug, error) {
	if strings.TrimSpace(p.Title) == "" {
		return bug.Bug{}, fmt.Errorf("--title is required")
	}
	draft := bug.Bug{
		Title:            p.Title,
		Description:      p.Description,
		Tags:             splitList(p.Tags),
		Category:         p.Category,
		Frequency:        p.Frequency,
		StepsToReproduce: strings.Join(p.Steps, "\n"),
		ExpectedBehavior: p.Expected,
		ActualBehavior:   p.Actual,
		Evidence: bug.Evidence{
			VideoURL:    p.VideoURL,
			NetworkLogs: p.NetworkLogs,
			ConsoleLogs: p.ConsoleLogs,
		},
	}
	var err error
	if p.Severity != "" {
		if draft.Severity, err = parseSeverity(p.Severity); err != nil {
			return bug.Bug{}, err
		}
	}
	if p.Status != "" {
		if draft.Status, err = parseStatus(p.Status); err != nil {
			return bug.Bug{}, err
		}
	}
	if p.Environment != "" {
		if draft.Environment, err = parseEnvironment(p.Environment); err != nil {
			return bug.Bug{}, err
		}
	}
	if p.Assignee != "" {
		if draft.Assignee, err = resolveMember(state.Members, p.Assignee); err != nil {
			return bug.Bug{}, err
		}
	}
	if p.Sprint != "" {
		if draft.Sprint, err = resolveSprint(state.Sprints, p.Sprint); err != nil {
			return bug.Bug{}, err
		}
	}
	if draft.DueDate, err = parseDate(p.Due); err != nil {
		return bug.Bug{}, err
	}
	return draft, nil
}

func createCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var (
		params sessionParams
		create createParams
	)
	return &cli.Command{
		Name:    "create",
		Summary: "Report a new bug",
		Description: `Create a bug in the configured workspace. Status defaults to New,
severity to Medium, and the reporter to the configured identity. The
new bug's ID is printed on success.`,
		Usage: "bugdash create --title <title> [flags]",
		Examples: []cli.Example{
			{
				Description: "A high-severity production bug with steps",
				Command:     `bugdash create -t "Checkout button unresponsive" --severity high --environment production --step "Open cart" --step "Press checkout"`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			params.addFlags(flagSet)
			create.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s (quote the title and pass it with --title)", strings.Join(args, " "))
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				state, err := s.awaitReady(ctx)
				if err != nil {
					return err
				}
				draft, err := create.draft(state)
				if err != nil {
					return err
				}
				return s.report(s.dashboard.CreateEntity(ctx, draft))
			})
		},
	}
}

func sprintCreateCommand(ctx context.Context, stdout io.Writer) *cli.Command {
	var (
		params sessionParams
		name   string
		start  string
		end    string
		status string
	)
	return &cli.Command{
		Name:    "sprint-create",
		Summary: "Create a sprint",
		Description: `Create a sprint in the configured workspace. Requires the permission
to manage sprints.`,
		Usage: "bugdash sprint-create --name <name> [--start date] [--end date] [--status planning|active|completed]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sprint-create", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.StringVar(&name, "name", "", "sprint name (required)")
			flagSet.StringVar(&start, "start", "", "start date, YYYY-MM-DD")
			flagSet.StringVar(&end, "end", "", "end date, YYYY-MM-DD")
			flagSet.StringVar(&status, "status", "", "planning, active or completed (default planning)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			sprint := bug.Sprint{Name: name}
			var err error
			if sprint.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if sprint.EndDate, err = parseDate(end); err != nil {
				return err
			}
			if status != "" {
				if sprint.Status, err = parseSprintStatus(status); err != nil {
					return err
				}
			}
			return withSession(ctx, params, stdout, func(s *session) error {
				if _, err := s.awaitReady(ctx); err != nil {
					return err
				}
				return s.report(s.dashboard.CreateSprint(ctx, sprint))
			})
		},
	}
}
