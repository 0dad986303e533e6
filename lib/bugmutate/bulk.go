// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugmutate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
)

// BulkAction is an action applied to many bugs at once.
type BulkAction string

const (
	BulkReopen  BulkAction = "reopen"
	BulkClose   BulkAction = "close"
	BulkResolve BulkAction = "resolve"
	BulkDelete  BulkAction = "delete"
)

// BulkActions lists every BulkAction.
var BulkActions = []BulkAction{BulkReopen, BulkClose, BulkResolve, BulkDelete}

// ParseBulkAction validates name.
func ParseBulkAction(name string) (BulkAction, error) {
	for _, action := range BulkActions {
		if string(action) == name {
			return action, nil
		}
	}
	return "", bugerr.New(bugerr.Validation, "bulk", fmt.Sprintf("unknown bulk action %q", name))
}

// BulkResult collects per-bug outcomes in input order.
// Succeeded + Failed + Skipped equals the number of IDs passed to
// Bulk.
type BulkResult struct {
	Action    BulkAction
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	// Skipped counts empty and repeated IDs, which get no outcome.
	Skipped int
}

// Bulk applies action once to every distinct non-empty ID in ids, in
// first-seen order. Empty and repeated IDs are counted in Skipped. Items
// run concurrently up to the configured limit and are independent: a
// failure never stops the rest.
func (c *Coordinator) Bulk(ctx context.Context, ids []string, action BulkAction) BulkResult {
	requested := len(ids)
	ids = dedupe(ids)
	result := BulkResult{Action: action, Outcomes: make([]Outcome, len(ids)), Skipped: requested - len(ids)}

	run, err := c.bulkOperation(action)
	if err != nil {
		for i, id := range ids {
			result.Outcomes[i] = c.finish("bulk "+string(action), id, c.clock.Now(), time.Time{}, err)
		}
		result.Failed = len(ids)
		return result
	}

	var group errgroup.Group
	group.SetLimit(c.bulkConcurrency)
	for i, id := range ids {
		group.Go(func() error {
			result.Outcomes[i] = run(ctx, id)
			return nil
		})
	}
	group.Wait()

	for _, outcome := range result.Outcomes {
		if outcome.OK() {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	c.logger.Info("bulk action finished",
		"action", string(action),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result
}

func (c *Coordinator) bulkOperation(action BulkAction) (func(context.Context, string) Outcome, error) {
	status := func(status bug.Status) func(context.Context, string) Outcome {
		return func(ctx context.Context, id string) Outcome { return c.UpdateStatus(ctx, id, status) }
	}
	switch action {
	case BulkReopen:
		return status(bug.StatusReopened), nil
	case BulkClose:
		return status(bug.StatusClosed), nil
	case BulkResolve:
		return status(bug.StatusResolved), nil
	case BulkDelete:
		return c.Delete, nil
	}
	_, err := ParseBulkAction(string(action))
	return nil, err
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
