// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugmutate

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/access"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

// Principal is the caller a mutation runs as.
type Principal struct {
	Identity     *access.Identity
	Context      workspace.Context
	Capabilities access.Capabilities
}

// Actor returns the user ID recorded in activity entries.
func (p Principal) Actor() string {
	if p.Identity == nil {
		return ""
	}
	return p.Identity.UserID
}

// Folder receives committed writes for optimistic display.
// *bugsync.Manager implements it.
type Folder interface {
	FoldPatch(ctx workspace.Context, bugID string, patch bug.Patch, commit time.Time) bool
	FoldDelete(ctx workspace.Context, bugID string) bool
}

// Notifier receives one Notice per finished mutation.
type Notifier interface {
	Notify(notice Notice)
}

// Recorder receives mutation events for instrumentation.
type Recorder interface {
	// MutationFinished reports a finished mutation. kind is empty on
	// success.
	MutationFinished(op string, kind bugerr.Kind, elapsed time.Duration)

	// InFlightChanged reports the size of the in-flight set.
	InFlightChanged(count int)
}

// Notice is the user-facing report of a mutation.
type Notice struct {
	Op    string
	BugID string
	// Err is nil on success.
	Err error
}

// Kind returns the failure kind, or "" on success.
func (n Notice) Kind() bugerr.Kind { return bugerr.KindOf(n.Err) }

// AccessDenied reports whether the mutation failed for lack of
// permission.
func (n Notice) AccessDenied() bool { return bugerr.Is(n.Err, bugerr.AccessDenied) }

// Outcome is the result of one mutation.
type Outcome struct {
	Op    string
	BugID string
	// UpdateTime is the store's commit time. Zero for deletes and
	// failures.
	UpdateTime time.Time
	// Err is nil on success and otherwise a *bugerr.Error.
	Err error
}

// OK reports whether the mutation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Kind returns the failure kind, or "" on success.
func (o Outcome) Kind() bugerr.Kind { return bugerr.KindOf(o.Err) }

// Options configures a Coordinator.
type Options struct {
	Store     docstore.Store
	Validator *access.Validator

	// Principal returns the current caller. It is consulted on every
	// mutation, so capability changes take effect immediately.
	Principal func() Principal

	// Folder is optional; without it committed writes appear only
	// when the next snapshot arrives.
	Folder   Folder
	Notifier Notifier
	Recorder Recorder
	Clock    clock.Clock
	Logger   *slog.Logger

	// MutationTimeout bounds each store call. Zero means no bound
	// beyond the caller's context.
	MutationTimeout time.Duration

	// BulkConcurrency caps concurrent writes in Bulk. Zero or less
	// means DefaultBulkConcurrency.
	BulkConcurrency int
}

// DefaultBulkConcurrency is the Bulk worker count when none is
// configured.
const DefaultBulkConcurrency = 4

// Coordinator serializes writes per bug. It is safe for concurrent
// use.
type Coordinator struct {
	store           docstore.Store
	validator       *access.Validator
	principal       func() Principal
	folder          Folder
	notifier        Notifier
	recorder        Recorder
	clock           clock.Clock
	logger          *slog.Logger
	timeout         time.Duration
	bulkConcurrency int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New returns a Coordinator.
func New(options Options) *Coordinator {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.Validator == nil {
		options.Validator = access.NewValidator(access.ValidatorOptions{Logger: options.Logger})
	}
	if options.Principal == nil {
		options.Principal = func() Principal { return Principal{} }
	}
	if options.BulkConcurrency <= 0 {
		options.BulkConcurrency = DefaultBulkConcurrency
	}
	return &Coordinator{
		store:           options.Store,
		validator:       options.Validator,
		principal:       options.Principal,
		folder:          options.Folder,
		notifier:        options.Notifier,
		recorder:        options.Recorder,
		clock:           options.Clock,
		logger:          options.Logger,
		timeout:         options.MutationTimeout,
		bulkConcurrency: options.BulkConcurrency,
		inFlight:        make(map[string]struct{}),
	}
}

// Operation names used in outcomes, notices and instrumentation.
const (
	OpUpdate       = "update"
	OpStatus       = "update status"
	OpSeverity     = "update severity"
	OpAssign       = "assign"
	OpEnvironment  = "update environment"
	OpTitle        = "update title"
	OpCreate       = "create"
	OpCreateSprint = "create sprint"
	OpDelete       = "delete"
)

// Mutate writes patch to bugID after checking that the caller holds
// required.
func (c *Coordinator) Mutate(ctx context.Context, bugID string, patch bug.Patch, required access.Capability) Outcome {
	return c.mutate(ctx, OpUpdate, bugID, patch, required, nil)
}

// UpdateStatus moves a bug to status. Entering Resolved or Closed
// stamps the resolution time; leaving them clears it.
func (c *Coordinator) UpdateStatus(ctx context.Context, bugID string, status bug.Status) Outcome {
	return c.mutate(ctx, OpStatus, bugID, bug.Patch{bug.FieldStatus: status}, access.CapUpdate,
		&bug.ActivityEntry{Action: "status-changed", Detail: string(status)})
}

// UpdateSeverity changes severity; priority follows.
func (c *Coordinator) UpdateSeverity(ctx context.Context, bugID string, severity bug.Severity) Outcome {
	return c.mutate(ctx, OpSeverity, bugID, bug.Patch{bug.FieldSeverity: severity}, access.CapUpdate,
		&bug.ActivityEntry{Action: "severity-changed", Detail: string(severity)})
}

// Assign sets the assignee. An empty memberID unassigns.
func (c *Coordinator) Assign(ctx context.Context, bugID, memberID string) Outcome {
	entry := &bug.ActivityEntry{Action: "assigned", Detail: memberID}
	if memberID == "" {
		entry = &bug.ActivityEntry{Action: "unassigned"}
	}
	return c.mutate(ctx, OpAssign, bugID, bug.Patch{bug.FieldAssignee: memberID}, access.CapUpdate, entry)
}

// UpdateEnvironment changes the environment.
func (c *Coordinator) UpdateEnvironment(ctx context.Context, bugID string, environment bug.Environment) Outcome {
	return c.mutate(ctx, OpEnvironment, bugID, bug.Patch{bug.FieldEnvironment: environment}, access.CapUpdate, nil)
}

// UpdateTitle renames a bug.
func (c *Coordinator) UpdateTitle(ctx context.Context, bugID, title string) Outcome {
	return c.mutate(ctx, OpTitle, bugID, bug.Patch{bug.FieldTitle: title}, access.CapUpdate, nil)
}

// UpdateFields writes an arbitrary patch under the update capability.
func (c *Coordinator) UpdateFields(ctx context.Context, bugID string, patch bug.Patch) Outcome {
	return c.mutate(ctx, OpUpdate, bugID, patch, access.CapUpdate, nil)
}

func (c *Coordinator) mutate(ctx context.Context, op, bugID string, patch bug.Patch, required access.Capability, entry *bug.ActivityEntry) Outcome {
	started := c.clock.Now()
	principal := c.principal()

	if err := c.validator.CanMutate(principal.Identity, principal.Context, principal.Capabilities, required).Err(op); err != nil {
		return c.finish(op, bugID, started, time.Time{}, err)
	}
	if bugID == "" {
		return c.finish(op, bugID, started, time.Time{}, bugerr.New(bugerr.Validation, op, "bug ID is empty"))
	}
	if err := patch.Validate(); err != nil {
		return c.finish(op, bugID, started, time.Time{}, err)
	}
	if !c.claim(bugID) {
		return c.finish(op, bugID, started, time.Time{}, bugerr.New(bugerr.Busy, op, "a write to this bug is already in progress"))
	}

	write := patch.WithDerived()
	write[bug.FieldUpdatedAt] = docstore.ServerTimestamp
	if entry != nil {
		entry.Actor = principal.Actor()
		entry.At = c.clock.Now().UTC()
		write[bug.FieldActivity] = docstore.Append(entry.Fields())
	}

	result, err := c.withTimeout(ctx, func(ctx context.Context) (docstore.WriteResult, error) {
		return c.store.WriteFields(ctx, principal.Context.Path(bug.CollectionBugs), bugID, write.Fields())
	})
	c.release(bugID)
	if err != nil {
		return c.finish(op, bugID, started, time.Time{}, err)
	}

	if c.folder != nil {
		c.folder.FoldPatch(principal.Context, bugID, write, result.UpdateTime)
	}
	return c.finish(op, bugID, started, result.UpdateTime, nil)
}

// Delete removes a bug. It requires the delete capability.
func (c *Coordinator) Delete(ctx context.Context, bugID string) Outcome {
	started := c.clock.Now()
	principal := c.principal()

	if err := c.validator.CanMutate(principal.Identity, principal.Context, principal.Capabilities, access.CapDelete).Err(OpDelete); err != nil {
		return c.finish(OpDelete, bugID, started, time.Time{}, err)
	}
	if bugID == "" {
		return c.finish(OpDelete, bugID, started, time.Time{}, bugerr.New(bugerr.Validation, OpDelete, "bug ID is empty"))
	}
	if !c.claim(bugID) {
		return c.finish(OpDelete, bugID, started, time.Time{}, bugerr.New(bugerr.Busy, OpDelete, "a write to this bug is already in progress"))
	}
	_, err := c.withTimeout(ctx, func(ctx context.Context) (docstore.WriteResult, error) {
		return docstore.WriteResult{}, c.store.DeleteDocument(ctx, principal.Context.Path(bug.CollectionBugs), bugID)
	})
	c.release(bugID)
	if err != nil {
		return c.finish(OpDelete, bugID, started, time.Time{}, err)
	}
	if c.folder != nil {
		c.folder.FoldDelete(principal.Context, bugID)
	}
	return c.finish(OpDelete, bugID, started, time.Time{}, nil)
}

// Create stores a new bug. The outcome's BugID is the store-assigned
// ID.
func (c *Coordinator) Create(ctx context.Context, draft bug.Bug) Outcome {
	started := c.clock.Now()
	principal := c.principal()

	if err := c.validator.CanMutate(principal.Identity, principal.Context, principal.Capabilities, access.CapCreate).Err(OpCreate); err != nil {
		return c.finish(OpCreate, "", started, time.Time{}, err)
	}
	if err := bug.ValidateDraft(draft); err != nil {
		return c.finish(OpCreate, "", started, time.Time{}, err)
	}
	fields := bug.CreationFields(draft, principal.Actor())
	result, err := c.withTimeout(ctx, func(ctx context.Context) (docstore.WriteResult, error) {
		return c.store.CreateDocument(ctx, principal.Context.Path(bug.CollectionBugs), fields)
	})
	if err != nil {
		return c.finish(OpCreate, "", started, time.Time{}, err)
	}
	return c.finish(OpCreate, result.ID, started, result.UpdateTime, nil)
}

// CreateSprint stores a new sprint. It requires the reference
// management capability.
func (c *Coordinator) CreateSprint(ctx context.Context, sprint bug.Sprint) Outcome {
	started := c.clock.Now()
	principal := c.principal()

	if err := c.validator.CanMutate(principal.Identity, principal.Context, principal.Capabilities, access.CapManageReference).Err(OpCreateSprint); err != nil {
		return c.finish(OpCreateSprint, "", started, time.Time{}, err)
	}
	if err := bug.ValidateSprint(sprint); err != nil {
		return c.finish(OpCreateSprint, "", started, time.Time{}, err)
	}
	fields := bug.SprintFields(sprint)
	result, err := c.withTimeout(ctx, func(ctx context.Context) (docstore.WriteResult, error) {
		return c.store.CreateDocument(ctx, principal.Context.Path(bug.CollectionSprints), fields)
	})
	if err != nil {
		return c.finish(OpCreateSprint, "", started, time.Time{}, err)
	}
	return c.finish(OpCreateSprint, result.ID, started, result.UpdateTime, nil)
}

// InFlight returns the IDs of bugs with a write in progress, sorted.
func (c *Coordinator) InFlight() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.inFlight))
	for id := range c.inFlight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsInFlight reports whether bugID has a write in progress.
func (c *Coordinator) IsInFlight(bugID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[bugID]
	return ok
}

func (c *Coordinator) claim(bugID string) bool {
	c.mu.Lock()
	if _, busy := c.inFlight[bugID]; busy {
		c.mu.Unlock()
		return false
	}
	c.inFlight[bugID] = struct{}{}
	count := len(c.inFlight)
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.InFlightChanged(count)
	}
	return true
}

func (c *Coordinator) release(bugID string) {
	c.mu.Lock()
	delete(c.inFlight, bugID)
	count := len(c.inFlight)
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.InFlightChanged(count)
	}
}

func (c *Coordinator) withTimeout(ctx context.Context, call func(context.Context) (docstore.WriteResult, error)) (docstore.WriteResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return call(ctx)
}

// finish classifies err, records, logs and notifies.
func (c *Coordinator) finish(op, bugID string, started, updateTime time.Time, err error) Outcome {
	outcome := Outcome{Op: op, BugID: bugID, UpdateTime: updateTime}
	if err != nil {
		outcome.Err = annotate(op, bugID, err)
	}
	kind := outcome.Kind()

	if c.recorder != nil {
		c.recorder.MutationFinished(op, kind, c.clock.Now().Sub(started))
	}
	if outcome.OK() {
		c.logger.Info("mutation committed", "op", op, "bug_id", bugID, "update_time", updateTime)
	} else {
		c.logger.Warn("mutation failed", "op", op, "bug_id", bugID, "kind", string(kind), "error", err)
	}
	if c.notifier != nil {
		c.notifier.Notify(Notice{Op: op, BugID: bugID, Err: outcome.Err})
	}
	return outcome
}

// annotate returns err as a *bugerr.Error carrying op and bugID.
func annotate(op, bugID string, err error) error {
	var engineErr *bugerr.Error
	if errors.As(err, &engineErr) {
		annotated := *engineErr
		annotated.BugID = bugID
		return &annotated
	}
	return &bugerr.Error{Kind: bugerr.Classify(err), Op: op, BugID: bugID, Err: err}
}
