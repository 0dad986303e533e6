// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dashboard composes the engine for a presentation layer.
//
// A Dashboard owns one subscription manager and one mutation
// coordinator. The caller supplies who is signed in (SetIdentity),
// which workspace is active (SetContext) and how to filter
// (SetFilterSpec); the Dashboard starts, restarts or stops the
// subscriptions as those change and derives a read-only State on
// demand. Watch signals when State may have changed; Notices delivers
// one entry per finished mutation.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/access"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugfilter"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmetrics"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugmutate"
	"github.com/kweid-platfrom/frontend-sub008/lib/bugsync"
	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

// Access summarizes whether the dashboard can show data.
type Access int

const (
	// AccessSetupRequired means the workspace context is incomplete.
	AccessSetupRequired Access = iota

	// AccessRestricted means there is no identity, the caller lacks
	// read access, or the store refused a feed.
	AccessRestricted

	// AccessReady means subscriptions are allowed and healthy.
	AccessReady
)

func (a Access) String() string {
	switch a {
	case AccessReady:
		return "ready"
	case AccessRestricted:
		return "restricted"
	default:
		return "setup-required"
	}
}

// State is the derived view. It is recomputed on every call to
// Dashboard.State and shares slices with the underlying snapshot, so
// it must not be modified.
type State struct {
	RawBugs      []bug.Bug
	Filtered     []bug.Bug
	Members      []bug.TeamMember
	Sprints      []bug.Sprint
	Filter       bugfilter.Spec
	InFlight     []string
	LastError    error
	Loading      bool
	Access       Access
	Capabilities access.Capabilities
	Metrics      bugmetrics.Metrics
	Context      workspace.Context
	Sync         bugsync.State
	Feeds        bugsync.Feeds
	Version      uint64
	Digest       string
}

// Recorder receives subscription and mutation events.
// *instrument.Metrics implements it.
type Recorder interface {
	bugsync.Recorder
	bugmutate.Recorder
}

// Options configures a Dashboard.
type Options struct {
	Store  docstore.Store
	Clock  clock.Clock
	Logger *slog.Logger

	// Recorder is optional.
	Recorder Recorder

	RequireLoadedPermissions bool
	MutationTimeout          time.Duration
	BulkConcurrency          int
	RetryTransient           bool

	// ShortIDLength is how many trailing ID characters search
	// matches. Zero means bugfilter.DefaultShortIDLength.
	ShortIDLength int

	// NoticeBuffer is the Notices channel capacity. When full, the
	// oldest notice is dropped. Zero means 32.
	NoticeBuffer int
}

// Dashboard is safe for concurrent use.
type Dashboard struct {
	clock     clock.Clock
	logger    *slog.Logger
	validator *access.Validator
	sync      *bugsync.Manager
	mutator   *bugmutate.Coordinator
	engine    bugfilter.Engine
	recorder  Recorder

	mu           sync.Mutex
	identity     *access.Identity
	capabilities access.Capabilities
	context      workspace.Context
	filter       bugfilter.Spec
	gateErr      error
	closed       bool

	notices   chan bugmutate.Notice
	watchers  map[int]chan struct{}
	nextWatch int

	stopForward func()
	forwardDone chan struct{}
}

// New returns a Dashboard with no identity and no workspace.
func New(options Options) *Dashboard {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.NoticeBuffer <= 0 {
		options.NoticeBuffer = 32
	}

	d := &Dashboard{
		clock:    options.Clock,
		logger:   options.Logger,
		engine:   bugfilter.Engine{ShortIDLength: options.ShortIDLength},
		recorder: options.Recorder,
		notices:  make(chan bugmutate.Notice, options.NoticeBuffer),
		watchers: make(map[int]chan struct{}),
	}
	d.validator = access.NewValidator(access.ValidatorOptions{
		Logger:                   options.Logger,
		RequireLoadedPermissions: options.RequireLoadedPermissions,
	})

	var syncRecorder bugsync.Recorder
	if options.Recorder != nil {
		syncRecorder = options.Recorder
	}
	d.sync = bugsync.NewManager(bugsync.Options{
		Store:          options.Store,
		Clock:          options.Clock,
		Logger:         options.Logger.With("component", "bugsync"),
		Recorder:       syncRecorder,
		OnTeardown:     d.validator.Reset,
		RetryTransient: options.RetryTransient,
	})
	d.mutator = bugmutate.New(bugmutate.Options{
		Store:           options.Store,
		Validator:       d.validator,
		Principal:       d.principal,
		Folder:          d.sync,
		Notifier:        d,
		Recorder:        d,
		Clock:           options.Clock,
		Logger:          options.Logger.With("component", "bugmutate"),
		MutationTimeout: options.MutationTimeout,
		BulkConcurrency: options.BulkConcurrency,
	})

	updates, cancel := d.sync.Watch()
	d.stopForward = cancel
	d.forwardDone = make(chan struct{})
	go d.forward(updates)
	return d
}

func (d *Dashboard) forward(updates <-chan bugsync.Snapshot) {
	defer close(d.forwardDone)
	for range updates {
		d.signal()
	}
}

func (d *Dashboard) principal() bugmutate.Principal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bugmutate.Principal{Identity: d.identity, Context: d.context, Capabilities: d.capabilities}
}

// SetIdentity replaces the signed-in user and their role payload. A
// nil identity signs out; a nil payload leaves capabilities
// provisional.
func (d *Dashboard) SetIdentity(identity *access.Identity, payload *access.RolePayload) {
	d.mu.Lock()
	d.identity = identity
	d.capabilities = access.Resolve(identity, payload)
	d.mu.Unlock()
	d.logger.Info("identity changed", "source", d.Capabilities().Source.String())
	d.reconcile()
}

// SetContext switches the active workspace.
func (d *Dashboard) SetContext(ctx workspace.Context) {
	d.mu.Lock()
	d.context = ctx
	d.mu.Unlock()
	d.reconcile()
}

// SetFilterSpec replaces the filter.
func (d *Dashboard) SetFilterSpec(spec bugfilter.Spec) {
	d.mu.Lock()
	d.filter = spec
	d.mu.Unlock()
	d.signal()
}

// Capabilities returns the resolved capability set.
func (d *Dashboard) Capabilities() access.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capabilities
}

// reconcile starts or stops subscriptions to match the current
// identity and context.
func (d *Dashboard) reconcile() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	identity, ctx, capabilities := d.identity, d.context, d.capabilities
	d.mu.Unlock()

	result := d.validator.CanSubscribe(identity, ctx, capabilities)
	var gateErr error
	if result.Allowed() {
		if err := d.sync.Start(ctx); err != nil {
			gateErr = err
		}
	} else {
		d.sync.Stop()
		gateErr = result.Err("subscribe")
	}

	d.mu.Lock()
	d.gateErr = gateErr
	d.mu.Unlock()
	d.signal()
}

// State derives the current view.
func (d *Dashboard) State() State {
	snapshot := d.sync.Snapshot()

	d.mu.Lock()
	filter := d.filter
	capabilities := d.capabilities
	ctx := d.context
	gateErr := d.gateErr
	identity := d.identity
	d.mu.Unlock()

	state := State{
		RawBugs:      snapshot.Bugs,
		Filtered:     d.engine.Apply(snapshot.Bugs, filter, d.clock.Now()),
		Members:      snapshot.Members,
		Sprints:      snapshot.Sprints,
		Filter:       filter,
		InFlight:     d.mutator.InFlight(),
		LastError:    snapshot.LastError,
		Loading:      snapshot.Loading(),
		Capabilities: capabilities,
		Metrics:      bugmetrics.Compute(snapshot.Bugs),
		Context:      ctx,
		Sync:         snapshot.State,
		Feeds:        snapshot.Feeds,
		Version:      snapshot.Version,
		Digest:       snapshot.Digest,
	}
	if gateErr != nil {
		state.LastError = gateErr
	}

	switch {
	case !ctx.Configured():
		state.Access = AccessSetupRequired
	case identity == nil || !capabilities.Read || gateErr != nil || snapshot.Feeds.AccessDenied():
		state.Access = AccessRestricted
	default:
		state.Access = AccessReady
	}
	return state
}

// MutateStatus moves a bug to status.
func (d *Dashboard) MutateStatus(ctx context.Context, bugID string, status bug.Status) bugmutate.Outcome {
	return d.mutator.UpdateStatus(ctx, bugID, status)
}

// MutateSeverity changes severity and, through it, priority.
func (d *Dashboard) MutateSeverity(ctx context.Context, bugID string, severity bug.Severity) bugmutate.Outcome {
	return d.mutator.UpdateSeverity(ctx, bugID, severity)
}

// MutateAssignment assigns a bug. An empty memberID unassigns.
func (d *Dashboard) MutateAssignment(ctx context.Context, bugID, memberID string) bugmutate.Outcome {
	return d.mutator.Assign(ctx, bugID, memberID)
}

// MutateEnvironment changes the environment.
func (d *Dashboard) MutateEnvironment(ctx context.Context, bugID string, environment bug.Environment) bugmutate.Outcome {
	return d.mutator.UpdateEnvironment(ctx, bugID, environment)
}

// MutateTitle renames a bug.
func (d *Dashboard) MutateTitle(ctx context.Context, bugID, title string) bugmutate.Outcome {
	return d.mutator.UpdateTitle(ctx, bugID, title)
}

// MutateArbitrary writes a validated patch.
func (d *Dashboard) MutateArbitrary(ctx context.Context, bugID string, patch bug.Patch) bugmutate.Outcome {
	return d.mutator.UpdateFields(ctx, bugID, patch)
}

// DeleteEntity removes a bug.
func (d *Dashboard) DeleteEntity(ctx context.Context, bugID string) bugmutate.Outcome {
	return d.mutator.Delete(ctx, bugID)
}

// CreateEntity files a new bug.
func (d *Dashboard) CreateEntity(ctx context.Context, draft bug.Bug) bugmutate.Outcome {
	return d.mutator.Create(ctx, draft)
}

// CreateSprint adds a sprint to the active workspace.
func (d *Dashboard) CreateSprint(ctx context.Context, sprint bug.Sprint) bugmutate.Outcome {
	return d.mutator.CreateSprint(ctx, sprint)
}

// BulkAction applies action to every bug in ids.
func (d *Dashboard) BulkAction(ctx context.Context, ids []string, action bugmutate.BulkAction) bugmutate.BulkResult {
	return d.mutator.Bulk(ctx, ids, action)
}

// ManualRefetch restarts the subscriptions for the active workspace,
// clearing any recorded subscription failure.
func (d *Dashboard) ManualRefetch() error {
	d.mu.Lock()
	gateErr := d.gateErr
	d.mu.Unlock()
	if gateErr != nil {
		d.reconcile()
		d.mu.Lock()
		gateErr = d.gateErr
		d.mu.Unlock()
		return gateErr
	}
	err := d.sync.Refetch()
	d.signal()
	return err
}

// Snapshot returns the underlying synchronized snapshot.
func (d *Dashboard) Snapshot() bugsync.Snapshot {
	return d.sync.Snapshot()
}

// Notices returns the channel of mutation notices. It is closed by
// Close.
func (d *Dashboard) Notices() <-chan bugmutate.Notice {
	return d.notices
}

// Notify implements bugmutate.Notifier. When the buffer is full the
// oldest notice is dropped.
func (d *Dashboard) Notify(notice bugmutate.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for {
		select {
		case d.notices <- notice:
			return
		default:
		}
		select {
		case <-d.notices:
		default:
		}
	}
}

// MutationFinished implements bugmutate.Recorder.
func (d *Dashboard) MutationFinished(op string, kind bugerr.Kind, elapsed time.Duration) {
	if d.recorder != nil {
		d.recorder.MutationFinished(op, kind, elapsed)
	}
}

// InFlightChanged implements bugmutate.Recorder.
func (d *Dashboard) InFlightChanged(count int) {
	if d.recorder != nil {
		d.recorder.InFlightChanged(count)
	}
	d.signal()
}

// Watch returns a channel that receives a value whenever State may
// have changed. Signals coalesce: a slow reader sees one pending
// signal, never a backlog. cancel closes the channel.
func (d *Dashboard) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	d.mu.Lock()
	id := d.nextWatch
	d.nextWatch++
	d.watchers[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			if _, ok := d.watchers[id]; ok {
				delete(d.watchers, id)
				close(ch)
			}
			d.mu.Unlock()
		})
	}
}

func (d *Dashboard) signal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close stops the subscriptions and closes the Watch and Notices
// channels. Mutations already running finish but post no notice.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.sync.Stop()
	d.stopForward()
	<-d.forwardDone

	d.mu.Lock()
	for id, ch := range d.watchers {
		delete(d.watchers, id)
		close(ch)
	}
	close(d.notices)
	d.mu.Unlock()
	d.logger.Info("dashboard closed")
}
