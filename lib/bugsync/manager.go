// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugsync

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

const (
	feedBugs    = bug.CollectionBugs
	feedMembers = bug.CollectionMembers
	feedSprints = bug.CollectionSprints
)

type feedSpec struct {
	name  string
	order docstore.Order
}

var feedSpecs = []feedSpec{
	{name: feedBugs, order: docstore.Order{Field: bug.FieldCreatedAt, Descending: true}},
	{name: feedMembers, order: docstore.Order{Field: bug.FieldDisplayName}},
	{name: feedSprints, order: docstore.Order{Field: bug.FieldCreatedAt, Descending: true}},
}

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// Recorder receives subscription events for instrumentation.
type Recorder interface {
	SnapshotReceived(feed string, documents int)
	SubscriptionFailed(feed string, kind bugerr.Kind)
}

// Options configures a Manager.
type Options struct {
	Store  docstore.Store
	Clock  clock.Clock
	Logger *slog.Logger

	// Recorder is optional.
	Recorder Recorder

	// OnTeardown runs on every start, restart and stop transition,
	// after the previous subscriptions are released and outside the
	// Manager's lock.
	OnTeardown func()

	// RetryTransient resubscribes a feed after a transient failure,
	// backing off from one second to thirty.
	RetryTransient bool
}

// Manager owns the workspace subscriptions and the published
// Snapshot. It is safe for concurrent use.
type Manager struct {
	store          docstore.Store
	clock          clock.Clock
	logger         *slog.Logger
	recorder       Recorder
	onTeardown     func()
	retryTransient bool

	mu         sync.Mutex
	state      State
	context    workspace.Context
	generation uint64
	// done is closed when the current generation is torn down.
	done          chan struct{}
	unsubscribes  map[string]docstore.Unsubscribe
	retryAttempts map[string]int
	// failures counts errors per feed in the current generation. A
	// subscription opened while the count moved has already failed.
	failures map[string]uint64

	bugs    []bug.Bug
	members []bug.TeamMember
	sprints []bug.Sprint
	feeds   Feeds
	errs    map[string]error
	lastErr error
	pending map[string][]pendingWrite

	version   uint64
	published Snapshot
	watchers  map[int]chan Snapshot
	nextWatch int
}

// NewManager returns an Idle Manager.
func NewManager(options Options) *Manager {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		store:          options.Store,
		clock:          options.Clock,
		logger:         options.Logger,
		recorder:       options.Recorder,
		onTeardown:     options.OnTeardown,
		retryTransient: options.RetryTransient,
		unsubscribes:   make(map[string]docstore.Unsubscribe),
		retryAttempts:  make(map[string]int),
		failures:       make(map[string]uint64),
		errs:           make(map[string]error),
		pending:        make(map[string][]pendingWrite),
		watchers:       make(map[int]chan Snapshot),
	}
	m.published = Snapshot{State: StateIdle}
	return m
}

// Start opens the subscriptions for ctx. It is a no-op when ctx is
// already running; a different ctx replaces the running one. An
// incomplete ctx returns a NotConfigured error and changes nothing.
func (m *Manager) Start(ctx workspace.Context) error {
	return m.start(ctx, false)
}

// Refetch tears down and reopens the current workspace's
// subscriptions.
func (m *Manager) Refetch() error {
	m.mu.Lock()
	ctx, state := m.context, m.state
	m.mu.Unlock()
	if state == StateIdle || !ctx.Configured() {
		return bugerr.New(bugerr.NotConfigured, "refetch", "no workspace has been started")
	}
	return m.start(ctx, true)
}

func (m *Manager) start(ctx workspace.Context, force bool) error {
	if err := ctx.Validate(); err != nil {
		return bugerr.Wrap("start subscriptions", err)
	}

	m.mu.Lock()
	if !force && m.state.running() && m.context.Key() == ctx.Key() {
		m.mu.Unlock()
		return nil
	}
	previous := m.teardownLocked()
	if m.state.running() {
		m.state = StateRestarting
	} else {
		m.state = StateStarting
	}
	m.context = ctx
	generation, done := m.generation, m.done
	m.publishLocked()
	m.mu.Unlock()

	m.release(previous)
	m.tornDown()
	m.logger.Info("starting subscriptions", "workspace", ctx.String(), "generation", generation)

	opened := make(map[string]docstore.Unsubscribe, len(feedSpecs))
	for _, feed := range feedSpecs {
		unsubscribe, err := m.subscribe(generation, done, ctx, feed)
		if err != nil {
			m.handleError(generation, done, feed, err)
			continue
		}
		opened[feed.name] = unsubscribe
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		m.release(opened)
		return nil
	}
	dead := make(map[string]docstore.Unsubscribe)
	for name, unsubscribe := range opened {
		if m.failures[name] > 0 {
			dead[name] = unsubscribe
			continue
		}
		m.unsubscribes[name] = unsubscribe
	}
	m.state = StateActive
	m.publishLocked()
	m.mu.Unlock()
	m.release(dead)
	return nil
}

func (m *Manager) subscribe(generation uint64, done chan struct{}, ctx workspace.Context, feed feedSpec) (docstore.Unsubscribe, error) {
	return m.store.Subscribe(ctx.Path(feed.name), feed.order,
		func(documents []docstore.Document) { m.handleSnapshot(generation, feed, documents) },
		func(err error) { m.handleError(generation, done, feed, err) },
	)
}

// Stop releases every subscription. Safe to call repeatedly.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	previous := m.teardownLocked()
	m.state = StateStopped
	m.publishLocked()
	m.mu.Unlock()

	m.release(previous)
	m.tornDown()
	m.logger.Info("subscriptions stopped")
}

// teardownLocked invalidates the current generation, clears local data
// and returns the subscriptions to release.
func (m *Manager) teardownLocked() map[string]docstore.Unsubscribe {
	m.generation++
	if m.done != nil {
		close(m.done)
	}
	m.done = make(chan struct{})

	previous := m.unsubscribes
	m.unsubscribes = make(map[string]docstore.Unsubscribe)
	m.retryAttempts = make(map[string]int)
	m.failures = make(map[string]uint64)
	m.bugs, m.members, m.sprints = nil, nil, nil
	m.feeds = Feeds{}
	m.errs = make(map[string]error)
	m.lastErr = nil
	m.pending = make(map[string][]pendingWrite)
	return previous
}

func (m *Manager) release(unsubscribes map[string]docstore.Unsubscribe) {
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

// tornDown runs the teardown hook. Every start and stop transition
// calls it, including ones that had nothing open to release.
func (m *Manager) tornDown() {
	if m.onTeardown != nil {
		m.onTeardown()
	}
}

func (m *Manager) handleSnapshot(generation uint64, feed feedSpec, documents []docstore.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		m.logger.Debug("ignoring stale snapshot", "feed", feed.name, "generation", generation)
		return
	}

	switch feed.name {
	case feedBugs:
		bugs := make([]bug.Bug, len(documents))
		for i, document := range documents {
			bugs[i] = bug.DecodeBug(document.ID, document.Fields)
		}
		m.bugs = bugs
		reconcile(m.bugs, m.pending)
	case feedMembers:
		members := make([]bug.TeamMember, len(documents))
		for i, document := range documents {
			members[i] = bug.DecodeMember(document.ID, document.Fields)
		}
		m.members = members
	case feedSprints:
		sprints := make([]bug.Sprint, len(documents))
		for i, document := range documents {
			sprints[i] = bug.DecodeSprint(document.ID, document.Fields)
		}
		m.sprints = sprints
	}
	m.feeds.set(feed.name, FeedLive)
	m.retryAttempts[feed.name] = 0
	delete(m.errs, feed.name)
	m.refreshLastErrorLocked()
	if m.recorder != nil {
		m.recorder.SnapshotReceived(feed.name, len(documents))
	}
	m.publishLocked()
}

func (m *Manager) handleError(generation uint64, done chan struct{}, feed feedSpec, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		m.logger.Debug("ignoring stale subscription error", "feed", feed.name, "error", err)
		return
	}
	m.failures[feed.name]++

	kind := bugerr.Classify(err)
	if kind == bugerr.AccessDenied {
		m.clearLocked(feed.name)
		m.feeds.set(feed.name, FeedAccessDenied)
		m.logger.Warn("subscription denied", "feed", feed.name, "workspace", m.context.String(), "error", err)
	} else {
		kind = bugerr.Transient
		m.feeds.set(feed.name, FeedTransient)
		m.logger.Warn("subscription interrupted", "feed", feed.name, "workspace", m.context.String(), "error", err)
		if m.retryTransient {
			m.scheduleRetryLocked(generation, done, feed)
		}
	}
	if unsubscribe, ok := m.unsubscribes[feed.name]; ok {
		delete(m.unsubscribes, feed.name)
		go unsubscribe()
	}
	wrapped := &bugerr.Error{Kind: kind, Op: "subscribe " + feed.name, Err: err}
	m.errs[feed.name] = wrapped
	m.lastErr = wrapped
	if m.recorder != nil {
		m.recorder.SubscriptionFailed(feed.name, kind)
	}
	m.publishLocked()
}

func (m *Manager) clearLocked(name string) {
	switch name {
	case feedBugs:
		m.bugs = nil
		m.pending = make(map[string][]pendingWrite)
	case feedMembers:
		m.members = nil
	case feedSprints:
		m.sprints = nil
	}
}

// refreshLastErrorLocked keeps lastErr pointing at a feed that is
// still failing, or clears it once every feed has recovered.
func (m *Manager) refreshLastErrorLocked() {
	if m.lastErr == nil {
		return
	}
	for _, err := range m.errs {
		if errors.Is(m.lastErr, err) {
			return
		}
	}
	m.lastErr = nil
	for _, feed := range feedSpecs {
		if err, ok := m.errs[feed.name]; ok {
			m.lastErr = err
			return
		}
	}
}

func (m *Manager) scheduleRetryLocked(generation uint64, done chan struct{}, feed feedSpec) {
	attempt := m.retryAttempts[feed.name]
	m.retryAttempts[feed.name] = attempt + 1
	delay := initialRetryDelay << attempt
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	ctx := m.context
	failures := m.failures[feed.name]
	m.logger.Info("retrying subscription", "feed", feed.name, "delay", delay, "attempt", attempt+1)

	go func() {
		select {
		case <-m.clock.After(delay):
		case <-done:
			return
		}
		unsubscribe, err := m.subscribe(generation, done, ctx, feed)
		if err != nil {
			m.handleError(generation, done, feed, err)
			return
		}
		m.mu.Lock()
		if generation != m.generation || m.failures[feed.name] != failures {
			// Torn down, or this subscription failed before it could
			// be recorded and another retry owns the feed.
			m.mu.Unlock()
			unsubscribe()
			return
		}
		m.unsubscribes[feed.name] = unsubscribe
		m.mu.Unlock()
	}()
}

// FoldPatch overlays a committed patch on the published view until a
// snapshot at or after commit arrives. It returns false, and does
// nothing, when ctx is no longer the active workspace.
func (m *Manager) FoldPatch(ctx workspace.Context, bugID string, patch bug.Patch, commit time.Time) bool {
	return m.fold(ctx, bugID, pendingWrite{patch: patch.Clone(), commit: commit})
}

// FoldDelete hides a deleted bug until a snapshot without it arrives.
func (m *Manager) FoldDelete(ctx workspace.Context, bugID string) bool {
	return m.fold(ctx, bugID, pendingWrite{deletion: true})
}

func (m *Manager) fold(ctx workspace.Context, bugID string, write pendingWrite) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.running() || m.context.Key() != ctx.Key() {
		return false
	}
	if m.feeds.get(feedBugs) == FeedAccessDenied {
		return false
	}
	for _, b := range m.bugs {
		if b.ID != bugID {
			continue
		}
		if !write.deletion && !write.commit.After(b.UpdatedAt) {
			// The server copy already includes this write.
			return true
		}
		m.pending[bugID] = append(m.pending[bugID], write)
		m.publishLocked()
		return true
	}
	return false
}

// Snapshot returns the most recently published snapshot.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Context returns the active workspace.
func (m *Manager) Context() workspace.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context
}

// Watch returns a channel that always holds the latest snapshot not
// yet received; older undelivered snapshots are replaced. The current
// snapshot is delivered first. cancel closes the channel.
func (m *Manager) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	m.mu.Lock()
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = ch
	ch <- m.published
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			close(ch)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) publishLocked() {
	m.version++
	snapshot := Snapshot{
		Version:    m.version,
		Generation: m.generation,
		State:      m.state,
		Context:    m.context,
		Bugs:       view(m.bugs, m.pending),
		Members:    m.members,
		Sprints:    m.sprints,
		Feeds:      m.feeds,
		LastError:  m.lastErr,
	}
	snapshot.Digest = digest(snapshot)
	m.published = snapshot

	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
