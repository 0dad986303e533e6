// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memstore is an in-process docstore.Store.
//
// Every subscription has its own delivery goroutine, so callbacks never
// run on the writer's goroutine and never run concurrently for one
// subscription. Snapshots are full-replacement values: when a
// subscriber falls behind, intermediate snapshots are coalesced into
// the latest one, preserving order.
//
// The store can inject failures for tests: Deny turns a path into a
// permission-denied path, FailSubscriptions ends subscriptions with an
// arbitrary error, FailWrites fails writes to one document, and Hold
// parks a document's next write until released.
package memstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
)

// Options configures a Store.
type Options struct {
	// Clock stamps commit times. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Store is an in-memory docstore.Store.
type Store struct {
	clock  clock.Clock
	logger *slog.Logger

	mu           sync.Mutex
	collections  map[string]map[string]map[string]any
	listeners    map[string]map[int]*docstore.Listener
	nextListener int
	lastCommit   time.Time

	denied      map[string]bool
	writeFaults map[string]error
	holds       map[string]*Hold
	writes      map[string]int
}

var _ docstore.Store = (*Store)(nil)

// New returns an empty Store.
func New(options Options) *Store {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		clock:       options.Clock,
		logger:      options.Logger,
		collections: make(map[string]map[string]map[string]any),
		listeners:   make(map[string]map[int]*docstore.Listener),
		denied:      make(map[string]bool),
		writeFaults: make(map[string]error),
		holds:       make(map[string]*Hold),
		writes:      make(map[string]int),
	}
}

// Subscribe implements docstore.Store. The current contents are
// delivered first. Subscribing to a denied path delivers a
// permission-denied error instead.
func (s *Store) Subscribe(path string, order docstore.Order, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Unsubscribe, error) {
	l := docstore.NewListener(path, order, onSnapshot, onError)

	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	if s.listeners[path] == nil {
		s.listeners[path] = make(map[int]*docstore.Listener)
	}
	s.listeners[path][id] = l
	if s.denied[path] {
		l.Fail(docstore.Errorf(docstore.CodePermissionDenied, "read access to %s denied", path))
		delete(s.listeners[path], id)
	} else {
		l.Push(s.snapshotLocked(path, order))
	}
	s.mu.Unlock()

	go l.Run()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners[path], id)
			s.mu.Unlock()
			l.Stop()
		})
	}, nil
}

// WriteFields implements docstore.Store.
func (s *Store) WriteFields(ctx context.Context, path, id string, patch map[string]any) (docstore.WriteResult, error) {
	if err := s.beforeWrite(ctx, path, id); err != nil {
		return docstore.WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.collections[path][id]
	if !ok {
		return docstore.WriteResult{}, docstore.Errorf(docstore.CodeNotFound, "%s/%s does not exist", path, id)
	}
	commit := s.commitTimeLocked()
	s.collections[path][id] = docstore.ApplyPatch(existing, patch, commit)
	s.notifyLocked(path)
	return docstore.WriteResult{ID: id, UpdateTime: commit}, nil
}

// CreateDocument implements docstore.Store.
func (s *Store) CreateDocument(ctx context.Context, path string, fields map[string]any) (docstore.WriteResult, error) {
	id := uuid.NewString()
	if err := s.beforeWrite(ctx, path, ""); err != nil {
		return docstore.WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	commit := s.commitTimeLocked()
	s.putLocked(path, id, docstore.ApplyPatch(nil, fields, commit))
	s.notifyLocked(path)
	return docstore.WriteResult{ID: id, UpdateTime: commit}, nil
}

// DeleteDocument implements docstore.Store.
func (s *Store) DeleteDocument(ctx context.Context, path, id string) error {
	if err := s.beforeWrite(ctx, path, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[path][id]; !ok {
		return nil
	}
	delete(s.collections[path], id)
	s.notifyLocked(path)
	return nil
}

// beforeWrite counts the write, applies injected faults, and waits on
// a Hold for id if one is set.
func (s *Store) beforeWrite(ctx context.Context, path, id string) error {
	s.mu.Lock()
	s.writes[id]++
	if s.denied[path] {
		s.mu.Unlock()
		return docstore.Errorf(docstore.CodePermissionDenied, "write access to %s denied", path)
	}
	fault := s.writeFaults[id]
	hold := s.holds[id]
	delete(s.holds, id)
	s.mu.Unlock()

	if hold != nil {
		close(hold.entered)
		select {
		case <-hold.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fault
}

// Seed stores a document directly, bypassing faults and write counts.
// Sentinels in fields resolve as for a normal write.
func (s *Store) Seed(path, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(path, id, docstore.ApplyPatch(nil, fields, s.commitTimeLocked()))
	s.notifyLocked(path)
}

// Document returns a copy of a stored document.
func (s *Store) Document(path, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.collections[path][id]
	return docstore.CloneFields(fields), ok
}

// Writes returns how many write attempts reached the store for a
// document ID, including failed ones. Creates count under "".
func (s *Store) Writes(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[id]
}

// Subscribers returns the number of live subscriptions on path.
func (s *Store) Subscribers(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[path])
}

// Deny makes path permission-denied for reads and writes. Active
// subscriptions on path receive the error and end.
func (s *Store) Deny(path string) {
	s.mu.Lock()
	s.denied[path] = true
	s.mu.Unlock()
	s.FailSubscriptions(path, docstore.Errorf(docstore.CodePermissionDenied, "read access to %s denied", path))
}

// Allow reverses Deny.
func (s *Store) Allow(path string) {
	s.mu.Lock()
	delete(s.denied, path)
	s.mu.Unlock()
}

// FailSubscriptions ends every active subscription on path with err.
func (s *Store) FailSubscriptions(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.listeners[path] {
		l.Fail(err)
		delete(s.listeners[path], id)
	}
	s.logger.Debug("subscriptions failed", "path", path, "error", err)
}

// FailWrites makes every write to document id fail with err until
// cleared with a nil err.
func (s *Store) FailWrites(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeFaults, id)
		return
	}
	s.writeFaults[id] = err
}

// Hold parks the next write to document id until Release is called.
type Hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Hold installs a Hold on the next write to id.
func (s *Store) Hold(id string) *Hold {
	hold := &Hold{entered: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.holds[id] = hold
	s.mu.Unlock()
	return hold
}

// Entered is closed once the held write is waiting.
func (h *Hold) Entered() <-chan struct{} { return h.entered }

// Release lets the held write proceed.
func (h *Hold) Release() { h.once.Do(func() { close(h.release) }) }

func (s *Store) putLocked(path, id string, fields map[string]any) {
	if s.collections[path] == nil {
		s.collections[path] = make(map[string]map[string]any)
	}
	s.collections[path][id] = fields
}

// commitTimeLocked returns a commit time strictly after the previous
// one, so update times order writes even under a frozen fake clock.
func (s *Store) commitTimeLocked() time.Time {
	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastCommit) {
		now = s.lastCommit.Add(time.Microsecond)
	}
	s.lastCommit = now
	return now
}

func (s *Store) notifyLocked(path string) {
	for _, l := range s.listeners[path] {
		l.Push(s.snapshotLocked(path, l.Order()))
	}
}

func (s *Store) snapshotLocked(path string, order docstore.Order) []docstore.Document {
	collection := s.collections[path]
	documents := make([]docstore.Document, 0, len(collection))
	for id, fields := range collection {
		documents = append(documents, docstore.Document{ID: id, Fields: docstore.CloneFields(fields)})
	}
	docstore.SortDocuments(documents, order)
	return documents
}
