// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import "sync"

// Listener delivers one subscription's events on its own goroutine.
// Only the most recent undelivered snapshot is kept, so a slow
// subscriber sees coalesced snapshots in order. Store implementations
// call Push and Fail from any goroutine and start Run once.
type Listener struct {
	path       string
	order      Order
	onSnapshot SnapshotFunc
	onError    ErrorFunc

	wake chan struct{}

	mu      sync.Mutex
	pending []Document
	has     bool
	err     error
	stopped bool
}

// NewListener returns a Listener for one subscription.
func NewListener(path string, order Order, onSnapshot SnapshotFunc, onError ErrorFunc) *Listener {
	return &Listener{
		path:       path,
		order:      order,
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
	}
}

// Path returns the subscribed collection path.
func (l *Listener) Path() string { return l.path }

// Order returns the subscription's sort order.
func (l *Listener) Order() Order { return l.order }

// Push queues a snapshot, replacing any undelivered one. Ignored after
// Fail.
func (l *Listener) Push(documents []Document) {
	l.mu.Lock()
	if l.err == nil {
		l.pending, l.has = documents, true
	}
	l.mu.Unlock()
	l.signal()
}

// Fail queues a terminal error. A snapshot queued before it is still
// delivered first.
func (l *Listener) Fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.signal()
}

// Stop ends delivery. Undelivered events are dropped.
func (l *Listener) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}

// Done reports whether the listener has failed or stopped.
func (l *Listener) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped || l.err != nil
}

func (l *Listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run delivers events until Stop or a delivered error.
func (l *Listener) Run() {
	for range l.wake {
		l.mu.Lock()
		stopped := l.stopped
		documents, has := l.pending, l.has
		err := l.err
		l.pending, l.has = nil, false
		l.mu.Unlock()

		if stopped {
			return
		}
		if has && l.onSnapshot != nil {
			l.onSnapshot(documents)
		}
		if err != nil {
			if l.onError != nil {
				l.onError(err)
			}
			return
		}
	}
}
