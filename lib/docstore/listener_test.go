// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"errors"
	"testing"
	"time"

	"github.com/kweid-platfrom/frontend-sub008/lib/testutil"
)

func TestListenerDeliversSnapshotBeforeError(t *testing.T) {
	snapshots := make(chan []Document, 4)
	errs := make(chan error, 1)
	l := NewListener("p", Order{}, func(documents []Document) { snapshots <- documents }, func(err error) { errs <- err })

	l.Push([]Document{{ID: "a"}})
	l.Push([]Document{{ID: "a"}, {ID: "b"}})
	failure := errors.New("gone")
	l.Fail(failure)
	l.Push([]Document{{ID: "ignored"}})

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	got := testutil.RequireReceive(t, snapshots, time.Second, "coalesced snapshot")
	if len(got) != 2 {
		t.Errorf("snapshot = %+v, want the latest push", got)
	}
	if err := testutil.RequireReceive(t, errs, time.Second, "terminal error"); !errors.Is(err, failure) {
		t.Errorf("error = %v", err)
	}
	testutil.RequireClosed(t, done, time.Second, "Run returns after the error")
	if !l.Done() {
		t.Error("Done = false after Fail")
	}
}

func TestListenerStopDropsPending(t *testing.T) {
	called := make(chan struct{}, 1)
	l := NewListener("p", Order{}, func([]Document) { called <- struct{}{} }, nil)
	l.Push([]Document{{ID: "a"}})
	l.Stop()

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()
	testutil.RequireClosed(t, done, time.Second, "Run returns after Stop")
	select {
	case <-called:
		t.Error("snapshot delivered after Stop")
	default:
	}
}
