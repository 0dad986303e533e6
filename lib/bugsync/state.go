// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugsync

// State is the Manager's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateRestarting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// running reports whether subscriptions are open or being opened.
func (s State) running() bool {
	return s == StateStarting || s == StateActive || s == StateRestarting
}

// FeedStatus is the health of one subscription.
type FeedStatus int

const (
	// FeedPending means no snapshot has arrived yet.
	FeedPending FeedStatus = iota

	// FeedLive means the feed is delivering snapshots.
	FeedLive

	// FeedAccessDenied means the store refused the subscription. The
	// feed's collection is empty.
	FeedAccessDenied

	// FeedTransient means the feed failed for a retryable reason. The
	// last snapshot is kept.
	FeedTransient
)

func (f FeedStatus) String() string {
	switch f {
	case FeedPending:
		return "pending"
	case FeedLive:
		return "live"
	case FeedAccessDenied:
		return "access-denied"
	case FeedTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Feeds holds the status of each subscription.
type Feeds struct {
	Bugs    FeedStatus `cbor:"bugs"`
	Members FeedStatus `cbor:"members"`
	Sprints FeedStatus `cbor:"sprints"`
}

func (f *Feeds) get(name string) FeedStatus {
	switch name {
	case feedBugs:
		return f.Bugs
	case feedMembers:
		return f.Members
	default:
		return f.Sprints
	}
}

func (f *Feeds) set(name string, status FeedStatus) {
	switch name {
	case feedBugs:
		f.Bugs = status
	case feedMembers:
		f.Members = status
	default:
		f.Sprints = status
	}
}

// Loading reports whether any feed is still waiting for its first
// snapshot.
func (f Feeds) Loading() bool {
	return f.Bugs == FeedPending || f.Members == FeedPending || f.Sprints == FeedPending
}

// AccessDenied reports whether any feed was refused.
func (f Feeds) AccessDenied() bool {
	return f.Bugs == FeedAccessDenied || f.Members == FeedAccessDenied || f.Sprints == FeedAccessDenied
}
