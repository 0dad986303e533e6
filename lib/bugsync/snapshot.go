// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bugsync

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"

	"github.com/kweid-platfrom/frontend-sub008/lib/codec"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

// Snapshot is the published state of a Manager. It is immutable once
// published; consumers must not modify its slices.
type Snapshot struct {
	// Version increases with every publication.
	Version uint64 `cbor:"version"`

	// Generation identifies the subscription set that produced the
	// snapshot. It changes on every teardown.
	Generation uint64 `cbor:"generation"`

	State     State             `cbor:"-"`
	Context   workspace.Context `cbor:"-"`
	Bugs      []bug.Bug         `cbor:"bugs"`
	Members   []bug.TeamMember  `cbor:"members"`
	Sprints   []bug.Sprint      `cbor:"sprints"`
	Feeds     Feeds             `cbor:"feeds"`
	LastError error             `cbor:"-"`

	// Digest is a BLAKE3 hash of the bugs, members, sprints and feed
	// statuses. Equal digests mean equal content regardless of
	// Version.
	Digest string `cbor:"-"`
}

// Loading reports whether any feed is waiting for its first snapshot.
func (s Snapshot) Loading() bool {
	return s.State.running() && s.Feeds.Loading()
}

// Bug looks up a bug by ID.
func (s Snapshot) Bug(id string) (bug.Bug, bool) {
	for _, b := range s.Bugs {
		if b.ID == id {
			return b, true
		}
	}
	return bug.Bug{}, false
}

type digestInput struct {
	Bugs    []bug.Bug        `cbor:"bugs"`
	Members []bug.TeamMember `cbor:"members"`
	Sprints []bug.Sprint     `cbor:"sprints"`
	Feeds   Feeds            `cbor:"feeds"`
}

func digest(s Snapshot) string {
	data, err := codec.Marshal(digestInput{Bugs: s.Bugs, Members: s.Members, Sprints: s.Sprints, Feeds: s.Feeds})
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// pendingWrite is a committed local write not yet reflected in a bugs
// snapshot.
type pendingWrite struct {
	patch    bug.Patch
	commit   time.Time
	deletion bool
}

// view overlays pending writes on the server bugs. Order follows the
// server snapshot.
func view(server []bug.Bug, pending map[string][]pendingWrite) []bug.Bug {
	if len(pending) == 0 {
		return server
	}
	result := make([]bug.Bug, 0, len(server))
	for _, b := range server {
		writes := pending[b.ID]
		deleted := false
		for _, write := range writes {
			if write.deletion {
				deleted = true
				break
			}
			b = write.patch.Apply(b, write.commit)
			if write.commit.After(b.UpdatedAt) {
				b.UpdatedAt = write.commit
			}
		}
		if !deleted {
			result = append(result, b)
		}
	}
	return result
}

// reconcile drops pending writes the server snapshot has caught up
// with: patches whose commit time is at or before the server's update
// time, and every write for a bug no longer present.
func reconcile(server []bug.Bug, pending map[string][]pendingWrite) {
	if len(pending) == 0 {
		return
	}
	present := make(map[string]time.Time, len(server))
	for _, b := range server {
		present[b.ID] = b.UpdatedAt
	}
	for id, writes := range pending {
		updatedAt, ok := present[id]
		if !ok {
			delete(pending, id)
			continue
		}
		kept := writes[:0]
		for _, write := range writes {
			if write.deletion || write.commit.After(updatedAt) {
				kept = append(kept, write)
			}
		}
		if len(kept) == 0 {
			delete(pending, id)
		} else {
			pending[id] = kept
		}
	}
}
