// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoUsesInjectedValues(t *testing.T) {
	defer func(commit, dirty, built, version string) {
		GitCommit, GitDirty, BuildTime, Version = commit, dirty, built, version
	}(GitCommit, GitDirty, BuildTime, Version)

	GitCommit, GitDirty, BuildTime, Version = "abc1234", "true", "2026-03-02T09:00:00Z", "1.2.0"

	if got, want := Info(), "1.2.0 (abc1234-dirty, 2026-03-02T09:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(Full(), Info()+"\n  Go: ") {
		t.Errorf("Full() = %q", Full())
	}
	if Short() != "1.2.0" {
		t.Errorf("Short() = %q", Short())
	}
}

func TestCommitNeverEmpty(t *testing.T) {
	if Commit() == "" {
		t.Error("Commit() is empty")
	}
}
