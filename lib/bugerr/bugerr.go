// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bugerr is the failure taxonomy shared by the dashboard
// engine. Every failure the engine reports to its caller is an *Error
// whose Kind tells the presentation layer how to surface it: a
// persistent banner for AccessDenied, a retry offer for Transient, an
// inline message for Validation, a short notice for Busy, and a setup
// prompt for NotConfigured.
package bugerr

import (
	"errors"
	"fmt"

	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/schema/bug"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

// Kind classifies a failure.
type Kind string

const (
	// AccessDenied is a permission or capability failure. Never
	// retried automatically.
	AccessDenied Kind = "access-denied"

	// Transient is a connectivity or timeout failure. Last-known-good
	// data is kept and a manual retry is offered.
	Transient Kind = "transient"

	// Validation is a malformed change rejected before any store call.
	Validation Kind = "validation"

	// Busy means the bug already has a write in progress.
	Busy Kind = "busy"

	// NotConfigured means the active workspace context is incomplete.
	NotConfigured Kind = "not-configured"

	// Internal covers everything else.
	Internal Kind = "internal"
)

// Error is an engine failure.
type Error struct {
	Kind    Kind
	Op      string
	BugID   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	message := e.Message
	if message == "" && e.Err != nil {
		message = e.Err.Error()
	}
	if e.BugID != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.BugID, e.Kind, message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error with no cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err and wraps it with op. A nil err returns nil. An
// err that already carries a Kind keeps it.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// KindOf returns the Kind carried by err, or Classify(err) when err is
// not an *Error. A nil err returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return Classify(err)
}

// Is reports whether err is of kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify maps a raw failure onto the taxonomy. Store codes decide
// between AccessDenied and Transient; schema and workspace errors map
// to Validation and NotConfigured.
func Classify(err error) Kind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	var validation *bug.ValidationError
	if errors.As(err, &validation) {
		return Validation
	}
	if errors.Is(err, workspace.ErrNotConfigured) {
		return NotConfigured
	}
	switch docstore.CodeOf(err) {
	case docstore.CodePermissionDenied, docstore.CodeUnauthenticated:
		return AccessDenied
	case docstore.CodeUnavailable, docstore.CodeDeadlineExceeded, docstore.CodeAborted,
		docstore.CodeResourceExhausted, docstore.CodeCancelled:
		return Transient
	case docstore.CodeInvalidArgument:
		return Validation
	}
	return Internal
}
