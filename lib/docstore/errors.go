// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies a store failure.
type Code string

const (
	CodePermissionDenied  Code = "permission-denied"
	CodeUnauthenticated   Code = "unauthenticated"
	CodeUnavailable       Code = "unavailable"
	CodeDeadlineExceeded  Code = "deadline-exceeded"
	CodeCancelled         Code = "cancelled"
	CodeAborted           Code = "aborted"
	CodeResourceExhausted Code = "resource-exhausted"
	CodeNotFound          Code = "not-found"
	CodeInvalidArgument   Code = "invalid-argument"
	CodeInternal          Code = "internal"
)

// Error is a store failure with a machine-readable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docstore: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("docstore: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code carried by err. Context cancellation and
// deadline errors map to their codes even when no *Error wraps them.
// Unclassified errors return "".
func CodeOf(err error) Code {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
