// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pgstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
)

// classify maps PostgreSQL failures onto store codes. Errors already
// carrying a code, including context errors, pass through.
func classify(err error) error {
	if err == nil || docstore.CodeOf(err) != "" {
		return err
	}
	code := codeFor(err)
	return &docstore.Error{Code: code, Message: "postgres", Err: err}
}

func codeFor(err error) docstore.Code {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStateCode(pgErr.Code)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return docstore.CodeUnavailable
	}
	if pgconn.Timeout(err) {
		return docstore.CodeDeadlineExceeded
	}
	if pgconn.SafeToRetry(err) {
		return docstore.CodeUnavailable
	}
	return docstore.CodeInternal
}

// sqlStateCode maps a SQLSTATE onto a store code by exact match first,
// then by class.
func sqlStateCode(state string) docstore.Code {
	switch state {
	case "42501":
		return docstore.CodePermissionDenied
	case "28000", "28P01":
		return docstore.CodeUnauthenticated
	case "40001", "40P01":
		return docstore.CodeAborted
	case "57014":
		return docstore.CodeCancelled
	case "57P01", "57P02", "57P03":
		return docstore.CodeUnavailable
	}
	switch {
	case strings.HasPrefix(state, "08"):
		return docstore.CodeUnavailable
	case strings.HasPrefix(state, "53"):
		return docstore.CodeResourceExhausted
	case strings.HasPrefix(state, "22"), strings.HasPrefix(state, "23"):
		return docstore.CodeInvalidArgument
	}
	return docstore.CodeInternal
}
