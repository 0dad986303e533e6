// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
)

func TestClassifySQLState(t *testing.T) {
	tests := []struct {
		state string
		want  docstore.Code
	}{
		{"42501", docstore.CodePermissionDenied},
		{"28P01", docstore.CodeUnauthenticated},
		{"40001", docstore.CodeAborted},
		{"57014", docstore.CodeCancelled},
		{"57P01", docstore.CodeUnavailable},
		{"08006", docstore.CodeUnavailable},
		{"53300", docstore.CodeResourceExhausted},
		{"23505", docstore.CodeInvalidArgument},
		{"XX000", docstore.CodeInternal},
	}
	for _, test := range tests {
		t.Run(test.state, func(t *testing.T) {
			err := classify(fmt.Errorf("query: %w", &pgconn.PgError{Code: test.state, Message: "boom"}))
			if got := docstore.CodeOf(err); got != test.want {
				t.Errorf("CodeOf = %q, want %q", got, test.want)
			}
		})
	}
}

func TestClassifyPassesThroughCodedErrors(t *testing.T) {
	notFound := docstore.Errorf(docstore.CodeNotFound, "missing")
	if err := classify(notFound); err != notFound {
		t.Errorf("classify rewrapped a coded error: %v", err)
	}
	if err := classify(context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("classify lost the deadline: %v", err)
	}
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
}

func TestClassifyUnknownIsInternal(t *testing.T) {
	err := classify(errors.New("mystery"))
	if !docstore.IsCode(err, docstore.CodeInternal) {
		t.Errorf("CodeOf = %q, want internal", docstore.CodeOf(err))
	}
}
