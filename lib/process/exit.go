// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry their own exit code.
// Their message is assumed to have been shown already.
type ExitCoder interface {
	ExitCode() int
}

// Fatal reports err on stderr and exits. See ExitCode for the status.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes "error: err" to w unless err is an ExitCoder, and
// returns the exit status: the ExitCoder's code, or 1.
func Report(w io.Writer, err error) int {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
