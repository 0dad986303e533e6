// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bugdash is the command-line front end of the bug dashboard engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/commands"
	"github.com/kweid-platfrom/frontend-sub008/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return commands.Root(ctx, os.Stdout).Execute(os.Args[1:])
}
