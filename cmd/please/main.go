// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the please CLI.
package main

import (
	"os"

	"github.com/pleasehq/please/cmd/please/app"
	"github.com/pleasehq/please/pkg/logger"
)

func main() {
	logger.Initialize()

	// `please srv__tool` is shorthand for `please call srv__tool`.
	os.Args = app.RewriteDirectDispatch(os.Args)

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
