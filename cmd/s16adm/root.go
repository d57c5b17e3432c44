// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/lf-edge/s16d/internal/adminapi"
)

// Exit codes. Unlike the daemon's plain success/error pair, s16adm's codes
// are a scripting contract: callers branch on unreachable vs. not-found
// vs. a general failure, so each gets its own code.
const (
	// ExitCodeSuccess indicates the request was accepted / the query
	// succeeded.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general failure (bad arguments, malformed
	// response).
	ExitCodeError = 1
	// ExitCodeUnreachable indicates the admin socket could not be
	// reached, most likely because s16d isn't running.
	ExitCodeUnreachable = 2
	// ExitCodeNotFound indicates the named unit path doesn't exist in the
	// running daemon's graph.
	ExitCodeNotFound = 3
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:          "s16adm",
	Short:        "Admin CLI for a running s16d daemon",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", adminapi.DefaultSocketPath, "path to the daemon's admin API socket")
	rootCmd.AddCommand(newEnableCmd())
	rootCmd.AddCommand(newDisableCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newGraphCmd())
}

// Execute runs the root command, translating a returned error into one of
// this file's exit codes.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	var notFound *notFoundError
	if errors.As(err, &notFound) {
		return ExitCodeNotFound
	}
	var unreachable *unreachableError
	if errors.As(err, &unreachable) {
		return ExitCodeUnreachable
	}
	return ExitCodeError
}
