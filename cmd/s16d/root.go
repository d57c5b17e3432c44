// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes. These are informational only, not meant to be scripted
// against the way admin tooling's codes are — the daemon itself only
// ever distinguishes clean shutdown from a startup failure.
const (
	// ExitCodeSuccess indicates a clean shutdown.
	ExitCodeSuccess = 0
	// ExitCodeError indicates the daemon failed to start or exited on an
	// unrecoverable collaborator error.
	ExitCodeError = 1
)

var rootCmd = &cobra.Command{
	Use:   "s16d",
	Short: "Dependency-aware service restarter",
	Long: `s16d builds a dependency graph from a directory of service
declarations and drives a unit state machine per instance, restarting
and propagating availability the way an SMF-style master restarter does.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "/etc/s16d/config.yaml", "path to the daemon config file")
}

var configPath string

// Execute runs the root command, translating a returned error into the
// daemon's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}
