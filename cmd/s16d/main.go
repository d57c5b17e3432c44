// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Command s16d is the master restarter daemon: it loads its service
// declarations from a repository directory, builds the dependency graph
// and a unit state machine per declared instance, and runs the single
// event-thread loop until signalled to stop.
package main

// version is set during build with -ldflags.
var version = "dev"

func main() {
	rootCmd.Version = version
	Execute()
}
