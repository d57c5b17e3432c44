// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Command s16adm is the admin CLI for a running s16d: it queues
// A_ENABLE/A_DISABLE/A_REFRESH admin requests and renders the read-only
// facade exposed by a running daemon's admin API.
package main

var version = "dev"

func main() {
	rootCmd.Version = version
	Execute()
}
