// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package readiness defines the readiness-notification socket collaborator:
// a Notify-type unit's method reports up by sending "READY=1" on the path
// named by NOTIFY_SOCKET, the same wire convention as systemd's sd_notify.
// internal/readiness/unixsocket is the real unix-datagram implementation;
// internal/readiness/fakesocket backs tests.
package readiness

import "github.com/lf-edge/s16d/libs/depgraph"

// ReadyMessage is the payload a method sends to report readiness, matching
// sd_notify's wire format.
const ReadyMessage = "READY=1"

// Socket is the capability the core consumes: a stream of paths whose
// instance reported readiness. internal/manager routes each into
// Machine.HandleReadiness for that path's unit.
type Socket interface {
	// Notifications returns the channel of paths that reported readiness.
	// Closed when the socket is shut down.
	Notifications() <-chan depgraph.Path
	// SocketPath returns the filesystem path methods should export as
	// NOTIFY_SOCKET.
	SocketPath() string
	// Close releases the underlying socket resource.
	Close() error
}
