// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package fakesocket is a deterministic readiness.Socket for tests: no real
// socket is opened, the test posts readiness directly.
package fakesocket

import "github.com/lf-edge/s16d/libs/depgraph"

// Socket is a fake readiness.Socket.
type Socket struct {
	path     string
	notifies chan depgraph.Path
}

// New creates a Socket claiming to live at path.
func New(path string) *Socket {
	return &Socket{path: path, notifies: make(chan depgraph.Path, 16)}
}

// Notify simulates path's instance reporting readiness.
func (s *Socket) Notify(path depgraph.Path) {
	s.notifies <- path
}

// Notifications implements readiness.Socket.
func (s *Socket) Notifications() <-chan depgraph.Path { return s.notifies }

// SocketPath implements readiness.Socket.
func (s *Socket) SocketPath() string { return s.path }

// Close implements readiness.Socket.
func (s *Socket) Close() error {
	close(s.notifies)
	return nil
}
