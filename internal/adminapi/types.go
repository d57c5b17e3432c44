// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package adminapi is the wire contract between cmd/s16adm and a running
// s16d daemon: JSON over HTTP on a unix-domain socket, the same local
// control-plane shape containerd and the Docker daemon use for their own
// control sockets. internal/adminapi/server hosts it inside cmd/s16d;
// internal/adminapi/client is cmd/s16adm's transport.
package adminapi

import "github.com/lf-edge/s16d/libs/depgraph"

// DefaultSocketPath is where cmd/s16d binds the admin API, and where
// cmd/s16adm connects unless --socket is given; it sits beside
// config.Default's NotifySocketPath.
const DefaultSocketPath = "/run/s16d/admin.sock"

// NoInstance is the URL segment standing in for a bare service path's
// empty instance component: chi's router never matches an empty segment,
// so this sentinel travels on the wire and both client and server map it
// back to "".
const NoInstance = "-"

// AdminRequest is the body of a POST to /v1/units/{path}/{verb}.
type AdminRequest struct {
	// Reason is only meaningful for the disable verb, naming the
	// RestartOn intensity a subsequent SC_OFFLINE should be treated as;
	// the zero value is RestartOnNone.
	Reason depgraph.RestartOn `json:"reason,omitempty"`
}

// AdminResponse acknowledges an admin request was queued. The note queue
// is asynchronous: this confirms enqueueing, not that the dependency
// graph has finished reacting to it.
type AdminResponse struct {
	Accepted bool   `json:"accepted"`
	Path     string `json:"path"`
}

// VertexView is the JSON form of facade.VertexSnapshot.
type VertexView struct {
	Path      string `json:"path"`
	Variant   string `json:"variant"`
	State     string `json:"state"`
	IsEnabled bool   `json:"is_enabled"`
	IsSetup   bool   `json:"is_setup"`
	ToOffline bool   `json:"to_offline"`
	ToDisable bool   `json:"to_disable"`
}

// UnitView is the JSON form of facade.UnitSnapshot.
type UnitView struct {
	Path    string   `json:"path"`
	Type    string   `json:"type"`
	State   string   `json:"state"`
	Target  string   `json:"target"`
	FailCnt [5]int   `json:"fail_count"`
	History []string `json:"history"`
}

// StatusView combines a unit's machine state with its graph vertex, the
// shape cmd/s16adm's "status" command renders as a table.
type StatusView struct {
	Vertex VertexView `json:"vertex"`
	Unit   UnitView   `json:"unit"`
}

// ErrorResponse is the body returned alongside a non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
