// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package restarter implements the propagation engine and note
// queue/dispatcher: it translates admin requests and observed state
// changes into notes, and drains them against the dependency graph until
// no note remains.
package restarter

import (
	"container/list"

	"github.com/google/uuid"

	"github.com/lf-edge/s16d/libs/depgraph"
)

// Kind distinguishes an administrative request from an observed state
// change.
type Kind int

const (
	// KindAdminReq : administrative request (A_ENABLE, A_DISABLE, A_REFRESH).
	KindAdminReq Kind = iota
	// KindStateChange : observed state change (SC_ONLINE, SC_OFFLINE, ...).
	KindStateChange
)

func (k Kind) String() string {
	if k == KindAdminReq {
		return "admin_req"
	}
	return "state_change"
}

// SubType is the admin or state-change sub-type carried by a Note.
type SubType int

const (
	// ADisable : admin request to disable a vertex.
	ADisable SubType = iota
	// AEnable : admin request to enable a vertex.
	AEnable
	// ARefresh : admin request to refresh a vertex (future; accepted and
	// queued but not yet handled beyond logging).
	ARefresh

	// SCOnline : vertex transitioned to Online.
	SCOnline
	// SCOffline : vertex transitioned to Offline.
	SCOffline
	// SCDisabled : vertex transitioned to Disabled.
	SCDisabled
	// SCDegraded : vertex transitioned to Degraded.
	SCDegraded
	// SCMaintenance : vertex transitioned to Maintenance.
	SCMaintenance
)

func (s SubType) String() string {
	switch s {
	case ADisable:
		return "A_DISABLE"
	case AEnable:
		return "A_ENABLE"
	case ARefresh:
		return "A_REFRESH"
	case SCOnline:
		return "SC_ONLINE"
	case SCOffline:
		return "SC_OFFLINE"
	case SCDisabled:
		return "SC_DISABLED"
	case SCDegraded:
		return "SC_DEGRADED"
	case SCMaintenance:
		return "SC_MAINTENANCE"
	}
	return "unknown"
}

// Note is the unit of work on the single-threaded event queue.
type Note struct {
	ID      uuid.UUID
	Kind    Kind
	Sub     SubType
	Path    depgraph.Path
	Reason  depgraph.RestartOn
}

// Queue is a single FIFO of notes. Admin requests and the SC transitions
// units report are appended here; timer fires, process exits and readiness
// notifications are not notes: internal/manager's event loop hands them to
// the unit Machine directly.
type Queue struct {
	l *list.List
}

// NewQueue returns an empty note queue.
func NewQueue() *Queue {
	return &Queue{l: list.New()}
}

// Push appends note n to the tail of the queue, assigning it a fresh
// correlation ID for log correlation if it doesn't already have one.
func (q *Queue) Push(n Note) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	q.l.PushBack(n)
}

// Pop removes and returns the note at the head of the queue. ok is false
// if the queue was empty.
func (q *Queue) Pop() (n Note, ok bool) {
	front := q.l.Front()
	if front == nil {
		return Note{}, false
	}
	q.l.Remove(front)
	return front.Value.(Note), true
}

// Len returns the number of notes currently queued.
func (q *Queue) Len() int {
	return q.l.Len()
}
