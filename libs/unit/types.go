// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package unit implements the per-instance lifecycle state machine:
// prestart -> start -> poststart -> online -> stop -> stopterm ->
// stopkill, driven by child-process lifecycle events, timers, and
// readiness notifications.
package unit

import (
	"time"

	"github.com/lf-edge/s16d/libs/depgraph"
)

// Type is the execution model of a unit, carried from its repository
// declaration.
type Type int

const (
	// Simple : a long-running process; Start succeeding (process
	// running) is itself success.
	Simple Type = iota
	// Oneshot : runs to completion; treated like Simple for the purpose
	// of the Start -> PostStart transition.
	Oneshot
	// Forks : the started process forks and exits, leaving a child
	// running; readiness is PID emergence, awaited like Notify.
	Forks
	// Group : a placeholder unit with no methods of its own, grouping
	// other units (treated like Simple for Start -> PostStart).
	Group
	// Notify : readiness is reported explicitly over the readiness
	// socket.
	Notify
)

func (t Type) String() string {
	switch t {
	case Simple:
		return "simple"
	case Oneshot:
		return "oneshot"
	case Forks:
		return "forks"
	case Group:
		return "group"
	case Notify:
		return "notify"
	}
	return "unknown"
}

// Method identifies one of the five lifecycle method slots a unit may
// declare an executable for.
type Method int

const (
	// MPreStart runs before Start.
	MPreStart Method = iota
	// MStart brings the unit up.
	MStart
	// MPostStart runs after Start succeeds.
	MPostStart
	// MStop asks the unit to shut down gracefully.
	MStop
	// MPostStop runs after the unit has fully stopped.
	MPostStop
)

func (m Method) String() string {
	switch m {
	case MPreStart:
		return "prestart"
	case MStart:
		return "start"
	case MPostStart:
		return "poststart"
	case MStop:
		return "stop"
	case MPostStop:
		return "poststop"
	}
	return "unknown"
}

// State is a state of the unit lifecycle state machine.
type State int

const (
	// Uninitialised : unit created but never driven.
	Uninitialised State = iota
	// Offline : idle; may be re-entered into PreStart on request.
	Offline
	// PreStart : running (or skipping) the prestart method.
	PreStart
	// Start : running the start method.
	Start
	// PostStart : running (or skipping) the poststart method.
	PostStart
	// Online : terminal success state.
	Online
	// Stop : running (or skipping) the stop method.
	Stop
	// StopTerm : sending SIGTERM to tracked PIDs.
	StopTerm
	// StopKill : sending SIGKILL to tracked PIDs.
	StopKill
	// Maintenance : terminal; administrative intervention required.
	Maintenance
	// None is the sentinel target meaning "after purge, enter target":
	// it is never a unit's State, only ever a Target.
	None
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Offline:
		return "offline"
	case PreStart:
		return "prestart"
	case Start:
		return "start"
	case PostStart:
		return "poststart"
	case Online:
		return "online"
	case Stop:
		return "stop"
	case StopTerm:
		return "stopterm"
	case StopKill:
		return "stopkill"
	case Maintenance:
		return "maintenance"
	case None:
		return "none"
	}
	return "unknown"
}

// maxMethodFailures bounds the number of retries per method slot before a
// unit gives up and transitions to Maintenance: the 6th failed attempt,
// i.e. fail_cnt > 5, sets Maintenance.
const maxMethodFailures = 5

// methodRetryDelay is the delay before retry_start re-enters PreStart
// after a method failure.
const methodRetryDelay = 5 * time.Second

// preStartTimeout and defaultMethodTimeout bound how long a method is
// given to run before its state's timer fires.
const (
	preStartTimeout      = 2 * time.Second
	defaultMethodTimeout = 10 * time.Second
)

// MethodSet carries the executable (and its arguments) for each method
// slot a unit may declare; a zero Command means "no method for this slot".
type MethodSet [5]Command

// Command is an executable the process tracker can fork.
type Command struct {
	Path string
	Args []string
}

// IsZero reports whether c names no executable.
func (c Command) IsZero() bool {
	return c.Path == ""
}

// Unit is the restarter's per-instance state machine: it executes
// methods and tracks PIDs for exactly one Instance vertex.
type Unit struct {
	Path    depgraph.Path
	Type    Type
	Methods MethodSet

	State  State
	Target State

	MainPID      int
	SecondaryPID int
	// PIDs is the set of all PIDs currently tracked for this unit.
	PIDs map[int]struct{}

	TimerID           int
	MethRestartTimerID int

	FailCnt [5]int

	History History
}

// NewUnit creates a freshly-Uninitialised unit for path.
func NewUnit(path depgraph.Path, typ Type, methods MethodSet) *Unit {
	return &Unit{
		Path:    path,
		Type:    typ,
		Methods: methods,
		State:   Uninitialised,
		Target:  None,
		PIDs:    make(map[int]struct{}),
	}
}

func (u *Unit) trackPID(pid int) {
	u.PIDs[pid] = struct{}{}
}

func (u *Unit) untrackPID(pid int) {
	delete(u.PIDs, pid)
}

func (u *Unit) hasPIDs() bool {
	return len(u.PIDs) > 0
}
