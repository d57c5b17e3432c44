// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package proctrack defines the process tracker collaborator: the core
// hands it a Command to fork and gets back a stream of unit.ProcessEvent
// as children are born and exit. internal/proctrack/fake backs the test
// suite; internal/proctrack/unixtracker is the real fork/exec/wait
// implementation.
package proctrack

import (
	"os"

	"github.com/lf-edge/s16d/libs/unit"
)

// Tracker matches libs/unit.Tracker; re-declared here as the
// implementation-facing name so fake/unixtracker document what collaborator
// contract they satisfy without importing libs/unit just for the alias.
type Tracker = unit.Tracker

// Sink is how a Tracker implementation reports process events back to the
// manager's single event thread. Implementations may call it from any
// goroutine, concurrently (unixtracker reports each exit from that child's
// own wait goroutine); internal/manager serializes delivery onto its event
// loop.
type Sink interface {
	HandleProcessEvent(ev unit.ProcessEvent)
}

// NotifySocketEnv is the environment variable set in a forked method's
// environment pointing at the readiness socket, mirrored from the systemd
// sd_notify convention this readiness protocol is modeled on.
const NotifySocketEnv = "NOTIFY_SOCKET"

// ExitAbnormal reports whether state represents a non-zero exit, the
// abnormal/normal-exit test unixtracker applies before reporting a
// unit.ProcessEvent (the fake takes the abnormal flag from its caller).
func ExitAbnormal(state *os.ProcessState) bool {
	if state == nil {
		return true
	}
	return !state.Success()
}
