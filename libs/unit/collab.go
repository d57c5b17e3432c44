// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"os"
	"time"
)

// Logger is the minimal logging capability the unit machine needs.
// Implemented by internal/slog.Logger.
type Logger interface {
	Noticef(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Noticef(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})   {}
func (nopLogger) Errorf(string, ...interface{})  {}

// Tracker is the capability the process tracker exposes to the unit
// machine: fork children, and watch/disregard PIDs that appear or
// disappear outside of a fork the machine itself issued (e.g. a Forks-type
// unit whose started process re-execs and forks a grandchild). Abstracted
// behind an interface so tests can use an in-memory fake instead of real
// fork/exec.
type Tracker interface {
	// ForkAndWait starts cmd, returning its PID. The prefork hook (if
	// non-nil) runs in the calling process just before the child is
	// started. NOTIFY_SOCKET reaches the child through its environment.
	ForkAndWait(cmd Command, prefork func()) (pid int, err error)
	// Watch begins tracking an externally-observed PID.
	Watch(pid int)
	// Disregard stops tracking a PID.
	Disregard(pid int)
	// Signal delivers a signal to pid. Implementations treat delivery to
	// an already-exited PID as a no-op, not an error.
	Signal(pid int, sig os.Signal) error
}

// TimerSet is the capability the timer set exposes: schedule and cancel
// a single callback.
type TimerSet interface {
	// Add schedules callback to run after d, passing data back to it.
	// Returns a non-zero id.
	Add(d time.Duration, data interface{}, callback func(data interface{})) int
	// Del cancels a previously scheduled timer. Deleting an id that has
	// already fired (or was never scheduled) is a no-op.
	Del(id int)
}
