// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package fake is an in-memory proctrack.Tracker for tests that never
// actually forks: ForkAndWait hands out incrementing fake PIDs, and the
// test drives exits explicitly via Exit.
package fake

import (
	"os"
	"sync"

	"github.com/lf-edge/s16d/libs/unit"
)

// Tracker is a deterministic, in-memory proctrack.Tracker.
type Tracker struct {
	mu      sync.Mutex
	nextPID int
	live    map[int]bool

	// Sink receives process events, the way internal/manager wires a real
	// tracker to the event loop. May be nil in unit tests that drive
	// Machine.HandleProcessEvent directly instead.
	Sink interface{ HandleProcessEvent(unit.ProcessEvent) }

	// ForkErr, if set, is returned by the next ForkAndWait call instead of
	// succeeding.
	ForkErr error

	Forked []unit.Command
}

// New creates an empty Tracker; fake PIDs start at 1001 to stay clear of
// any real PID a test might also be watching.
func New() *Tracker {
	return &Tracker{nextPID: 1000, live: make(map[int]bool)}
}

// ForkAndWait implements unit.Tracker.
func (t *Tracker) ForkAndWait(cmd unit.Command, prefork func()) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Forked = append(t.Forked, cmd)
	if t.ForkErr != nil {
		err := t.ForkErr
		t.ForkErr = nil
		return 0, err
	}
	if prefork != nil {
		prefork()
	}
	t.nextPID++
	pid := t.nextPID
	t.live[pid] = true
	return pid, nil
}

// Watch implements unit.Tracker.
func (t *Tracker) Watch(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[pid] = true
}

// Disregard implements unit.Tracker.
func (t *Tracker) Disregard(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, pid)
}

// Signal implements unit.Tracker: sending to an untracked pid is a no-op,
// not an error, matching the interface's documented contract.
func (t *Tracker) Signal(pid int, sig os.Signal) error {
	return nil
}

// Exit simulates pid exiting, removing it from the live set and, if a Sink
// is wired, delivering the EventExit.
func (t *Tracker) Exit(pid int, abnormal bool) {
	t.mu.Lock()
	delete(t.live, pid)
	sink := t.Sink
	t.mu.Unlock()
	if sink != nil {
		sink.HandleProcessEvent(unit.ProcessEvent{PID: pid, Kind: unit.EventExit, Abnormal: abnormal})
	}
}

// IsLive reports whether pid is currently tracked as running.
func (t *Tracker) IsLive(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live[pid]
}

// ForkedCount returns how many ForkAndWait calls have been made so far
// (including ones that returned ForkErr),
// safe to poll from a goroutine other than the one driving the tracker
// (e.g. a test's Eventually against a manager running on its own event
// loop goroutine).
func (t *Tracker) ForkedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Forked)
}
