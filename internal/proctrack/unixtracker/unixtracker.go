// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package unixtracker is the real proctrack.Tracker: it forks method
// commands via os/exec, puts each in its own process group for group-kill
// support, and reports exits to a Sink on a per-child goroutine.
package unixtracker

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/lf-edge/s16d/internal/proctrack"
	"github.com/lf-edge/s16d/internal/slog"
	"github.com/lf-edge/s16d/libs/unit"
)

// Tracker forks and supervises child processes for one daemon instance.
type Tracker struct {
	log  slog.Logger
	sink proctrack.Sink

	// NotifySocketPath is exported into the child's environment as
	// NOTIFY_SOCKET whenever non-empty.
	NotifySocketPath string

	mu       sync.Mutex
	watching map[int]*exec.Cmd
}

// New creates a Tracker that reports events to sink. sink may be nil if
// the eventual sink (typically internal/manager.Manager) can't be built
// until after the Tracker exists; set it with SetSink before the first
// ForkAndWait.
func New(sink proctrack.Sink, log slog.Logger) *Tracker {
	if log == nil {
		log = slog.New(4)
	}
	return &Tracker{sink: sink, log: log, watching: make(map[int]*exec.Cmd)}
}

// SetSink attaches sink after construction, for callers that need the
// Tracker to exist before its eventual sink can be built (the Tracker
// itself is one of internal/manager.Manager's own constructor
// arguments).
func (t *Tracker) SetSink(sink proctrack.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// ForkAndWait implements unit.Tracker: starts cmd detached in its own
// process group and spawns a goroutine that waits for it and reports the
// exit to the sink.
func (t *Tracker) ForkAndWait(cmd unit.Command, prefork func()) (int, error) {
	if cmd.IsZero() {
		return 0, fmt.Errorf("unixtracker: empty command")
	}
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if t.NotifySocketPath != "" {
		c.Env = append(os.Environ(), proctrack.NotifySocketEnv+"="+t.NotifySocketPath)
	}
	if prefork != nil {
		prefork()
	}
	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("unixtracker: start %s: %w", cmd.Path, err)
	}
	pid := c.Process.Pid

	t.mu.Lock()
	t.watching[pid] = c
	t.mu.Unlock()

	go t.awaitExit(pid, c)
	return pid, nil
}

func (t *Tracker) awaitExit(pid int, c *exec.Cmd) {
	err := c.Wait()
	t.mu.Lock()
	delete(t.watching, pid)
	sink := t.sink
	t.mu.Unlock()

	abnormal := err != nil && c.ProcessState == nil
	if c.ProcessState != nil {
		abnormal = proctrack.ExitAbnormal(c.ProcessState)
	}
	if sink != nil {
		sink.HandleProcessEvent(unit.ProcessEvent{PID: pid, Kind: unit.EventExit, Abnormal: abnormal})
	}
}

// Watch implements unit.Tracker for PIDs discovered outside a fork issued
// by this tracker (e.g. a Forks-type unit's grandchild). Without the
// original *exec.Cmd there is nothing to Wait() on, so no EventExit is
// ever reported for a watched pid.
func (t *Tracker) Watch(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, tracked := t.watching[pid]; !tracked {
		t.watching[pid] = nil
	}
}

// Disregard implements unit.Tracker.
func (t *Tracker) Disregard(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.watching, pid)
}

// Signal implements unit.Tracker, sending sig to pid's entire process
// group first (covering any grandchildren), falling back to the bare pid.
// Delivery to an already-exited pid is treated as success, matching the
// interface's documented no-op contract.
func (t *Tracker) Signal(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unixtracker: unsupported signal %v", sig)
	}
	if err := unix.Kill(-pid, s); err != nil {
		if err == unix.ESRCH {
			return nil
		}
		if err2 := unix.Kill(pid, s); err2 != nil {
			if err2 == unix.ESRCH {
				return nil
			}
			return fmt.Errorf("unixtracker: signal pgid -%d: %w (pid %d also failed: %v)", pid, err, pid, err2)
		}
	}
	return nil
}
