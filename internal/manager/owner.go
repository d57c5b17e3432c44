// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"os"
	"sync"

	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

// pidOwners maps a live PID back to the unit path that forked or is
// watching it. internal/proctrack implementations only know a bare PID;
// this is how a proctrack.Sink callback and the readiness socket's
// PIDResolver both find the right Machine. Guarded by its own mutex since
// it is read from the readiness socket's recv goroutine, outside the
// manager's single event thread.
type pidOwners struct {
	mu    sync.RWMutex
	owner map[int]depgraph.Path
}

func newPIDOwners() *pidOwners {
	return &pidOwners{owner: make(map[int]depgraph.Path)}
}

func (p *pidOwners) set(pid int, path depgraph.Path) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner[pid] = path
}

func (p *pidOwners) delete(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.owner, pid)
}

func (p *pidOwners) lookup(pid int) (depgraph.Path, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	path, ok := p.owner[pid]
	return path, ok
}

// perUnitTracker tags every PID a single Machine forks or watches with
// that Machine's path in the shared pidOwners index, then delegates the
// actual fork/signal work to the one proctrack.Tracker the whole daemon
// shares: one process tracker collaborator, not one per unit.
type perUnitTracker struct {
	path  depgraph.Path
	under unit.Tracker
	owner *pidOwners
}

func (t *perUnitTracker) ForkAndWait(cmd unit.Command, prefork func()) (int, error) {
	pid, err := t.under.ForkAndWait(cmd, prefork)
	if err != nil {
		return 0, err
	}
	t.owner.set(pid, t.path)
	return pid, nil
}

func (t *perUnitTracker) Watch(pid int) {
	t.under.Watch(pid)
	t.owner.set(pid, t.path)
}

func (t *perUnitTracker) Disregard(pid int) {
	t.under.Disregard(pid)
	t.owner.delete(pid)
}

func (t *perUnitTracker) Signal(pid int, sig os.Signal) error {
	return t.under.Signal(pid, sig)
}
