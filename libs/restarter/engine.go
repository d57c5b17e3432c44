// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package restarter

import (
	"github.com/lf-edge/s16d/libs/depgraph"
)

// Logger is the minimal logging capability the engine needs. Implemented
// by internal/slog.Logger; kept as a small local interface (rather than an
// import of internal/slog) so the package has no ambient logging
// dependency of its own.
type Logger interface {
	Noticef(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Noticef(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})   {}
func (nopLogger) Errorf(string, ...interface{})  {}

// Engine is the propagation engine and dispatcher. It owns a Queue and
// drains it against a Graph, never invoking unit
// methods directly: downstream execution is observed only through
// further notes pushed by the caller (typically internal/manager, which
// bridges Engine output to libs/unit).
type Engine struct {
	g   *depgraph.Graph
	b   *depgraph.Builder
	ev  *depgraph.Evaluator
	q   *Queue
	log Logger

	// OnUnitTransition is invoked whenever the engine decides a unit
	// should transition (SC_ONLINE/SC_OFFLINE emitted for an Instance
	// vertex). The manager wires this to libs/unit.Machine.RequestOnline
	// and RequestOffline.
	OnUnitTransition func(path depgraph.Path, sub SubType, reason depgraph.RestartOn)
}

// NewEngine wraps g for propagation. log may be nil, in which case log
// calls are no-ops.
func NewEngine(g *depgraph.Graph, log Logger) *Engine {
	if log == nil {
		log = nopLogger{}
	}
	return &Engine{
		g:   g,
		b:   depgraph.NewBuilder(g),
		ev:  depgraph.NewEvaluator(g),
		q:   NewQueue(),
		log: log,
	}
}

// Enqueue appends n to the note queue without draining it.
func (e *Engine) Enqueue(n Note) {
	e.q.Push(n)
}

// QueueLen reports how many notes are currently pending.
func (e *Engine) QueueLen() int {
	return e.q.Len()
}

// Drain pops notes off the queue and dispatches them until none remain.
// Processing a note may append further notes; Drain continues until the
// queue is empty.
func (e *Engine) Drain() {
	for {
		n, ok := e.q.Pop()
		if !ok {
			return
		}
		e.dispatch(n)
	}
}

func (e *Engine) dispatch(n Note) {
	v, ok := e.g.Vertex(n.Path)
	if !ok {
		e.log.Warnf("restarter: dropping note %s for unknown path %s", n.Sub, n.Path)
		return
	}
	switch n.Kind {
	case KindAdminReq:
		switch n.Sub {
		case ADisable:
			e.handleADisable(v, n.Reason)
		case AEnable:
			e.handleAEnable(v)
		case ARefresh:
			e.log.Noticef("restarter: A_REFRESH for %s (no-op, reserved for future use)", n.Path)
		}
	case KindStateChange:
		switch n.Sub {
		case SCOnline:
			e.handleSCOnline(v, n.Reason)
		case SCOffline:
			e.handleSCOffline(v, n.Reason)
		case SCDisabled:
			e.handleSCDisabled(v)
		}
	}
}
