// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package restarter

import "github.com/lf-edge/s16d/libs/depgraph"

// handleSCOnline applies an observed SC_ONLINE(v, reason) transition.
// Duplicate SC_ONLINE for an already-Online vertex is a no-op that must
// not re-emit downstream notifications, so it dedupes by comparing new
// vs. old state.
func (e *Engine) handleSCOnline(v *depgraph.Vertex, reason depgraph.RestartOn) {
	wasOnline := v.State == depgraph.StateOnline
	v.State = depgraph.StateOnline
	if wasOnline {
		return
	}
	e.propagateOnlineToDependents(v, reason)
}

// propagateOnlineToDependents recurses SC_ONLINE's "a dependent now has one
// more satisfied prerequisite" notification through DepGroup/Service
// intermediate vertices.
func (e *Engine) propagateOnlineToDependents(v *depgraph.Vertex, reason depgraph.RestartOn) {
	for _, edge := range v.Dependents {
		d, ok := e.g.Vertex(edge.From)
		if !ok {
			continue
		}
		switch d.Variant {
		case depgraph.VariantInstance:
			if e.ev.CanComeUp(d.Path) && d.State != depgraph.StateOnline && d.State != depgraph.StateDegraded {
				e.emitUnitTransition(d.Path, SCOnline, reason)
			}
		case depgraph.VariantDepGroup, depgraph.VariantService:
			e.propagateOnlineToDependents(d, reason)
		}
	}
}

// handleSCOffline applies an observed SC_OFFLINE(v, reason) transition.
// Unlike SC_ONLINE, this always drains intent even if the vertex was
// already Offline: a vertex marked ToOffline always gets its intent
// drained on the next SC_OFFLINE, regardless of whether the state value
// actually changed.
func (e *Engine) handleSCOffline(v *depgraph.Vertex, reason depgraph.RestartOn) {
	priorToOffline := v.ToOffline
	v.State = depgraph.StateOffline
	v.ToOffline = false

	if priorToOffline {
		for _, edge := range v.Dependencies {
			dep, ok := e.g.Vertex(edge.To)
			if !ok || dep.Variant != depgraph.VariantInstance {
				continue
			}
			if dep.ToOffline && e.canGoDown(dep, false) {
				e.emitUnitTransition(dep.Path, SCOffline, reason)
			}
		}
		if v.ToDisable {
			e.Enqueue(Note{Kind: KindStateChange, Sub: SCDisabled, Path: v.Path})
		}
	} else if e.ev.CanComeUp(v.Path) {
		// An unintended offline triggers a restart when prerequisites
		// are still met.
		e.emitUnitTransition(v.Path, SCOnline, reason)
	}

	for _, edge := range v.Dependents {
		d, ok := e.g.Vertex(edge.From)
		if !ok {
			continue
		}
		if d.Variant == depgraph.VariantDepGroup {
			if d.GroupKind == depgraph.ExcludeAll {
				continue
			}
			if d.RestartOn < reason {
				continue
			}
		}
		e.propagateOfflineToDependents(d, reason)
	}
}

func (e *Engine) propagateOfflineToDependents(v *depgraph.Vertex, reason depgraph.RestartOn) {
	for _, edge := range v.Dependents {
		d, ok := e.g.Vertex(edge.From)
		if !ok {
			continue
		}
		if d.Variant == depgraph.VariantDepGroup {
			if d.GroupKind == depgraph.ExcludeAll {
				continue
			}
			if d.RestartOn < reason {
				continue
			}
		}
		e.propagateOfflineToDependents(d, reason)
	}
}

// handleSCDisabled applies an observed SC_DISABLED(v) transition.
func (e *Engine) handleSCDisabled(v *depgraph.Vertex) {
	v.ToOffline = false
	v.ToDisable = false
	v.State = depgraph.StateDisabled
	for _, edge := range v.Dependents {
		d, ok := e.g.Vertex(edge.From)
		if !ok {
			continue
		}
		e.wakeIfCanComeUp(d)
	}
}

// wakeIfCanComeUp recurses through DepGroup/Service intermediates,
// emitting SC_ONLINE for any Instance dependent that can now come up.
func (e *Engine) wakeIfCanComeUp(v *depgraph.Vertex) {
	switch v.Variant {
	case depgraph.VariantInstance:
		if e.ev.CanComeUp(v.Path) && v.State != depgraph.StateOnline && v.State != depgraph.StateDegraded {
			e.emitUnitTransition(v.Path, SCOnline, depgraph.RestartOnNone)
		}
	case depgraph.VariantDepGroup, depgraph.VariantService:
		for _, edge := range v.Dependents {
			d, ok := e.g.Vertex(edge.From)
			if ok {
				e.wakeIfCanComeUp(d)
			}
		}
	}
}

// handleADisable applies an admin A_DISABLE(v, reason) request.
func (e *Engine) handleADisable(v *depgraph.Vertex, reason depgraph.RestartOn) {
	v.ToDisable = true
	v.ToOffline = true
	v.IsEnabled = false

	e.markDependentsToOffline(v, reason)

	for _, vv := range e.g.Vertices() {
		if vv.ToOffline && e.canGoDown(vv, true) {
			e.emitUnitTransition(vv.Path, SCOffline, reason)
		}
	}
}

// markDependentsToOffline recursively marks dependents' ToOffline flag,
// applying the same DepGroup filters as SC_OFFLINE propagation (ExcludeAll
// and low-restart_on groups do not mark).
func (e *Engine) markDependentsToOffline(v *depgraph.Vertex, reason depgraph.RestartOn) {
	for _, edge := range v.Dependents {
		d, ok := e.g.Vertex(edge.From)
		if !ok {
			continue
		}
		if d.Variant == depgraph.VariantDepGroup {
			if d.GroupKind == depgraph.ExcludeAll {
				continue
			}
			if d.RestartOn < reason {
				continue
			}
		}
		if d.Variant == depgraph.VariantInstance {
			d.ToOffline = true
		}
		e.markDependentsToOffline(d, reason)
	}
}

// handleAEnable applies an admin A_ENABLE(v) request.
func (e *Engine) handleAEnable(v *depgraph.Vertex) {
	v.ToDisable = false
	v.ToOffline = false
	v.IsEnabled = true
	e.Enqueue(Note{
		Kind:   KindStateChange,
		Sub:    SCOffline,
		Path:   v.Path,
		Reason: depgraph.RestartOnRestart,
	})
}

// canGoDown reports whether v may be taken offline: true iff every
// dependent either (a) is an Instance with ToOffline set, or (b)
// recursively can_go_down. If not root, a running Instance (Online or
// Degraded) returns false: leaves of liveness must be explicitly asked to
// go down, not passively.
func (e *Engine) canGoDown(v *depgraph.Vertex, root bool) bool {
	if !root && v.Variant == depgraph.VariantInstance &&
		(v.State == depgraph.StateOnline || v.State == depgraph.StateDegraded) {
		return false
	}
	for _, edge := range v.Dependents {
		d, ok := e.g.Vertex(edge.From)
		if !ok {
			continue
		}
		if d.Variant == depgraph.VariantInstance && d.ToOffline {
			continue
		}
		if e.canGoDown(d, false) {
			continue
		}
		return false
	}
	return true
}

// emitUnitTransition notifies the owner (typically internal/manager) that
// the unit for path should transition by calling OnUnitTransition
// directly. Nothing is queued and repeated requests in the same Drain are
// not deduplicated.
func (e *Engine) emitUnitTransition(path depgraph.Path, sub SubType, reason depgraph.RestartOn) {
	if e.OnUnitTransition != nil {
		e.OnUnitTransition(path, sub, reason)
	}
}
