// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

// Status is the tri-valued result of a satisfiability evaluation.
type Status int

const (
	// Satisfied : the prerequisite currently holds.
	Satisfied Status = iota
	// Unsatisfied : not yet satisfied, but may yet become so.
	Unsatisfied
	// Unsatisfiable : cannot currently be made true.
	Unsatisfiable
)

func (s Status) String() string {
	switch s {
	case Satisfied:
		return "satisfied"
	case Unsatisfied:
		return "unsatisfied"
	case Unsatisfiable:
		return "unsatisfiable"
	}
	return "unknown"
}

// maxRecursionDepth guards against pathological graphs; cycle prevention
// at insertion time should already make unbounded recursion impossible,
// but the bound aids debugging misconfigured graphs.
const maxRecursionDepth = 4096

// Evaluator computes satisfiability over a Graph.
type Evaluator struct {
	g *Graph
}

// NewEvaluator wraps g for satisfiability queries.
func NewEvaluator(g *Graph) *Evaluator {
	return &Evaluator{g: g}
}

// Evaluate computes the satisfiability of the vertex at path, treating it
// as a required dependency target. recurse controls whether an Offline
// instance's own dependency aggregate is computed transitively, or simply
// treated as Unsatisfied.
func (e *Evaluator) Evaluate(path Path, recurse bool) Status {
	return e.evalRequired(path, recurse, 0)
}

// CanComeUp reports whether the Instance vertex at path is currently
// eligible to transition Offline -> Online: it must be enabled, not
// pending-offline, not pending-disable, and its own dependency groups
// must together evaluate Satisfied.
func (e *Evaluator) CanComeUp(path Path) bool {
	v, ok := e.g.Vertex(path)
	if !ok || v.Variant != VariantInstance {
		return false
	}
	if !v.IsEnabled || v.ToOffline || v.ToDisable {
		return false
	}
	return e.ownGroupsStatus(v, maxRecursionDepth) == Satisfied
}

// ownGroupsStatus folds the satisfiability of every DepGroup vertex v
// directly depends on (i.e. v's own declared groups, not inherited
// service-level groups reached transitively through a parent Service).
func (e *Evaluator) ownGroupsStatus(v *Vertex, depth int) Status {
	if depth <= 0 {
		return Unsatisfied
	}
	result := Satisfied
	sawUnsatisfiable := false
	for _, edge := range v.Dependencies {
		target, ok := e.g.Vertex(edge.To)
		if !ok || target.Variant != VariantDepGroup {
			continue
		}
		st := e.evalDepGroup(target, depth-1)
		switch st {
		case Unsatisfiable:
			sawUnsatisfiable = true
		case Unsatisfied:
			if result == Satisfied {
				result = Unsatisfied
			}
		}
	}
	if sawUnsatisfiable {
		return Unsatisfiable
	}
	return result
}

// evalRequired evaluates the vertex at path as a required dependency
// target, per the "Instance (required)" rule of §4.3. A DepGroup target is
// evaluated as its group; a Service target is evaluated as a RequireAll
// over the Service's own dependencies (see serviceAsRequireAll).
func (e *Evaluator) evalRequired(path Path, recurse bool, depth int) Status {
	if depth > maxRecursionDepth {
		return Unsatisfied
	}
	v, ok := e.g.Vertex(path)
	if !ok {
		return Unsatisfiable
	}
	switch v.Variant {
	case VariantDepGroup:
		return e.evalDepGroup(v, depth+1)
	case VariantService:
		sv := serviceAsRequireAll(v)
		return e.evalDepGroup(&sv, depth+1)
	}
	if !v.IsSetup || !v.IsEnabled {
		return Unsatisfiable
	}
	switch v.State {
	case StateUninitialised:
		return Unsatisfied
	case StateDisabled, StateMaintenance:
		return Unsatisfiable
	case StateOffline:
		if !recurse {
			return Unsatisfied
		}
		agg := e.ownGroupsStatus(v, depth)
		if agg == Unsatisfiable {
			return Unsatisfiable
		}
		return Unsatisfied
	case StateOnline, StateDegraded:
		return Satisfied
	}
	return Unsatisfied
}

// evalOptionalInstance evaluates an Instance target reached through an
// OptionalAll dependency group, per §4.3 "Instance (optional target)".
func (e *Evaluator) evalOptionalInstance(v *Vertex, depth int) Status {
	if !v.IsSetup {
		return Satisfied
	}
	switch v.State {
	case StateUninitialised:
		return Unsatisfied
	case StateOffline:
		if !v.IsEnabled || v.ToOffline || v.ToDisable {
			return Satisfied
		}
		agg := e.ownGroupsStatus(v, depth)
		if agg == Unsatisfiable {
			return Satisfied
		}
		return Unsatisfied
	case StateDisabled, StateMaintenance, StateOnline, StateDegraded:
		return Satisfied
	}
	return Satisfied
}

// evalExclusionInstance evaluates an Instance target reached through an
// ExcludeAll dependency group, per §4.3 "Instance (exclusion target)".
func (e *Evaluator) evalExclusionInstance(v *Vertex) Status {
	if !v.IsSetup {
		return Satisfied
	}
	switch v.State {
	case StateOnline, StateDegraded:
		if v.IsEnabled {
			return Unsatisfiable
		}
		return Unsatisfied
	case StateUninitialised, StateOffline:
		return Unsatisfied
	case StateDisabled, StateMaintenance:
		return Satisfied
	}
	return Satisfied
}

// evalDepGroup folds a DepGroup's targets according to its GroupKind.
func (e *Evaluator) evalDepGroup(g *Vertex, depth int) Status {
	if depth <= 0 {
		return Unsatisfied
	}
	switch g.GroupKind {
	case RequireAll:
		return e.foldRequireAll(g, depth)
	case RequireAny:
		return e.foldRequireAny(g, depth)
	case OptionalAll:
		return e.foldExpanded(g, depth, e.evalOptionalInstance)
	case ExcludeAll:
		return e.foldExpanded(g, depth, func(v *Vertex, _ int) Status {
			return e.evalExclusionInstance(v)
		})
	}
	return Unsatisfied
}

func (e *Evaluator) foldRequireAll(g *Vertex, depth int) Status {
	result := Satisfied
	sawUnsatisfiable := false
	for _, edge := range g.Dependencies {
		st := e.evalRequired(edge.To, true, depth-1)
		switch st {
		case Unsatisfiable:
			sawUnsatisfiable = true
		case Unsatisfied:
			if result == Satisfied {
				result = Unsatisfied
			}
		}
	}
	if sawUnsatisfiable {
		return Unsatisfiable
	}
	return result
}

func (e *Evaluator) foldRequireAny(g *Vertex, depth int) Status {
	if len(g.Dependencies) == 0 {
		return Satisfied
	}
	sawUnsatisfied := false
	allUnsatisfiable := true
	for _, edge := range g.Dependencies {
		st := e.evalRequired(edge.To, true, depth-1)
		if st == Satisfied {
			return Satisfied
		}
		if st != Unsatisfiable {
			allUnsatisfiable = false
		}
		if st == Unsatisfied {
			sawUnsatisfied = true
		}
	}
	if allUnsatisfiable {
		return Unsatisfiable
	}
	if sawUnsatisfied {
		return Unsatisfied
	}
	return Unsatisfiable
}

// foldExpanded is shared by OptionalAll and ExcludeAll: each target is
// auto-expanded from a Service to its Instances (open question 1 of §9 —
// the source ambiguously walked the Service's Dependencies, which mixes
// in DepGroup vertices; this implementation deliberately expands only to
// Instances) before applying the per-instance rule.
func (e *Evaluator) foldExpanded(g *Vertex, depth int, rule func(*Vertex, int) Status) Status {
	result := Satisfied
	sawUnsatisfiable := false
	for _, edge := range g.Dependencies {
		target, ok := e.g.Vertex(edge.To)
		if !ok {
			continue
		}
		instances := e.expandToInstances(target)
		for _, inst := range instances {
			st := rule(inst, depth-1)
			switch st {
			case Unsatisfiable:
				sawUnsatisfiable = true
			case Unsatisfied:
				if result == Satisfied {
					result = Unsatisfied
				}
			}
		}
	}
	if sawUnsatisfiable {
		return Unsatisfiable
	}
	return result
}

// expandToInstances returns v itself if it is already an Instance, or the
// list of Instance children if v is a Service (walking only its Instance
// edges, not its DepGroup edges).
func (e *Evaluator) expandToInstances(v *Vertex) []*Vertex {
	if v.Variant == VariantInstance {
		return []*Vertex{v}
	}
	if v.Variant != VariantService {
		return nil
	}
	var out []*Vertex
	for _, edge := range v.Dependencies {
		child, ok := e.g.Vertex(edge.To)
		if ok && child.Variant == VariantInstance {
			out = append(out, child)
		}
	}
	return out
}

// serviceAsRequireAll lets evalRequired treat a Service vertex reached as
// a required dependency target (a group target with no instance part) the
// same way a RequireAll DepGroup over all of the Service's dependencies
// (its Instances and its own DepGroups) would be treated.
func serviceAsRequireAll(v *Vertex) Vertex {
	return Vertex{
		Variant:   VariantDepGroup,
		GroupKind: RequireAll,
		Dependencies: func() []Edge {
			var out []Edge
			for _, e := range v.Dependencies {
				out = append(out, e)
			}
			return out
		}(),
	}
}
