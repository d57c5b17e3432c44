// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

// Variant distinguishes the three kinds of vertex the graph can hold.
type Variant int

const (
	// VariantService is the root of a service; it owns edges to its
	// Instance children and to its own dependency groups.
	VariantService Variant = iota
	// VariantInstance is a runnable leaf.
	VariantInstance
	// VariantDepGroup is one per dependency group declared by a service
	// or instance.
	VariantDepGroup
)

func (v Variant) String() string {
	switch v {
	case VariantService:
		return "service"
	case VariantInstance:
		return "instance"
	case VariantDepGroup:
		return "depgroup"
	}
	return "unknown"
}

// GroupKind is the semantics a DepGroup vertex aggregates its targets with.
type GroupKind int

const (
	// RequireAll : every target must be satisfied.
	RequireAll GroupKind = iota
	// RequireAny : at least one target must be satisfied.
	RequireAny
	// OptionalAll : every target is folded with the optional-instance rule.
	OptionalAll
	// ExcludeAll : every target is folded with the exclusion rule.
	ExcludeAll
)

func (k GroupKind) String() string {
	switch k {
	case RequireAll:
		return "require_all"
	case RequireAny:
		return "require_any"
	case OptionalAll:
		return "optional_all"
	case ExcludeAll:
		return "exclude_all"
	}
	return "unknown"
}

// RestartOn is the ordered severity gating whether a dependency's stop
// propagates to dependents. Comparison uses the total order
// None < Error < Restart < Refresh < Any.
type RestartOn int

const (
	// RestartOnNone : never propagate a stop through this group.
	RestartOnNone RestartOn = iota
	// RestartOnError : propagate only for error-level stops.
	RestartOnError
	// RestartOnRestart : propagate for restart-level stops and above.
	RestartOnRestart
	// RestartOnRefresh : propagate for refresh-level stops and above.
	RestartOnRefresh
	// RestartOnAny : always propagate.
	RestartOnAny
)

func (r RestartOn) String() string {
	switch r {
	case RestartOnNone:
		return "none"
	case RestartOnError:
		return "error"
	case RestartOnRestart:
		return "restart"
	case RestartOnRefresh:
		return "refresh"
	case RestartOnAny:
		return "any"
	}
	return "unknown"
}

// State is the coarse-grained lifecycle state of a vertex as observed by
// the graph (derived from, but not identical to, the finer-grained Unit
// state machine state of libs/unit).
type State int

const (
	// StateUninitialised : vertex created but not yet set up.
	StateUninitialised State = iota
	// StateDisabled : administratively disabled.
	StateDisabled
	// StateOffline : not running.
	StateOffline
	// StateOnline : running and healthy.
	StateOnline
	// StateDegraded : running but degraded.
	StateDegraded
	// StateMaintenance : requires administrative intervention.
	StateMaintenance
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateDisabled:
		return "disabled"
	case StateOffline:
		return "offline"
	case StateOnline:
		return "online"
	case StateDegraded:
		return "degraded"
	case StateMaintenance:
		return "maintenance"
	}
	return "unknown"
}

// Vertex is a node of the dependency graph: a Service, an Instance, or a
// synthesized DepGroup. Common fields are always valid; GroupKind and
// RestartOn are only meaningful when Variant == VariantDepGroup.
type Vertex struct {
	Path    Path
	Variant Variant

	GroupKind GroupKind
	RestartOn RestartOn

	State State

	IsSetup   bool
	IsEnabled bool
	ToOffline bool
	ToDisable bool

	// Dependencies lists edges from this vertex to the vertices it
	// depends on. Dependents lists the mirrored reverse edges. Both are
	// insertion-ordered; traversal order affects only logging.
	Dependencies []Edge
	Dependents   []Edge
}

// newVertex creates a bare, uninitialised vertex for the given path and
// variant. Enabled defaults to true for services/instances, matching the
// source's behavior that declared units start out administratively
// enabled unless explicitly disabled.
func newVertex(path Path, variant Variant) *Vertex {
	return &Vertex{
		Path:      path,
		Variant:   variant,
		State:     StateUninitialised,
		IsEnabled: variant != VariantDepGroup,
	}
}

// addDependency records e as an outgoing dependency edge of this vertex.
func (v *Vertex) addDependency(e Edge) {
	v.Dependencies = append(v.Dependencies, e)
}

// addDependent records e as an incoming (dependent) edge of this vertex.
func (v *Vertex) addDependent(e Edge) {
	v.Dependents = append(v.Dependents, e)
}
