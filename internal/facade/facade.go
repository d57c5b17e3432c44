// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package facade is the read-only introspection surface cmd/s16adm talks
// to: snapshots of graph vertices and unit state machines, never a
// mutation path.
package facade

import (
	"sort"

	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

// VertexSnapshot is a read-only copy of a graph vertex's observable state.
type VertexSnapshot struct {
	Path      depgraph.Path
	Variant   depgraph.Variant
	State     depgraph.State
	IsEnabled bool
	IsSetup   bool
	ToOffline bool
	ToDisable bool
}

// UnitSnapshot is a read-only copy of a unit state machine's observable
// state, including its bounded operation history.
type UnitSnapshot struct {
	Path    depgraph.Path
	Type    unit.Type
	State   unit.State
	Target  unit.State
	FailCnt [5]int
	History []unit.HistoryEntry
}

// Facade answers read-only queries against the live graph and unit set. It
// holds no lock of its own: internal/manager is expected to call these
// methods only from its single event thread, or to pass it a graph/machine
// set it has otherwise synchronized access to.
type Facade struct {
	graph    *depgraph.Graph
	machines map[depgraph.Path]*unit.Machine
}

// New wraps graph and machines for querying. machines maps an Instance path
// to the Machine driving it.
func New(graph *depgraph.Graph, machines map[depgraph.Path]*unit.Machine) *Facade {
	return &Facade{graph: graph, machines: machines}
}

// Vertex returns a snapshot of the vertex at path, or ok=false if no such
// vertex exists.
func (f *Facade) Vertex(path depgraph.Path) (VertexSnapshot, bool) {
	v, ok := f.graph.Vertex(path)
	if !ok {
		return VertexSnapshot{}, false
	}
	return snapshotVertex(v), true
}

// Vertices returns a snapshot of every vertex in the graph, ordered by
// path string for stable CLI output.
func (f *Facade) Vertices() []VertexSnapshot {
	verts := f.graph.Vertices()
	out := make([]VertexSnapshot, 0, len(verts))
	for _, v := range verts {
		out = append(out, snapshotVertex(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.String() < out[j].Path.String() })
	return out
}

func snapshotVertex(v *depgraph.Vertex) VertexSnapshot {
	return VertexSnapshot{
		Path:      v.Path,
		Variant:   v.Variant,
		State:     v.State,
		IsEnabled: v.IsEnabled,
		IsSetup:   v.IsSetup,
		ToOffline: v.ToOffline,
		ToDisable: v.ToDisable,
	}
}

// Unit returns a snapshot of the unit machine at path, or ok=false if no
// such unit is tracked.
func (f *Facade) Unit(path depgraph.Path) (UnitSnapshot, bool) {
	m, ok := f.machines[path]
	if !ok {
		return UnitSnapshot{}, false
	}
	return snapshotUnit(m), true
}

// Units returns a snapshot of every tracked unit, ordered by path string.
func (f *Facade) Units() []UnitSnapshot {
	out := make([]UnitSnapshot, 0, len(f.machines))
	for _, m := range f.machines {
		out = append(out, snapshotUnit(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.String() < out[j].Path.String() })
	return out
}

func snapshotUnit(m *unit.Machine) UnitSnapshot {
	u := m.Unit()
	return UnitSnapshot{
		Path:    u.Path,
		Type:    u.Type,
		State:   u.State,
		Target:  u.Target,
		FailCnt: u.FailCnt,
		History: u.History.Entries(),
	}
}

// DotGraph renders the live dependency graph in Graphviz DOT form.
func (f *Facade) DotGraph() string {
	return (depgraph.DotExporter{}).Export(f.graph)
}
