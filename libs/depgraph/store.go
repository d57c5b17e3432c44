// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	upstream "github.com/lf-edge/eve/libs/depgraph"
)

// Graph is the single global container that owns all vertices. Storage,
// edge bookkeeping and cycle detection run on github.com/lf-edge/eve/libs/
// depgraph's Graph/Node/Edge types (see graphimpl.go, item.go): byPath is
// a typed convenience index over the same underlying nodes, not a
// second source of truth. The Graph exclusively owns vertices; edges are
// owned by the source vertex's Dependencies slice, with a mirror entry in
// the destination's Dependents slice.
type Graph struct {
	up     upstream.Graph
	byPath map[Path]*Vertex
	// order preserves vertex insertion order for deterministic iteration
	// (used by dot export and logging; never load-bearing for correctness).
	order []Path
}

// NewGraph returns an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{up: newUpstreamGraph("s16d"), byPath: make(map[Path]*Vertex)}
}

// Vertex looks up a vertex by path. Returns nil, false if absent.
func (g *Graph) Vertex(path Path) (*Vertex, bool) {
	v, ok := g.byPath[path]
	return v, ok
}

// MustVertex looks up a vertex by path and panics if it is absent. Reserved
// for call sites that have already established the vertex must exist
// (e.g. right after findOrCreate).
func (g *Graph) MustVertex(path Path) *Vertex {
	v, ok := g.byPath[path]
	if !ok {
		panic("depgraph: no vertex at path " + path.String())
	}
	return v
}

// Vertices returns all vertices in insertion order.
func (g *Graph) Vertices() []*Vertex {
	out := make([]*Vertex, 0, len(g.order))
	for _, p := range g.order {
		out = append(out, g.byPath[p])
	}
	return out
}

// findOrCreate returns the existing vertex at path, or creates and
// registers a new one of the given variant. The new vertex is also
// PutNode'd into the upstream graph under vertexItem, wrapping the same
// *Vertex by reference: Dependencies() reads it live, so a single PutNode
// here is enough (see vertexItem's doc comment).
func (g *Graph) findOrCreate(path Path, variant Variant) *Vertex {
	if v, ok := g.byPath[path]; ok {
		return v
	}
	v := newVertex(path, variant)
	g.byPath[path] = v
	g.order = append(g.order, path)
	g.up.PutNode(&upstream.Node{Item: vertexItem{v: v}})
	return v
}

// addEdge inserts the symmetric pair of edges for a dependency from u to v.
// Callers must have already checked acyclicity; addEdge itself performs no
// validation (see Builder.DependencyAdd for the cycle check). No further
// PutNode call is needed: the upstream node's Item wraps the same *Vertex,
// so OutgoingEdges/DetectCycle see this edge on their next call.
func (g *Graph) addEdge(from, to Path) {
	u := g.MustVertex(from)
	v := g.MustVertex(to)
	u.addDependency(Edge{Type: EdgeDependency, From: from, To: to})
	v.addDependent(Edge{Type: EdgeDependent, From: from, To: to})
}

// removeLastEdge undoes the most recent addEdge(from, to) call. Used by
// Builder.DependencyAdd to roll back a tentative edge that upstream's
// DetectCycle flagged as closing a cycle.
func (g *Graph) removeLastEdge(from, to Path) {
	u := g.MustVertex(from)
	v := g.MustVertex(to)
	if n := len(u.Dependencies); n > 0 && u.Dependencies[n-1].To == to {
		u.Dependencies = u.Dependencies[:n-1]
	}
	if n := len(v.Dependents); n > 0 && v.Dependents[n-1].From == from {
		v.Dependents = v.Dependents[:n-1]
	}
}

// hasEdge reports whether a dependency edge from -> to is already present,
// making DependencyAdd idempotent.
func (g *Graph) hasEdge(from, to Path) bool {
	u, ok := g.byPath[from]
	if !ok {
		return false
	}
	for _, e := range u.Dependencies {
		if e.To == to {
			return true
		}
	}
	return false
}
