// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"sort"

	upstream "github.com/lf-edge/eve/libs/depgraph"
)

// upstreamGraph is a concrete implementation of upstream.Graph/GraphR.
// The library's own New() (depgraph.go) is an unimplemented stub in the
// retrieved source (returns nil after a "// TODO"), so there is no working
// constructor to call into: this type is what Graph constructs and drives
// instead, satisfying the published interface rather than a factory
// function. Subgraphs are unused by this domain (a service graph is flat)
// but are still implemented, minimally, to satisfy the interface.
type upstreamGraph struct {
	name  string
	nodes map[upstream.NodeID]upstream.Node
	order []upstream.NodeID

	privateData interface{}
}

func newUpstreamGraph(name string) *upstreamGraph {
	return &upstreamGraph{name: name, nodes: make(map[upstream.NodeID]upstream.Node)}
}

func (g *upstreamGraph) Name() string        { return g.name }
func (g *upstreamGraph) Description() string { return "s16d service dependency graph" }

func (g *upstreamGraph) Node(id upstream.NodeID) (upstream.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *upstreamGraph) Nodes(_ bool) upstream.NodeIterator {
	ids := make([]upstream.NodeID, len(g.order))
	copy(ids, g.order)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return newNodeIter(ids, g.nodes)
}

func (g *upstreamGraph) SubGraph(string) upstream.GraphR    { return nil }
func (g *upstreamGraph) SubGraphs() upstream.GraphIterator   { return emptyGraphIterator{} }
func (g *upstreamGraph) ParentGraph() upstream.GraphR        { return nil }
func (g *upstreamGraph) PrivateData() interface{}            { return g.privateData }
func (g *upstreamGraph) PutPrivateData(data interface{})     { g.privateData = data }
func (g *upstreamGraph) PutSubGraph(upstream.Graph)          {}
func (g *upstreamGraph) DelSubGraph(string) bool              { return false }
func (g *upstreamGraph) EditSubGraph(upstream.GraphR) upstream.Graph { return nil }
func (g *upstreamGraph) EditParentGraph() upstream.Graph      { return nil }

// PutNode adds or replaces the node with the ID derived from n.Item.
func (g *upstreamGraph) PutNode(n *upstream.Node) {
	id := upstream.NodeIDFor(n.Item)
	if _, exists := g.nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.nodes[id] = *n
}

// DelNode removes the node with the given ID, if present.
func (g *upstreamGraph) DelNode(id upstream.NodeID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	for i, existing := range g.order {
		if existing == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// OutgoingEdges derives edges from the node's Item.Dependencies(), computed
// fresh on every call (see vertexItem's doc comment on why Items here are
// live wrappers, not snapshots).
func (g *upstreamGraph) OutgoingEdges(id upstream.NodeID) upstream.EdgeIterator {
	n, ok := g.nodes[id]
	if !ok {
		return newEdgeIter(nil)
	}
	deps := n.Item.Dependencies()
	edges := make([]upstream.Edge, 0, len(deps))
	for _, dep := range deps {
		toID := upstream.NodeID(dep.Item.Type + "/" + dep.Item.Name)
		edges = append(edges, upstream.Edge{FromNode: id, ToNode: toID, Dependency: dep})
	}
	return newEdgeIter(edges)
}

// IncomingEdges scans every node's declared dependencies for ones that
// target id. Graphs in this domain are small (one entry per service,
// instance and dependency group), so a full scan per call is cheap.
func (g *upstreamGraph) IncomingEdges(id upstream.NodeID) upstream.EdgeIterator {
	var edges []upstream.Edge
	for nid, n := range g.nodes {
		for _, dep := range n.Item.Dependencies() {
			toID := upstream.NodeID(dep.Item.Type + "/" + dep.Item.Name)
			if toID == id {
				edges = append(edges, upstream.Edge{FromNode: nid, ToNode: id, Dependency: dep})
			}
		}
	}
	return newEdgeIter(edges)
}

// DetectCycle runs a standard three-color DFS over OutgoingEdges and
// returns the first cycle found, node IDs in walk order starting at the
// back-edge's target.
func (g *upstreamGraph) DetectCycle() []upstream.NodeID {
	const (
		white = iota
		grey
		black
	)
	color := make(map[upstream.NodeID]int, len(g.order))
	var stack []upstream.NodeID
	var cycle []upstream.NodeID

	var visit func(id upstream.NodeID) bool
	visit = func(id upstream.NodeID) bool {
		color[id] = grey
		stack = append(stack, id)
		it := g.OutgoingEdges(id)
		for it.Next() {
			e := it.Edge()
			switch color[e.ToNode] {
			case grey:
				for i, s := range stack {
					if s == e.ToNode {
						cycle = append([]upstream.NodeID{}, stack[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(e.ToNode) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// nodeIter is a NodeIterator over a fixed, pre-sorted slice of IDs.
type nodeIter struct {
	ids   []upstream.NodeID
	nodes map[upstream.NodeID]upstream.Node
	pos   int
}

func newNodeIter(ids []upstream.NodeID, nodes map[upstream.NodeID]upstream.Node) *nodeIter {
	return &nodeIter{ids: ids, nodes: nodes, pos: -1}
}

func (it *nodeIter) Next() bool {
	it.pos++
	return it.pos < len(it.ids)
}

func (it *nodeIter) Len() int {
	remaining := len(it.ids) - it.pos - 1
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (it *nodeIter) Reset() { it.pos = -1 }

func (it *nodeIter) Node() upstream.Node { return it.nodes[it.ids[it.pos]] }

// edgeIter is an EdgeIterator over a fixed slice of edges.
type edgeIter struct {
	edges []upstream.Edge
	pos   int
}

func newEdgeIter(edges []upstream.Edge) *edgeIter {
	return &edgeIter{edges: edges, pos: -1}
}

func (it *edgeIter) Next() bool {
	it.pos++
	return it.pos < len(it.edges)
}

func (it *edgeIter) Len() int {
	remaining := len(it.edges) - it.pos - 1
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (it *edgeIter) Reset() { it.pos = -1 }

func (it *edgeIter) Edge() upstream.Edge { return it.edges[it.pos] }

// emptyGraphIterator is the GraphIterator returned for SubGraphs(), which
// this domain never populates.
type emptyGraphIterator struct{}

func (emptyGraphIterator) Next() bool             { return false }
func (emptyGraphIterator) Len() int                { return 0 }
func (emptyGraphIterator) Reset()                  {}
func (emptyGraphIterator) SubGraph() upstream.GraphR { return nil }
