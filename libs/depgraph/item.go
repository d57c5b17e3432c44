// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"fmt"
	"strings"

	upstream "github.com/lf-edge/eve/libs/depgraph"
)

// vertexItem adapts a *Vertex to upstream's depgraph.Item, so that Graph's
// storage and cycle detection run on the real github.com/lf-edge/eve/libs/
// depgraph library rather than a hand-rolled adjacency list.
//
// upstream.Item's contract recommends value receivers and says an item's
// content "should not change in any other way than through the Graph APIs"
// (depgraph_api.go:84-85). That does not fit this domain: Vertex is a live,
// mutable record that internal/manager and libs/restarter flip flags and
// state on directly (v.State = ..., v.ToOffline = ..., outside any Graph
// API), and the evaluator/propagation engine need to observe those writes
// immediately. vertexItem therefore wraps a *Vertex by reference rather
// than by value: Dependencies()/String() read the live Vertex on every
// call instead of a snapshot taken at PutNode time, so a single PutNode at
// vertex-creation time is enough — there is no separate copy to go stale.
type vertexItem struct {
	v *Vertex
}

// Name is Path encoded as an upstream Item name (which may not contain
// "/"); see Path.itemName for the "#depgroups/" escaping this requires.
func (i vertexItem) Name() string { return i.v.Path.itemName() }

// Label is the human-readable path, unescaped.
func (i vertexItem) Label() string { return i.v.Path.String() }

// Type is a constant, not the vertex's Variant. upstream.NodeIDFor bakes
// Type into a node's identity (Type()+"/"+Name()), but this domain's
// identity is Path alone — the same Path always names the same vertex
// regardless of whether it is a Service, Instance, or DepGroup. A
// variant-keyed Type would let a vertex's NodeID change if its Variant
// were ever reassigned, which Graph never does. Keeping Type constant
// anchors NodeID to Path only.
func (i vertexItem) Type() string { return "vertex" }

// Equal compares identity, not full state: reconciliation-style Create/
// Modify/Delete diffing (what Equal exists for, per upstream's reconciler)
// is not how this graph is driven — Builder mutates vertices in place
// instead of diffing old/new Item values.
func (i vertexItem) Equal(other upstream.Item) bool {
	o, ok := other.(vertexItem)
	return ok && o.v.Path == i.v.Path
}

// External is always false: every vertex here is owned and driven by this
// graph, never by an outside agent.
func (i vertexItem) External() bool { return false }

func (i vertexItem) String() string {
	return fmt.Sprintf("%s (%s)", i.v.Path, i.v.Variant)
}

// Dependencies reports i.v's outgoing edges as upstream Dependency values,
// read live off the Vertex. A DepGroup vertex with GroupKind ExcludeAll
// reports none: exclusion targets are not "required to run" relations, the
// same reason Builder.reachableChain refuses to walk through an ExcludeAll
// vertex. Omitting them here keeps upstream's DetectCycle from flagging a
// legitimate exclusion structure (S3) as a false cycle.
func (i vertexItem) Dependencies() []upstream.Dependency {
	if i.v.Variant == VariantDepGroup && i.v.GroupKind == ExcludeAll {
		return nil
	}
	deps := make([]upstream.Dependency, 0, len(i.v.Dependencies))
	for _, e := range i.v.Dependencies {
		deps = append(deps, upstream.Dependency{
			Item:        upstream.RequiredItem{Type: "vertex", Name: e.To.itemName()},
			Description: e.To.String(),
		})
	}
	return deps
}

// nodeIDFor is the NodeID a vertex at path is stored under: always
// upstream.NodeIDFor's Type()+"/"+Name() convention, with Type fixed at
// "vertex" (see vertexItem.Type).
func nodeIDFor(p Path) upstream.NodeID {
	return upstream.NodeID("vertex/" + p.itemName())
}

// pathFromNodeID inverts nodeIDFor, for translating upstream traversal
// results (DetectCycle's cycle, OutgoingEdges/IncomingEdges targets) back
// into Paths.
func pathFromNodeID(id upstream.NodeID) Path {
	return pathFromItemName(strings.TrimPrefix(string(id), "vertex/"))
}
