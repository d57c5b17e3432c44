// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	upstream "github.com/lf-edge/eve/libs/depgraph"
)

// GroupDecl is a single declared dependency group, as exposed by the
// repository collaborator: a kind, a restart-on intensity, and the list
// of target paths it aggregates.
type GroupDecl struct {
	Kind      GroupKind
	RestartOn RestartOn
	Targets   []Path
}

// InstanceDecl is a declared instance of a service, as exposed by the
// repository collaborator.
type InstanceDecl struct {
	Path   Path
	Groups []GroupDecl
}

// ServiceDecl is a declared service, as exposed by the repository
// collaborator: its own dependency groups plus its instances.
type ServiceDecl struct {
	Path      Path
	Groups    []GroupDecl
	Instances []InstanceDecl
}

// Builder materializes a Graph from repository declarations. It is the
// only component permitted to mutate vertex/edge structure; the
// satisfiability evaluator and propagation engine only read and flip
// per-vertex flags.
type Builder struct {
	g *Graph
}

// NewBuilder wraps g for build operations.
func NewBuilder(g *Graph) *Builder {
	return &Builder{g: g}
}

// InstallService finds-or-creates the Service vertex for svc, and for each
// declared instance finds-or-creates an Instance vertex and adds a
// Service -> Instance dependency edge. Idempotent: calling it twice with
// the same declaration yields the same vertex set and edges.
func (b *Builder) InstallService(svc ServiceDecl) *Vertex {
	sv := b.g.findOrCreate(svc.Path, VariantService)
	for _, inst := range svc.Instances {
		iv := b.g.findOrCreate(inst.Path, VariantInstance)
		_ = iv
		if !b.g.hasEdge(svc.Path, inst.Path) {
			b.g.addEdge(svc.Path, inst.Path)
		}
	}
	return sv
}

// declLookup resolves the GroupDecl list to use for a vertex's own
// declarations. The builder is handed these directly by the caller
// (typically internal/manager, which fetched them from the repository)
// rather than fetching them itself, keeping Builder free of any
// repository dependency.
type declLookup func(path Path) []GroupDecl

// Setup materializes the dependency groups declared for path, at most
// once per vertex. For each group at index i it synthesizes path
// p#depgroups/i, finds-or-creates a DepGroup vertex carrying the group's
// kind and restart-on intensity, links vertex -> depgroup, then links
// depgroup -> target for every declared target (targets must already
// exist in the graph). Recurses into targets so their own groups are set
// up too. Returns the first error encountered; on a cycle or a missing
// target, the vertex is still marked IsSetup to prevent re-attempts.
func (b *Builder) Setup(path Path, lookup declLookup) error {
	v, ok := b.g.Vertex(path)
	if !ok {
		return &MissingTargetError{Target: path}
	}
	if v.IsSetup {
		return nil
	}
	v.IsSetup = true

	groups := lookup(path)
	for i, decl := range groups {
		gp := path.DepGroupPath(i)
		gv := b.g.findOrCreate(gp, VariantDepGroup)
		gv.GroupKind = decl.Kind
		gv.RestartOn = decl.RestartOn
		gv.IsSetup = true

		if !b.g.hasEdge(path, gp) {
			if err := b.DependencyAdd(path, gp); err != nil {
				return err
			}
		}
		for _, target := range decl.Targets {
			if _, ok := b.g.Vertex(target); !ok {
				return &MissingTargetError{Group: gp, Target: target}
			}
			if !b.g.hasEdge(gp, target) {
				if err := b.DependencyAdd(gp, target); err != nil {
					return err
				}
			}
			if err := b.Setup(target, lookup); err != nil {
				return err
			}
		}
	}
	return nil
}

// DependencyAdd adds a dependency edge u -> v. The edge is added first,
// then checked: upstream's Graph.DetectCycle runs over the real edge set
// (vertexItem.Dependencies omits ExcludeAll targets, so exclusion
// structures never look cyclic — see its doc comment), and if it reports a
// cycle the tentative edge is rolled back and a *CycleError returned
// instead.
func (b *Builder) DependencyAdd(u, v Path) error {
	b.g.addEdge(u, v)
	if cycle := b.g.up.DetectCycle(); len(cycle) > 0 {
		b.g.removeLastEdge(u, v)
		evidence := make([]Path, len(cycle))
		for i, id := range cycle {
			evidence[i] = pathFromNodeID(id)
		}
		return &CycleError{From: u, To: v, Evidence: evidence}
	}
	return nil
}

// Reachable reports whether bTo can be reached from a by following
// dependency edges, via upstream's OutgoingEdges. Traversal stops at an
// ExcludeAll DepGroup vertex (it reports no outgoing edges, see
// vertexItem.Dependencies): exclusions are not "required to run"
// relations, so they do not propagate reachability for acyclicity
// purposes.
func (b *Builder) Reachable(a, bTo Path) bool {
	_, ok := b.reachableChain(a, bTo)
	return ok
}

// reachableChain performs the DFS described by Reachable over the upstream
// graph's OutgoingEdges, additionally returning the chain of vertices
// walked to reach the target. The visited set prevents infinite
// recursion on misconfigured graphs.
func (b *Builder) reachableChain(from, to Path) ([]Path, bool) {
	visited := make(map[upstream.NodeID]bool)
	var walk func(cur Path) ([]Path, bool)
	walk = func(cur Path) ([]Path, bool) {
		if cur == to {
			return []Path{cur}, true
		}
		id := nodeIDFor(cur)
		if visited[id] {
			return nil, false
		}
		visited[id] = true
		it := b.g.up.OutgoingEdges(id)
		for it.Next() {
			target := pathFromNodeID(it.Edge().ToNode)
			if chain, found := walk(target); found {
				return append([]Path{cur}, chain...), true
			}
		}
		return nil, false
	}
	return walk(from)
}
