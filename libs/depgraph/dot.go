// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// DotExporter renders the graph as a DOT [1] description, useful for
// troubleshooting the live dependency graph through the admin facade.
// Purely diagnostic: it has no effect on core semantics.
//
// [1]: https://en.wikipedia.org/wiki/DOT_(graph_description_language)
type DotExporter struct{}

var variantColor = map[Variant]string{
	VariantService:  "lightblue",
	VariantInstance: "palegreen",
	VariantDepGroup: "lightgrey",
}

// Export returns a DOT description of g, with nodes colored by variant and
// labeled with their state.
func (DotExporter) Export(g *Graph) string {
	sb := strings.Builder{}
	sb.WriteString("digraph G {\n")
	vertices := g.Vertices()
	sort.Slice(vertices, func(i, j int) bool {
		return vertices[i].Path.String() < vertices[j].Path.String()
	})
	for _, v := range vertices {
		sb.WriteString(fmt.Sprintf(
			"\t%q [label=%q style=filled fillcolor=%s];\n",
			v.Path.String(),
			fmt.Sprintf("%s\\n%s", v.Path.String(), v.State.String()),
			variantColor[v.Variant]))
	}
	for _, v := range vertices {
		for _, e := range v.Dependencies {
			sb.WriteString(fmt.Sprintf("\t%q -> %q;\n", e.From.String(), e.To.String()))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
