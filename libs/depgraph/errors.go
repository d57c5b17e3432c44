// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "fmt"

// CycleError is returned by Builder.DependencyAdd when adding the edge
// would introduce a cycle. Evidence is the cycle upstream's
// Graph.DetectCycle reported, translated back from NodeIDs to Paths and
// starting at the cycle's entry vertex, e.g.
// "a:i -> a:i#depgroups/0 -> b:j -> b:j#depgroups/0".
type CycleError struct {
	From, To Path
	Evidence []Path
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("depgraph: adding %s -> %s would cycle through %s",
		e.From, e.To, formatPathChain(e.Evidence))
}

func formatPathChain(chain []Path) string {
	s := ""
	for i, p := range chain {
		if i > 0 {
			s += " -> "
		}
		s += p.String()
	}
	return s
}

// MissingTargetError is returned by Builder.Setup when a declared
// dependency group references a target path that does not yet exist in
// the graph.
type MissingTargetError struct {
	Group  Path
	Target Path
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("depgraph: dependency group %s references missing target %s",
		e.Group, e.Target)
}
