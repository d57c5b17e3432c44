// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package depgraph maintains the directed dependency graph of services,
// instances and dependency groups, and evaluates their satisfiability.
package depgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// depGroupSep separates a base path from the synthesized dependency-group
// index suffix, e.g. "myservice:i0#depgroups/0".
const depGroupSep = "#depgroups/"

// Path is a stable identifier for a vertex. Two components make up a
// service-or-instance path: the service name and an optional instance name.
// Paths are value-equal by component, so Path is safe to use as a map key.
type Path struct {
	Service  string
	Instance string
}

// String renders the canonical textual form of the path: "service" for a
// bare service path, or "service:instance" when an instance is present.
func (p Path) String() string {
	if p.Instance == "" {
		return p.Service
	}
	return p.Service + ":" + p.Instance
}

// IsService returns true if this path names a service as a whole (no
// instance component).
func (p Path) IsService() bool {
	return p.Instance == ""
}

// DepGroupPath synthesizes the path of the i-th dependency group declared
// by the vertex at path p, e.g. Path{"a", "i"}.DepGroupPath(0) -> path
// "a:i#depgroups/0".
func (p Path) DepGroupPath(index int) Path {
	return Path{Service: p.String() + depGroupSep + strconv.Itoa(index)}
}

// IsDepGroupPath reports whether p was synthesized by DepGroupPath.
func (p Path) IsDepGroupPath() bool {
	return strings.Contains(p.Service, depGroupSep) && p.Instance == ""
}

// itemNameSep substitutes for "/" when encoding a Path as an upstream
// depgraph Item name: Item.Name() may not contain "/", but DepGroupPath
// synthesizes paths containing "#depgroups/N".
const itemNameSep = "#depgroups~"

// itemName encodes p as a depgraph.Item name (see vertexItem.Name).
func (p Path) itemName() string {
	return strings.ReplaceAll(p.String(), depGroupSep, itemNameSep)
}

// pathFromItemName decodes a name produced by Path.itemName back into a
// Path, inverting DepGroupPath's "#depgroups/" encoding.
func pathFromItemName(name string) Path {
	s := strings.ReplaceAll(name, itemNameSep, depGroupSep)
	if strings.Contains(s, depGroupSep) {
		// a dep-group path's entire textual form lives in Service, by
		// construction of DepGroupPath; splitting on ":" here would cut
		// into the embedded base path instead of decoding it.
		return Path{Service: s}
	}
	service, instance, _ := strings.Cut(s, ":")
	return Path{Service: service, Instance: instance}
}

// ParsePath parses the canonical textual form produced by String: either a
// bare "service" or a "service:instance" pair. Used at the admin API
// boundary (cmd/s16adm, internal/adminapi), where paths arrive as strings.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("depgraph: empty path")
	}
	service, instance, _ := strings.Cut(s, ":")
	if service == "" {
		return Path{}, fmt.Errorf("depgraph: path %q has no service component", s)
	}
	return Path{Service: service, Instance: instance}, nil
}
