// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package fsrepo

import (
	"fmt"

	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

func parseGroupKind(s string) (depgraph.GroupKind, error) {
	switch s {
	case "require_all", "":
		return depgraph.RequireAll, nil
	case "require_any":
		return depgraph.RequireAny, nil
	case "optional_all":
		return depgraph.OptionalAll, nil
	case "exclude_all":
		return depgraph.ExcludeAll, nil
	}
	return 0, fmt.Errorf("unknown group kind %q", s)
}

func parseRestartOn(s string) (depgraph.RestartOn, error) {
	switch s {
	case "none", "":
		return depgraph.RestartOnNone, nil
	case "error":
		return depgraph.RestartOnError, nil
	case "restart":
		return depgraph.RestartOnRestart, nil
	case "refresh":
		return depgraph.RestartOnRefresh, nil
	case "any":
		return depgraph.RestartOnAny, nil
	}
	return 0, fmt.Errorf("unknown restart_on %q", s)
}

func parseUnitType(s string) (unit.Type, error) {
	switch s {
	case "simple", "":
		return unit.Simple, nil
	case "oneshot":
		return unit.Oneshot, nil
	case "forks":
		return unit.Forks, nil
	case "group":
		return unit.Group, nil
	case "notify":
		return unit.Notify, nil
	}
	return 0, fmt.Errorf("unknown unit type %q", s)
}

// toGroupDecls converts groupFile entries declared under service, parsing
// each YAML target with parseTargetPath (a target with no "#" names a
// whole service, not a sibling instance).
func toGroupDecls(service string, files []groupFile) ([]depgraph.GroupDecl, error) {
	decls := make([]depgraph.GroupDecl, 0, len(files))
	for _, gf := range files {
		kind, err := parseGroupKind(gf.Kind)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", service, err)
		}
		restartOn, err := parseRestartOn(gf.RestartOn)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", service, err)
		}
		targets := make([]depgraph.Path, 0, len(gf.Targets))
		for _, t := range gf.Targets {
			targets = append(targets, parseTargetPath(t))
		}
		decls = append(decls, depgraph.GroupDecl{Kind: kind, RestartOn: restartOn, Targets: targets})
	}
	return decls, nil
}

// parseTargetPath splits "service#instance" into a Path; a target with no
// "#" names a bare service (the group depends on the service vertex as a
// whole: a required group needs all of the service's dependencies
// satisfied, and OptionalAll/ExcludeAll apply their rule to each of its
// instances).
func parseTargetPath(s string) depgraph.Path {
	for i := 0; i < len(s); i++ {
		if s[i] == '#' {
			return depgraph.Path{Service: s[:i], Instance: s[i+1:]}
		}
	}
	return depgraph.Path{Service: s}
}

func toServiceDecl(sf serviceFile) (depgraph.ServiceDecl, error) {
	svcPath := depgraph.Path{Service: sf.Service}
	groups, err := toGroupDecls(sf.Service, sf.Groups)
	if err != nil {
		return depgraph.ServiceDecl{}, err
	}

	decl := depgraph.ServiceDecl{Path: svcPath, Groups: groups}
	for _, inf := range sf.Instances {
		instPath := depgraph.Path{Service: sf.Service, Instance: inf.Name}
		instGroups, err := toGroupDecls(sf.Service, inf.Groups)
		if err != nil {
			return depgraph.ServiceDecl{}, err
		}
		decl.Instances = append(decl.Instances, depgraph.InstanceDecl{
			Path:   instPath,
			Groups: instGroups,
		})
	}
	return decl, nil
}
