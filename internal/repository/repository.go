// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package repository defines the collaborator interface the core uses to
// resolve a path to a declared Service or Instance, kept out of the graph
// and machine packages entirely. internal/manager consumes a Repository;
// internal/repository/fsrepo is the concrete, YAML-on-disk implementation
// the daemon ships with.
package repository

import (
	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

// Repository resolves declared services and instances by path. Lookup
// failures are returned to the caller as is; fsrepo retries its own
// reloads of changed files with internal/backoff.
type Repository interface {
	// LookupService returns the declared service at path, or ok=false if
	// no such service is declared.
	LookupService(path depgraph.Path) (decl depgraph.ServiceDecl, ok bool, err error)
	// LookupInstance returns the declared instance at path, or ok=false
	// if no such instance is declared.
	LookupInstance(path depgraph.Path) (decl depgraph.InstanceDecl, ok bool, err error)
	// LookupGroups returns the dependency groups declared directly on
	// path (a service or an instance), satisfying libs/depgraph's
	// declLookup shape.
	LookupGroups(path depgraph.Path) (groups []depgraph.GroupDecl, err error)
	// LookupUnitConfig returns the execution type and method set declared
	// for the instance at path, consumed by internal/manager to build its
	// libs/unit.Unit.
	LookupUnitConfig(path depgraph.Path) (typ unit.Type, methods unit.MethodSet, ok bool, err error)
	// Services lists every currently-declared service path, the
	// manager's entry point for the initial graph build.
	Services() ([]depgraph.Path, error)
}

// ChangeNotifier is implemented by Repository backends that can tell the
// manager when the declarations backing a path changed on disk, so it can
// re-run Setup. Not every Repository needs to support this (a static,
// load-once repository simply never sends on the channel).
type ChangeNotifier interface {
	// Changes returns a channel of paths whose declaration changed.
	// Closed when watching stops permanently.
	Changes() <-chan depgraph.Path
}
