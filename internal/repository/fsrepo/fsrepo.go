// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package fsrepo is the repository collaborator's default implementation:
// services live as one YAML file per service under a directory, reloaded
// on fsnotify events with internal/backoff retry on parse failure.
package fsrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v2"

	"github.com/lf-edge/s16d/internal/backoff"
	"github.com/lf-edge/s16d/internal/slog"
	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

// Repo watches a directory of service YAML files and serves them through
// the repository.Repository interface.
type Repo struct {
	dir string
	log slog.Logger

	mu       sync.RWMutex
	services map[string]depgraph.ServiceDecl
	units    map[depgraph.Path]unitConfig

	changes chan depgraph.Path
	watcher *fsnotify.Watcher
	done    chan struct{}
}

type unitConfig struct {
	typ     unit.Type
	methods unit.MethodSet
}

// New creates a Repo rooted at dir and loads every services/*.yaml file
// currently present. dir is created if missing.
func New(dir string, log slog.Logger) (*Repo, error) {
	if log == nil {
		log = slog.New(4)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fsrepo: create %s: %w", dir, err)
	}
	r := &Repo{
		dir:      dir,
		log:      log,
		services: make(map[string]depgraph.ServiceDecl),
		units:    make(map[depgraph.Path]unitConfig),
		changes:  make(chan depgraph.Path, 16),
		done:     make(chan struct{}),
	}
	if err := r.loadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch starts the fsnotify watcher on dir; subsequent writes trigger a
// backoff-guarded reload of the affected file and a send on Changes().
// Watch is separate from New so tests can exercise a Repo without a
// live filesystem watcher.
func (r *Repo) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsrepo: new watcher: %w", err)
	}
	if err := w.Add(r.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("fsrepo: watch %s: %w", r.dir, err)
	}
	r.watcher = w
	go r.runWatcher()
	return nil
}

// Close stops the watcher, if one was started.
func (r *Repo) Close() error {
	close(r.done)
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

// Changes implements repository.ChangeNotifier.
func (r *Repo) Changes() <-chan depgraph.Path {
	return r.changes
}

func (r *Repo) runWatcher() {
	defer close(r.changes)
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(ev.Name) != ".yaml" && filepath.Ext(ev.Name) != ".yml" {
				continue
			}
			r.reloadWithBackoff(ev.Name)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warnf("fsrepo: watcher error: %v", err)
		case <-r.done:
			return
		}
	}
}

// reloadWithBackoff retries a single file's reload up to 5 times with
// exponential backoff before giving up and keeping the last-good
// declaration; a bad file on disk never freezes the core mid-evaluation.
func (r *Repo) reloadWithBackoff(path string) {
	const maxAttempts = 5
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		svc, err := r.loadFile(path)
		if err == nil {
			// loadFile already registered svc and its instances' unit
			// configs under the write lock.
			r.changes <- svc.Path
			return
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(backoff.Default.Delay(attempt))
		}
	}
	r.log.Errorf("fsrepo: giving up reloading %s after %d attempts: %v", path, maxAttempts, lastErr)
}

func (r *Repo) loadAll() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("fsrepo: read %s: %w", r.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		full := filepath.Join(r.dir, e.Name())
		if _, err := r.loadFile(full); err != nil {
			return fmt.Errorf("fsrepo: %s: %w", full, err)
		}
	}
	return nil
}

// loadFile parses one service YAML file, registers its instances' unit
// configs, and returns the depgraph-level declaration.
func (r *Repo) loadFile(path string) (depgraph.ServiceDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return depgraph.ServiceDecl{}, err
	}
	var sf serviceFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return depgraph.ServiceDecl{}, fmt.Errorf("parse: %w", err)
	}
	if strings.TrimSpace(sf.Service) == "" {
		return depgraph.ServiceDecl{}, fmt.Errorf("missing service name")
	}
	decl, err := toServiceDecl(sf)
	if err != nil {
		return depgraph.ServiceDecl{}, err
	}

	r.mu.Lock()
	for _, inf := range sf.Instances {
		typ, err := parseUnitType(inf.Type)
		if err != nil {
			r.mu.Unlock()
			return depgraph.ServiceDecl{}, fmt.Errorf("instance %s: %w", inf.Name, err)
		}
		instPath := depgraph.Path{Service: sf.Service, Instance: inf.Name}
		r.units[instPath] = unitConfig{typ: typ, methods: inf.Methods.toMethodSet()}
	}
	r.services[decl.Path.Service] = decl
	r.mu.Unlock()
	return decl, nil
}

// LookupService implements repository.Repository.
func (r *Repo) LookupService(path depgraph.Path) (depgraph.ServiceDecl, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decl, ok := r.services[path.Service]
	return decl, ok, nil
}

// LookupInstance implements repository.Repository.
func (r *Repo) LookupInstance(path depgraph.Path) (depgraph.InstanceDecl, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[path.Service]
	if !ok {
		return depgraph.InstanceDecl{}, false, nil
	}
	for _, inst := range svc.Instances {
		if inst.Path == path {
			return inst, true, nil
		}
	}
	return depgraph.InstanceDecl{}, false, nil
}

// LookupGroups implements repository.Repository, resolving either a
// service's own groups or an instance's groups depending on path's shape.
func (r *Repo) LookupGroups(path depgraph.Path) ([]depgraph.GroupDecl, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[path.Service]
	if !ok {
		return nil, fmt.Errorf("fsrepo: no such service %s", path.Service)
	}
	if path.IsService() {
		return svc.Groups, nil
	}
	for _, inst := range svc.Instances {
		if inst.Path == path {
			return inst.Groups, nil
		}
	}
	return nil, fmt.Errorf("fsrepo: no such instance %s", path)
}

// LookupUnitConfig implements repository.Repository.
func (r *Repo) LookupUnitConfig(path depgraph.Path) (unit.Type, unit.MethodSet, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.units[path]
	if !ok {
		return 0, unit.MethodSet{}, false, nil
	}
	return cfg.typ, cfg.methods, true, nil
}

// Services implements repository.Repository.
func (r *Repo) Services() ([]depgraph.Path, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]depgraph.Path, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc.Path)
	}
	return out, nil
}
