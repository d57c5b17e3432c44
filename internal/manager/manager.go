// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package manager is the daemon's single event thread: it owns the
// dependency graph, the per-instance Machines, and the restarter Engine,
// and is the only place any of those three are mutated. Every external
// event — a child process exiting, a timer firing, a readiness datagram,
// an admin request, a repository change — is funneled through Run's
// select loop so they are applied one at a time, never concurrently.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/lf-edge/s16d/internal/facade"
	"github.com/lf-edge/s16d/internal/readiness"
	"github.com/lf-edge/s16d/internal/repository"
	"github.com/lf-edge/s16d/internal/slog"
	"github.com/lf-edge/s16d/internal/timerset/realtimer"
	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/restarter"
	"github.com/lf-edge/s16d/libs/unit"
)

// Config collects manager's collaborators: repository, process tracker,
// readiness socket, logger. The concrete types (fsrepo,
// unixtracker, unixsocket, or their fakes) are chosen by the caller —
// cmd/s16d for production, tests for the fakes.
type Config struct {
	Repository repository.Repository
	Tracker    unit.Tracker
	Readiness  readiness.Socket
	Log        slog.Logger

	// RepositoryUnit, if non-zero, names the Instance path whose Online
	// transition represents the repository collaborator itself becoming
	// available. Manager marks that
	// Machine's IsRepository and re-evaluates every unit's eligibility
	// once it fires.
	RepositoryUnit depgraph.Path
}

// Manager wires a Config's collaborators into a running dependency graph
// and restarter engine.
type Manager struct {
	repo      repository.Repository
	tracker   unit.Tracker
	readiness readiness.Socket
	log       slog.Logger

	timers *realtimer.Set
	owners *pidOwners

	mu       sync.RWMutex
	graph    *depgraph.Graph
	builder  *depgraph.Builder
	eval     *depgraph.Evaluator
	engine   *restarter.Engine
	machines map[depgraph.Path]*unit.Machine

	repositoryUnit depgraph.Path

	eventCh chan func()
}

// New constructs a Manager. Call Build to populate the graph from the
// repository before starting Run.
func New(cfg Config) (*Manager, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("manager: Repository is required")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("manager: Tracker is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(4)
	}
	g := depgraph.NewGraph()
	m := &Manager{
		repo:           cfg.Repository,
		tracker:        cfg.Tracker,
		readiness:      cfg.Readiness,
		log:            log,
		owners:         newPIDOwners(),
		graph:          g,
		builder:        depgraph.NewBuilder(g),
		eval:           depgraph.NewEvaluator(g),
		machines:       make(map[depgraph.Path]*unit.Machine),
		repositoryUnit: cfg.RepositoryUnit,
		eventCh:        make(chan func(), 256),
	}
	m.engine = restarter.NewEngine(g, log)
	m.engine.OnUnitTransition = m.dispatchTransition
	m.timers = realtimer.New(m)
	return m, nil
}

// ResolvePID maps a reporting process's pid back to the unit path that
// forked or is watching it (readiness.unixsocket.PIDResolver's shape).
// cmd/s16d wires this in when constructing the readiness socket, which
// must exist before the socket can be bound but needs the same owner
// index the manager already maintains.
func (m *Manager) ResolvePID(pid int) (depgraph.Path, bool) {
	return m.owners.lookup(pid)
}

// SetReadiness attaches the readiness socket once it has been constructed
// (it, in turn, needed ResolvePID from this Manager to construct). Must
// be called before Run.
func (m *Manager) SetReadiness(s readiness.Socket) {
	m.readiness = s
}

// Post implements realtimer.Poster: it serializes f onto the event loop
// rather than letting the expiring timer's own goroutine touch graph or
// Machine state directly.
func (m *Manager) Post(f func()) {
	m.eventCh <- f
}

// HandleProcessEvent implements proctrack.Sink. Tracker implementations
// must call this from whatever goroutine observed the exit; it is always
// re-posted onto the event loop before touching any Machine.
func (m *Manager) HandleProcessEvent(ev unit.ProcessEvent) {
	m.Post(func() { m.dispatchProcessEvent(ev) })
}

// trackerFor returns the per-unit Tracker view a new Machine at path
// should use: the shared collaborator, tagging every PID it forks or
// watches with path in the manager's owner index.
func (m *Manager) trackerFor(path depgraph.Path) unit.Tracker {
	return &perUnitTracker{path: path, under: m.tracker, owner: m.owners}
}

// Build constructs the initial dependency graph from the repository and
// a Machine for every declared Instance. Must be called before Run, on
// whatever goroutine performs startup (there is no concurrent access yet
// at this point).
func (m *Manager) Build() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths, err := m.repo.Services()
	if err != nil {
		return fmt.Errorf("manager: list services: %w", err)
	}
	for _, sp := range paths {
		decl, ok, err := m.repo.LookupService(sp)
		if err != nil {
			return fmt.Errorf("manager: lookup service %s: %w", sp, err)
		}
		if !ok {
			continue
		}
		m.builder.InstallService(decl)
	}

	for _, v := range m.graph.Vertices() {
		if err := m.builder.Setup(v.Path, m.groupLookup); err != nil {
			m.log.Warnf("manager: setup %s: %v", v.Path, err)
		}
	}

	for _, v := range m.graph.Vertices() {
		if v.Variant != depgraph.VariantInstance {
			continue
		}
		if _, exists := m.machines[v.Path]; exists {
			continue
		}
		typ, methods, ok, err := m.repo.LookupUnitConfig(v.Path)
		if err != nil {
			return fmt.Errorf("manager: lookup unit config %s: %w", v.Path, err)
		}
		if !ok {
			m.log.Warnf("manager: instance %s has no unit config, skipping", v.Path)
			continue
		}
		m.addMachineLocked(v.Path, typ, methods)
	}
	return nil
}

func (m *Manager) groupLookup(path depgraph.Path) []depgraph.GroupDecl {
	groups, err := m.repo.LookupGroups(path)
	if err != nil {
		m.log.Warnf("manager: lookup groups %s: %v", path, err)
		return nil
	}
	return groups
}

func (m *Manager) addMachineLocked(path depgraph.Path, typ unit.Type, methods unit.MethodSet) *unit.Machine {
	u := unit.NewUnit(path, typ, methods)
	mach := unit.NewMachine(u, m.trackerFor(path), m.timers, m.log)
	mach.IsRepository = m.repositoryUnit != (depgraph.Path{}) && path == m.repositoryUnit

	p := path
	mach.OnOnline = func() {
		m.engine.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOnline, Path: p})
		m.engine.Drain()
	}
	mach.OnOffline = func(reason depgraph.RestartOn) {
		m.engine.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOffline, Path: p, Reason: reason})
		m.engine.Drain()
	}
	mach.OnMaintenance = func() {
		// SC_MAINTENANCE carries no propagation semantics of its own: no
		// dependent-notification rule applies to it, so the vertex's
		// coarse state is set directly here so the admin facade can still
		// surface it without round-tripping through the engine.
		if v, ok := m.graph.Vertex(p); ok {
			v.State = depgraph.StateMaintenance
		}
		m.log.Errorf("manager: unit %s exhausted retries, entering maintenance", p)
	}
	mach.OnRepositoryOnline = func() {
		m.log.Noticef("manager: repository unit %s online, waking eligible units", p)
		m.wakeEligibleUnitsLocked()
	}

	m.machines[path] = mach
	return mach
}

func (m *Manager) dispatchTransition(path depgraph.Path, sub restarter.SubType, reason depgraph.RestartOn) {
	mach, ok := m.machines[path]
	if !ok {
		m.log.Warnf("manager: transition %s for untracked unit %s", sub, path)
		return
	}
	switch sub {
	case restarter.SCOnline:
		mach.RequestOnline()
	case restarter.SCOffline:
		mach.RequestOffline(reason)
	}
}

// wakeEligibleUnitsLocked directly commands every Instance currently
// eligible to come up. Used both for the initial construction sweep and
// whenever the repository or a hot-reloaded declaration makes previously
// unsatisfiable instances satisfiable. This mirrors what emitUnitTransition
// does for a dependent woken by propagation, not an SC_ONLINE note: no
// vertex has actually observed going online yet, so faking that note
// through the engine would mark it Online before its Machine has even
// started. Once each commanded Machine actually reaches Online, its
// OnOnline callback reports the real SC_ONLINE note and the engine's own
// propagation takes over from there.
func (m *Manager) wakeEligibleUnitsLocked() {
	for _, v := range m.graph.Vertices() {
		if v.Variant != depgraph.VariantInstance {
			continue
		}
		if v.State == depgraph.StateOnline || v.State == depgraph.StateDegraded {
			continue
		}
		if m.eval.CanComeUp(v.Path) {
			m.dispatchTransition(v.Path, restarter.SCOnline, depgraph.RestartOnNone)
		}
	}
	m.engine.Drain()
}

// Start kicks off the initial eligibility sweep: every
// Instance whose dependency groups are already Satisfied at startup is
// brought online without waiting for an external trigger. Call after
// Build, before or after Run — the produced notes are queued either way
// and only drained inside the event loop.
func (m *Manager) Start() {
	m.Post(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.wakeEligibleUnitsLocked()
	})
}

func (m *Manager) dispatchProcessEvent(ev unit.ProcessEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.owners.lookup(ev.PID)
	if !ok {
		m.log.Warnf("manager: process event for unowned pid %d", ev.PID)
		return
	}
	mach, ok := m.machines[path]
	if !ok {
		return
	}
	mach.HandleProcessEvent(ev)
	if ev.Kind == unit.EventExit {
		m.owners.delete(ev.PID)
	}
	m.engine.Drain()
}

func (m *Manager) dispatchReadiness(path depgraph.Path) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mach, ok := m.machines[path]
	if !ok {
		m.log.Warnf("manager: readiness notification for untracked unit %s", path)
		return
	}
	mach.HandleReadiness()
	m.engine.Drain()
}

// RequestAdmin queues an administrative request (A_ENABLE/A_DISABLE/
// A_REFRESH) from any goroutine — typically cmd/s16adm's admin API
// handler — safely onto the event loop.
func (m *Manager) RequestAdmin(sub restarter.SubType, path depgraph.Path, reason depgraph.RestartOn) {
	m.Post(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.engine.Enqueue(restarter.Note{Kind: restarter.KindAdminReq, Sub: sub, Path: path, Reason: reason})
		m.engine.Drain()
	})
}

// dispatchRepositoryChange re-runs InstallService/Setup for a service
// whose declaration changed on disk, adding Machines for any
// newly-declared instances, then re-sweeps for newly-eligible units.
func (m *Manager) dispatchRepositoryChange(path depgraph.Path) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svcPath := depgraph.Path{Service: path.Service}
	decl, ok, err := m.repo.LookupService(svcPath)
	if err != nil {
		m.log.Warnf("manager: reload lookup service %s: %v", svcPath, err)
		return
	}
	if !ok {
		m.log.Warnf("manager: reload for unknown service %s, ignoring", svcPath)
		return
	}
	m.builder.InstallService(decl)
	for _, inst := range decl.Instances {
		if _, exists := m.machines[inst.Path]; exists {
			continue
		}
		typ, methods, ok, err := m.repo.LookupUnitConfig(inst.Path)
		if err != nil || !ok {
			continue
		}
		m.addMachineLocked(inst.Path, typ, methods)
	}
	for _, v := range m.graph.Vertices() {
		if err := m.builder.Setup(v.Path, m.groupLookup); err != nil {
			m.log.Warnf("manager: reload setup %s: %v", v.Path, err)
		}
	}
	m.wakeEligibleUnitsLocked()
}

// Run drains the event loop until ctx is cancelled: posted closures
// (timer fires, process events), readiness notifications, and repository
// change notifications are all applied one at a time.
func (m *Manager) Run(ctx context.Context) error {
	var readinessCh <-chan depgraph.Path
	if m.readiness != nil {
		readinessCh = m.readiness.Notifications()
	}
	var changesCh <-chan depgraph.Path
	if notifier, ok := m.repo.(repository.ChangeNotifier); ok {
		changesCh = notifier.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-m.eventCh:
			fn()
		case path, ok := <-readinessCh:
			if !ok {
				readinessCh = nil
				continue
			}
			m.dispatchReadiness(path)
		case path, ok := <-changesCh:
			if !ok {
				changesCh = nil
				continue
			}
			m.dispatchRepositoryChange(path)
		}
	}
}

// Facade returns a read-only snapshot view of the graph and unit set for
// cmd/s16adm. Safe to call from any goroutine; it takes the same lock
// Build/dispatch* hold while mutating.
func (m *Manager) Facade() *facade.Facade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machines := make(map[depgraph.Path]*unit.Machine, len(m.machines))
	for k, v := range m.machines {
		machines[k] = v
	}
	return facade.New(m.graph, machines)
}
