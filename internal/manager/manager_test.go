// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package manager_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/lf-edge/s16d/internal/manager"
	"github.com/lf-edge/s16d/internal/proctrack/fake"
	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

// stubRepo is an in-memory repository.Repository for wiring tests: no
// filesystem, no YAML, just the declarations the test cares about.
type stubRepo struct {
	services []depgraph.Path
	svcDecls map[string]depgraph.ServiceDecl
	groups   map[depgraph.Path][]depgraph.GroupDecl
	units    map[depgraph.Path]unitConfig
}

type unitConfig struct {
	typ     unit.Type
	methods unit.MethodSet
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		svcDecls: make(map[string]depgraph.ServiceDecl),
		groups:   make(map[depgraph.Path][]depgraph.GroupDecl),
		units:    make(map[depgraph.Path]unitConfig),
	}
}

func (r *stubRepo) addService(decl depgraph.ServiceDecl) {
	r.services = append(r.services, decl.Path)
	r.svcDecls[decl.Path.Service] = decl
}

func (r *stubRepo) addUnit(path depgraph.Path, typ unit.Type, methods unit.MethodSet) {
	r.units[path] = unitConfig{typ: typ, methods: methods}
}

func (r *stubRepo) LookupService(path depgraph.Path) (depgraph.ServiceDecl, bool, error) {
	decl, ok := r.svcDecls[path.Service]
	return decl, ok, nil
}

func (r *stubRepo) LookupInstance(path depgraph.Path) (depgraph.InstanceDecl, bool, error) {
	decl, ok := r.svcDecls[path.Service]
	if !ok {
		return depgraph.InstanceDecl{}, false, nil
	}
	for _, inst := range decl.Instances {
		if inst.Path == path {
			return inst, true, nil
		}
	}
	return depgraph.InstanceDecl{}, false, nil
}

func (r *stubRepo) LookupGroups(path depgraph.Path) ([]depgraph.GroupDecl, error) {
	return r.groups[path], nil
}

func (r *stubRepo) LookupUnitConfig(path depgraph.Path) (unit.Type, unit.MethodSet, bool, error) {
	cfg, ok := r.units[path]
	return cfg.typ, cfg.methods, ok, nil
}

func (r *stubRepo) Services() ([]depgraph.Path, error) {
	return r.services, nil
}

func simpleMethods() unit.MethodSet {
	var ms unit.MethodSet
	ms[unit.MStart] = unit.Command{Path: "/bin/true"}
	return ms
}

func TestManagerBringsUpEligibleUnitAtStart(t *testing.T) {
	g := NewGomegaWithT(t)

	repo := newStubRepo()
	webPath := depgraph.Path{Service: "web", Instance: "i0"}
	repo.addService(depgraph.ServiceDecl{
		Path: depgraph.Path{Service: "web"},
		Instances: []depgraph.InstanceDecl{
			{Path: webPath},
		},
	})
	repo.addUnit(webPath, unit.Simple, simpleMethods())

	tracker := fake.New()
	m, err := manager.New(manager.Config{Repository: repo, Tracker: tracker})
	g.Expect(err).NotTo(HaveOccurred())
	tracker.Sink = m

	g.Expect(m.Build()).To(Succeed())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Start()

	g.Eventually(func() unit.State {
		snap, ok := m.Facade().Unit(webPath)
		if !ok {
			return unit.Uninitialised
		}
		return snap.State
	}, time.Second, 5*time.Millisecond).Should(Equal(unit.Online))
}

func TestManagerCascadesMainPIDExitToOffline(t *testing.T) {
	g := NewGomegaWithT(t)

	repo := newStubRepo()
	webPath := depgraph.Path{Service: "web", Instance: "i0"}
	repo.addService(depgraph.ServiceDecl{
		Path: depgraph.Path{Service: "web"},
		Instances: []depgraph.InstanceDecl{
			{Path: webPath},
		},
	})
	repo.addUnit(webPath, unit.Simple, simpleMethods())

	tracker := fake.New()
	m, err := manager.New(manager.Config{Repository: repo, Tracker: tracker})
	g.Expect(err).NotTo(HaveOccurred())
	tracker.Sink = m

	g.Expect(m.Build()).To(Succeed())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Start()
	g.Eventually(func() unit.State {
		snap, _ := m.Facade().Unit(webPath)
		return snap.State
	}, time.Second, 5*time.Millisecond).Should(Equal(unit.Online))

	_, ok := m.Facade().Unit(webPath)
	g.Expect(ok).To(BeTrue())
	g.Expect(tracker.ForkedCount()).To(Equal(1))

	// The fake tracker hands out sequential PIDs starting at 1001; the
	// unit's sole fork was its MStart method, so exactly one PID is live.
	liveBefore := 0
	for pid := 1000; pid < 1010; pid++ {
		if tracker.IsLive(pid) {
			liveBefore++
		}
	}
	g.Expect(liveBefore).To(Equal(1))

	var livePID int
	for pid := 1000; pid < 1010; pid++ {
		if tracker.IsLive(pid) {
			livePID = pid
		}
	}
	tracker.Exit(livePID, true)

	// An unrequested (crash) exit defaults to RestartOnAny and, since the
	// instance has no unmet dependencies, the whole Online->Offline->Online
	// cascade runs synchronously inside one dispatch (purge_and_target ->
	// Offline -> SC_OFFLINE's "unintended offline triggers a restart" rule
	// -> RequestOnline again), so Offline itself is never independently
	// observable here; what's externally visible is a second fork and the
	// unit settling back on Online.
	g.Eventually(func() int {
		return tracker.ForkedCount()
	}, time.Second, 5*time.Millisecond).Should(Equal(2))

	g.Eventually(func() unit.State {
		snap, _ := m.Facade().Unit(webPath)
		return snap.State
	}, time.Second, 5*time.Millisecond).Should(Equal(unit.Online))
}

func TestManagerRefusesWithoutCollaborators(t *testing.T) {
	g := NewGomegaWithT(t)

	_, err := manager.New(manager.Config{})
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("Repository"))

	_, err = manager.New(manager.Config{Repository: newStubRepo()})
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("Tracker"))
}
