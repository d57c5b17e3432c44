// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package restarter_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/restarter"
)

func buildS1(t *WithT) (*depgraph.Graph, *depgraph.Builder, depgraph.Path, depgraph.Path) {
	g := depgraph.NewGraph()
	b := depgraph.NewBuilder(g)
	aiPath := depgraph.Path{Service: "a", Instance: "i"}
	bjPath := depgraph.Path{Service: "b", Instance: "j"}
	b.InstallService(depgraph.ServiceDecl{
		Path:      depgraph.Path{Service: "a"},
		Instances: []depgraph.InstanceDecl{{Path: aiPath}},
	})
	b.InstallService(depgraph.ServiceDecl{
		Path:      depgraph.Path{Service: "b"},
		Instances: []depgraph.InstanceDecl{{Path: bjPath}},
	})
	groups := map[depgraph.Path][]depgraph.GroupDecl{
		aiPath: {{Kind: depgraph.RequireAll, Targets: []depgraph.Path{bjPath}}},
	}
	lookup := func(p depgraph.Path) []depgraph.GroupDecl { return groups[p] }
	t.Expect(b.Setup(aiPath, lookup)).To(Succeed())
	t.Expect(b.Setup(bjPath, lookup)).To(Succeed())
	return g, b, aiPath, bjPath
}

func TestS1PropagationRestartsDependent(test *testing.T) {
	t := NewGomegaWithT(test)
	g, _, aiPath, bjPath := buildS1(t)

	var transitions []restarter.SubType
	var targets []depgraph.Path
	eng := restarter.NewEngine(g, nil)
	eng.OnUnitTransition = func(p depgraph.Path, sub restarter.SubType, _ depgraph.RestartOn) {
		targets = append(targets, p)
		transitions = append(transitions, sub)
		// Simulate the unit machine reporting the observed transition back.
		eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: sub, Path: p})
	}

	eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOnline, Path: bjPath})
	eng.Drain()

	ai := g.MustVertex(aiPath)
	t.Expect(ai.State).To(Equal(depgraph.StateOnline))
	t.Expect(targets).To(ContainElement(aiPath))
	t.Expect(transitions).To(ContainElement(restarter.SCOnline))
}

func TestS5UnitRestartOnUnexpectedOffline(test *testing.T) {
	t := NewGomegaWithT(test)
	g, _, aiPath, bjPath := buildS1(t)

	bj := g.MustVertex(bjPath)
	ai := g.MustVertex(aiPath)
	bj.State = depgraph.StateOnline
	ai.State = depgraph.StateOnline

	var restartRequested bool
	eng := restarter.NewEngine(g, nil)
	eng.OnUnitTransition = func(p depgraph.Path, sub restarter.SubType, _ depgraph.RestartOn) {
		if p == aiPath && sub == restarter.SCOnline {
			restartRequested = true
		}
	}

	// The unit machine reports an unexpected offline for a:i (main PID
	// exited abnormally while Online); a:i's prerequisites are still met,
	// so the engine must immediately request a restart.
	eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOffline, Path: aiPath})
	eng.Drain()

	t.Expect(restartRequested).To(BeTrue())
}

func TestDuplicateSCOnlineIsNoop(test *testing.T) {
	t := NewGomegaWithT(test)
	g, _, aiPath, bjPath := buildS1(t)

	var count int
	eng := restarter.NewEngine(g, nil)
	eng.OnUnitTransition = func(depgraph.Path, restarter.SubType, depgraph.RestartOn) {
		count++
	}
	eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOnline, Path: bjPath})
	eng.Drain()
	firstCount := count
	t.Expect(firstCount).To(BeNumerically(">", 0))

	// bj is already Online; a second SC_ONLINE must not re-emit anything.
	eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOnline, Path: bjPath})
	eng.Drain()
	t.Expect(count).To(Equal(firstCount))
	_ = aiPath
}

func TestADisableAEnableRoundTrip(test *testing.T) {
	t := NewGomegaWithT(test)
	g := depgraph.NewGraph()
	b := depgraph.NewBuilder(g)
	aiPath := depgraph.Path{Service: "a", Instance: "i"}
	b.InstallService(depgraph.ServiceDecl{
		Path:      depgraph.Path{Service: "a"},
		Instances: []depgraph.InstanceDecl{{Path: aiPath}},
	})
	lookup := func(depgraph.Path) []depgraph.GroupDecl { return nil }
	t.Expect(b.Setup(aiPath, lookup)).To(Succeed())

	ai := g.MustVertex(aiPath)
	ai.State = depgraph.StateOnline

	var offlineRequested, onlineRequested bool
	eng := restarter.NewEngine(g, nil)
	eng.OnUnitTransition = func(p depgraph.Path, sub restarter.SubType, reason depgraph.RestartOn) {
		switch sub {
		case restarter.SCOffline:
			offlineRequested = true
			eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOffline, Path: p, Reason: reason})
		case restarter.SCOnline:
			onlineRequested = true
			eng.Enqueue(restarter.Note{Kind: restarter.KindStateChange, Sub: restarter.SCOnline, Path: p, Reason: reason})
		}
	}

	eng.Enqueue(restarter.Note{Kind: restarter.KindAdminReq, Sub: restarter.ADisable, Path: aiPath})
	eng.Drain()
	t.Expect(offlineRequested).To(BeTrue())
	t.Expect(ai.State).To(Equal(depgraph.StateDisabled))
	t.Expect(ai.ToOffline).To(BeFalse())
	t.Expect(ai.IsEnabled).To(BeFalse())

	eng.Enqueue(restarter.Note{Kind: restarter.KindAdminReq, Sub: restarter.AEnable, Path: aiPath})
	eng.Drain()
	t.Expect(onlineRequested).To(BeTrue())
	t.Expect(ai.IsEnabled).To(BeTrue())
	t.Expect(ai.ToOffline).To(BeFalse())
	t.Expect(ai.ToDisable).To(BeFalse())
	t.Expect(ai.State).To(Equal(depgraph.StateOnline))
}
