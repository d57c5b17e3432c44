// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package unit_test

import (
	"os"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/lf-edge/s16d/libs/depgraph"
	"github.com/lf-edge/s16d/libs/unit"
)

// fakeTimers is a deterministic unit.TimerSet: timers only fire when the
// test explicitly calls Fire, never on a wall-clock goroutine.
type fakeTimers struct {
	nextID    int
	callbacks map[int]func(interface{})
	data      map[int]interface{}
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{
		callbacks: make(map[int]func(interface{})),
		data:      make(map[int]interface{}),
	}
}

func (f *fakeTimers) Add(_ time.Duration, data interface{}, callback func(interface{})) int {
	f.nextID++
	id := f.nextID
	f.callbacks[id] = callback
	f.data[id] = data
	return id
}

func (f *fakeTimers) Del(id int) {
	delete(f.callbacks, id)
	delete(f.data, id)
}

// Fire invokes the callback registered under id, as if it had expired, and
// forgets it (mirroring a one-shot timer).
func (f *fakeTimers) Fire(id int) {
	cb, ok := f.callbacks[id]
	if !ok {
		return
	}
	data := f.data[id]
	delete(f.callbacks, id)
	delete(f.data, id)
	cb(data)
}

func (f *fakeTimers) Pending() int {
	return len(f.callbacks)
}

// fakeTracker is a deterministic unit.Tracker: ForkAndWait never actually
// execs anything, it just hands out incrementing fake PIDs. Tests drive
// exits by calling Machine.HandleProcessEvent directly.
type fakeTracker struct {
	nextPID     int
	forkErr     error
	forked      []unit.Command
	watched     []int
	disregarded []int
	signalled   []signalCall
}

type signalCall struct {
	pid int
	sig os.Signal
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{nextPID: 100}
}

func (f *fakeTracker) ForkAndWait(cmd unit.Command, _ func()) (int, error) {
	f.forked = append(f.forked, cmd)
	if f.forkErr != nil {
		return 0, f.forkErr
	}
	f.nextPID++
	return f.nextPID, nil
}

func (f *fakeTracker) Watch(pid int)      { f.watched = append(f.watched, pid) }
func (f *fakeTracker) Disregard(pid int)  { f.disregarded = append(f.disregarded, pid) }
func (f *fakeTracker) Signal(pid int, sig os.Signal) error {
	f.signalled = append(f.signalled, signalCall{pid, sig})
	return nil
}

func notifyUnit(path string) (*unit.Unit, unit.MethodSet) {
	methods := unit.MethodSet{}
	methods[unit.MStart] = unit.Command{Path: "/bin/svc-start"}
	methods[unit.MPostStart] = unit.Command{Path: "/bin/svc-poststart"}
	u := unit.NewUnit(depgraph.Path{Service: path, Instance: "default"}, unit.Notify, methods)
	return u, methods
}

// TestS6NotifyReadinessCancelsTimerEntersPostStart: a Notify-type unit in
// Start sends readiness before its timer fires, and the machine cancels
// the timer and advances to PostStart.
func TestS6NotifyReadinessCancelsTimerEntersPostStart(test *testing.T) {
	g := NewGomegaWithT(test)

	u, _ := notifyUnit("net/notify-svc")
	timers := newFakeTimers()
	tracker := newFakeTracker()
	m := unit.NewMachine(u, tracker, timers, nil)

	m.RequestOnline()
	g.Expect(u.State).To(Equal(unit.Start))
	g.Expect(timers.Pending()).To(Equal(1))

	m.HandleReadiness()

	g.Expect(u.State).To(Equal(unit.PostStart))
	// the Start timer was cancelled; PostStart's own method arms a fresh one.
	g.Expect(timers.Pending()).To(Equal(1))
}

// TestS6NotifyReadinessTimeoutRetriesThenMaintenance covers the rest of S6:
// absent readiness, the unit retries up to maxMethodFailures times before
// giving up and entering Maintenance.
func TestS6NotifyReadinessTimeoutRetriesThenMaintenance(test *testing.T) {
	g := NewGomegaWithT(test)

	u, _ := notifyUnit("net/notify-svc")
	timers := newFakeTimers()
	tracker := newFakeTracker()
	m := unit.NewMachine(u, tracker, timers, nil)

	m.RequestOnline()
	// no prestart method declared: falls straight through to Start, whose
	// method timer is what we'll let expire repeatedly below.
	g.Expect(u.State).To(Equal(unit.Start))

	for attempt := 0; attempt < 5; attempt++ {
		g.Expect(timers.Pending()).To(Equal(1), "attempt %d", attempt)
		for id := range timers.callbacks {
			timers.Fire(id)
			break
		}
		g.Expect(u.State).ToNot(Equal(unit.Maintenance), "attempt %d", attempt)

		// the timed-out method's pid is still tracked; draining it lets
		// the stop cascade fall through to the scheduled PreStart retry.
		pid := u.MainPID
		g.Expect(pid).ToNot(Equal(0))
		m.HandleProcessEvent(unit.ProcessEvent{PID: pid, Kind: unit.EventExit, Abnormal: true})
		g.Expect(u.State).To(Equal(unit.Start), "attempt %d", attempt)
	}

	// sixth timeout pushes fail_cnt past the limit: the cascade still has
	// to drain the lingering pid before landing on the Maintenance target.
	g.Expect(timers.Pending()).To(Equal(1))
	for id := range timers.callbacks {
		timers.Fire(id)
		break
	}
	g.Expect(u.State).To(Equal(unit.StopTerm))

	pid := u.MainPID
	m.HandleProcessEvent(unit.ProcessEvent{PID: pid, Kind: unit.EventExit, Abnormal: true})
	g.Expect(u.State).To(Equal(unit.Maintenance))
}

// TestProperty8PreStartExhaustsRetriesInSixAttempts covers property 8: a
// persistently failing PreStart method reaches Maintenance in exactly 6
// failed attempts (fail_cnt > 5).
func TestProperty8PreStartExhaustsRetriesInSixAttempts(test *testing.T) {
	g := NewGomegaWithT(test)

	methods := unit.MethodSet{}
	methods[unit.MPreStart] = unit.Command{Path: "/bin/pre"}
	u := unit.NewUnit(depgraph.Path{Service: "app/flaky", Instance: "default"}, unit.Simple, methods)
	timers := newFakeTimers()
	tracker := newFakeTracker()
	m := unit.NewMachine(u, tracker, timers, nil)

	m.RequestOnline()
	g.Expect(u.State).To(Equal(unit.PreStart))

	attempts := 0
	for u.State != unit.Maintenance {
		attempts++
		g.Expect(attempts).To(BeNumerically("<=", 6), "should reach maintenance within 6 attempts")

		pid := u.MainPID
		g.Expect(pid).ToNot(Equal(0))
		m.HandleProcessEvent(unit.ProcessEvent{PID: pid, Kind: unit.EventExit, Abnormal: true})

		if u.State == unit.Maintenance {
			break
		}
		// a retry was scheduled (methodRetryDelay); fire it to re-enter
		// PreStart and fork again.
		for id := range timers.callbacks {
			timers.Fire(id)
			break
		}
	}

	g.Expect(attempts).To(Equal(6))
	g.Expect(u.State).To(Equal(unit.Maintenance))
}

// TestStopCascadeProceedsThroughTermAndKill verifies that once the stop
// method's own pid exits, the cascade proceeds through StopTerm/StopKill
// independent of any other tracked pids, and that stray exits during the
// cascade never reach the method-failure/retry logic.
func TestStopCascadeProceedsThroughTermAndKill(test *testing.T) {
	g := NewGomegaWithT(test)

	methods := unit.MethodSet{}
	methods[unit.MStop] = unit.Command{Path: "/bin/stop"}
	u := unit.NewUnit(depgraph.Path{Service: "app/svc", Instance: "default"}, unit.Simple, methods)
	u.State = unit.Online
	u.MainPID = 200
	u.PIDs[200] = struct{}{}
	timers := newFakeTimers()
	tracker := newFakeTracker()
	m := unit.NewMachine(u, tracker, timers, nil)

	m.RequestOffline(depgraph.RestartOnNone)
	g.Expect(u.State).To(Equal(unit.Stop))

	stopPID := u.SecondaryPID
	g.Expect(stopPID).ToNot(Equal(0))

	m.HandleProcessEvent(unit.ProcessEvent{PID: stopPID, Kind: unit.EventExit, Abnormal: true})
	g.Expect(u.State).To(Equal(unit.StopTerm))
	g.Expect(u.FailCnt[unit.MStop]).To(Equal(0), "stop-cascade exits must never feed the failure counter")

	m.HandleProcessEvent(unit.ProcessEvent{PID: u.MainPID, Kind: unit.EventExit, Abnormal: true})
	g.Expect(u.State).To(Equal(unit.Offline))
}
