// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"os"
	"time"

	"github.com/lf-edge/s16d/libs/depgraph"
)

// Machine drives a single Unit's lifecycle state machine. It owns no
// goroutines of its own: every exported method is expected to run on the
// single event thread, invoked by internal/manager either for a process,
// readiness or timer event from its event loop or for a transition the
// restarter engine requested.
type Machine struct {
	u       *Unit
	tracker Tracker
	timers  TimerSet
	log     Logger

	// IsRepository marks the unit whose Online transition is the
	// repository collaborator itself coming up: if this unit is the
	// repository itself, its Online entry action notifies the
	// manager").
	IsRepository bool

	// OnOnline/OnOffline report observed transitions back to the
	// restarter engine as SC_ONLINE/SC_OFFLINE notes. internal/manager
	// wires these to restarter.Engine.Enqueue. OnOffline carries the
	// restart-on intensity of the request that caused the stop, defaulting
	// to RestartOnAny for unrequested (crash-driven) stops so propagation
	// never silently swallows them.
	OnOnline  func()
	OnOffline func(reason depgraph.RestartOn)
	// OnMaintenance reports that the unit gave up and requires
	// administrative intervention.
	OnMaintenance func()
	// OnRepositoryOnline fires once, when IsRepository's unit first
	// reaches Online.
	OnRepositoryOnline func()

	pendingOfflineReason depgraph.RestartOn
	repositoryNotified   bool
}

// NewMachine wraps u for lifecycle driving. log may be nil.
func NewMachine(u *Unit, tracker Tracker, timers TimerSet, log Logger) *Machine {
	if log == nil {
		log = nopLogger{}
	}
	return &Machine{u: u, tracker: tracker, timers: timers, log: log}
}

// Unit returns the underlying unit (read access for the admin facade).
func (m *Machine) Unit() *Unit {
	return m.u
}

// RequestOnline asks the unit to come up. No-op if it is already up or in
// the process of coming up.
func (m *Machine) RequestOnline() {
	switch m.u.State {
	case Offline, Uninitialised:
		m.enter(PreStart)
	}
}

// RequestOffline asks the unit to go down. reason is the restart-on
// intensity that triggered the request, carried through to OnOffline.
func (m *Machine) RequestOffline(reason depgraph.RestartOn) {
	if m.u.State == Offline || m.u.State == Uninitialised || m.u.State == Maintenance {
		return
	}
	m.pendingOfflineReason = reason
	m.u.Target = Offline
	m.purgeAndTarget()
}

// HandleProcessEvent applies a child-process exit or spawn event.
func (m *Machine) HandleProcessEvent(ev ProcessEvent) {
	switch ev.Kind {
	case EventBirth:
		if _, tracked := m.u.PIDs[ev.PID]; !tracked {
			m.tracker.Watch(ev.PID)
			m.u.trackPID(ev.PID)
		}
		return
	case EventExit:
		m.u.untrackPID(ev.PID)
	}

	isMain := ev.PID == m.u.MainPID
	isSecondary := ev.PID == m.u.SecondaryPID

	// While the stop cascade is active, every tracked PID exiting is
	// expected; it only ever feeds the generic "pids drained" advance,
	// never the method-failure/retry logic below (that logic is for
	// PreStart/Start/PostStart, not for the deliberate term/kill phase).
	if m.isStopping() {
		if isMain || isSecondary {
			m.cancelTimer()
		}
		// The Stop method's own pid finishing (pass or fail) always
		// cascades forward to the signal-based phases, independent of
		// whatever other PIDs the unit still has tracked.
		if m.u.State == Stop && isSecondary {
			m.enter(StopTerm)
			return
		}
		if !m.u.hasPIDs() {
			m.advanceStopCascadeOnDrain()
		}
		return
	}

	switch {
	case isMain:
		m.cancelTimer()
		if ev.Abnormal {
			m.onMainAbnormalExit()
		} else {
			m.onMainNormalExit()
		}
	case isSecondary && m.u.State == PostStart:
		m.cancelTimer()
		if ev.Abnormal {
			m.onMethodFailure(PostStart)
		} else {
			m.enter(Online)
		}
	}
}

// isStopping reports whether the unit is anywhere in the stop cascade.
func (m *Machine) isStopping() bool {
	switch m.u.State {
	case Stop, StopTerm, StopKill:
		return true
	}
	return false
}

// advanceStopCascadeOnDrain implements "If stopping and pids is empty:
// Stop->StopTerm on exit, StopTerm->StopKill on exit" (and the symmetric
// StopKill->target case, since StopKill's own entry action only runs the
// "advance to target" check when freshly entered, not when it was already
// the current state).
func (m *Machine) advanceStopCascadeOnDrain() {
	switch m.u.State {
	case Stop:
		m.enter(StopTerm)
	case StopTerm:
		m.enter(StopKill)
	case StopKill:
		m.enterTargetOrOffline()
	}
}

// onMainAbnormalExit implements the abnormal-exit branch of "If exiting
// PID is main_pid".
func (m *Machine) onMainAbnormalExit() {
	if m.u.State == Online {
		m.pendingOfflineReason = depgraph.RestartOnAny
		m.u.Target = Offline
		m.purgeAndTarget()
		return
	}
	m.onMethodFailure(m.u.State)
}

// onMainNormalExit implements the normal-exit branch of "If exiting PID is
// main_pid".
func (m *Machine) onMainNormalExit() {
	switch {
	case m.u.State == PreStart:
		m.enter(Start)
	case (m.u.State == Online || m.u.State == PostStart) && m.u.Type == Simple:
		m.pendingOfflineReason = depgraph.RestartOnAny
		m.u.Target = Offline
		m.enter(Stop)
	case (m.u.Type == Forks || m.u.Type == Notify) && !m.u.hasPIDs():
		m.pendingOfflineReason = depgraph.RestartOnAny
		m.u.Target = Offline
		m.enter(Stop)
	}
}

// onMethodFailure implements the per-method failure counter and
// retry/Maintenance decision shared by abnormal main-pid exits and
// abnormal secondary-pid (PostStart) exits.
func (m *Machine) onMethodFailure(state State) {
	idx := methodSlotFor(state)
	m.u.FailCnt[idx]++
	if m.u.FailCnt[idx] > maxMethodFailures {
		m.log.Errorf("unit %s: method for state %s failed %d times, entering maintenance",
			m.u.Path, state, m.u.FailCnt[idx])
		m.u.Target = Maintenance
		m.purgeAndTarget()
		if m.OnMaintenance != nil {
			m.OnMaintenance()
		}
		return
	}
	m.retryStart(methodRetryDelay)
}

// methodSlotFor maps a lifecycle State to the Method fail-counter slot it
// failed in.
func methodSlotFor(state State) Method {
	switch state {
	case PreStart:
		return MPreStart
	case Start:
		return MStart
	case PostStart:
		return MPostStart
	case Stop, StopTerm, StopKill:
		return MStop
	}
	return MPreStart
}

// HandleTimer applies a timeout-in-state event.
func (m *Machine) HandleTimer() {
	m.u.TimerID = 0
	switch m.u.State {
	case Stop:
		m.enter(StopTerm)
	case StopTerm:
		// StopTerm never advances itself on timeout; that escalation is
		// left disabled pending an explicit kill policy, so this just
		// logs and holds rather than re-arming.
		m.log.Warnf("unit %s: stopterm timed out, holding per policy", m.u.Path)
	case StopKill:
		m.log.Errorf("unit %s: stopkill timed out, invariant violation, forcing target", m.u.Path)
		m.enterTargetOrOffline()
	case PreStart, Start:
		m.u.FailCnt[MPreStart]++
		if m.u.FailCnt[MPreStart] > maxMethodFailures {
			m.u.Target = Maintenance
			m.purgeAndTarget()
			if m.OnMaintenance != nil {
				m.OnMaintenance()
			}
			return
		}
		m.u.Target = PreStart
		m.purgeAndTarget()
	}
}

// HandleReadiness applies a readiness notification: only meaningful in
// state Start; cancels the timer and advances to PostStart.
func (m *Machine) HandleReadiness() {
	if m.u.State != Start {
		return
	}
	m.cancelTimer()
	m.enter(PostStart)
}

// purgeAndTarget: if any PIDs remain, enter Stop (which cascades down
// through term/kill); else enter target.
func (m *Machine) purgeAndTarget() {
	if m.u.hasPIDs() {
		m.enter(Stop)
		return
	}
	m.enterTargetOrOffline()
}

// enterTargetOrOffline enters u.Target, treating the None sentinel as
// Offline (idle, awaiting whatever scheduled a delayed retry).
func (m *Machine) enterTargetOrOffline() {
	if m.u.Target == None {
		m.enter(Offline)
		return
	}
	m.enter(m.u.Target)
}

// retryStart: target <- None, purgeAndTarget, then schedule a restart
// callback after d that enters PreStart.
func (m *Machine) retryStart(d time.Duration) {
	m.u.Target = None
	m.purgeAndTarget()
	m.cancelMethRestartTimer()
	m.u.MethRestartTimerID = m.timers.Add(d, nil, func(interface{}) {
		m.u.MethRestartTimerID = 0
		m.enter(PreStart)
	})
}

func (m *Machine) cancelTimer() {
	if m.u.TimerID != 0 {
		m.timers.Del(m.u.TimerID)
		m.u.TimerID = 0
	}
}

func (m *Machine) cancelMethRestartTimer() {
	if m.u.MethRestartTimerID != 0 {
		m.timers.Del(m.u.MethRestartTimerID)
		m.u.MethRestartTimerID = 0
	}
}

// signalAll sends sig to main_pid then to every tracked PID, matching the
// StopTerm/StopKill entry actions' "send signal to main_pid then to every
// tracked PID" ordering.
func (m *Machine) signalAll(sig os.Signal) {
	if m.u.MainPID != 0 {
		_ = m.tracker.Signal(m.u.MainPID, sig)
	}
	for pid := range m.u.PIDs {
		_ = m.tracker.Signal(pid, sig)
	}
}
