// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"syscall"
	"time"
)

// enter runs the entry action for state and updates
// u.State. It is the only place in the machine that assigns m.u.State.
func (m *Machine) enter(state State) {
	m.u.State = state
	switch state {
	case PreStart:
		m.enterPreStart()
	case Start:
		m.enterStart()
	case PostStart:
		m.enterPostStart()
	case Online:
		m.enterOnline()
	case Stop:
		m.enterStop()
	case StopTerm:
		m.enterStopTerm()
	case StopKill:
		m.enterStopKill()
	case Maintenance:
		m.log.Errorf("unit %s: entering maintenance", m.u.Path)
	case Offline:
		if m.OnOffline != nil {
			m.OnOffline(m.pendingOfflineReason)
		}
	}
}

func (m *Machine) enterPreStart() {
	cmd := m.u.Methods[MPreStart]
	if cmd.IsZero() {
		m.enter(Start)
		return
	}
	m.armTimer(preStartTimeout)
	pid, err := m.forkMethod(MPreStart, cmd)
	if err != nil {
		m.log.Errorf("unit %s: prestart fork failed: %v", m.u.Path, err)
		m.cancelTimer()
		m.u.Target = Maintenance
		m.purgeAndTarget()
		return
	}
	m.u.MainPID = pid
	m.u.trackPID(pid)
}

func (m *Machine) enterStart() {
	cmd := m.u.Methods[MStart]
	if !cmd.IsZero() {
		pid, err := m.forkMethod(MStart, cmd)
		if err != nil {
			m.log.Errorf("unit %s: start fork failed: %v", m.u.Path, err)
			m.u.Target = Maintenance
			m.purgeAndTarget()
			return
		}
		m.u.MainPID = pid
		m.u.trackPID(pid)
	}
	switch m.u.Type {
	case Simple, Oneshot, Group:
		m.enter(PostStart)
	case Notify, Forks:
		m.armTimer(defaultMethodTimeout)
	}
}

func (m *Machine) enterPostStart() {
	cmd := m.u.Methods[MPostStart]
	if cmd.IsZero() {
		m.enter(Online)
		return
	}
	m.armTimer(defaultMethodTimeout)
	pid, err := m.forkMethod(MPostStart, cmd)
	if err != nil {
		m.log.Errorf("unit %s: poststart fork failed: %v", m.u.Path, err)
		m.cancelTimer()
		m.onMethodFailure(PostStart)
		return
	}
	m.u.SecondaryPID = pid
	m.u.trackPID(pid)
}

func (m *Machine) enterOnline() {
	m.u.FailCnt = [5]int{}
	if m.OnOnline != nil {
		m.OnOnline()
	}
	if m.IsRepository && !m.repositoryNotified {
		m.repositoryNotified = true
		if m.OnRepositoryOnline != nil {
			m.OnRepositoryOnline()
		}
	}
}

func (m *Machine) enterStop() {
	cmd := m.u.Methods[MStop]
	if cmd.IsZero() {
		m.enter(StopTerm)
		return
	}
	m.armTimer(defaultMethodTimeout)
	pid, err := m.forkMethod(MStop, cmd)
	if err != nil {
		m.log.Warnf("unit %s: stop fork failed, proceeding to term: %v", m.u.Path, err)
		m.cancelTimer()
		m.enter(StopTerm)
		return
	}
	m.u.SecondaryPID = pid
	m.u.trackPID(pid)
}

func (m *Machine) enterStopTerm() {
	if !m.u.hasPIDs() {
		m.enterTargetOrOffline()
		return
	}
	m.signalAll(syscall.SIGTERM)
	m.armTimer(defaultMethodTimeout)
}

func (m *Machine) enterStopKill() {
	if !m.u.hasPIDs() {
		m.enterTargetOrOffline()
		return
	}
	m.signalAll(syscall.SIGKILL)
	m.armTimer(defaultMethodTimeout)
}

// forkMethod forks cmd through the process tracker (which puts
// NOTIFY_SOCKET into the child's environment; no prefork hook is passed)
// and records the invocation in the unit's operation history.
func (m *Machine) forkMethod(method Method, cmd Command) (int, error) {
	start := time.Now()
	pid, err := m.tracker.ForkAndWait(cmd, nil)
	m.u.History.Record(HistoryEntry{
		Method:    method,
		PID:       pid,
		StartTime: start,
		Abnormal:  err != nil,
	})
	return pid, err
}

func (m *Machine) armTimer(d time.Duration) {
	m.cancelTimer()
	m.u.TimerID = m.timers.Add(d, nil, func(interface{}) {
		m.u.TimerID = 0
		m.HandleTimer()
	})
}
