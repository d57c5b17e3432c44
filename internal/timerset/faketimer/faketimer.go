// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package faketimer is a deterministic libs/unit.TimerSet for tests: timers
// never fire on their own, the test fires them explicitly.
package faketimer

import "time"

// Set is a fake timer set; the zero value is ready to use.
type Set struct {
	nextID int
	timers map[int]pending
}

type pending struct {
	data     interface{}
	callback func(interface{})
}

// New creates an empty Set.
func New() *Set {
	return &Set{timers: make(map[int]pending)}
}

// Add implements unit.TimerSet, ignoring the duration.
func (s *Set) Add(_ time.Duration, data interface{}, callback func(interface{})) int {
	if s.timers == nil {
		s.timers = make(map[int]pending)
	}
	s.nextID++
	id := s.nextID
	s.timers[id] = pending{data: data, callback: callback}
	return id
}

// Del implements unit.TimerSet.
func (s *Set) Del(id int) {
	delete(s.timers, id)
}

// Pending returns the number of unfired timers.
func (s *Set) Pending() int {
	return len(s.timers)
}

// Fire invokes and forgets the timer registered under id, if any. Returns
// false if no such timer is pending.
func (s *Set) Fire(id int) bool {
	p, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	p.callback(p.data)
	return true
}

// FireOldest fires the lowest still-pending id, the deterministic "next
// timer to expire" a test usually wants. Returns the id fired, or 0 if none
// are pending.
func (s *Set) FireOldest() int {
	oldest := 0
	for id := range s.timers {
		if oldest == 0 || id < oldest {
			oldest = id
		}
	}
	if oldest != 0 {
		s.Fire(oldest)
	}
	return oldest
}
