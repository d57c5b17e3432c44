// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package realtimer is the production libs/unit.TimerSet: each Add schedules
// a time.AfterFunc and posts the callback onto the manager's single event
// thread, never invoking it inline from the timer goroutine.
package realtimer

import (
	"sync"
	"time"
)

// Poster serializes a func onto the caller's single event loop;
// internal/manager implements this over its event channel.
type Poster interface {
	Post(func())
}

// Set is a libs/unit.TimerSet backed by time.AfterFunc.
type Set struct {
	poster Poster

	mu     sync.Mutex
	nextID int
	timers map[int]*time.Timer
}

// New creates a Set that posts expired timers through poster.
func New(poster Poster) *Set {
	return &Set{poster: poster, timers: make(map[int]*time.Timer)}
}

// Add implements unit.TimerSet.
func (s *Set) Add(d time.Duration, data interface{}, callback func(interface{})) int {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.poster.Post(func() { callback(data) })
	})

	s.mu.Lock()
	s.timers[id] = t
	s.mu.Unlock()
	return id
}

// Del implements unit.TimerSet.
func (s *Set) Del(id int) {
	s.mu.Lock()
	t, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok {
		t.Stop()
	}
}
