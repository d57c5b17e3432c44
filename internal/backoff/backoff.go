// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

// Package backoff implements the exponential retry schedule the repository
// collaborator applies to its own failures, external to the graph/machine
// core.
package backoff

import "time"

// Policy is an exponential-backoff schedule with a cap, grounded on the
// reconciler manager's calculateBackoff.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
}

// Default mirrors the interval a config-reload loop can tolerate: quick
// enough to recover from a blip, capped well short of an operator staring
// at a stuck daemon.
var Default = Policy{Initial: 250 * time.Millisecond, Max: 30 * time.Second}

// Delay returns the wait before retry attempt (1-indexed): Initial*2^(attempt-1),
// capped at Max. attempt <= 0 is treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	d := p.Initial << uint(attempt-1)
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}
