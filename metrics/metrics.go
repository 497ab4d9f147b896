// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics holds the handful of process-wide counters the core
// exposes: the interpreter's back-branch watchdog counter and the
// scheduler's monitor release counters (see spec §4.H, §8).
package metrics

import "sync/atomic"

// Counter is a monotonically non-decreasing process-wide counter.
type Counter struct {
	v int64
}

// NewRegisteredCounter mirrors the teacher's metrics constructor name; the
// registry argument is accepted for call-site compatibility but unused,
// since this core has no external metrics sink to register against.
func NewRegisteredCounter(name string, _ interface{}) *Counter {
	return &Counter{}
}

func (c *Counter) Inc(delta int64) { atomic.AddInt64(&c.v, delta) }
func (c *Counter) Count() int64    { return atomic.LoadInt64(&c.v) }

var (
	// BranchCount is incremented by the interpreter on every back-branch,
	// enabling tracing and watchdog hooks (spec §4.G).
	BranchCount = NewRegisteredCounter("interp/branchCount", nil)

	// MonitorExitCount and MonitorReleaseCount are the process-wide
	// statistics the scheduler exposes alongside the globals table
	// (spec §4.H).
	MonitorExitCount    = NewRegisteredCounter("isolate/monitorExitCount", nil)
	MonitorReleaseCount = NewRegisteredCounter("isolate/monitorReleaseCount", nil)
)
