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

package isolate

import (
	"sync"

	"github.com/squawkvm/squawk/object"
)

// MonitorStats receives the process-wide monitor counters spec §4.H ties
// to the globals table ("GC.monitorExitCount / monitorReleaseCount...
// exposed through the globals table"). cmd/squawk wires a concrete
// implementation (monitorStatsAdapter) backed by the metrics package's
// MonitorExitCount/MonitorReleaseCount counters; tests and any caller that
// doesn't care about the counters pass nil and get noopStats.
type MonitorStats interface {
	IncExitCount()
	IncReleaseCount()
}

type noopStats struct{}

func (noopStats) IncExitCount()    {}
func (noopStats) IncReleaseCount() {}

// monitorEntry is one object's lazily-allocated monitor: a real mutex
// guarding mutual exclusion, plus a waiter count used to decide when the
// entry itself can be freed.
type monitorEntry struct {
	mu      sync.Mutex
	waiters int
}

// Monitors implements interp.MonitorManager with SMARTMONITORS semantics
// (spec §4.H): "monitors are allocated lazily on first contention and
// released when no thread waits; uncontended monitorenter/monitorexit are
// a bit flip." A monitor here is a plain sync.Mutex minted into a side
// table only while at least one thread holds or waits for it -- the same
// lazy-allocate/free shape spec §4.H describes, realized with Go's own
// mutex as the "bit flip" rather than a hand-rolled spinlock.
//
// interp.MonitorManager's Enter/Exit signature carries no caller identity,
// so this cannot enforce a real JVM monitor's reentrant-same-thread rule
// (a thread re-entering its own held monitor would deadlock here exactly
// as it would against a bare sync.Mutex); documented in DESIGN.md as a
// scope limit inherited from the already-finalized interp package, not
// reintroduced by this one.
type Monitors struct {
	stats MonitorStats

	mu      sync.Mutex
	entries map[object.Oop]*monitorEntry
}

// NewMonitors builds a Monitors reporting into stats (nil is fine).
func NewMonitors(stats MonitorStats) *Monitors {
	if stats == nil {
		stats = noopStats{}
	}
	return &Monitors{stats: stats, entries: make(map[object.Oop]*monitorEntry)}
}

func (m *Monitors) entryFor(o object.Oop) *monitorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[o]
	if !ok {
		e = &monitorEntry{}
		m.entries[o] = e
	}
	e.waiters++
	return e
}

// Enter implements interp.MonitorManager.
func (m *Monitors) Enter(o object.Oop) error {
	e := m.entryFor(o)
	e.mu.Lock()
	return nil
}

// Exit implements interp.MonitorManager. A monitor with no remaining
// waiters is removed from the table (SMARTMONITORS release), and the
// release is reflected in the process-wide stats.
func (m *Monitors) Exit(o object.Oop) error {
	m.mu.Lock()
	e, ok := m.entries[o]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	e.waiters--
	released := e.waiters == 0
	if released {
		delete(m.entries, o)
	}
	m.mu.Unlock()

	e.mu.Unlock()
	m.stats.IncExitCount()
	if released {
		m.stats.IncReleaseCount()
	}
	return nil
}
