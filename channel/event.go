// Copyright 2015 The go-probeum Authors
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

package channel

import (
	"sync"
	"sync/atomic"
	"time"
)

// nextEventID mints spec §3's "unique integer issued by the channel layer
// to a waiting thread."
var nextEventID int64

// eventHub is the process-wide FIFO event queue GLOBAL_GETEVENT/
// GLOBAL_WAITFOREVENT drain (spec §4.I/§5 "Event delivery is ordered per
// channel (FIFO)"). A plain slice behind a mutex is enough: the only
// consumers are green-thread goroutines blocking in Wait, polled on a
// short ticker the same way Scheduler's timer loop polls its wake-time
// heap, rather than a condition variable -- simpler to reason about
// alongside a hard deadline, at the cost of sub-tick latency that does
// not matter at channel-I/O granularity.
type eventHub struct {
	mu      sync.Mutex
	pending []int64
}

func newEventHub() *eventHub {
	return &eventHub{}
}

// Post raises a new event (e.g. a completed blocking channel op, or the
// GUI-in repaint event on unhibernate) and returns its id.
func (h *eventHub) Post() int64 {
	id := atomic.AddInt64(&nextEventID, 1)
	h.mu.Lock()
	h.pending = append(h.pending, id)
	h.mu.Unlock()
	return id
}

// Len reports the current queue depth, for the monitor package's
// introspection endpoint.
func (h *eventHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Get is GLOBAL_GETEVENT: a non-blocking poll, 0 if nothing is pending.
func (h *eventHub) Get() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 {
		return 0
	}
	id := h.pending[0]
	h.pending = h.pending[1:]
	return id
}

// Wait is GLOBAL_WAITFOREVENT: blocks until an event is posted or timeout
// elapses, returning 0 on timeout (spec §4.I "Result protocol"; §5
// "Cancellation/timeouts": a 64-bit millisecond timeout, overflow clamped
// to max-long, handled by the caller packing timeoutLo/timeoutHi).
func (h *eventHub) Wait(timeout time.Duration) int64 {
	if id := h.Get(); id != 0 {
		return id
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if id := h.Get(); id != 0 {
			return id
		}
		if !time.Now().Before(deadline) {
			return 0
		}
	}
	return 0
}
