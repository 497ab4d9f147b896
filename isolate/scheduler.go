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
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"

	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

var (
	errNoServiceHandler = errors.New("isolate: service operation has no handler")
	errSchedulerClosed  = errors.New("isolate: scheduler is closed")
)

// Scheduler owns every isolate in one VM process, the shared Registry and
// heap Allocator every isolate's threads run against, the lazily-allocated
// monitor table, and the two real background goroutines this core's
// cooperative model needs: the timer loop (spec §4.H's wake-time min-heap)
// and the service-thread loop (spec §4.H/§5's distinguished serviceThread
// for print/time/blocking-I/O operations not integrated with the
// cooperative loop). Grounded on `miner/worker.go`'s newWorker -- one
// struct holding every channel/loop a worker's goroutines coordinate
// through, started together and torn down together via exitCh.
type Scheduler struct {
	Registry *suite.Registry
	Alloc    *interp.Allocator
	Monitors *Monitors

	fallback interp.NativeInvoker

	mu       sync.Mutex
	isolates map[uuid.UUID]*Isolate

	timerMu sync.Mutex
	timers  timerHeap

	serviceSem *semaphore.Weighted
	serviceCh  chan *serviceRequest

	exitCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler builds a Scheduler and starts its timer and service-thread
// loops. fallback handles any InvokeNative call this package's own
// Thread/Isolate intrinsics (natives.go) don't recognize -- normally the
// channel package's own NativeInvoker (4.I); nil means "no such method" for
// anything not a thread intrinsic.
func NewScheduler(reg *suite.Registry, alloc *interp.Allocator, stats MonitorStats, fallback interp.NativeInvoker) *Scheduler {
	s := &Scheduler{
		Registry:   reg,
		Alloc:      alloc,
		Monitors:   NewMonitors(stats),
		fallback:   fallback,
		isolates:   make(map[uuid.UUID]*Isolate),
		serviceSem: semaphore.NewWeighted(1),
		serviceCh:  make(chan *serviceRequest),
		exitCh:     make(chan struct{}),
	}
	s.wg.Add(2)
	go s.timerLoop()
	go s.serviceLoop()
	return s
}

// Close stops the scheduler's background loops and waits for every running
// thread to finish its current top-level dispatch.
func (s *Scheduler) Close() {
	close(s.exitCh)
	s.wg.Wait()
}

// NewIsolate creates and registers a fresh isolate (spec §3 "new"); it is
// not yet running until Start is called on it.
func (s *Scheduler) NewIsolate(classpathURL, mainClass string, argv []string) *Isolate {
	iso := newIsolate(s, classpathURL, mainClass, argv)
	s.register(iso)
	return iso
}

func (s *Scheduler) register(iso *Isolate) {
	s.mu.Lock()
	s.isolates[iso.ID] = iso
	s.mu.Unlock()
}

// Isolate looks up a previously created or unhibernated isolate by id.
func (s *Scheduler) Isolate(id uuid.UUID) (*Isolate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iso, ok := s.isolates[id]
	return iso, ok
}

// Isolates returns a snapshot of every registered isolate, for the
// monitor package's introspection endpoint.
func (s *Scheduler) Isolates() []*Isolate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Isolate, 0, len(s.isolates))
	for _, iso := range s.isolates {
		out = append(out, iso)
	}
	return out
}

// --- timer loop ------------------------------------------------------------

// timerEntry is one pending Thread.sleep wakeup, ordered by wake time.
type timerEntry struct {
	wakeAt time.Time
	wake   chan struct{}
	index  int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].wakeAt.Before(h[j].wakeAt) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// sleepUntil blocks the calling goroutine for d, via the timer heap rather
// than a bare time.Sleep, so Thread.sleep's suspension is driven by the
// same wake-time-ordered structure spec §4.H names.
func (s *Scheduler) sleepUntil(d time.Duration) {
	e := &timerEntry{wakeAt: time.Now().Add(d), wake: make(chan struct{})}
	s.timerMu.Lock()
	heap.Push(&s.timers, e)
	s.timerMu.Unlock()

	select {
	case <-e.wake:
	case <-s.exitCh:
	}
}

func (s *Scheduler) timerLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.exitCh:
			return
		case <-ticker.C:
			s.fireDueTimers()
		}
	}
}

func (s *Scheduler) fireDueTimers() {
	now := time.Now()
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	for s.timers.Len() > 0 && !s.timers[0].wakeAt.After(now) {
		e := heap.Pop(&s.timers).(*timerEntry)
		close(e.wake)
	}
}

// --- service thread ----------------------------------------------------

// ServiceOperation is spec §4.H's "calling green thread parks in the
// ServiceOperation globals, stores op + args, signals the service thread,
// and yields until result fields are filled" -- realized as a request/
// reply pair exchanged over a channel instead of a hand-polled globals
// slot, with a Weighted(1) semaphore enforcing "no other green thread
// reads or writes [the globals] between post and result" (spec §5
// "Service-operation exclusivity enforcement").
type ServiceOperation struct {
	Op     string
	Args   []object.Word
	Result []object.Word
	Err    error
}

type serviceRequest struct {
	op      ServiceOperation
	handler ServiceHandler
	reply   chan ServiceOperation
}

// ServiceHandler performs one ServiceOperation's actual native-context
// work (print, time, blocking I/O). Supplied by cmd/squawk; with a nil
// handler, Service fails with errNoServiceHandler.
type ServiceHandler func(ServiceOperation) ServiceOperation

var defaultServiceHandler ServiceHandler = func(op ServiceOperation) ServiceOperation {
	op.Err = errNoServiceHandler
	return op
}

// Service hands op to the single service-thread goroutine and blocks until
// it replies, holding the Weighted(1) semaphore for the round trip so a
// second caller's post can never interleave with this one's result fields
// (spec §5).
func (s *Scheduler) Service(ctx context.Context, handler ServiceHandler, op ServiceOperation) (ServiceOperation, error) {
	if err := s.serviceSem.Acquire(ctx, 1); err != nil {
		return ServiceOperation{}, err
	}
	defer s.serviceSem.Release(1)

	req := &serviceRequest{op: op, handler: handler, reply: make(chan ServiceOperation, 1)}
	select {
	case s.serviceCh <- req:
	case <-ctx.Done():
		return ServiceOperation{}, ctx.Err()
	case <-s.exitCh:
		return ServiceOperation{}, errSchedulerClosed
	}
	select {
	case res := <-req.reply:
		return res, res.Err
	case <-ctx.Done():
		return ServiceOperation{}, ctx.Err()
	case <-s.exitCh:
		return ServiceOperation{}, errSchedulerClosed
	}
}

func (s *Scheduler) serviceLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.exitCh:
			return
		case req := <-s.serviceCh:
			handler := req.handler
			if handler == nil {
				handler = defaultServiceHandler
			}
			req.reply <- handler(req.op)
		}
	}
}
