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
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// ThreadState is a green thread's scheduling state (spec §4.H: "cooperative
// round-robin of green threads"; suspension points are yield, sleep,
// monitor contention, blocking channel I/O, hibernate).
type ThreadState int32

const (
	ThreadRunnable ThreadState = iota
	ThreadSleeping
	ThreadWaiting // parked on a contended monitor or a blocking channel op
	ThreadDone
)

func (s ThreadState) String() string {
	switch s {
	case ThreadRunnable:
		return "runnable"
	case ThreadSleeping:
		return "sleeping"
	case ThreadWaiting:
		return "waiting"
	case ThreadDone:
		return "done"
	default:
		return "unknown"
	}
}

var nextThreadID int64

// Thread is one of an isolate's owned green threads (spec §3 "Isolate...
// set of owned threads"). Grounded on the single-threaded-cooperative
// model spec §4.H/§5 describe, but realized as a goroutine per thread
// rather than a hand-rolled run queue: Go's own scheduler stands in for
// the FIFO runnable queue, and a suspension point is a real blocking
// operation (channel receive, mutex lock, time.Sleep-equivalent) instead
// of a saved/restored program counter. See DESIGN.md for why this is the
// idiomatic-Go reading of "cooperative green threads" rather than a
// literal continuation-passing reimplementation of the interpreter.
type Thread struct {
	ID      int64
	Isolate *Isolate
	VM      *interp.VM

	method *suite.Method
	klass  *suite.Klass
	args   []object.Word

	selfOop object.Oop // thread-identity pseudo-oop for Thread.currentThread

	state   int32 // ThreadState, accessed atomically
	running int32 // 1 while this thread's goroutine is inside VM.Call, else 0

	done   chan struct{}
	result []object.Word
	err    error

	mu sync.Mutex
}

// newThread builds th and its private VM (Statics shared with iso, Natives
// bound to th; see Isolate.vmFor), but does not start it.
func newThread(iso *Isolate, k *suite.Klass, m *suite.Method, args []object.Word) *Thread {
	id := atomic.AddInt64(&nextThreadID, 1)
	th := &Thread{
		ID:      id,
		Isolate: iso,
		method:  m,
		klass:   k,
		args:    args,
		selfOop: object.Oop(-(1000 + id)),
		done:    make(chan struct{}),
	}
	th.VM = iso.vmFor(th)
	return th
}

// start launches th's goroutine. Exactly one call per Thread.
func (th *Thread) start() {
	th.Isolate.sched.wg.Add(1)
	atomic.StoreInt32(&th.running, 1)
	go func() {
		defer th.Isolate.sched.wg.Done()
		result, err := th.VM.Call(th.method, th.klass, th.args)
		atomic.StoreInt32(&th.running, 0)
		th.mu.Lock()
		th.result, th.err = result, err
		th.mu.Unlock()
		atomic.StoreInt32(&th.state, int32(ThreadDone))
		th.Isolate.removeThread(th)
		close(th.done)
	}()
}

// Join blocks until th's top-level Call returns, yielding its result or
// error (spec §3 "join").
func (th *Thread) Join() ([]object.Word, error) {
	<-th.done
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.result, th.err
}

func (th *Thread) State() ThreadState { return ThreadState(atomic.LoadInt32(&th.state)) }

// depth reports whether th's goroutine currently has a live (possibly
// nested) VM.Call on its own Go call stack -- the hibernate safepoint test
// (see hibernate.go): 0 means th is idle between top-level dispatches and
// can be safely captured, >0 means there is a live Squawk call chain this
// core cannot serialize.
func (th *Thread) depth() int32 { return atomic.LoadInt32(&th.running) }

// yield hands control back to the Go scheduler, the stand-in for spec
// §4.H's cooperative round-robin hand-off at a Thread.yield suspension
// point.
func (th *Thread) yield() {
	runtime.Gosched()
}

// sleep parks th on the scheduler's timer heap until d elapses (spec §4.H
// "Timers live in a min-heap keyed by wake time"), rather than calling
// time.Sleep directly, so a later hibernate can in principle read back a
// thread's remaining sleep duration from the heap entry instead of losing
// it to an opaque runtime timer.
func (th *Thread) sleep(d time.Duration) {
	atomic.StoreInt32(&th.state, int32(ThreadSleeping))
	th.Isolate.sched.sleepUntil(d)
	atomic.StoreInt32(&th.state, int32(ThreadRunnable))
}

// resumeRequest captures the information needed to relaunch th as a fresh
// goroutine after unhibernate: which method it was dispatched with and
// the argument words it was started with. This is necessarily the
// original entry point, not a mid-method resumption point -- see
// hibernate.go.
func (th *Thread) resumeRequest() HibernateThread {
	args := make([]uint64, len(th.args))
	for i, w := range th.args {
		args[i] = uint64(w)
	}
	return HibernateThread{
		MethodOwner: th.klass.Name(),
		MethodName:  th.method.Name,
		MethodDescr: th.method.Signature,
		Args:        args,
	}
}
