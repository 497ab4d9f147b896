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

// Package isolate implements the executive of spec §4.H: isolates and the
// green threads that run inside them, the cooperative scheduler that
// multiplexes them, lightweight object monitors, and hibernate/unhibernate.
// Grounded on the teacher's `miner/worker.go` three-loop shape
// (newWorkLoop/mainLoop/taskLoop), adapted from "one OS thread coordinating
// goroutines over channels" to "one goroutine per green thread, coordinated
// by a scheduler" -- see DESIGN.md for why a green thread is a goroutine
// here rather than a hand-rolled run queue.
package isolate

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/log"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

var log_ = log.New("component", "isolate")

// State is an isolate's lifecycle stage (spec §3 "Lifecycles": "new,
// start, run, hibernate, exit").
type State int

const (
	StateNew State = iota
	StateRunning
	StateHibernating
	StateExited
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateHibernating:
		return "hibernating"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Isolate is spec §3's Isolate record: an independently startable,
// hibernatable user process sharing code (suites) with its VM instance but
// owning its own static state, its own set of green threads, and its own
// I/O properties.
type Isolate struct {
	ID uuid.UUID

	ClasspathURL   string
	MainClassName  string
	Argv           []string
	ParentSuiteURL string

	StdinURL, StdoutURL, StderrURL string

	// VM is shared-Registry/Allocator/Monitors, private-Statics: every
	// thread this isolate starts gets its own *interp.VM (so each can carry
	// a thread-bound NativeInvoker, see thread.go), but every one of those
	// VMs has its Statics field repointed at this single shared table --
	// spec §3's "map class -> static area" belongs to the isolate, not to
	// any one of its threads.
	Statics *interp.Statics

	sched *Scheduler

	mu       sync.Mutex
	state    State
	threads  mapset.Set // of *Thread
	exitCode int
}

// newIsolate is called only by Scheduler.NewIsolate, which supplies the
// shared Registry/Allocator/Monitors/fallback-natives this isolate's
// threads will be built from.
func newIsolate(sched *Scheduler, classpathURL, mainClass string, argv []string) *Isolate {
	return &Isolate{
		ID:            uuid.New(),
		ClasspathURL:  classpathURL,
		MainClassName: mainClass,
		Argv:          argv,
		Statics:       interp.NewStatics(),
		sched:         sched,
		state:         StateNew,
		threads:       mapset.NewSet(),
	}
}

func (iso *Isolate) State() State {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	return iso.state
}

// vmFor builds a fresh *interp.VM bound to th: Registry/Alloc/Monitors are
// the scheduler's shared instances, Statics is this isolate's shared table,
// and Natives is th's own thread-bound invoker (so a native call can always
// tell which green thread issued it -- interp.NativeInvoker's signature
// carries no caller identity of its own).
func (iso *Isolate) vmFor(th *Thread) *interp.VM {
	vm := interp.NewVM(iso.sched.Registry, iso.sched.Alloc, iso.sched.Monitors, iso.sched.threadNatives(th))
	vm.Statics = iso.Statics
	return vm
}

// Start creates the isolate's primary thread, running m on k with args, and
// launches it (spec §3 "start"). Callable any number of times while the
// isolate is running: each call spawns one more green thread owned by this
// isolate, matching "threads within isolates" (spec §4.H) rather than a
// single-shot entry point.
func (iso *Isolate) Start(k *suite.Klass, m *suite.Method, args []object.Word) (*Thread, error) {
	iso.mu.Lock()
	if iso.state == StateExited {
		iso.mu.Unlock()
		log_.Warn("start on exited isolate", "isolate", iso.ID, "class", iso.MainClassName)
		return nil, common.ErrIsolateExited
	}
	iso.state = StateRunning
	iso.mu.Unlock()

	th := newThread(iso, k, m, args)
	iso.mu.Lock()
	iso.threads.Add(th)
	iso.mu.Unlock()
	th.start()
	return th, nil
}

// removeThread drops th from the owned-thread set once it has finished
// running, and marks the isolate exited once its last thread has (spec §3
// "run -> exit").
func (iso *Isolate) removeThread(th *Thread) {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	iso.threads.Remove(th)
	if iso.threads.Cardinality() == 0 && iso.state == StateRunning {
		iso.state = StateExited
	}
}

// Threads returns a snapshot of the isolate's currently owned green
// threads, for introspection (the monitor package's read-only endpoint) and
// for hibernate's quiesce pass.
func (iso *Isolate) Threads() []*Thread {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	ts := make([]*Thread, 0, iso.threads.Cardinality())
	for v := range iso.threads.Iter() {
		ts = append(ts, v.(*Thread))
	}
	return ts
}
