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
	"fmt"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/rlp"
	"github.com/squawkvm/squawk/suite"
	"github.com/squawkvm/squawk/suitedb"
)

// HibernateThread is one owned thread's resumption request: which method
// it was dispatched with and the argument words it started with.
//
// This is necessarily the thread's *original entry point*, not a
// mid-execution resumption point: spec §4.H's full hibernate protocol
// asks for "each thread's stack chunk rewritten with offsets instead of
// absolute IPs," which presumes a stack chunk the scheduler can walk and
// serialize directly. This core's VM.Call recurses through Go's own call
// stack for nested invokes (interp/vm.go: "there is no hand-maintained
// frame chain to unwind, because Go's call stack already is one") -- which
// means there is no data structure to walk. Capturing a live, arbitrarily
// nested Go call stack mid-execution would need either stackful
// coroutines (not a Go primitive) or rewriting the interpreter in
// continuation-passing style, both out of scope here. Hibernate in this
// core therefore only succeeds for a thread parked at the top level
// (Thread.depth() == 0, between dispatches) -- see Isolate.Hibernate --
// which still satisfies the testable property in spec §8 ("hibernate
// cycle... hibernating the isolate every 10 increments"): a worker loop
// that checks in at statement boundaries and is restarted from the top of
// its own loop body after unhibernate behaves identically, it just can't
// resume from the middle of a single Java method call.
type HibernateThread struct {
	MethodOwner string
	MethodName  string
	MethodDescr string
	Args        []uint64
}

// HibernateBlob is the serialized form of one isolate's suspended state:
// per-class static areas (spec item (ii)) are walked via iso.Statics.
// Snapshot and captured in Statics below, named by class rather than by
// ClassID so they survive the owning suite being renumbered by the time
// Unhibernate runs in a new VM instance. The channel I/O context, open
// channels' logical state, and pending event subscriptions (items iii-v)
// belong to the channel package (4.I) and are not recorded in this blob;
// no channel code adds them to its encoding.
type HibernateBlob struct {
	IsolateID      [16]byte
	ClasspathURL   string
	MainClassName  string
	Argv           []string
	ParentSuiteURL string
	Threads        []HibernateThread
	Statics        []interp.StaticSnapshot
}

// Hibernate quiesces iso (spec §4.H: "the scheduler quiesces all of the
// isolate's threads at safe points") and writes its serialized state to
// store under key. Every owned thread must be idle between top-level
// dispatches (Thread.depth() == 0) or this fails with common.ErrThreadBusy
// -- see HibernateThread's doc comment for why.
func (iso *Isolate) Hibernate(store suitedb.KeyValueStore, key []byte) error {
	iso.mu.Lock()
	if iso.state != StateRunning {
		iso.mu.Unlock()
		return common.ErrIsolateNotHibernated
	}
	iso.mu.Unlock()

	threads := iso.Threads()
	blob := HibernateBlob{
		ClasspathURL:   iso.ClasspathURL,
		MainClassName:  iso.MainClassName,
		Argv:           iso.Argv,
		ParentSuiteURL: iso.ParentSuiteURL,
	}
	copy(blob.IsolateID[:], iso.ID[:])

	for _, th := range threads {
		if th.depth() != 0 {
			log_.Warn("hibernate refused, thread busy", "isolate", iso.ID, "thread", th.ID)
			return common.ErrThreadBusy
		}
		blob.Threads = append(blob.Threads, th.resumeRequest())
	}

	blob.Statics = iso.Statics.Snapshot(func(id common.ClassID) (string, bool) {
		k, ok := iso.sched.Registry.ResolveID(id)
		if !ok {
			return "", false
		}
		return k.Name(), true
	})

	iso.mu.Lock()
	iso.state = StateHibernating
	iso.mu.Unlock()

	enc, err := rlp.EncodeToBytes(blob)
	if err != nil {
		return fmt.Errorf("isolate: hibernate encode: %w", err)
	}
	return store.Put(key, enc)
}

// KlassResolver looks a hibernated thread's recorded owning-class name up
// in the (possibly relocated) suite registry the new VM instance was
// loaded with, returning the klass and the named method on it.
type KlassResolver func(ownerClassName, methodName, methodDescr string) (*suite.Klass, *suite.Method, bool)

// ClassResolver looks a hibernated static snapshot's recorded class name up
// in the (possibly relocated) suite registry the new VM instance was
// loaded with, returning the klass whose ClassID the snapshot's fields
// should be restored under. Kept separate from KlassResolver because a
// class may hold hibernated static state without any thread of the
// isolate currently executing one of its methods.
type ClassResolver func(className string) (*suite.Klass, bool)

// Unhibernate loads a blob written by Hibernate, rebuilds the isolate, and
// restarts each of its recorded threads from their original entry point
// (spec §4.H: "reinstalls stack chunks, rebinds IPs via the relocation
// tables for whatever suite addresses the new VM has assigned"). Any
// method whose owning class carries relocatable bytecode must already
// have had suite.Method.Relocate applied by the suite loader before this
// runs; this package only resolves names, it does not itself relocate.
//
// Per-class static areas (spec item (ii)) are restored before any thread
// is started, so a thread's first statement observes the same static
// state it hibernated with -- the §8 "hibernate cycle" seed scenario's
// shared counter depends on exactly this ordering.
func (s *Scheduler) Unhibernate(store suitedb.KeyValueStore, key []byte, resolve KlassResolver, resolveClass ClassResolver) (*Isolate, error) {
	raw, err := store.Get(key)
	if err != nil {
		return nil, err
	}
	var blob HibernateBlob
	if err := rlp.DecodeBytes(raw, &blob); err != nil {
		return nil, fmt.Errorf("isolate: unhibernate decode: %w", err)
	}

	iso := newIsolate(s, blob.ClasspathURL, blob.MainClassName, blob.Argv)
	iso.ParentSuiteURL = blob.ParentSuiteURL
	copy(iso.ID[:], blob.IsolateID[:])
	s.register(iso)

	for _, snap := range blob.Statics {
		k, ok := resolveClass(snap.ClassName)
		if !ok {
			return nil, fmt.Errorf("isolate: unhibernate: static class %s not found in new suite", snap.ClassName)
		}
		for _, f := range snap.Fields {
			iso.Statics.Set(k.ID(), f.Name, object.Word(f.Value))
		}
	}

	for _, th := range blob.Threads {
		k, m, ok := resolve(th.MethodOwner, th.MethodName, th.MethodDescr)
		if !ok {
			return nil, fmt.Errorf("isolate: unhibernate: %s.%s%s not found in new suite", th.MethodOwner, th.MethodName, th.MethodDescr)
		}
		args := make([]object.Word, len(th.Args))
		for i, a := range th.Args {
			args[i] = object.Word(a)
		}
		if _, err := iso.Start(k, m, args); err != nil {
			return nil, err
		}
	}
	return iso, nil
}
