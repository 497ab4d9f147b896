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
	"time"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/object"
)

// threadInvoker intercepts the handful of java/lang/Thread intrinsics that
// need to know which green thread is making the call -- something
// interp.NativeInvoker's (owner, name, descr, args) signature has no room
// for on its own -- and otherwise falls through to the scheduler's
// fallback invoker (typically channel's, for everything channel-I/O
// related). One instance per Thread, built by Isolate.vmFor.
type threadInvoker struct {
	sched  *Scheduler
	thread *Thread
}

func (s *Scheduler) threadNatives(th *Thread) interp.NativeInvoker {
	return &threadInvoker{sched: s, thread: th}
}

func (ti *threadInvoker) InvokeNative(owner, name, descr string, args []object.Word) ([]object.Word, error) {
	if owner == "java/lang/Thread" {
		switch {
		case name == "yield" && descr == "()V":
			ti.thread.yield()
			return nil, nil
		case name == "sleep" && descr == "(J)V":
			ms := int64(args[0])
			ti.thread.sleep(time.Duration(ms) * time.Millisecond)
			return nil, nil
		case name == "currentThread" && descr == "()Ljava/lang/Thread;":
			return []object.Word{object.Word(uint32(ti.thread.selfOop))}, nil
		}
	}
	if ti.sched.fallback != nil {
		return ti.sched.fallback.InvokeNative(owner, name, descr, args)
	}
	return nil, common.ErrNoSuchMethod
}
