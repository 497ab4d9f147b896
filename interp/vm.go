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

package interp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/squawkvm/squawk/classfile"
	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/emit"
	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/metrics"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// MonitorManager abstracts monitorenter/monitorexit so the isolate package
// (4.H) can supply real owned-thread-set semantics once it exists. A VM
// built without one runs every monitor op as a no-op, which is a faithful
// single-threaded execution (the only thread that could contend for a
// monitor is the one already holding it).
type MonitorManager interface {
	Enter(o object.Oop) error
	Exit(o object.Oop) error
}

type noopMonitors struct{}

func (noopMonitors) Enter(object.Oop) error { return nil }
func (noopMonitors) Exit(object.Oop) error  { return nil }

// UserException carries a thrown object back up through Go's own call
// stack: athrow, and every implicit check that raises one of the
// common.Err* sentinels, return an error from VM.Call, and a caller's
// recursive invoke of a callee simply propagates it -- there is no
// hand-maintained frame chain to unwind, because Go's call stack already is
// one (spec §4.G "exception handling" unwinds activation frames; Go's
// runtime does that for free as each Call returns).
type UserException struct {
	Oop   object.Oop
	Klass *suite.Klass // nil if the thrown object's klass couldn't be resolved
}

func (e *UserException) Error() string {
	if e.Klass != nil {
		return fmt.Sprintf("exception: %s", e.Klass.Name())
	}
	return "exception"
}

// implicitExceptionClasses maps the sentinel errors raised by the
// interpreter's inlined implicit checks (natives.go) to the runtime class
// name a catch clause would name them by, for the exception-table walk's
// assignability test. A check against a minimal suite lacking the full
// java.lang.Throwable hierarchy falls back to matching these names as
// plain strings against the handler's catch type name (findHandler).
var implicitExceptionClasses = map[error]string{
	common.ErrNullPointer:   "java/lang/NullPointerException",
	common.ErrArrayIndexOOB: "java/lang/ArrayIndexOutOfBoundsException",
	common.ErrArithmetic:    "java/lang/ArithmeticException",
	common.ErrArrayStore:    "java/lang/ArrayStoreException",
	common.ErrClassCast:     "java/lang/ClassCastException",
	common.ErrOutOfMemory:   "java/lang/OutOfMemoryError",
	common.ErrStackOverflow: "java/lang/StackOverflowError",
}

// VM is the interpreter core of spec §4.G: one switch-based dispatcher
// shared by every isolate's threads (the isolate/channel packages own
// per-isolate scheduling; this type only knows how to run one call to
// completion). Grounded on the teacher's probe-lang register VM
// (probe-lang/lang/vm/vm.go): a flat struct holding every piece of runtime
// state the fetch/decode/execute loop touches, with gas-cost accounting
// replaced by branchCount (spec §4.G "back-branch counting") since Squawk
// has no metered-execution concept.
type VM struct {
	Registry *suite.Registry
	Alloc    *Allocator
	Statics  *Statics
	Natives  NativeInvoker
	Monitors MonitorManager
	Verbose  bool

	consts *objectConstants

	mu          sync.Mutex
	branchCount uint64
}

// NewVM wires a VM over an already-populated suite Registry and heap
// Allocator. monitors and natives may be nil; both have a dependency-free
// default (noopMonitors, and a NativeInvoker that always reports
// ErrNoSuchMethod).
func NewVM(reg *suite.Registry, alloc *Allocator, monitors MonitorManager, natives NativeInvoker) *VM {
	if monitors == nil {
		monitors = noopMonitors{}
	}
	if natives == nil {
		natives = noNatives{}
	}
	return &VM{
		Registry: reg,
		Alloc:    alloc,
		Statics:  NewStatics(),
		Natives:  natives,
		Monitors: monitors,
		consts:   newObjectConstants(),
	}
}

type noNatives struct{}

func (noNatives) InvokeNative(owner, name, descr string, args []object.Word) ([]object.Word, error) {
	return nil, common.ErrNoSuchMethod
}

// BranchCount reports how many back-branches this VM has taken, for the
// translator/host tool's profiling hook (spec §4.G).
func (vm *VM) BranchCount() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.branchCount
}

func (vm *VM) countBackBranch() {
	vm.mu.Lock()
	vm.branchCount++
	vm.mu.Unlock()
	metrics.BranchCount.Inc(1)
}

// Call is the VM's entry point and its only recursion site: invoking a
// method pushes one Go stack frame (carrying one interp Frame) and runs it
// to completion, returning either the callee's return words or an error
// (a UserException, one of the common.Err* sentinels, or a decode error).
func (vm *VM) Call(m *suite.Method, k *suite.Klass, args []object.Word) ([]object.Word, error) {
	if m.IsNative {
		return vm.Natives.InvokeNative(k.Name(), m.Name, m.Signature, args)
	}
	f := NewFrame(m, k, args)
	return vm.run(f)
}

// run drives the fetch/decode/execute loop for one frame (spec §4.G
// "switch-based dispatcher keyed by opcode byte"), catching any error an
// opcode handler returns and consulting the frame's exception table before
// deciding whether to return it to the caller.
func (vm *VM) run(f *Frame) ([]object.Word, error) {
	for {
		result, err := vm.step(f)
		if err == errFrameReturned {
			return result, nil
		}
		if err != nil {
			handlerPC, ok := vm.findHandler(f, err)
			if !ok {
				vm.releaseHeldMonitors(f)
				return nil, err
			}
			f.sp = 0
			f.pushOop(exceptionOopOf(err))
			f.ip = handlerPC
			continue
		}
	}
}

// releaseHeldMonitors exits every monitor f still holds, most-recently-
// entered first, when f is about to unwind past an exception with no
// handler of its own -- otherwise a thread that throws while holding a
// monitor leaves it locked forever, deadlocking any other thread that
// later enters the same object (spec §8's monitor-release-on-unwind
// property).
func (vm *VM) releaseHeldMonitors(f *Frame) {
	for i := len(f.heldMonitors) - 1; i >= 0; i-- {
		vm.Monitors.Exit(f.heldMonitors[i])
	}
	f.heldMonitors = nil
}

// errFrameReturned is a sentinel used internally by step to signal a
// completed return without forcing every call site of step to thread a
// separate (value, done bool, err error) triple.
var errFrameReturned = fmt.Errorf("interp: frame returned")

// exceptionOopOf extracts the oop a handler sees on the stack when it's
// entered: the object itself for a UserException, or the VM-local identity
// handle for one of the sentinel implicit-exception errors (there is no
// real exception instance backing an implicit check since no
// java.lang.Throwable object model exists in scope).
func exceptionOopOf(err error) object.Oop {
	if ue, ok := err.(*UserException); ok {
		return ue.Oop
	}
	return object.NilOop
}

// findHandler walks f's exception table for an entry covering the PC that
// just faulted, whose catch type the thrown error is assignable to. Unlike
// suite.Method.HandlerFor (an exact-match lookup used by tooling that
// already has a concrete catch index in hand), this performs the
// assignability-aware walk spec §4.G requires: a handler catching a
// superclass of the thrown type must still fire.
func (vm *VM) findHandler(f *Frame, err error) (int, bool) {
	faultPC := f.insIP
	thrownName, thrownKlass := vm.classify(f, err)
	for _, h := range f.Method.ExceptionTable {
		if faultPC < h.StartPC || faultPC >= h.EndPC {
			continue
		}
		if h.CatchType == 0 {
			return h.HandlerPC, true // catch-all / finally
		}
		name, klass, ok := vm.catchTypeName(f.Klass, h.CatchType)
		if !ok {
			continue
		}
		if thrownKlass != nil && klass != nil {
			if klass.IsAssignableFrom(thrownKlass, vm.lookup) {
				return h.HandlerPC, true
			}
			continue
		}
		// Fallback: no runtime class hierarchy resolvable on one or both
		// sides (a minimal suite lacking java.lang.Throwable, or one of the
		// sentinel implicit-exception pseudo-classes) -- compare names.
		if name == thrownName {
			return h.HandlerPC, true
		}
	}
	return 0, false
}

// classify names and (if possible) resolves the Klass of whatever err
// represents, for findHandler's assignability test.
func (vm *VM) classify(f *Frame, err error) (name string, klass *suite.Klass) {
	if ue, ok := err.(*UserException); ok {
		if ue.Klass != nil {
			return ue.Klass.Name(), ue.Klass
		}
		return "", nil
	}
	if n, ok := implicitExceptionClasses[err]; ok {
		k, _ := vm.Registry.ResolveFrom(f.Klass, n)
		return n, k
	}
	return err.Error(), nil
}

// catchTypeName resolves an exception-table row's CatchType (a 1-based
// index into k's frozen constant object table; see emit's catchPending)
// to the class name it names, and the Klass that name resolves to (if
// resolvable from k's suite).
func (vm *VM) catchTypeName(k *suite.Klass, catchType uint16) (name string, klass *suite.Klass, ok bool) {
	v, ok := k.ConstantObjects().At(int(catchType) - 1)
	if !ok {
		return "", nil, false
	}
	lit, ok := v.(classfile.ClassLiteral)
	if !ok {
		return "", nil, false
	}
	name = string(lit)
	klass, _ = vm.Registry.ResolveFrom(k, name)
	return name, klass, true
}

func (vm *VM) lookup(id common.ClassID) *suite.Klass {
	k, _ := vm.Registry.ResolveID(id)
	return k
}

// parseSymbolRef splits the "owner name descr" string the emitter interns
// for every field/method reference (emit.symbolRef) back into its parts.
// The descriptor itself never contains a space, so a 3-way split is exact.
func parseSymbolRef(s string) (owner, name, descr string) {
	parts := strings.SplitN(s, " ", 3)
	if len(parts) != 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}

// resolveSymbol reads a 4-byte object_k index at f's current ip and
// resolves it through f.Klass's frozen constant table to the
// owner/name/descr triple it names.
func (f *Frame) resolveSymbol() (owner, name, descr string, err error) {
	idx := f.readU4()
	v, ok := f.Klass.ConstantObjects().At(int(idx))
	if !ok {
		return "", "", "", fmt.Errorf("interp: constant object index %d out of range", idx)
	}
	s, ok := v.(string)
	if !ok {
		return "", "", "", fmt.Errorf("interp: constant object at index %d is not a symbol reference", idx)
	}
	owner, name, descr = parseSymbolRef(s)
	return owner, name, descr, nil
}

// resolveClassLiteral reads a 4-byte object_k index and resolves it to the
// class name an OpNewObj/OpCheckCast/OpInstanceOf/OpNewDim/OpNewObjectFused
// operand names.
func (f *Frame) resolveClassLiteral() (string, error) {
	idx := f.readU4()
	v, ok := f.Klass.ConstantObjects().At(int(idx))
	if !ok {
		return "", fmt.Errorf("interp: constant object index %d out of range", idx)
	}
	lit, ok := v.(classfile.ClassLiteral)
	if !ok {
		return "", fmt.Errorf("interp: constant object at index %d is not a class literal", idx)
	}
	return string(lit), nil
}

// --- Frame decode helpers -------------------------------------------------

func (f *Frame) code() []byte { return f.Method.Bytecode }

func (f *Frame) readU1() byte {
	b := f.code()[f.ip]
	f.ip++
	return b
}

func (f *Frame) readType() ir.PrimType { return ir.PrimType(f.readU1()) }

func (f *Frame) readArith() ir.ArithOp { return ir.ArithOp(f.readU1()) }

func (f *Frame) readCompareKind() ir.CompareKind { return ir.CompareKind(f.readU1()) }

func (f *Frame) readCond() ir.Cond { return ir.Cond(f.readU1()) }

func (f *Frame) readIfKind() ir.IfKind { return ir.IfKind(f.readU1()) }

// readSlot decodes the narrowest-encoding local-slot operand: a single
// byte, or emit.WideSlotPrefix followed by a 2-byte little-endian slot
// number. Advances ip past the 1- or 3-byte operand.
func (f *Frame) readSlot() int {
	b := f.readU1()
	if b != emit.WideSlotPrefix {
		return int(b)
	}
	lo := f.readU1()
	hi := f.readU1()
	return int(lo) | int(hi)<<8
}

func (f *Frame) readU4() uint32 {
	c := f.code()
	v := uint32(c[f.ip]) | uint32(c[f.ip+1])<<8 | uint32(c[f.ip+2])<<16 | uint32(c[f.ip+3])<<24
	f.ip += 4
	return v
}

func (f *Frame) readI4() int32 { return int32(f.readU4()) }

func (f *Frame) readU8() uint64 {
	lo := uint64(f.readU4())
	hi := uint64(f.readU4())
	return lo | hi<<32
}
