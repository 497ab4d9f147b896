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

// Package interp implements the bytecode interpreter of spec §4.G: a
// switch-based dispatcher keyed by opcode byte, executing over a chain of
// activation frames with an oop-map driven root set. Grounded on the
// fetch/decode/execute loop of the teacher's own probe-lang register VM
// (probe-lang/lang/vm/vm.go) -- Step/Run/execute, error sentinels, and a
// frame type holding just enough to resume a caller -- adapted from a
// register machine to a stack machine with locals, matching Squawk's
// actual execution model.
package interp

import (
	"math"

	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// Frame is one activation record: spec §4.G's canonical layout "MP /
// returnFP / returnIP / parms..." realized as a Go struct rather than a
// heap-resident word block, since this core has no JIT or stack-chunk
// relocation pressure that would require the frame itself to be GC-visible
// memory. MP is the method pointer; returnFP/returnIP are represented
// directly by the caller link and its saved ip rather than encoded words.
type Frame struct {
	Method *suite.Method
	Klass  *suite.Klass

	locals []object.Word // oopness of locals[i] is static: Method.OopMap.IsPointer(i)

	// stack and stackKind are the operand stack and, per slot, which
	// primitive type actually lives there. Unlike locals the operand stack
	// has no static per-slot type from the method's OopMap, and a bare
	// oop-or-not flag isn't enough: i2l/f2l/d2l (and their siblings) are all
	// emitted as the same OpConvert instruction carrying only the *target*
	// type (see emit's OpConvert encoding), so the only way to know which
	// conversion actually applies is to ask the value already on the stack
	// what it is. Tracking the real kind per slot answers that directly and
	// doubles as the GC's oop/non-oop root test.
	stack     []object.Word
	stackKind []ir.PrimType
	sp        int

	ip int

	// insIP is the bytecode offset of the instruction step() is currently
	// decoding, captured before any operand bytes are consumed. ip itself
	// has already advanced past the whole instruction by the time an opcode
	// handler can fail, so the exception table walk (which needs "the PC
	// that just faulted") reads insIP instead.
	insIP int

	caller   *Frame
	returnIP int // caller's ip to resume at, saved when this frame was pushed

	// thisOop caches locals[0] for an instance method, used by monitor
	// operations and NullPointerException diagnostics; kept for clarity
	// even though it duplicates locals[0].
	thisOop object.Oop

	// heldMonitors is the set of oops this frame has entered via
	// OpMonitorEnter and not yet exited, in entry order. Needed so an
	// exception unwinding past this frame with no handler can release them
	// (see vm.run) instead of leaving them locked forever.
	heldMonitors []object.Oop
}

// noteMonitorEnter records that o's monitor was just successfully entered.
func (f *Frame) noteMonitorEnter(o object.Oop) {
	f.heldMonitors = append(f.heldMonitors, o)
}

// noteMonitorExit forgets the most recent still-held entry of o, mirroring
// a balanced monitorenter/monitorexit pair. If o isn't found (exit without
// a matching enter recorded on this frame) it's a no-op.
func (f *Frame) noteMonitorExit(o object.Oop) {
	for i := len(f.heldMonitors) - 1; i >= 0; i-- {
		if f.heldMonitors[i] == o {
			f.heldMonitors = append(f.heldMonitors[:i], f.heldMonitors[i+1:]...)
			return
		}
	}
}

// NewFrame allocates a fresh frame for a call to m on klass k, with args
// already laid out in REVERSE_PARAMETERS slot order (spec §4.F).
func NewFrame(m *suite.Method, k *suite.Klass, args []object.Word) *Frame {
	f := &Frame{
		Method:    m,
		Klass:     k,
		locals:    make([]object.Word, m.MaxLocals),
		stack:     make([]object.Word, m.MaxStack),
		stackKind: make([]ir.PrimType, m.MaxStack),
	}
	copy(f.locals, args)
	if !m.IsStatic && len(args) > 0 {
		f.thisOop = object.Oop(args[0])
	}
	return f
}

func (f *Frame) push(w object.Word, kind ir.PrimType) {
	f.stack[f.sp] = w
	f.stackKind[f.sp] = kind
	f.sp++
}

func (f *Frame) pop() (object.Word, ir.PrimType) {
	f.sp--
	return f.stack[f.sp], f.stackKind[f.sp]
}

func (f *Frame) peekKind() ir.PrimType { return f.stackKind[f.sp-1] }

func (f *Frame) popInt() int32  { w, _ := f.pop(); return int32(uint32(w)) }
func (f *Frame) popLong() int64 { w, _ := f.pop(); return int64(w) }
func (f *Frame) popFloat() float32 {
	w, _ := f.pop()
	return math.Float32frombits(uint32(w))
}
func (f *Frame) popDouble() float64 {
	w, _ := f.pop()
	return math.Float64frombits(uint64(w))
}
func (f *Frame) popOop() object.Oop {
	w, _ := f.pop()
	return object.Oop(int32(w))
}

func (f *Frame) pushInt(v int32)   { f.push(object.Word(uint32(v)), ir.TypeInt) }
func (f *Frame) pushLong(v int64)  { f.push(object.Word(v), ir.TypeLong) }
func (f *Frame) pushFloat(v float32) {
	f.push(object.Word(math.Float32bits(v)), ir.TypeFloat)
}
func (f *Frame) pushDouble(v float64) {
	f.push(object.Word(math.Float64bits(v)), ir.TypeDouble)
}
func (f *Frame) pushOop(v object.Oop) { f.push(object.Word(uint32(v)), ir.TypeReference) }

func (f *Frame) getLocal(slot int) object.Word { return f.locals[slot] }
func (f *Frame) setLocal(slot int, w object.Word) { f.locals[slot] = w }

// Roots reports every oop currently reachable from this frame -- its
// locals (per the method's static OopMap) plus whatever the dynamically
// tracked operand stack currently holds a reference in -- for the GC's
// stack-walk (spec §5 "GC interaction").
func (f *Frame) Roots() []object.Oop {
	var roots []object.Oop
	for _, i := range f.Method.OopMap.PointerSlots(len(f.locals)) {
		roots = append(roots, object.Oop(f.locals[i]))
	}
	for i := 0; i < f.sp; i++ {
		if f.stackKind[i] == ir.TypeReference {
			roots = append(roots, object.Oop(f.stack[i]))
		}
	}
	return roots
}
