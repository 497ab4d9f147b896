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
	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/emit"
	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// findMethod searches k, then its superclass chain, for a method named name
// with signature descr among virtual (static=false) or static (static=true)
// methods. There is no dedicated vtable-slot-index convention on
// suite.Klass beyond the flat VirtualMethods/StaticMethods slices, so a
// linear name+signature scan stands in for a real vtable lookup -- cheap
// enough at CLDC method-table sizes, and exactly what the emitter's own
// symbolic references (owner+name+descr strings, never slot indices) need
// resolved against.
func (vm *VM) findMethod(k *suite.Klass, name, descr string, static bool) (*suite.Method, *suite.Klass, bool) {
	for cur := k; cur != nil; {
		list := cur.VirtualMethods()
		if static {
			list = cur.StaticMethods()
		}
		for _, m := range list {
			if m.Name == name && m.Signature == descr {
				return m, cur, true
			}
		}
		if cur.Super() == common.InvalidClassID {
			break
		}
		cur = vm.lookup(cur.Super())
	}
	return nil, nil, false
}

// popArgs pops a call's argument words off f's operand stack (in reverse,
// since the last-declared parameter is on top) and lays them out in
// REVERSE_PARAMETERS order, exactly as emit.ComputeSlotPlan arranged the
// callee's locals, so the result can be handed to NewFrame as-is.
//
// A long/double parameter occupies two JVM slot numbers (oldBases[i] and
// oldBases[i]+1) per the classic per-half-word local addressing the
// original class file's slot numbers were assigned under, but this core's
// operand stack holds one full 64-bit object.Word per value regardless of
// width (see Frame.pushLong/pushDouble) -- so exactly one pop happens per
// declared parameter, written at its low slot; the high slot a long/double
// parameter also occupies in the remap table is never queried by any real
// instruction (valid bytecode only ever addresses the low slot) and is left
// zero here.
func popArgs(f *Frame, descr string, isStatic bool) []object.Word {
	oldBases, total := emit.ArgOldBases(descr, isStatic)
	raw := make([]object.Word, total)

	for i := len(oldBases) - 1; i >= 0; i-- {
		v, _ := f.pop()
		raw[oldBases[i]] = v
	}
	if !isStatic {
		v, _ := f.pop()
		raw[0] = v
	}

	plan := emit.ComputeSlotPlan(descr, isStatic)
	args := make([]object.Word, total)
	if !isStatic {
		args[0] = raw[0]
	}
	for oldSlot, newSlot := range plan.Remap {
		args[newSlot] = raw[oldSlot]
	}
	return args
}

// popArgsForReceiver is popArgs's counterpart for OpNewObjectFused: the
// fused new+invokespecial<init> form never pushed the freshly allocated
// receiver onto the operand stack (there was no separate dup to do so), so
// the constructor's declared arguments are popped exactly as popArgs would,
// but receiver supplies slot 0 directly instead of a stack pop.
func popArgsForReceiver(f *Frame, descr string, receiver object.Oop) []object.Word {
	oldBases, total := emit.ArgOldBases(descr, false)
	raw := make([]object.Word, total)
	for i := len(oldBases) - 1; i >= 0; i-- {
		v, _ := f.pop()
		raw[oldBases[i]] = v
	}
	raw[0] = object.Word(uint32(receiver))

	plan := emit.ComputeSlotPlan(descr, false)
	args := make([]object.Word, total)
	args[0] = raw[0]
	for oldSlot, newSlot := range plan.Remap {
		args[newSlot] = raw[oldSlot]
	}
	return args
}

// pushReturn pushes a callee's return words onto f according to the tail of
// descr (the part after ')'), doing nothing for a void return. A single
// Word always carries the whole value regardless of width (Word is already
// wide enough for a long/double's bit pattern on every host this core
// targets), so there is exactly one word to push, not two, whatever the
// return type.
func pushReturn(f *Frame, descr string, words []object.Word) {
	if len(words) == 0 {
		return
	}
	switch returnPrimType(descr) {
	case ir.TypeReference:
		f.pushOop(object.Oop(int32(words[0])))
	default:
		f.push(words[0], returnPrimType(descr))
	}
}

// returnPrimType classifies descr's return type (the part after ')') as the
// ir.PrimType the frame's operand stack should tag the returned word with.
func returnPrimType(descr string) ir.PrimType {
	i := 0
	for i < len(descr) && descr[i] != ')' {
		i++
	}
	i++ // skip ')'
	if i >= len(descr) {
		return ir.TypeInt
	}
	switch descr[i] {
	case 'J':
		return ir.TypeLong
	case 'D':
		return ir.TypeDouble
	case 'F':
		return ir.TypeFloat
	case 'L', '[':
		return ir.TypeReference
	default:
		return ir.TypeInt
	}
}
