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
	"github.com/squawkvm/squawk/object"
)

// NativeInvoker dispatches an invokenative call the translator could not
// resolve at build time (spec §4.E's undefinedNativeMethod rewrite, §6
// channel I/O natives). The isolate/channel packages satisfy this once
// built; until then a VM without one configured raises ErrNoSuchMethod for
// any native call, which is itself a faithful outcome for a method that
// really is undefined.
type NativeInvoker interface {
	InvokeNative(owner, name, descr string, args []object.Word) ([]object.Word, error)
}

// checkNotNil raises the implicit NullPointerException a getfield,
// putfield, arraylength, array access or invokevirtual/interface performs
// against a null receiver (spec §4.G "implicit null checks", realized via
// java.lang.VM.do_null helpers the translator emits calls to -- this core
// inlines the same check directly in the dispatcher instead of emitting a
// call, since there is no benefit here to the extra indirection).
func checkNotNil(o object.Oop) error {
	if o == object.NilOop {
		return common.ErrNullPointer
	}
	return nil
}

// checkBounds raises ArrayIndexOutOfBoundsException for an out-of-range
// array index (spec §4.G implicit checks).
func checkBounds(idx int, length uintptr) error {
	if idx < 0 || uintptr(idx) >= length {
		return common.ErrArrayIndexOOB
	}
	return nil
}

// checkDivisor raises ArithmeticException for integer division/modulo by
// zero (spec §4.G implicit checks; floating-point division by zero is not
// an error in IEEE 754 and is left to produce Inf/NaN as normal).
func checkDivisor(v int64) error {
	if v == 0 {
		return common.ErrArithmetic
	}
	return nil
}
