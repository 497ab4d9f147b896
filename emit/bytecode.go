// Copyright 2021 The go-probeum Authors
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

package emit

import "github.com/squawkvm/squawk/ir"

// Squawk bytecode opcodes. One byte, followed by a narrowest-encoded
// operand for local slots/small integers (a single byte, or 0xFF + a
// 2-byte wide form past 255) and a fixed 4-byte little-endian relocatable
// operand for anything the suite's relocation table tracks (branch
// targets, object and class constant references) -- consistent with
// suite.Method.Relocate's fixed-width rewrite.
const WideSlotPrefix = 0xFF

// Opcode is Squawk's one-byte instruction tag, read directly by the
// interpreter's fetch-decode step (spec §4.G "switch-based dispatcher
// keyed by opcode byte").
type Opcode byte

const (
	OpLoadLocal Opcode = iota + 1
	OpStoreLocal
	OpLoadConstI
	OpLoadConstL
	OpLoadConstF
	OpLoadConstD
	OpLoadConstObj
	OpLoadField
	OpStoreField
	OpLoadStatic
	OpStoreStatic
	OpArrayLoad
	OpArrayStore
	OpArith
	// OpIncrement is iinc's own opcode, distinct from OpArith: unlike every
	// other OpArith-shaped instruction it doesn't pop its operands off the
	// stack but reads a local slot and a signed immediate directly, so the
	// decoder needs a distinct tag to know which operand shape follows the
	// type byte.
	OpIncrement
	OpCompare
	OpConvert
	OpInvokeVirtual
	OpInvokeStatic
	OpInvokeSuper
	OpInvokeSpecial
	OpInvokeInterface
	OpInvokeNative
	OpReturn
	OpGoto
	OpIf
	OpIfTyped
	OpTableSwitch
	OpLookupSwitch
	OpThrow
	OpMonitorEnter
	OpMonitorExit
	OpNewObj
	OpNewArr
	OpNewDim
	OpInstanceOf
	OpCheckCast
	OpNewObjectFused
)

// opcodeFor maps a (fully lowered) IR op to its emitted opcode. Ops with
// no runtime effect at the emitter boundary (the stack-shape markers any
// un-fused dup/pop/swap still carries) are handled by the caller before
// reaching here.
func opcodeFor(op ir.Op) Opcode {
	switch op {
	case ir.OpLoadLocal:
		return OpLoadLocal
	case ir.OpStoreLocal:
		return OpStoreLocal
	case ir.OpLoadField, ir.OpThisGetField:
		return OpLoadField
	case ir.OpStoreField:
		return OpStoreField
	case ir.OpLoadStatic:
		return OpLoadStatic
	case ir.OpStoreStatic:
		return OpStoreStatic
	case ir.OpArrayLoad:
		return OpArrayLoad
	case ir.OpArrayStore:
		return OpArrayStore
	case ir.OpArithmetic:
		return OpArith
	case ir.OpComparison:
		return OpCompare
	case ir.OpConvert:
		return OpConvert
	case ir.OpInvokeVirtual:
		return OpInvokeVirtual
	case ir.OpInvokeStatic:
		return OpInvokeStatic
	case ir.OpInvokeSuper:
		return OpInvokeSuper
	case ir.OpInvokeSpecial:
		return OpInvokeSpecial
	case ir.OpInvokeInterface:
		return OpInvokeInterface
	case ir.OpInvokeNative:
		return OpInvokeNative
	case ir.OpReturn:
		return OpReturn
	case ir.OpGoto:
		return OpGoto
	case ir.OpIf:
		return OpIf
	case ir.OpTableSwitch:
		return OpTableSwitch
	case ir.OpLookupSwitch:
		return OpLookupSwitch
	case ir.OpThrow:
		return OpThrow
	case ir.OpMonitorEnter:
		return OpMonitorEnter
	case ir.OpMonitorExit:
		return OpMonitorExit
	case ir.OpNew:
		return OpNewObj
	case ir.OpNewArray:
		return OpNewArr
	case ir.OpNewDimension:
		return OpNewDim
	case ir.OpInstanceOf:
		return OpInstanceOf
	case ir.OpCheckCast:
		return OpCheckCast
	case ir.OpClassGetStatic:
		return OpLoadStatic
	case ir.OpNewObject:
		return OpNewObjectFused
	case ir.OpIfTyped:
		return OpIfTyped
	default:
		return 0
	}
}
