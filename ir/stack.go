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

package ir

import "fmt"

// ComputeMaxStack performs a symbolic data-flow walk of list's instructions,
// following every normal-flow edge (fallthrough, goto, if/switch targets)
// plus one synthetic edge per exception handler entry (handlerOffsets, each
// entered with exactly one value already on the stack -- the thrown
// exception -- per the JVM's own exception-handling stack-clearing rule),
// and returns the deepest operand-stack depth reached anywhere in the
// method.
//
// Depth is counted in stack slots, not JVM words: this core's operand stack
// (interp/frame.go's Frame.stack/stackKind) holds exactly one object.Word
// per value regardless of its primitive width, so a long or double occupies
// one slot here the same as an int, matching what the interpreter actually
// carries at runtime rather than the classic two-word JVM accounting.
//
// Along the way it enforces the stack-discipline property every predecessor
// of a branch target must satisfy: whichever edge reaches an instruction
// first fixes that instruction's depth, and every subsequent edge reaching
// it must agree exactly, or ComputeMaxStack fails with the offending offset
// and both depths. Unreachable code (no predecessor at all, direct or
// exception-handler) is simply never visited, matching what the method
// actually executes.
func ComputeMaxStack(list *List, handlerOffsets []int) (int, error) {
	first := list.First()
	if first == nil {
		return 0, nil
	}

	byOffset := make(map[int]*Instruction, list.length)
	list.Each(func(ins *Instruction) {
		if _, ok := byOffset[ins.OrigOffset]; !ok {
			byOffset[ins.OrigOffset] = ins
		}
	})
	resolve := func(origTarget int) *Instruction {
		if ins, ok := byOffset[origTarget]; ok {
			return ins
		}
		// Ceiling lookup, mirroring emit.methodEmission.resolveTarget: a
		// fusion pass can remove the instruction a branch originally
		// targeted, so fall back to the next surviving instruction at or
		// after that offset.
		var best *Instruction
		bestOff := -1
		for off, ins := range byOffset {
			if off >= origTarget && (best == nil || off < bestOff) {
				best, bestOff = ins, off
			}
		}
		return best
	}

	depth := make(map[*Instruction]int, list.length)
	type pending struct {
		ins *Instruction
		d   int
	}
	var queue []pending
	seed := func(ins *Instruction, d int) error {
		if ins == nil {
			return nil
		}
		if got, ok := depth[ins]; ok {
			if got != d {
				return fmt.Errorf("ir: inconsistent stack depth at offset %d: %d vs %d", ins.OrigOffset, got, d)
			}
			return nil
		}
		depth[ins] = d
		queue = append(queue, pending{ins, d})
		return nil
	}

	if err := seed(first, 0); err != nil {
		return 0, err
	}
	for _, off := range handlerOffsets {
		if err := seed(resolve(off), 1); err != nil {
			return 0, err
		}
	}

	max := 0
	visited := make(map[*Instruction]bool, list.length)
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if visited[w.ins] {
			continue
		}
		visited[w.ins] = true

		if w.d > max {
			max = w.d
		}
		pop, push := stackDelta(w.ins)
		if w.d < pop {
			return 0, fmt.Errorf("ir: stack underflow at offset %d: depth %d, needs %d", w.ins.OrigOffset, w.d, pop)
		}
		after := w.d - pop + push
		if after > max {
			max = after
		}

		switch w.ins.Op {
		case OpGoto:
			if err := seed(resolve(w.ins.Target), after); err != nil {
				return 0, err
			}
		case OpIf, OpIfTyped:
			if err := seed(fallthroughOf(w.ins), after); err != nil {
				return 0, err
			}
			if err := seed(resolve(w.ins.Target), after); err != nil {
				return 0, err
			}
		case OpTableSwitch, OpLookupSwitch:
			for _, t := range w.ins.SwitchTargets {
				if err := seed(resolve(t), after); err != nil {
					return 0, err
				}
			}
			if err := seed(resolve(w.ins.SwitchDefault), after); err != nil {
				return 0, err
			}
		case OpReturn, OpThrow:
			// Terminal: no successor.
		default:
			if err := seed(fallthroughOf(w.ins), after); err != nil {
				return 0, err
			}
		}
	}
	return max, nil
}

// fallthroughOf returns ins's physical successor in its list, or nil at the
// list's end (the sentinel tail node, Op -1).
func fallthroughOf(ins *Instruction) *Instruction {
	if ins.Next == nil || ins.Next.Op == -1 {
		return nil
	}
	return ins.Next
}

// stackDelta reports how many slots ins pops and pushes, per
// ComputeMaxStack's doc comment on slot- versus word-counting.
func stackDelta(ins *Instruction) (pop, push int) {
	switch ins.Op {
	case OpLoadLocal, OpLoadConstant, OpLoadStatic, OpClassGetStatic, OpNew:
		return 0, 1
	case OpStoreLocal, OpStoreStatic, OpMonitorEnter, OpMonitorExit, OpThrow:
		return 1, 0
	case OpLoadField, OpThisGetField, OpCheckCast, OpInstanceOf, OpConvert:
		return 1, 1
	case OpStoreField:
		return 2, 0
	case OpArrayLoad:
		return 2, 1
	case OpArrayStore:
		return 3, 0
	case OpArithmetic:
		switch {
		case ins.Arith == ArithLength:
			return 1, 1
		case isIncrementInstruction(ins):
			return 0, 0
		case ins.Arith == ArithNeg:
			return 1, 1
		default:
			// Binary op, shifts included: the shifted value plus either a
			// second operand or a shift-distance int, always exactly two
			// slots popped (spec-equivalent to interp.doArith).
			return 2, 1
		}
	case OpComparison:
		return 2, 1
	case OpInvokeStatic, OpInvokeNative:
		return descriptorParamCount(ins.MethodDescr), returnSlots(ins.MethodDescr)
	case OpInvokeVirtual, OpInvokeSpecial, OpInvokeSuper, OpInvokeInterface:
		return descriptorParamCount(ins.MethodDescr) + 1, returnSlots(ins.MethodDescr)
	case OpReturn:
		if ins.Type == TypeBoolean { // void: see ir.returnType
			return 0, 0
		}
		return 1, 0
	case OpGoto:
		return 0, 0
	case OpIf:
		switch ins.IfKind {
		case IfCompareInts, IfCompareRefs:
			return 2, 0
		default: // IfCompareZero, IfCompareNull
			return 1, 0
		}
	case OpIfTyped:
		return 2, 0
	case OpTableSwitch, OpLookupSwitch:
		return 1, 0
	case OpNewArray:
		return 1, 1
	case OpNewDimension:
		return ins.Dimension, 1
	case OpNewObject:
		return descriptorParamCount(ins.MethodDescr), 1
	case OpDupStack, OpPopStack, OpSwapStack:
		// Not yet lowered to real bytecode: emit.instructionSize emits zero
		// bytes for these, so they have no runtime stack effect to account
		// for here either. Any instance surviving past Lower is dup/pop/swap
		// bytecode the translator accepts but doesn't yet resolve into
		// local-temp loads/stores -- see DESIGN.md.
		return 0, 0
	default:
		return 0, 0
	}
}

func isIncrementInstruction(ins *Instruction) bool {
	return ins.Op == OpArithmetic && ins.Constant.Value != nil
}

// descriptorParamCount counts descr's declared parameters, one slot each
// regardless of JVM word width -- see interp/invoke.go's popArgs doc
// comment for why a long/double parameter is still exactly one pop on this
// core's operand stack.
func descriptorParamCount(descr string) int {
	i := 0
	if i >= len(descr) || descr[i] != '(' {
		return 0
	}
	i++
	n := 0
	for i < len(descr) && descr[i] != ')' {
		switch descr[i] {
		case 'L':
			i++
			for i < len(descr) && descr[i] != ';' {
				i++
			}
			i++
		case '[':
			for i < len(descr) && descr[i] == '[' {
				i++
			}
			if i < len(descr) && descr[i] == 'L' {
				for i < len(descr) && descr[i] != ';' {
					i++
				}
			}
			i++
		default:
			i++
		}
		n++
	}
	return n
}

// returnSlots reports whether descr's return type pushes a value (1) or is
// void (0).
func returnSlots(descr string) int {
	i := 0
	for i < len(descr) && descr[i] != ')' {
		i++
	}
	i++
	if i >= len(descr) || descr[i] == 'V' {
		return 0
	}
	return 1
}
