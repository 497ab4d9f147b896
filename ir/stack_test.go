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

import "testing"

func TestComputeMaxStackSimpleArithmetic(t *testing.T) {
	// iconst_1; iconst_2; iadd; ireturn: depth goes 0,1,2, then the add
	// leaves 1, peaking at 2.
	list := NewList()
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(1)}, OrigOffset: 0})
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(2)}, OrigOffset: 1})
	list.Append(&Instruction{Op: OpArithmetic, Type: TypeInt, Arith: ArithAdd, OrigOffset: 2})
	list.Append(&Instruction{Op: OpReturn, Type: TypeInt, OrigOffset: 3})

	max, err := ComputeMaxStack(list, nil)
	if err != nil {
		t.Fatalf("ComputeMaxStack: %v", err)
	}
	if max != 2 {
		t.Fatalf("want max depth 2, got %d", max)
	}
}

// TestComputeMaxStackBranchJoinAgrees builds an if/else that both push one
// value before falling through to a shared return, checking that two
// distinct predecessors of the same join instruction computing identical
// depths is accepted rather than misreported as a conflict.
func TestComputeMaxStackBranchJoinAgrees(t *testing.T) {
	list := NewList()
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(0)}, OrigOffset: 0})
	ifIns := &Instruction{Op: OpIf, Cond: CondEQ, IfKind: IfCompareZero, Target: 20, OrigOffset: 1}
	list.Append(ifIns)
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(1)}, OrigOffset: 2})
	list.Append(&Instruction{Op: OpGoto, Target: 30, OrigOffset: 3})
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(2)}, OrigOffset: 20})
	list.Append(&Instruction{Op: OpReturn, Type: TypeInt, OrigOffset: 30})

	max, err := ComputeMaxStack(list, nil)
	if err != nil {
		t.Fatalf("ComputeMaxStack: %v", err)
	}
	if max != 1 {
		t.Fatalf("want max depth 1, got %d", max)
	}
}

// TestComputeMaxStackRejectsInconsistentJoin builds two reachable paths to
// the same join instruction (offset 10) that disagree about how many values
// are on the stack on arrival: the "if" branch consumes its test value and
// jumps in at depth 0, while the fallthrough path pushes two more values
// before jumping to the same target at depth 2. ComputeMaxStack must report
// this rather than silently picking whichever predecessor it saw first.
func TestComputeMaxStackRejectsInconsistentJoin(t *testing.T) {
	list := NewList()
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(0)}, OrigOffset: 0})
	list.Append(&Instruction{Op: OpIf, Cond: CondEQ, IfKind: IfCompareZero, Target: 10, OrigOffset: 1})
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(1)}, OrigOffset: 2})
	list.Append(&Instruction{Op: OpLoadConstant, Constant: ConstantRef{Value: int32(2)}, OrigOffset: 3})
	list.Append(&Instruction{Op: OpGoto, Target: 10, OrigOffset: 4})
	// A void return here (TypeBoolean, per ir.returnType) so the first
	// predecessor to reach offset 10 doesn't trip a stack-underflow error
	// before the second, conflicting predecessor is ever walked.
	list.Append(&Instruction{Op: OpReturn, Type: TypeBoolean, OrigOffset: 10})

	_, err := ComputeMaxStack(list, nil)
	if err == nil {
		t.Fatalf("expected an inconsistent stack depth error")
	}
}
