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

import (
	"testing"

	"github.com/squawkvm/squawk/classfile"
)

// returnIntMethod wraps code in a minimal RawClass and a ()I RawMethod,
// without going through the real loader. The class has no constant pool,
// so code must not reference one.
func returnIntMethod(code []byte) (*classfile.RawClass, *classfile.RawMethod) {
	rc := &classfile.RawClass{ThisClass: "Sample", SuperClass: "java/lang/Object"}
	rm := &classfile.RawMethod{Name: "compute", Descriptor: "()I", MaxStack: 4, MaxLocals: 1, Code: code}
	return rc, rm
}

func TestBuildSimpleArithmetic(t *testing.T) {
	// iconst_1; iconst_2; iadd; ireturn
	rc, rm := returnIntMethod([]byte{0x04, 0x05, 0x60, 0xac})
	list, err := Build(rc, rm)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if list.Len() != 4 {
		t.Fatalf("want 4 instructions, got %d", list.Len())
	}
	ops := []Op{}
	list.Each(func(ins *Instruction) { ops = append(ops, ins.Op) })
	want := []Op{OpLoadConstant, OpLoadConstant, OpArithmetic, OpReturn}
	for i, w := range want {
		if ops[i] != w {
			t.Fatalf("instruction %d: want %v, got %v", i, w, ops[i])
		}
	}
}

func TestBuildRejectsUnknownOpcode(t *testing.T) {
	rc, rm := returnIntMethod([]byte{0xfe})
	if _, err := Build(rc, rm); err == nil {
		t.Fatalf("expected an error for an unrecognized opcode")
	}
}

func TestBuildIfBranchRecordsTarget(t *testing.T) {
	// iconst_0; ifeq +4 (to offset 5, one past the 4-byte instruction pair
	// starting at offset 1); ireturn
	rc, rm := returnIntMethod([]byte{0x03, 0x99, 0x00, 0x04, 0xac})
	list, err := Build(rc, rm)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var branch *Instruction
	list.Each(func(ins *Instruction) {
		if ins.Op == OpIf {
			branch = ins
		}
	})
	if branch == nil {
		t.Fatalf("expected an If instruction")
	}
	if branch.Target != 5 {
		t.Fatalf("want branch target 5, got %d", branch.Target)
	}
	if branch.Cond != CondEQ {
		t.Fatalf("want CondEQ, got %v", branch.Cond)
	}
}

func TestLowerFoldsTypedBranch(t *testing.T) {
	list := NewList()
	list.Append(&Instruction{Op: OpComparison, Compare: CompareLong})
	list.Append(&Instruction{Op: OpIf, Cond: CondGE, Target: 42})
	Lower(list)
	if list.Len() != 1 {
		t.Fatalf("want a single fused instruction, got %d", list.Len())
	}
	first := list.First()
	if first.Op != OpIfTyped || first.Cond != CondGE || first.Target != 42 || first.Compare != CompareLong {
		t.Fatalf("unexpected fused instruction: %+v", first)
	}
}

func TestLowerFoldsNewObjectNoArgs(t *testing.T) {
	list := NewList()
	list.Append(&Instruction{Op: OpNew, ClassName: "Widget"})
	list.Append(&Instruction{Op: OpDupStack, StackWords: 1})
	list.Append(&Instruction{Op: OpInvokeSpecial, MethodOwner: "Widget", MethodName: "<init>", MethodDescr: "()V"})
	list.Append(&Instruction{Op: OpStoreLocal, Slot: 1})
	Lower(list)
	if list.Len() != 2 {
		t.Fatalf("want [NewObject, StoreLocal], got %d instructions", list.Len())
	}
	first := list.First()
	if first.Op != OpNewObject || first.ClassName != "Widget" || first.MethodName != "<init>" {
		t.Fatalf("unexpected fused instruction: %+v", first)
	}
	if first.Next.Op != OpStoreLocal {
		t.Fatalf("want StoreLocal to follow the fused allocation, got %v", first.Next.Op)
	}
}

func TestLowerFoldsNewObjectWithArgs(t *testing.T) {
	list := NewList()
	list.Append(&Instruction{Op: OpNew, ClassName: "Widget"})
	list.Append(&Instruction{Op: OpDupStack, StackWords: 1})
	list.Append(&Instruction{Op: OpLoadConstant, Type: TypeInt, Constant: ConstantRef{Value: int32(7)}})
	list.Append(&Instruction{Op: OpInvokeSpecial, MethodOwner: "Widget", MethodName: "<init>", MethodDescr: "(I)V"})
	Lower(list)
	if list.Len() != 2 {
		t.Fatalf("want [arg load, NewObject], got %d", list.Len())
	}
	if list.First().Op != OpLoadConstant {
		t.Fatalf("want the constructor argument load to survive the fold, got %v", list.First().Op)
	}
	if list.First().Next.Op != OpNewObject {
		t.Fatalf("want fused allocation after its argument, got %v", list.First().Next.Op)
	}
}

func TestRewriteUnresolvedNatives(t *testing.T) {
	list := NewList()
	list.Append(&Instruction{Op: OpInvokeStatic, MethodOwner: "java/lang/VM", MethodName: "mystery", MethodDescr: "()V"})
	RewriteUnresolvedNatives(list, func(owner, name, descr string) bool { return false })
	first := list.First()
	if first.Op != OpInvokeNative || first.MethodName != "undefinedNativeMethod" {
		t.Fatalf("unexpected rewrite result: %+v", first)
	}
}
