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

import (
	"testing"

	"github.com/squawkvm/squawk/classfile"
	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/suite"
)

func rawClass() (*classfile.RawClass, *classfile.RawMethod) {
	rc := &classfile.RawClass{ThisClass: "Sample", SuperClass: "java/lang/Object"}
	return rc, &classfile.RawMethod{}
}

func TestEmitMethodSimpleArithmetic(t *testing.T) {
	rc, _ := rawClass()
	rm := &classfile.RawMethod{Name: "compute", Descriptor: "()I", MaxStack: 4, MaxLocals: 1,
		Code: []byte{0x04, 0x05, 0x60, 0xac}} // iconst_1; iconst_2; iadd; ireturn
	list, err := ir.Build(rc, rm)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ir.Lower(list)

	e := NewEmitter(suite.NewObjectTable())
	m, err := e.EmitMethod(MethodSource{Name: rm.Name, Descriptor: rm.Descriptor, List: list})
	if err != nil {
		t.Fatalf("EmitMethod: %v", err)
	}
	e.Finish()

	if len(m.Bytecode) == 0 {
		t.Fatalf("expected non-empty bytecode")
	}
	// iconst_1/iconst_2 each encode as [OpLoadConstI, 4-byte imm] = 5
	// bytes, iadd as [OpArith, type, arith op] = 3 bytes, ireturn as
	// [OpReturn, type] = 2 bytes: 5+5+3+2 = 15.
	if len(m.Bytecode) != 15 {
		t.Fatalf("want 15 bytes of bytecode, got %d: % x", len(m.Bytecode), m.Bytecode)
	}
	if m.Bytecode[0] != byte(OpLoadConstI) || m.Bytecode[5] != byte(OpLoadConstI) {
		t.Fatalf("expected two OpLoadConstI instructions at the head, got % x", m.Bytecode)
	}
	if m.Bytecode[10] != byte(OpArith) {
		t.Fatalf("expected OpArith at offset 10, got %#x", m.Bytecode[10])
	}
	if m.Bytecode[13] != byte(OpReturn) {
		t.Fatalf("expected OpReturn at offset 13, got %#x", m.Bytecode[13])
	}
}

func TestEmitMethodReverseParameters(t *testing.T) {
	// An instance method void m(int a, long b): JVM slots are this=0,
	// a=1, b=2-3. Squawk should place b (declared last) right after the
	// receiver at slot 1-2, and a at slot 3.
	list := ir.NewList()
	list.Append(&ir.Instruction{Op: ir.OpLoadLocal, Type: ir.TypeInt, Slot: 1})   // load a
	list.Append(&ir.Instruction{Op: ir.OpLoadLocal, Type: ir.TypeLong, Slot: 2})  // load b
	list.Append(&ir.Instruction{Op: ir.OpReturn, Type: ir.TypeBoolean})

	e := NewEmitter(suite.NewObjectTable())
	m, err := e.EmitMethod(MethodSource{Name: "m", Descriptor: "(IJ)V", List: list})
	if err != nil {
		t.Fatalf("EmitMethod: %v", err)
	}
	e.Finish()

	// OpLoadLocal, slot byte, type byte = 3 bytes each (slot < 0xFF).
	aSlot := m.Bytecode[1]
	bSlot := m.Bytecode[4]
	if bSlot != 1 {
		t.Fatalf("want b (declared last) remapped to slot 1, got %d", bSlot)
	}
	if aSlot != 3 {
		t.Fatalf("want a (declared first) remapped to slot 3, got %d", aSlot)
	}
	if m.ParameterWords != 4 { // this(1) + a(1) + b(2)
		t.Fatalf("want 4 parameter words, got %d", m.ParameterWords)
	}
}

func TestEmitMethodWideSlotEncoding(t *testing.T) {
	list := ir.NewList()
	list.Append(&ir.Instruction{Op: ir.OpLoadLocal, Type: ir.TypeInt, Slot: 300})
	list.Append(&ir.Instruction{Op: ir.OpReturn, Type: ir.TypeInt})

	e := NewEmitter(suite.NewObjectTable())
	m, err := e.EmitMethod(MethodSource{Name: "wide", Descriptor: "()V", List: list})
	if err != nil {
		t.Fatalf("EmitMethod: %v", err)
	}
	e.Finish()

	if m.Bytecode[1] != WideSlotPrefix {
		t.Fatalf("want a wide-slot prefix byte, got %#x", m.Bytecode[1])
	}
	slot := int(m.Bytecode[2]) | int(m.Bytecode[3])<<8
	if slot != 300 {
		t.Fatalf("want slot 300 encoded in the wide form, got %d", slot)
	}
}

func TestEmitMethodBranchTargetResolvesToFinalOffset(t *testing.T) {
	// goto to the following return; the branch target must resolve to that
	// instruction's final Squawk offset.
	list := ir.NewList()
	list.Append(&ir.Instruction{Op: ir.OpGoto, Target: 0, OrigOffset: 0})
	tail := &ir.Instruction{Op: ir.OpReturn, Type: ir.TypeBoolean, OrigOffset: 1}
	list.Append(tail)
	// Rewrite the goto to target the tail's original offset directly.
	list.First().Target = tail.OrigOffset

	e := NewEmitter(suite.NewObjectTable())
	m, err := e.EmitMethod(MethodSource{Name: "loop", Descriptor: "()V", List: list})
	if err != nil {
		t.Fatalf("EmitMethod: %v", err)
	}
	e.Finish()

	target := int(m.Bytecode[1]) | int(m.Bytecode[2])<<8 | int(m.Bytecode[3])<<16 | int(m.Bytecode[4])<<24
	if target != 5 { // OpGoto(1) + 4-byte operand = offset 5, where OpReturn starts
		t.Fatalf("want branch target 5, got %d", target)
	}
	if len(m.Relocations) != 1 || m.Relocations[0].Kind != suite.RelocBranchTarget {
		t.Fatalf("expected a single branch-target relocation entry, got %+v", m.Relocations)
	}
}

func TestEmitMethodExceptionTableCatchType(t *testing.T) {
	list := ir.NewList()
	list.Append(&ir.Instruction{Op: ir.OpReturn, Type: ir.TypeBoolean, OrigOffset: 0})

	e := NewEmitter(suite.NewObjectTable())
	m, err := e.EmitMethod(MethodSource{
		Name: "guarded", Descriptor: "()V", List: list,
		Exceptions: []classfile.RawExceptionHandler{
			{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: "java/lang/Exception"},
		},
	})
	if err != nil {
		t.Fatalf("EmitMethod: %v", err)
	}
	e.Finish()

	if len(m.ExceptionTable) != 1 {
		t.Fatalf("want one exception handler, got %d", len(m.ExceptionTable))
	}
	if m.ExceptionTable[0].CatchType == 0 {
		t.Fatalf("want a resolved (non-catch-all) CatchType after Finish")
	}
}

func TestEmitMethodNativeHasNoBytecode(t *testing.T) {
	e := NewEmitter(suite.NewObjectTable())
	m, err := e.EmitMethod(MethodSource{Name: "undefinedNativeMethod", Descriptor: "()V", IsStatic: true, IsNative: true})
	if err != nil {
		t.Fatalf("EmitMethod: %v", err)
	}
	if m.Bytecode != nil {
		t.Fatalf("want no bytecode for a native method, got %v", m.Bytecode)
	}
	if !m.IsNative {
		t.Fatalf("want IsNative set")
	}
}
