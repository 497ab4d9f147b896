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
	"fmt"
	"math"

	"github.com/squawkvm/squawk/classfile"
	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// Emitter assembles every method of one klass into suite.Method values
// sharing a single frequency-sorted constant object table (spec §4.E
// "per-class constant pool", §4.F "emission"). Symbolic field/method
// references are interned into that same table as "owner name descr"
// strings and patched to their final index only once the whole klass has
// been emitted and the table is frozen -- emission order must not depend
// on final constant indices, since later methods can still push a
// reference's frequency count up before Finish freezes it.
type Emitter struct {
	table        *suite.ObjectTable
	pending      []objectPatch
	catchPending []catchPatch
}

type objectPatch struct {
	code   []byte
	offset int
	value  interface{}
}

// catchPatch defers an ExceptionHandler.CatchType write until Finish,
// since (unlike a bytecode operand) it lives directly on the struct
// rather than in a byte buffer reachable by offset.
type catchPatch struct {
	field *uint16
	name  string
}

func NewEmitter(table *suite.ObjectTable) *Emitter {
	return &Emitter{table: table}
}

// MethodSource gathers what EmitMethod needs from a RawMethod plus its
// translated and lowered IR, so callers don't have to thread a dozen
// positional arguments.
type MethodSource struct {
	Name       string
	Descriptor string
	IsStatic   bool
	IsNative   bool
	List       *ir.List // already Build+Lower'd; nil for a native method
	Exceptions []classfile.RawExceptionHandler
}

// EmitMethod assigns final slots (applying the REVERSE_PARAMETERS layout),
// builds the oop-map, and encodes ms's IR into Squawk bytecode.
func (e *Emitter) EmitMethod(ms MethodSource) (*suite.Method, error) {
	if ms.IsNative || ms.List == nil {
		return &suite.Method{
			Name: ms.Name, Signature: ms.Descriptor,
			IsStatic: ms.IsStatic, IsNative: true,
			ParameterWords: ComputeSlotPlan(ms.Descriptor, ms.IsStatic).ParameterWords,
		}, nil
	}

	plan := ComputeSlotPlan(ms.Descriptor, ms.IsStatic)
	plan.apply(ms.List)

	maxLocals := maxLocalSlot(ms.List, plan.ParameterWords)
	oopBits := buildOopMap(ms.List, maxLocals)

	me := &methodEmission{e: e, plan: plan}
	if err := me.sizePass(ms.List); err != nil {
		return nil, err
	}
	code := make([]byte, me.total)
	if err := me.writePass(ms.List, code); err != nil {
		return nil, err
	}

	exceptions, err := me.remapExceptions(ms.Exceptions)
	if err != nil {
		return nil, err
	}

	lineMap := make(map[int]int, len(me.byOrig))
	for orig, at := range me.byOrig {
		if line, ok := me.lines[orig]; ok {
			lineMap[at] = line
		}
	}

	handlerOffsets := make([]int, len(ms.Exceptions))
	for i, h := range ms.Exceptions {
		handlerOffsets[i] = h.HandlerPC
	}
	maxStack, err := ir.ComputeMaxStack(ms.List, handlerOffsets)
	if err != nil {
		return nil, fmt.Errorf("emit: %s%s: %w", ms.Name, ms.Descriptor, err)
	}

	return &suite.Method{
		Name:           ms.Name,
		Signature:      ms.Descriptor,
		MaxLocals:      maxLocals,
		MaxStack:       maxStack,
		ParameterWords: plan.ParameterWords,
		IsStatic:       ms.IsStatic,
		Bytecode:       code,
		OopMap:         object.BuildOopMap(oopBits),
		ExceptionTable: exceptions,
		Relocations:    me.relocs,
		LineMap:        lineMap,
	}, nil
}

// Finish freezes the klass's shared constant table and patches every
// pending object_k operand to its final frozen index. Call once after
// every method of the klass has been emitted.
func (e *Emitter) Finish() {
	e.table.Freeze()
	for _, p := range e.pending {
		idx, ok := e.table.IndexOf(p.value)
		if !ok {
			panic(fmt.Sprintf("emit: constant %#v interned but missing after freeze", p.value))
		}
		putU4(p.code[p.offset:], uint32(idx))
	}
	for _, p := range e.catchPending {
		idx, ok := e.table.IndexOf(classfile.ClassLiteral(p.name))
		if !ok {
			panic(fmt.Sprintf("emit: catch type %q interned but missing after freeze", p.name))
		}
		*p.field = uint16(idx + 1) // +1: 0 is reserved for catch-all
	}
}

func (e *Emitter) internObject(v interface{}, code []byte, offset int) {
	e.table.Intern(v)
	e.pending = append(e.pending, objectPatch{code: code, offset: offset, value: v})
}

func maxLocalSlot(list *ir.List, parameterWords int) int {
	max := parameterWords
	list.Each(func(ins *ir.Instruction) {
		if ins.Op != ir.OpLoadLocal && ins.Op != ir.OpStoreLocal {
			return
		}
		width := 1
		if ins.Type == ir.TypeLong || ins.Type == ir.TypeDouble {
			width = 2
		}
		if ins.Slot+width > max {
			max = ins.Slot + width
		}
	})
	return max
}

func putU4(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// methodEmission holds one method's in-progress sizing/offset state across
// the size and write passes.
type methodEmission struct {
	e      *Emitter
	plan   SlotPlan
	total  int
	byOrig map[int]int // original JVM offset -> final Squawk bytecode offset
	lines  map[int]int
	relocs []suite.RelocationEntry
}

func (me *methodEmission) sizePass(list *ir.List) error {
	me.byOrig = make(map[int]int)
	me.lines = make(map[int]int)
	off := 0
	var err error
	list.Each(func(ins *ir.Instruction) {
		if err != nil {
			return
		}
		sz, e2 := instructionSize(ins)
		if e2 != nil {
			err = e2
			return
		}
		me.byOrig[ins.OrigOffset] = off
		if ins.SourceLine != 0 {
			me.lines[ins.OrigOffset] = ins.SourceLine
		}
		off += sz
	})
	me.total = off
	return err
}

// instructionSize returns an instruction's full emitted size, opcode byte
// included, exactly matching the number of bytes write() produces for the
// same instruction -- sizePass and writePass must agree byte-for-byte or
// every branch/switch/exception-table offset past the first mismatch
// corrupts.
func instructionSize(ins *ir.Instruction) (int, error) {
	switch ins.Op {
	case ir.OpDupStack, ir.OpPopStack, ir.OpSwapStack:
		return 0, nil // resolved away by the slot allocator, not emitted
	case ir.OpLoadLocal, ir.OpStoreLocal:
		return 1 + slotOperandSize(ins.Slot) + 1, nil
	case ir.OpLoadConstant:
		return constantSize(ins.Constant.Value), nil
	case ir.OpLoadField, ir.OpStoreField, ir.OpLoadStatic, ir.OpStoreStatic,
		ir.OpThisGetField, ir.OpClassGetStatic:
		return 1 + 4 + 1, nil
	case ir.OpArrayLoad, ir.OpArrayStore:
		return 1 + 1, nil
	case ir.OpArithmetic:
		if isIncrement(ins) {
			return 1 + 1 + slotOperandSize(ins.Slot) + 4, nil // opcode, type, slot, imm4
		}
		return 1 + 1 + 1, nil // opcode, type, arith op
	case ir.OpComparison:
		return 1 + 1, nil
	case ir.OpConvert:
		return 1 + 1, nil
	case ir.OpInvokeVirtual, ir.OpInvokeStatic, ir.OpInvokeSuper, ir.OpInvokeSpecial,
		ir.OpInvokeInterface, ir.OpInvokeNative:
		return 1 + 4, nil
	case ir.OpReturn:
		return 1 + 1, nil
	case ir.OpGoto:
		return 1 + 4, nil
	case ir.OpIf:
		return 1 + 1 + 1 + 4, nil // opcode, cond, ifKind, target
	case ir.OpIfTyped:
		return 1 + 1 + 1 + 4, nil
	case ir.OpTableSwitch:
		return 1 + 4 + 4 + len(ins.SwitchTargets)*4 + 4, nil
	case ir.OpLookupSwitch:
		return 1 + 4 + len(ins.SwitchKeys)*8 + 4, nil
	case ir.OpThrow, ir.OpMonitorEnter, ir.OpMonitorExit:
		return 1, nil
	case ir.OpNew, ir.OpCheckCast, ir.OpInstanceOf:
		return 1 + 4, nil
	case ir.OpNewArray:
		return 1 + 1 + 4, nil
	case ir.OpNewDimension:
		return 1 + 4 + 1, nil
	case ir.OpNewObject:
		return 1 + 4 + 4, nil
	default:
		return 0, fmt.Errorf("emit: unhandled IR op %v", ins.Op)
	}
}

func isIncrement(ins *ir.Instruction) bool {
	return ins.Op == ir.OpArithmetic && ins.Constant.Value != nil
}

func slotOperandSize(slot int) int {
	if slot < 0xFF {
		return 1
	}
	return 3 // wide prefix byte + u2
}

func constantSize(v interface{}) int {
	switch v.(type) {
	case int64, float64:
		return 1 + 8
	default:
		return 1 + 4 // int32/float32 inline, or an object_k index
	}
}

func (me *methodEmission) writePass(list *ir.List, code []byte) error {
	off := 0
	var err error
	list.Each(func(ins *ir.Instruction) {
		if err != nil {
			return
		}
		n, e2 := me.write(ins, code, off)
		if e2 != nil {
			err = e2
			return
		}
		off += n
	})
	return err
}

func (me *methodEmission) putSlot(code []byte, at, slot int) int {
	if slot < 0xFF {
		code[at] = byte(slot)
		return 1
	}
	code[at] = WideSlotPrefix
	code[at+1] = byte(slot)
	code[at+2] = byte(slot >> 8)
	return 3
}

func (me *methodEmission) resolveTarget(origTarget int) int {
	if at, ok := me.byOrig[origTarget]; ok {
		return at
	}
	// Ceiling lookup: the fusion passes can remove the instruction a
	// branch originally targeted (e.g. a target landing exactly on an
	// eliminated dup); fall back to the next surviving instruction at or
	// after that offset, or one-past-the-end for a target at the method's
	// original code length.
	best := me.total
	for orig, at := range me.byOrig {
		if orig >= origTarget && at < best {
			best = at
		}
	}
	return best
}

func (me *methodEmission) write(ins *ir.Instruction, code []byte, at int) (int, error) {
	op := opcodeFor(ins.Op)
	switch ins.Op {
	case ir.OpDupStack, ir.OpPopStack, ir.OpSwapStack:
		return 0, nil

	case ir.OpLoadLocal, ir.OpStoreLocal:
		code[at] = byte(op)
		n := me.putSlot(code, at+1, ins.Slot)
		code[at+1+n] = byte(ins.Type)
		return 1 + n + 1, nil

	case ir.OpLoadConstant:
		return me.writeConstant(ins, code, at)

	case ir.OpLoadField, ir.OpStoreField, ir.OpLoadStatic, ir.OpStoreStatic,
		ir.OpThisGetField, ir.OpClassGetStatic:
		code[at] = byte(op)
		me.e.internObject(symbolRef(ins.Owner, ins.FieldName, ins.FieldDescr), code, at+1)
		code[at+5] = byte(ins.Type)
		return 1 + 4 + 1, nil

	case ir.OpArrayLoad, ir.OpArrayStore:
		code[at] = byte(op)
		code[at+1] = byte(ins.Type)
		return 1 + 1, nil
	case ir.OpArithmetic:
		if isIncrement(ins) {
			code[at] = byte(OpIncrement)
			code[at+1] = byte(ins.Type)
			n := me.putSlot(code, at+2, ins.Slot)
			putU4(code[at+2+n:], uint32(ins.Constant.Value.(int32)))
			return 1 + 1 + n + 4, nil
		}
		code[at] = byte(op)
		code[at+1] = byte(ins.Type)
		code[at+2] = byte(ins.Arith)
		return 1 + 1 + 1, nil
	case ir.OpComparison:
		code[at] = byte(op)
		code[at+1] = byte(ins.Compare)
		return 1 + 1, nil
	case ir.OpConvert:
		code[at] = byte(op)
		code[at+1] = byte(ins.Type)
		return 1 + 1, nil

	case ir.OpInvokeVirtual, ir.OpInvokeStatic, ir.OpInvokeSuper, ir.OpInvokeSpecial,
		ir.OpInvokeInterface, ir.OpInvokeNative:
		code[at] = byte(op)
		me.e.internObject(symbolRef(ins.MethodOwner, ins.MethodName, ins.MethodDescr), code, at+1)
		return 1 + 4, nil

	case ir.OpReturn:
		code[at] = byte(op)
		code[at+1] = byte(ins.Type)
		return 1 + 1, nil

	case ir.OpGoto:
		code[at] = byte(op)
		putU4(code[at+1:], uint32(me.resolveTarget(ins.Target)))
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 1, Kind: suite.RelocBranchTarget})
		return 1 + 4, nil

	case ir.OpIf:
		code[at] = byte(op)
		code[at+1] = byte(ins.Cond)
		code[at+2] = byte(ins.IfKind)
		putU4(code[at+3:], uint32(me.resolveTarget(ins.Target)))
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 3, Kind: suite.RelocBranchTarget})
		return 1 + 1 + 1 + 4, nil

	case ir.OpIfTyped:
		code[at] = byte(op)
		code[at+1] = byte(ins.Cond)
		code[at+2] = byte(ins.Compare)
		putU4(code[at+3:], uint32(me.resolveTarget(ins.Target)))
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 3, Kind: suite.RelocBranchTarget})
		return 1 + 1 + 1 + 4, nil

	case ir.OpTableSwitch:
		return me.writeTableSwitch(ins, code, at)
	case ir.OpLookupSwitch:
		return me.writeLookupSwitch(ins, code, at)

	case ir.OpThrow, ir.OpMonitorEnter, ir.OpMonitorExit:
		code[at] = byte(op)
		return 1, nil

	case ir.OpNew, ir.OpCheckCast, ir.OpInstanceOf:
		code[at] = byte(op)
		me.e.internObject(classfile.ClassLiteral(ins.ClassName), code, at+1)
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 1, Kind: suite.RelocClassConstant})
		return 1 + 4, nil

	case ir.OpNewArray:
		code[at] = byte(op)
		code[at+1] = byte(ins.Type)
		if ins.ClassName != "" {
			me.e.internObject(classfile.ClassLiteral(ins.ClassName), code, at+2)
			me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 2, Kind: suite.RelocClassConstant})
		}
		return 1 + 1 + 4, nil

	case ir.OpNewDimension:
		code[at] = byte(op)
		me.e.internObject(classfile.ClassLiteral(ins.ClassName), code, at+1)
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 1, Kind: suite.RelocClassConstant})
		code[at+5] = byte(ins.Dimension)
		return 1 + 4 + 1, nil

	case ir.OpNewObject:
		code[at] = byte(op)
		me.e.internObject(classfile.ClassLiteral(ins.ClassName), code, at+1)
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 1, Kind: suite.RelocClassConstant})
		me.e.internObject(symbolRef(ins.MethodOwner, ins.MethodName, ins.MethodDescr), code, at+5)
		return 1 + 4 + 4, nil

	default:
		return 0, fmt.Errorf("emit: unhandled IR op %v", ins.Op)
	}
}

func (me *methodEmission) writeConstant(ins *ir.Instruction, code []byte, at int) (int, error) {
	switch v := ins.Constant.Value.(type) {
	case int32:
		code[at] = byte(OpLoadConstI)
		putU4(code[at+1:], uint32(v))
		return 1 + 4, nil
	case int64:
		code[at] = byte(OpLoadConstL)
		putU4(code[at+1:], uint32(v))
		putU4(code[at+5:], uint32(v>>32))
		return 1 + 8, nil
	case float32:
		code[at] = byte(OpLoadConstF)
		putU4(code[at+1:], math.Float32bits(v))
		return 1 + 4, nil
	case float64:
		code[at] = byte(OpLoadConstD)
		bits := math.Float64bits(v)
		putU4(code[at+1:], uint32(bits))
		putU4(code[at+5:], uint32(bits>>32))
		return 1 + 8, nil
	default:
		// string, classfile.ClassLiteral, or nil: all resolved through the
		// shared constant object table (spec §4.E "object_k" references).
		code[at] = byte(OpLoadConstObj)
		me.e.internObject(v, code, at+1)
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: at + 1, Kind: suite.RelocObjectConstant})
		return 1 + 4, nil
	}
}

func (me *methodEmission) writeTableSwitch(ins *ir.Instruction, code []byte, at int) (int, error) {
	code[at] = byte(OpTableSwitch)
	putU4(code[at+1:], uint32(int32(ins.SwitchLow)))
	putU4(code[at+5:], uint32(len(ins.SwitchTargets)))
	p := at + 9
	for _, t := range ins.SwitchTargets {
		putU4(code[p:], uint32(me.resolveTarget(t)))
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: p, Kind: suite.RelocBranchTarget})
		p += 4
	}
	putU4(code[p:], uint32(me.resolveTarget(ins.SwitchDefault)))
	me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: p, Kind: suite.RelocBranchTarget})
	return p + 4 - at, nil
}

func (me *methodEmission) writeLookupSwitch(ins *ir.Instruction, code []byte, at int) (int, error) {
	code[at] = byte(OpLookupSwitch)
	putU4(code[at+1:], uint32(len(ins.SwitchKeys)))
	p := at + 5
	for i, k := range ins.SwitchKeys {
		putU4(code[p:], uint32(int32(k)))
		putU4(code[p+4:], uint32(me.resolveTarget(ins.SwitchTargets[i])))
		me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: p + 4, Kind: suite.RelocBranchTarget})
		p += 8
	}
	putU4(code[p:], uint32(me.resolveTarget(ins.SwitchDefault)))
	me.relocs = append(me.relocs, suite.RelocationEntry{BytecodeOffset: p, Kind: suite.RelocBranchTarget})
	return p + 4 - at, nil
}

// symbolRef interns a field/method reference as a single disambiguated
// string key, the same lazily-resolved symbolic reference model the
// class-file constant pool itself uses.
func symbolRef(owner, name, descr string) string {
	return owner + " " + name + " " + descr
}

func (me *methodEmission) remapExceptions(raw []classfile.RawExceptionHandler) ([]suite.ExceptionHandler, error) {
	out := make([]suite.ExceptionHandler, len(raw))
	for i, h := range raw {
		out[i] = suite.ExceptionHandler{
			StartPC:   me.resolveTarget(h.StartPC),
			EndPC:     me.resolveTarget(h.EndPC),
			HandlerPC: me.resolveTarget(h.HandlerPC),
		}
		if h.CatchType != "" {
			me.e.table.Intern(classfile.ClassLiteral(h.CatchType))
			me.e.catchPending = append(me.e.catchPending, catchPatch{field: &out[i].CatchType, name: h.CatchType})
		}
	}
	return out, nil
}
