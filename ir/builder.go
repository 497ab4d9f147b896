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
	"fmt"

	"github.com/squawkvm/squawk/classfile"
	"github.com/squawkvm/squawk/common"
)

// Build runs phase 1 of the translator: it walks rm's verbatim JVM
// bytecode one instruction at a time and emits the equivalent IR node
// (spec §4.E). Branch and switch targets are recorded as bytecode byte
// offsets; the emitter resolves them to final positions once slots have
// been assigned. rc is the owning RawClass, needed to resolve the
// constant pool entries ldc/getfield/invokeX/etc. reference.
func Build(rc *classfile.RawClass, rm *classfile.RawMethod) (*List, error) {
	b := &builder{rc: rc, rm: rm, code: rm.Code, list: NewList(), at: make(map[int]*Instruction)}
	for b.pc < len(b.code) {
		start := b.pc
		ins, err := b.step()
		if err != nil {
			return nil, fmt.Errorf("%s%s: offset %d: %w", rm.Name, rm.Descriptor, start, err)
		}
		if ins != nil {
			ins.SourceLine = rm.LineNumbers[start]
			ins.OrigOffset = start
			b.list.Append(ins)
			b.at[start] = ins
		}
	}
	return b.list, nil
}

type builder struct {
	rc   *classfile.RawClass
	rm   *classfile.RawMethod
	code []byte
	pc   int
	list *List
	// at maps a bytecode byte offset to the instruction translated from
	// the opcode starting there, so branch/switch targets (still raw byte
	// offsets after phase 1) can be validated against real instruction
	// boundaries by a later pass.
	at map[int]*Instruction
}

func (b *builder) u1() int {
	v := int(b.code[b.pc])
	b.pc++
	return v
}

func (b *builder) s1() int {
	v := int(int8(b.code[b.pc]))
	b.pc++
	return v
}

func (b *builder) u2() int {
	v := int(b.code[b.pc])<<8 | int(b.code[b.pc+1])
	b.pc += 2
	return v
}

func (b *builder) s2() int {
	v := int(int16(uint16(b.code[b.pc])<<8 | uint16(b.code[b.pc+1])))
	b.pc += 2
	return v
}

func (b *builder) s4() int {
	v := int(int32(uint32(b.code[b.pc])<<24 | uint32(b.code[b.pc+1])<<16 | uint32(b.code[b.pc+2])<<8 | uint32(b.code[b.pc+3])))
	b.pc += 4
	return v
}

// step translates the opcode at the current pc, advancing pc past its
// operands, and returns the IR node (nil for nop, which carries no
// runtime effect and is simply dropped).
func (b *builder) step() (*Instruction, error) {
	op := b.u1()
	switch op {
	case opNop:
		return nil, nil

	case opAconstNull:
		return &Instruction{Op: OpLoadConstant, Type: TypeReference, Constant: ConstantRef{Value: nil}}, nil
	case opIconstM1, opIconst0, 0x04, 0x05, 0x06, 0x07, opIconst5:
		return &Instruction{Op: OpLoadConstant, Type: TypeInt, Constant: ConstantRef{Value: int32(op - opIconst0)}}, nil
	case opLconst0, opLconst1:
		return &Instruction{Op: OpLoadConstant, Type: TypeLong, Constant: ConstantRef{Value: int64(op - opLconst0)}}, nil
	case opFconst0, 0x0c, opFconst2:
		return &Instruction{Op: OpLoadConstant, Type: TypeFloat, Constant: ConstantRef{Value: float32(op - opFconst0)}}, nil
	case opDconst0, opDconst1:
		return &Instruction{Op: OpLoadConstant, Type: TypeDouble, Constant: ConstantRef{Value: float64(op - opDconst0)}}, nil
	case opBipush:
		return &Instruction{Op: OpLoadConstant, Type: TypeInt, Constant: ConstantRef{Value: int32(b.s1())}}, nil
	case opSipush:
		return &Instruction{Op: OpLoadConstant, Type: TypeInt, Constant: ConstantRef{Value: int32(b.s2())}}, nil

	case opLdc:
		v, err := b.rc.ResolveLdc(uint16(b.u1()))
		if err != nil {
			return nil, err
		}
		return ldcInstruction(v), nil
	case opLdcW:
		v, err := b.rc.ResolveLdc(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		return ldcInstruction(v), nil
	case opLdc2W:
		v, err := b.rc.ResolveLdc2(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		t := TypeLong
		if _, ok := v.(float64); ok {
			t = TypeDouble
		}
		return &Instruction{Op: OpLoadConstant, Type: t, Constant: ConstantRef{Value: v}}, nil

	case opIload, opLload, opFload, opDload, opAload:
		return b.loadLocal(localOpType(op), b.u1()), nil
	case opIload0, opIload0 + 1, opIload0 + 2, opIload3:
		return b.loadLocal(TypeInt, op-opIload0), nil
	case opLload0, opLload0 + 1, opLload0 + 2, opLload3:
		return b.loadLocal(TypeLong, op-opLload0), nil
	case opFload0, opFload0 + 1, opFload0 + 2, opFload3:
		return b.loadLocal(TypeFloat, op-opFload0), nil
	case opDload0, opDload0 + 1, opDload0 + 2, opDload3:
		return b.loadLocal(TypeDouble, op-opDload0), nil
	case opAload0, opAload0 + 1, opAload0 + 2, opAload3:
		return b.loadLocal(TypeReference, op-opAload0), nil

	case opIstore, opLstore, opFstore, opDstore, opAstore:
		return b.storeLocal(localOpType(op), b.u1()), nil
	case opIstore0, opIstore0 + 1, opIstore0 + 2, opIstore3:
		return b.storeLocal(TypeInt, op-opIstore0), nil
	case opLstore0, opLstore0 + 1, opLstore0 + 2, opLstore3:
		return b.storeLocal(TypeLong, op-opLstore0), nil
	case opFstore0, opFstore0 + 1, opFstore0 + 2, opFstore3:
		return b.storeLocal(TypeFloat, op-opFstore0), nil
	case opDstore0, opDstore0 + 1, opDstore0 + 2, opDstore3:
		return b.storeLocal(TypeDouble, op-opDstore0), nil
	case opAstore0, opAstore0 + 1, opAstore0 + 2, opAstore3:
		return b.storeLocal(TypeReference, op-opAstore0), nil

	case opIaload, opLaload, opFaload, opDaload, opAaload, opBaload, opCaload, opSaload:
		return &Instruction{Op: OpArrayLoad, Type: arrayOpType(op, true)}, nil
	case opIastore, opLastore, opFastore, opDastore, opAastore, opBastore, opCastore, opSastore:
		return &Instruction{Op: OpArrayStore, Type: arrayOpType(op, false)}, nil

	case opPop:
		return &Instruction{Op: OpPopStack, StackWords: 1}, nil
	case opPop2:
		return &Instruction{Op: OpPopStack, StackWords: 2}, nil
	case opDup:
		return &Instruction{Op: OpDupStack, StackWords: 1, StackSkip: 0}, nil
	case opDupX1:
		return &Instruction{Op: OpDupStack, StackWords: 1, StackSkip: 1}, nil
	case opDupX2:
		return &Instruction{Op: OpDupStack, StackWords: 1, StackSkip: 2}, nil
	case opDup2:
		return &Instruction{Op: OpDupStack, StackWords: 2, StackSkip: 0}, nil
	case opDup2X1:
		return &Instruction{Op: OpDupStack, StackWords: 2, StackSkip: 1}, nil
	case opDup2X2:
		return &Instruction{Op: OpDupStack, StackWords: 2, StackSkip: 2}, nil
	case opSwap:
		return &Instruction{Op: OpSwapStack}, nil

	case opIadd, opLadd, opFadd, opDadd:
		return &Instruction{Op: OpArithmetic, Type: arithWordType(op, opIadd), Arith: ArithAdd}, nil
	case opIsub, opLsub, opFsub, opDsub:
		return &Instruction{Op: OpArithmetic, Type: arithWordType(op, opIsub), Arith: ArithSub}, nil
	case opImul, opLmul, opFmul, opDmul:
		return &Instruction{Op: OpArithmetic, Type: arithWordType(op, opImul), Arith: ArithMul}, nil
	case opIdiv, opLdiv, opFdiv, opDdiv:
		return &Instruction{Op: OpArithmetic, Type: arithWordType(op, opIdiv), Arith: ArithDiv}, nil
	case opIrem, opLrem, opFrem, opDrem:
		return &Instruction{Op: OpArithmetic, Type: arithWordType(op, opIrem), Arith: ArithRem}, nil
	case opIneg, opLneg, opFneg, opDneg:
		return &Instruction{Op: OpArithmetic, Type: arithWordType(op, opIneg), Arith: ArithNeg}, nil
	case opIshl, opLshl:
		return &Instruction{Op: OpArithmetic, Type: arithShiftType(op, opIshl), Arith: ArithShl}, nil
	case opIshr, opLshr:
		return &Instruction{Op: OpArithmetic, Type: arithShiftType(op, opIshr), Arith: ArithShr}, nil
	case opIushr, opLushr:
		return &Instruction{Op: OpArithmetic, Type: arithShiftType(op, opIushr), Arith: ArithUshr}, nil
	case opIand, opLand:
		return &Instruction{Op: OpArithmetic, Type: arithShiftType(op, opIand), Arith: ArithAnd}, nil
	case opIor, opLor:
		return &Instruction{Op: OpArithmetic, Type: arithShiftType(op, opIor), Arith: ArithOr}, nil
	case opIxor, opLxor:
		return &Instruction{Op: OpArithmetic, Type: arithShiftType(op, opIxor), Arith: ArithXor}, nil

	case opIinc:
		slot := b.u1()
		delta := b.s1()
		return &Instruction{Op: OpArithmetic, Type: TypeInt, Slot: slot, Constant: ConstantRef{Value: int32(delta)}}, nil

	case opI2l:
		return &Instruction{Op: OpConvert, Type: TypeLong}, nil
	case opI2f:
		return &Instruction{Op: OpConvert, Type: TypeFloat}, nil
	case opI2d:
		return &Instruction{Op: OpConvert, Type: TypeDouble}, nil
	case opL2i:
		return &Instruction{Op: OpConvert, Type: TypeInt}, nil
	case opL2f:
		return &Instruction{Op: OpConvert, Type: TypeFloat}, nil
	case opL2d:
		return &Instruction{Op: OpConvert, Type: TypeDouble}, nil
	case opF2i:
		return &Instruction{Op: OpConvert, Type: TypeInt}, nil
	case opF2l:
		return &Instruction{Op: OpConvert, Type: TypeLong}, nil
	case opF2d:
		return &Instruction{Op: OpConvert, Type: TypeDouble}, nil
	case opD2i:
		return &Instruction{Op: OpConvert, Type: TypeInt}, nil
	case opD2l:
		return &Instruction{Op: OpConvert, Type: TypeLong}, nil
	case opD2f:
		return &Instruction{Op: OpConvert, Type: TypeFloat}, nil
	case opI2b:
		return &Instruction{Op: OpConvert, Type: TypeByte}, nil
	case opI2c:
		return &Instruction{Op: OpConvert, Type: TypeChar}, nil
	case opI2s:
		return &Instruction{Op: OpConvert, Type: TypeShort}, nil

	case opLcmp:
		return &Instruction{Op: OpComparison, Compare: CompareLong}, nil
	case opFcmpl, opDcmpl:
		return &Instruction{Op: OpComparison, Compare: CompareFloatL}, nil
	case opFcmpg, opDcmpg:
		return &Instruction{Op: OpComparison, Compare: CompareFloatG}, nil

	case opIfeq, opIfne, opIflt, opIfge, opIfgt, opIfle:
		return b.branchIf(ifCond(op, opIfeq), IfCompareZero, b.pc-1)
	case opIfIcmpeq, opIfIcmpne, opIfIcmplt, opIfIcmpge, opIfIcmpgt, opIfIcmple:
		return b.branchIf(ifCond(op, opIfIcmpeq), IfCompareInts, b.pc-1)
	case opIfAcmpeq, opIfAcmpne:
		return b.branchIf(condEither(op == opIfAcmpeq), IfCompareRefs, b.pc-1)
	case opIfnull, opIfnonnull:
		return b.branchIf(condEither(op == opIfnull), IfCompareNull, b.pc-1)
	case opGoto:
		return b.branch(OpGoto, 0, b.pc-1)
	case opGotoW:
		start := b.pc - 1
		off := b.s4()
		return &Instruction{Op: OpGoto, Target: start + off}, nil

	case opTableswitch:
		return b.tableswitch()
	case opLookupswitch:
		return b.lookupswitch()

	case opIreturn, opLreturn, opFreturn, opDreturn, opAreturn, opReturn:
		return &Instruction{Op: OpReturn, Type: returnType(op)}, nil

	case opGetstatic:
		return b.fieldOp(OpLoadStatic)
	case opPutstatic:
		return b.fieldOp(OpStoreStatic)
	case opGetfield:
		return b.fieldOp(OpLoadField)
	case opPutfield:
		return b.fieldOp(OpStoreField)

	case opInvokevirtual:
		return b.invoke(OpInvokeVirtual, false)
	case opInvokespecial:
		return b.invoke(OpInvokeSpecial, false)
	case opInvokestatic:
		return b.invoke(OpInvokeStatic, false)
	case opInvokeinterface:
		ins, err := b.invoke(OpInvokeInterface, true)
		if err != nil {
			return nil, err
		}
		b.u1() // count, historical and unused since CLDC classfiles still carry it
		b.u1() // zero byte
		return ins, nil

	case opNew:
		name, err := b.rc.ResolveClassName(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpNew, ClassName: name}, nil
	case opNewarray:
		return &Instruction{Op: OpNewArray, Type: primitiveArrayType(b.u1())}, nil
	case opAnewarray:
		name, err := b.rc.ResolveClassName(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpNewArray, Type: TypeReference, ClassName: name}, nil
	case opArraylength:
		return &Instruction{Op: OpArithmetic, Type: TypeInt, Arith: ArithLength}, nil
	case opMultianewarray:
		name, err := b.rc.ResolveClassName(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		dims := b.u1()
		return &Instruction{Op: OpNewDimension, ClassName: name, Dimension: dims}, nil

	case opAthrow:
		return &Instruction{Op: OpThrow}, nil
	case opCheckcast:
		name, err := b.rc.ResolveClassName(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpCheckCast, ClassName: name}, nil
	case opInstanceof:
		name, err := b.rc.ResolveClassName(uint16(b.u2()))
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpInstanceOf, ClassName: name}, nil

	case opMonitorenter:
		return &Instruction{Op: OpMonitorEnter}, nil
	case opMonitorexit:
		return &Instruction{Op: OpMonitorExit}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported opcode 0x%02x", common.ErrVerify, op)
	}
}

func ldcInstruction(v interface{}) *Instruction {
	switch vv := v.(type) {
	case int32:
		return &Instruction{Op: OpLoadConstant, Type: TypeInt, Constant: ConstantRef{Value: vv}}
	case float32:
		return &Instruction{Op: OpLoadConstant, Type: TypeFloat, Constant: ConstantRef{Value: vv}}
	case string:
		return &Instruction{Op: OpLoadConstant, Type: TypeReference, Constant: ConstantRef{Value: vv}}
	case classfile.ClassLiteral:
		return &Instruction{Op: OpLoadConstant, Type: TypeReference, Constant: ConstantRef{Value: vv}}
	default:
		return &Instruction{Op: OpLoadConstant, Type: TypeReference, Constant: ConstantRef{Value: v}}
	}
}

func (b *builder) loadLocal(t PrimType, slot int) *Instruction {
	ins := &Instruction{Op: OpLoadLocal, Type: t, Slot: slot}
	if slot == 0 && b.rm.AccessFlags&classfile.AccStatic == 0 {
		ins.IsThis = true
	}
	return ins
}

func (b *builder) storeLocal(t PrimType, slot int) *Instruction {
	return &Instruction{Op: OpStoreLocal, Type: t, Slot: slot}
}

func (b *builder) fieldOp(op Op) (*Instruction, error) {
	owner, name, descr, err := b.rc.ResolveRef(uint16(b.u2()))
	if err != nil {
		return nil, err
	}
	ins := &Instruction{Op: op, Owner: owner, FieldName: name, FieldDescr: descr, Type: descriptorType(descr)}
	if (op == OpLoadField || op == OpStoreField) && owner == b.rc.ThisClass {
		if op == OpLoadField {
			ins.Op = OpThisGetField
		}
	}
	if op == OpLoadStatic && owner == b.rc.ThisClass {
		ins.Op = OpClassGetStatic
	}
	return ins, nil
}

func (b *builder) invoke(op Op, iface bool) (*Instruction, error) {
	idx := uint16(b.u2())
	owner, name, descr, err := b.rc.ResolveRef(idx)
	if err != nil {
		return nil, err
	}
	if owner == "java/lang/VM" && len(name) > 3 && name[:3] == "do_" {
		return nil, fmt.Errorf("%w: user code may not call java.lang.VM.%s directly", common.ErrVerify, name)
	}
	ins := &Instruction{Op: op, MethodOwner: owner, MethodName: name, MethodDescr: descr}
	if op == OpInvokeSpecial && owner == b.rc.SuperClass && owner != b.rc.ThisClass {
		// invokespecial dispatched to the immediate superclass, whether a
		// super() constructor chain-call or an explicit super.foo() --
		// never the invokespecial a fresh `new C(...)` generates, since
		// that always targets C itself. Kept distinct from OpInvokeSpecial
		// so the new+<init> fusion rule only ever matches the latter.
		ins.Op = OpInvokeSuper
	}
	return ins, nil
}

func (b *builder) branch(op Op, cond Cond, opStart int) (*Instruction, error) {
	off := b.s2()
	return &Instruction{Op: op, Cond: cond, Target: opStart + off}, nil
}

// branchIf is branch's If-specific counterpart, additionally recording the
// operand shape (ifKind) the emitter and interpreter need since Cond alone
// doesn't distinguish e.g. ifeq from if_icmpeq.
func (b *builder) branchIf(cond Cond, ifKind IfKind, opStart int) (*Instruction, error) {
	off := b.s2()
	return &Instruction{Op: OpIf, Cond: cond, IfKind: ifKind, Target: opStart + off}, nil
}

func (b *builder) tableswitch() (*Instruction, error) {
	opStart := b.pc - 1
	for b.pc%4 != 0 {
		b.pc++
	}
	def := opStart + b.s4()
	low := b.s4()
	high := b.s4()
	n := high - low + 1
	targets := make([]int, 0, n)
	for i := 0; i < n; i++ {
		targets = append(targets, opStart+b.s4())
	}
	return &Instruction{Op: OpTableSwitch, SwitchLow: low, SwitchTargets: targets, SwitchDefault: def}, nil
}

func (b *builder) lookupswitch() (*Instruction, error) {
	opStart := b.pc - 1
	for b.pc%4 != 0 {
		b.pc++
	}
	def := opStart + b.s4()
	n := b.s4()
	keys := make([]int, 0, n)
	targets := make([]int, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, b.s4())
		targets = append(targets, opStart+b.s4())
	}
	return &Instruction{Op: OpLookupSwitch, SwitchKeys: keys, SwitchTargets: targets, SwitchDefault: def}, nil
}

func localOpType(op int) PrimType {
	switch op {
	case opIload, opIstore:
		return TypeInt
	case opLload, opLstore:
		return TypeLong
	case opFload, opFstore:
		return TypeFloat
	case opDload, opDstore:
		return TypeDouble
	default:
		return TypeReference
	}
}

func arrayOpType(op int, load bool) PrimType {
	base := opIaload
	if !load {
		base = opIastore
	}
	switch op - base {
	case 0:
		return TypeInt
	case 1:
		return TypeLong
	case 2:
		return TypeFloat
	case 3:
		return TypeDouble
	case 4:
		return TypeReference
	case 5:
		return TypeByte
	case 6:
		return TypeChar
	default:
		return TypeShort
	}
}

// arithWordType recovers an add/sub/mul/div/rem/neg family opcode's operand
// width from its position relative to base, the int-typed member of the
// four (int, long, float, double laid out in that order, one byte apart).
func arithWordType(op, base int) PrimType {
	switch op - base {
	case 0:
		return TypeInt
	case 1:
		return TypeLong
	case 2:
		return TypeFloat
	default:
		return TypeDouble
	}
}

// arithShiftType is arithWordType's counterpart for the shift/bitwise
// family, which the JVM only defines int and long forms of.
func arithShiftType(op, base int) PrimType {
	if op == base {
		return TypeInt
	}
	return TypeLong
}

func returnType(op int) PrimType {
	switch op {
	case opIreturn:
		return TypeInt
	case opLreturn:
		return TypeLong
	case opFreturn:
		return TypeFloat
	case opDreturn:
		return TypeDouble
	case opAreturn:
		return TypeReference
	default:
		return TypeBoolean // void: no IR-level value, arbitrarily tagged
	}
}

func ifCond(op, base int) Cond {
	return Cond(op - base)
}

func condEither(eq bool) Cond {
	if eq {
		return CondEQ
	}
	return CondNE
}

// primitiveArrayType maps newarray's atype operand (JVM class file format
// §4.6, values 4-11) to the element's primitive type.
func primitiveArrayType(atype int) PrimType {
	switch atype {
	case 4:
		return TypeBoolean
	case 5:
		return TypeChar
	case 6:
		return TypeFloat
	case 7:
		return TypeDouble
	case 8:
		return TypeByte
	case 9:
		return TypeShort
	case 10:
		return TypeInt
	default:
		return TypeLong
	}
}

// descriptorType maps a field descriptor's leading character to its
// PrimType, defaulting to TypeReference for object and array types.
func descriptorType(descr string) PrimType {
	if descr == "" {
		return TypeReference
	}
	switch descr[0] {
	case 'I':
		return TypeInt
	case 'J':
		return TypeLong
	case 'F':
		return TypeFloat
	case 'D':
		return TypeDouble
	case 'Z':
		return TypeBoolean
	case 'B':
		return TypeByte
	case 'C':
		return TypeChar
	case 'S':
		return TypeShort
	default:
		return TypeReference
	}
}
