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
	"fmt"
	"math"

	"github.com/squawkvm/squawk/classfile"
	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/emit"
	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// step decodes and executes exactly one instruction of f, the fetch/decode/
// execute core of spec §4.G. It returns (words, errFrameReturned) once an
// OpReturn has fired (words holds the return word, nil for a void return), any
// other non-nil error to signal an implicit or thrown exception for run's
// exception-table walk, or (nil, nil) to continue.
func (vm *VM) step(f *Frame) ([]object.Word, error) {
	f.insIP = f.ip
	op := emit.Opcode(f.readU1())

	switch op {
	case emit.OpLoadLocal:
		slot := f.readSlot()
		t := f.readType()
		f.push(f.getLocal(slot), t)

	case emit.OpStoreLocal:
		slot := f.readSlot()
		_ = f.readType()
		w, _ := f.pop()
		f.setLocal(slot, w)

	case emit.OpLoadConstI:
		f.pushInt(f.readI4())
	case emit.OpLoadConstL:
		f.pushLong(int64(f.readU8()))
	case emit.OpLoadConstF:
		f.push(object.Word(f.readU4()), ir.TypeFloat)
	case emit.OpLoadConstD:
		f.push(object.Word(f.readU8()), ir.TypeDouble)
	case emit.OpLoadConstObj:
		idx := f.readU4()
		v, ok := f.Klass.ConstantObjects().At(int(idx))
		if !ok {
			return nil, fmt.Errorf("interp: constant object index %d out of range", idx)
		}
		f.pushOop(vm.consts.handle(v))

	case emit.OpLoadField:
		owner, name, _, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		t := f.readType()
		recv := f.popOop()
		if err := checkNotNil(recv); err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		off, ok := fieldOffset(k, name)
		if !ok {
			return nil, common.ErrNoSuchField
		}
		if t == ir.TypeReference {
			f.pushOop(vm.Alloc.Heap().GetSlotO(recv, off))
		} else {
			f.push(vm.Alloc.Heap().GetSlotI(recv, off), t)
		}

	case emit.OpStoreField:
		owner, name, _, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		t := f.readType()
		val, _ := f.pop()
		recv := f.popOop()
		if err := checkNotNil(recv); err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		off, ok := fieldOffset(k, name)
		if !ok {
			return nil, common.ErrNoSuchField
		}
		if t == ir.TypeReference {
			if err := vm.Alloc.Heap().SetSlotOStoreCheck(recv, off, object.Oop(int32(val))); err != nil {
				return nil, err
			}
		} else {
			vm.Alloc.Heap().SetSlotI(recv, off, val)
		}

	case emit.OpLoadStatic:
		owner, name, _, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		t := f.readType()
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		w := vm.Statics.Get(k.ID(), name)
		if t == ir.TypeReference {
			f.pushOop(object.Oop(int32(w)))
		} else {
			f.push(w, t)
		}

	case emit.OpStoreStatic:
		owner, name, _, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		_ = f.readType()
		w, _ := f.pop()
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		vm.Statics.Set(k.ID(), name, w)

	case emit.OpArrayLoad:
		t := f.readType()
		idx := f.popInt()
		arr := f.popOop()
		if err := checkNotNil(arr); err != nil {
			return nil, err
		}
		if err := checkBounds(int(idx), vm.Alloc.Heap().LengthOf(arr)); err != nil {
			return nil, err
		}
		switch t {
		case ir.TypeReference:
			f.pushOop(vm.Alloc.Heap().GetSlotO(arr, int(idx)))
		case ir.TypeLong, ir.TypeDouble, ir.TypeFloat:
			f.push(vm.Alloc.Heap().GetSlotI(arr, int(idx)), t)
		default:
			// byte/char/short/boolean/int all widen to int on the stack.
			f.push(vm.Alloc.Heap().GetSlotI(arr, int(idx)), ir.TypeInt)
		}

	case emit.OpArrayStore:
		t := f.readType()
		val, _ := f.pop()
		idx := f.popInt()
		arr := f.popOop()
		if err := checkNotNil(arr); err != nil {
			return nil, err
		}
		if err := checkBounds(int(idx), vm.Alloc.Heap().LengthOf(arr)); err != nil {
			return nil, err
		}
		if t == ir.TypeReference {
			if err := vm.Alloc.Heap().SetSlotOStoreCheck(arr, int(idx), object.Oop(int32(val))); err != nil {
				return nil, err
			}
		} else {
			vm.Alloc.Heap().SetSlotI(arr, int(idx), val)
		}

	case emit.OpArith:
		t := f.readType()
		a := f.readArith()
		if err := vm.doArith(f, t, a); err != nil {
			return nil, err
		}

	case emit.OpIncrement:
		_ = f.readType()
		slot := f.readSlot()
		imm := f.readI4()
		cur := int32(uint32(f.getLocal(slot)))
		f.setLocal(slot, object.Word(uint32(cur+imm)))

	case emit.OpCompare:
		kind := f.readCompareKind()
		top := f.peekKind()
		switch kind {
		case ir.CompareLong:
			b := f.popLong()
			a := f.popLong()
			f.pushInt(compareLong(a, b))
		default:
			greater := kind == ir.CompareFloatG
			if top == ir.TypeDouble {
				b := f.popDouble()
				a := f.popDouble()
				f.pushInt(compareFloat64(a, b, greater))
			} else {
				b := f.popFloat()
				a := f.popFloat()
				f.pushInt(compareFloat32(a, b, greater))
			}
		}

	case emit.OpConvert:
		target := f.readType()
		source := f.peekKind()
		doConvert(f, source, target)

	case emit.OpInvokeStatic:
		owner, name, descr, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		m, declK, ok := vm.findMethod(k, name, descr, true)
		if !ok {
			return nil, common.ErrNoSuchMethod
		}
		args := popArgs(f, descr, true)
		result, err := vm.Call(m, declK, args)
		if err != nil {
			return nil, err
		}
		pushReturn(f, descr, result)

	case emit.OpInvokeSpecial:
		owner, name, descr, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		m, declK, ok := vm.findMethod(k, name, descr, false)
		if !ok {
			return nil, common.ErrNoSuchMethod
		}
		args := popArgs(f, descr, false)
		if err := checkNotNil(object.Oop(int32(args[0]))); err != nil {
			return nil, err
		}
		result, err := vm.Call(m, declK, args)
		if err != nil {
			return nil, err
		}
		pushReturn(f, descr, result)

	case emit.OpInvokeSuper:
		// owner already names the immediate superclass itself (see
		// ir/builder.go's invoke(): OpInvokeSuper is only tagged when the
		// resolved reference's owner equals the current class's declared
		// super), so the method search starts directly at k -- not at
		// k.Super(), which would skip a level and look in the
		// grandparent.
		owner, name, descr, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		m, declK, ok := vm.findMethod(k, name, descr, false)
		if !ok {
			return nil, common.ErrNoSuchMethod
		}
		args := popArgs(f, descr, false)
		if err := checkNotNil(object.Oop(int32(args[0]))); err != nil {
			return nil, err
		}
		result, err := vm.Call(m, declK, args)
		if err != nil {
			return nil, err
		}
		pushReturn(f, descr, result)

	case emit.OpInvokeVirtual, emit.OpInvokeInterface:
		owner, name, descr, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		args := popArgs(f, descr, false)
		recv := object.Oop(int32(args[0]))
		if err := checkNotNil(recv); err != nil {
			return nil, err
		}
		runtimeK, ok := vm.Registry.ResolveID(common.ClassID(vm.Alloc.Heap().KlassOf(recv)))
		if !ok {
			runtimeK, ok = vm.Registry.ResolveFrom(f.Klass, owner)
			if !ok {
				return nil, common.ErrNoClassDef
			}
		}
		m, declK, ok := vm.findMethod(runtimeK, name, descr, false)
		if !ok {
			return nil, common.ErrNoSuchMethod
		}
		result, err := vm.Call(m, declK, args)
		if err != nil {
			return nil, err
		}
		pushReturn(f, descr, result)

	case emit.OpInvokeNative:
		owner, name, descr, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		args := popArgs(f, descr, true)
		result, err := vm.Natives.InvokeNative(owner, name, descr, args)
		if err != nil {
			return nil, err
		}
		pushReturn(f, descr, result)

	case emit.OpReturn:
		t := f.readType()
		if t == ir.TypeBoolean { // void: arbitrarily tagged, see ir.returnType
			return nil, errFrameReturned
		}
		w, _ := f.pop()
		return []object.Word{w}, errFrameReturned

	case emit.OpGoto:
		target := int(f.readU4())
		if target <= f.insIP {
			vm.countBackBranch()
		}
		f.ip = target

	case emit.OpIf:
		cond := f.readCond()
		kind := f.readIfKind()
		target := int(f.readU4())
		taken, err := evalIf(f, kind, cond)
		if err != nil {
			return nil, err
		}
		if taken {
			if target <= f.insIP {
				vm.countBackBranch()
			}
			f.ip = target
		}

	case emit.OpIfTyped:
		cond := f.readCond()
		kind := f.readCompareKind()
		target := int(f.readU4())
		top := f.peekKind()
		var cmp int32
		if kind == ir.CompareLong {
			b := f.popLong()
			a := f.popLong()
			cmp = compareLong(a, b)
		} else {
			greater := kind == ir.CompareFloatG
			if top == ir.TypeDouble {
				b := f.popDouble()
				a := f.popDouble()
				cmp = compareFloat64(a, b, greater)
			} else {
				b := f.popFloat()
				a := f.popFloat()
				cmp = compareFloat32(a, b, greater)
			}
		}
		if testCond(cond, int64(cmp), 0) {
			if target <= f.insIP {
				vm.countBackBranch()
			}
			f.ip = target
		}

	case emit.OpTableSwitch:
		low := f.readI4()
		count := int(f.readU4())
		targets := make([]int, count)
		for i := 0; i < count; i++ {
			targets[i] = int(f.readU4())
		}
		def := int(f.readU4())
		key := f.popInt()
		target := def
		if idx := int(key - low); idx >= 0 && idx < count {
			target = targets[idx]
		}
		if target <= f.insIP {
			vm.countBackBranch()
		}
		f.ip = target

	case emit.OpLookupSwitch:
		count := int(f.readU4())
		keys := make([]int32, count)
		targets := make([]int, count)
		for i := 0; i < count; i++ {
			keys[i] = f.readI4()
			targets[i] = int(f.readU4())
		}
		def := int(f.readU4())
		key := f.popInt()
		target := def
		for i, k := range keys {
			if k == key {
				target = targets[i]
				break
			}
		}
		if target <= f.insIP {
			vm.countBackBranch()
		}
		f.ip = target

	case emit.OpThrow:
		o := f.popOop()
		if err := checkNotNil(o); err != nil {
			return nil, err
		}
		klass, _ := vm.Registry.ResolveID(common.ClassID(vm.Alloc.Heap().KlassOf(o)))
		return nil, &UserException{Oop: o, Klass: klass}

	case emit.OpMonitorEnter:
		o := f.popOop()
		if err := checkNotNil(o); err != nil {
			return nil, err
		}
		if err := vm.Monitors.Enter(o); err != nil {
			return nil, err
		}
		f.noteMonitorEnter(o)

	case emit.OpMonitorExit:
		o := f.popOop()
		if err := checkNotNil(o); err != nil {
			return nil, err
		}
		if err := vm.Monitors.Exit(o); err != nil {
			return nil, err
		}
		f.noteMonitorExit(o)

	case emit.OpNewObj:
		name, err := f.resolveClassLiteral()
		if err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, name)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		o, err := vm.NewInstance(k)
		if err != nil {
			return nil, err
		}
		f.pushOop(o)

	case emit.OpCheckCast:
		name, err := f.resolveClassLiteral()
		if err != nil {
			return nil, err
		}
		o := f.popOop()
		if o != object.NilOop {
			target, ok := vm.Registry.ResolveFrom(f.Klass, name)
			if !ok {
				return nil, common.ErrNoClassDef
			}
			valK, ok := vm.Registry.ResolveID(common.ClassID(vm.Alloc.Heap().KlassOf(o)))
			if !ok || !target.IsAssignableFrom(valK, vm.lookup) {
				return nil, common.ErrClassCast
			}
		}
		f.pushOop(o)

	case emit.OpInstanceOf:
		name, err := f.resolveClassLiteral()
		if err != nil {
			return nil, err
		}
		o := f.popOop()
		result := int32(0)
		if o != object.NilOop {
			target, ok := vm.Registry.ResolveFrom(f.Klass, name)
			valK, ok2 := vm.Registry.ResolveID(common.ClassID(vm.Alloc.Heap().KlassOf(o)))
			if ok && ok2 && target.IsAssignableFrom(valK, vm.lookup) {
				result = 1
			}
		}
		f.pushInt(result)

	case emit.OpNewArr:
		t := f.readType()
		classIdx := f.readU4()
		length := f.popInt()
		var component *suite.Klass
		if t == ir.TypeReference {
			v, ok := f.Klass.ConstantObjects().At(int(classIdx))
			if !ok {
				return nil, fmt.Errorf("interp: array class index %d out of range", classIdx)
			}
			lit, ok := v.(classfile.ClassLiteral)
			if !ok {
				return nil, fmt.Errorf("interp: array class operand is not a class literal")
			}
			k, ok := vm.Registry.ResolveFrom(f.Klass, string(lit))
			if !ok {
				return nil, common.ErrNoClassDef
			}
			component = k
		}
		o, err := vm.NewArray(component, int(length))
		if err != nil {
			return nil, err
		}
		f.pushOop(o)

	case emit.OpNewDim:
		name, err := f.resolveClassLiteral()
		if err != nil {
			return nil, err
		}
		dim := int(f.readU1())
		lengths := make([]int, dim)
		for i := dim - 1; i >= 0; i-- {
			lengths[i] = int(f.popInt())
		}
		component, ok := vm.Registry.ResolveFrom(f.Klass, name)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		o, err := vm.NewMultiArray(component, lengths)
		if err != nil {
			return nil, err
		}
		f.pushOop(o)

	case emit.OpNewObjectFused:
		name, err := f.resolveClassLiteral()
		if err != nil {
			return nil, err
		}
		owner, ctorName, ctorDescr, err := f.resolveSymbol()
		if err != nil {
			return nil, err
		}
		k, ok := vm.Registry.ResolveFrom(f.Klass, name)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		o, err := vm.NewInstance(k)
		if err != nil {
			return nil, err
		}
		ownerK, ok := vm.Registry.ResolveFrom(f.Klass, owner)
		if !ok {
			return nil, common.ErrNoClassDef
		}
		m, declK, ok := vm.findMethod(ownerK, ctorName, ctorDescr, false)
		if !ok {
			return nil, common.ErrNoSuchMethod
		}
		args := popArgsForReceiver(f, ctorDescr, o)
		if _, err := vm.Call(m, declK, args); err != nil {
			return nil, err
		}
		f.pushOop(o)

	default:
		return nil, fmt.Errorf("interp: unhandled opcode %d at %d", op, f.insIP)
	}

	return nil, nil
}

// evalIf pops the operand(s) ifKind says a branch test needs and evaluates
// cond against them (spec §4.G "conditional branch").
func evalIf(f *Frame, kind ir.IfKind, cond ir.Cond) (bool, error) {
	switch kind {
	case ir.IfCompareZero:
		v := f.popInt()
		return testCond(cond, int64(v), 0), nil
	case ir.IfCompareInts:
		b := f.popInt()
		a := f.popInt()
		return testCond(cond, int64(a), int64(b)), nil
	case ir.IfCompareRefs:
		b := f.popOop()
		a := f.popOop()
		if cond == ir.CondEQ {
			return a == b, nil
		}
		return a != b, nil
	case ir.IfCompareNull:
		a := f.popOop()
		if cond == ir.CondEQ {
			return a == object.NilOop, nil
		}
		return a != object.NilOop, nil
	default:
		return false, fmt.Errorf("interp: unhandled if kind %v", kind)
	}
}

func testCond(cond ir.Cond, a, b int64) bool {
	switch cond {
	case ir.CondEQ:
		return a == b
	case ir.CondNE:
		return a != b
	case ir.CondLT:
		return a < b
	case ir.CondGE:
		return a >= b
	case ir.CondGT:
		return a > b
	case ir.CondLE:
		return a <= b
	default:
		return false
	}
}

func compareLong(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat32(a, b float32, nanGreater bool) int32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		if nanGreater {
			return 1
		}
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64, nanGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanGreater {
			return 1
		}
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// doArith executes one OpArith instruction's operator over operands of
// width t (spec §4.G arithmetic). Shift distances are always popped as int
// regardless of t, matching lshl/lshr/lushr's actual JVM stack shape (the
// shifted value is long, the shift distance never is).
func (vm *VM) doArith(f *Frame, t ir.PrimType, op ir.ArithOp) error {
	switch op {
	case ir.ArithLength:
		o := f.popOop()
		if err := checkNotNil(o); err != nil {
			return err
		}
		f.pushInt(int32(vm.Alloc.Heap().LengthOf(o)))
		return nil
	case ir.ArithNeg:
		switch t {
		case ir.TypeLong:
			f.pushLong(-f.popLong())
		case ir.TypeFloat:
			f.pushFloat(-f.popFloat())
		case ir.TypeDouble:
			f.pushDouble(-f.popDouble())
		default:
			f.pushInt(-f.popInt())
		}
		return nil
	case ir.ArithShl, ir.ArithShr, ir.ArithUshr:
		shift := f.popInt()
		if t == ir.TypeLong {
			a := f.popLong()
			f.pushLong(longShift(a, shift, op))
		} else {
			a := f.popInt()
			f.pushInt(intShift(a, shift, op))
		}
		return nil
	}

	switch t {
	case ir.TypeLong:
		b := f.popLong()
		a := f.popLong()
		r, err := longArith(a, b, op)
		if err != nil {
			return err
		}
		f.pushLong(r)
	case ir.TypeFloat:
		b := f.popFloat()
		a := f.popFloat()
		f.pushFloat(floatArith(a, b, op))
	case ir.TypeDouble:
		b := f.popDouble()
		a := f.popDouble()
		f.pushDouble(doubleArith(a, b, op))
	default:
		b := f.popInt()
		a := f.popInt()
		r, err := intArith(a, b, op)
		if err != nil {
			return err
		}
		f.pushInt(r)
	}
	return nil
}

func intShift(a, shift int32, op ir.ArithOp) int32 {
	s := uint32(shift) & 31
	switch op {
	case ir.ArithShl:
		return a << s
	case ir.ArithShr:
		return a >> s
	default:
		return int32(uint32(a) >> s)
	}
}

func longShift(a int64, shift int32, op ir.ArithOp) int64 {
	s := uint64(uint32(shift)) & 63
	switch op {
	case ir.ArithShl:
		return a << s
	case ir.ArithShr:
		return a >> s
	default:
		return int64(uint64(a) >> s)
	}
}

func intArith(a, b int32, op ir.ArithOp) (int32, error) {
	switch op {
	case ir.ArithAdd:
		return a + b, nil
	case ir.ArithSub:
		return a - b, nil
	case ir.ArithMul:
		return a * b, nil
	case ir.ArithDiv:
		if err := checkDivisor(int64(b)); err != nil {
			return 0, err
		}
		return a / b, nil
	case ir.ArithRem:
		if err := checkDivisor(int64(b)); err != nil {
			return 0, err
		}
		return a % b, nil
	case ir.ArithAnd:
		return a & b, nil
	case ir.ArithOr:
		return a | b, nil
	case ir.ArithXor:
		return a ^ b, nil
	default:
		return 0, fmt.Errorf("interp: unhandled int arith op %v", op)
	}
}

func longArith(a, b int64, op ir.ArithOp) (int64, error) {
	switch op {
	case ir.ArithAdd:
		return a + b, nil
	case ir.ArithSub:
		return a - b, nil
	case ir.ArithMul:
		return a * b, nil
	case ir.ArithDiv:
		if err := checkDivisor(b); err != nil {
			return 0, err
		}
		return a / b, nil
	case ir.ArithRem:
		if err := checkDivisor(b); err != nil {
			return 0, err
		}
		return a % b, nil
	case ir.ArithAnd:
		return a & b, nil
	case ir.ArithOr:
		return a | b, nil
	case ir.ArithXor:
		return a ^ b, nil
	default:
		return 0, fmt.Errorf("interp: unhandled long arith op %v", op)
	}
}

func floatArith(a, b float32, op ir.ArithOp) float32 {
	switch op {
	case ir.ArithAdd:
		return a + b
	case ir.ArithSub:
		return a - b
	case ir.ArithMul:
		return a * b
	case ir.ArithDiv:
		return a / b
	default: // ArithRem
		return float32(math.Mod(float64(a), float64(b)))
	}
}

func doubleArith(a, b float64, op ir.ArithOp) float64 {
	switch op {
	case ir.ArithAdd:
		return a + b
	case ir.ArithSub:
		return a - b
	case ir.ArithMul:
		return a * b
	case ir.ArithDiv:
		return a / b
	default: // ArithRem
		return math.Mod(a, b)
	}
}

// doConvert executes an OpConvert instruction, dispatching on the runtime
// source type actually found on the stack rather than on any source field
// the instruction itself carries (it has none -- see emit's OpConvert
// encoding and Frame.stackKind's doc comment).
func doConvert(f *Frame, source, target ir.PrimType) {
	switch target {
	case ir.TypeLong:
		switch source {
		case ir.TypeFloat:
			f.pushLong(floatToLong(f.popFloat()))
		case ir.TypeDouble:
			f.pushLong(doubleToLong(f.popDouble()))
		default:
			f.pushLong(int64(f.popInt()))
		}
	case ir.TypeFloat:
		switch source {
		case ir.TypeLong:
			f.pushFloat(float32(f.popLong()))
		case ir.TypeDouble:
			f.pushFloat(float32(f.popDouble()))
		default:
			f.pushFloat(float32(f.popInt()))
		}
	case ir.TypeDouble:
		switch source {
		case ir.TypeLong:
			f.pushDouble(float64(f.popLong()))
		case ir.TypeFloat:
			f.pushDouble(float64(f.popFloat()))
		default:
			f.pushDouble(float64(f.popInt()))
		}
	case ir.TypeByte:
		f.pushInt(int32(int8(f.popInt())))
	case ir.TypeChar:
		f.pushInt(int32(uint16(f.popInt())))
	case ir.TypeShort:
		f.pushInt(int32(int16(f.popInt())))
	default: // TypeInt
		switch source {
		case ir.TypeLong:
			f.pushInt(int32(f.popLong()))
		case ir.TypeFloat:
			f.pushInt(floatToInt(f.popFloat()))
		case ir.TypeDouble:
			f.pushInt(doubleToInt(f.popDouble()))
		default:
			f.pushInt(f.popInt())
		}
	}
}

// floatToInt/doubleToInt/floatToLong/doubleToLong apply the JVM's
// f2i/d2i/f2l/d2l saturating conversion (NaN becomes 0; out-of-range
// magnitudes clamp to the target type's extreme) rather than Go's
// implementation-defined float-to-int truncation behavior on overflow.
func doubleToInt(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func floatToInt(v float32) int32 { return doubleToInt(float64(v)) }

func doubleToLong(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

func floatToLong(v float32) int64 { return doubleToLong(float64(v)) }
