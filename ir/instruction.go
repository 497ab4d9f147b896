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

// Package ir implements the translator's intermediate representation
// (spec §4.E): a linear, doubly-linked instruction list built from a
// classfile.RawMethod's JVM bytecode (phase 1), then rewritten in place by
// a set of lowering rules (phase 2) before the emitter (4.F) assigns slots
// and produces Squawk bytecode. Grounded on the instruction-variant
// modeling in jacobin's classloader output and go-ethereum's
// core/vm.OpCode table (a single closed enum switched on throughout the
// dispatch loop).
package ir

// Op identifies an instruction's kind. The set mirrors spec §4.E's
// enumerated instruction variants exactly.
type Op int

const (
	OpLoadLocal Op = iota
	OpStoreLocal
	OpLoadConstant
	OpLoadField
	OpStoreField
	OpLoadStatic
	OpStoreStatic
	OpArrayLoad
	OpArrayStore
	OpArithmetic
	OpComparison
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
	OpTableSwitch
	OpLookupSwitch
	OpThrow
	OpMonitorEnter
	OpMonitorExit
	OpNew
	OpNewArray
	OpNewDimension
	OpInstanceOf
	OpCheckCast
	OpThisGetField
	OpClassGetStatic

	// OpNewObject is a phase-2-only fused form: `new` + a matching
	// `<init>` invokespecial folded into a single instruction once the
	// lowering pass has proven the fold is safe (spec §4.E lowering rule
	// 1). It has no phase-1 counterpart.
	OpNewObject
	// OpIfTyped is the phase-2-only fused form of a typed compare
	// (lcmp/fcmpl/fcmpg) immediately followed by an integer if_icmp?,
	// replaced by a single typed branch (spec §4.E lowering rule 2).
	OpIfTyped

	// The IR carries no operand-use edges -- it executes against an
	// implicit runtime stack exactly as JVM bytecode does, so pure
	// stack-shape bytecode (dup/pop/swap families) is preserved verbatim
	// as these three phase-1 marker ops rather than being modeled away.
	// OpDupStack is eliminated by the new+<init> fusion rule wherever that
	// pattern applies (spec §4.E lowering rule 1); any instance surviving
	// past lowering is resolved by the emitter's slot allocator.
	OpDupStack
	OpPopStack
	OpSwapStack
)

// PrimType distinguishes the primitive operand type of an Arithmetic,
// Comparison, Convert, ArrayLoad/Store or If instruction.
type PrimType int

const (
	TypeInt PrimType = iota
	TypeLong
	TypeFloat
	TypeDouble
	TypeReference
	TypeByte
	TypeChar
	TypeShort
	TypeBoolean
)

// ArithOp distinguishes which operation an Arithmetic instruction performs.
// The JVM bytecode that translates to OpArithmetic packs the operator and
// the operand width into one opcode byte (iadd, ladd, fadd, dadd, ...); the
// builder splits that back out into Type (the width) and ArithOp (the
// operator) so the interpreter can switch on ArithOp directly instead of
// re-deriving it from the original opcode, which it never sees.
type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
	ArithRem
	ArithNeg
	ArithShl
	ArithShr
	ArithUshr
	ArithAnd
	ArithOr
	ArithXor
	// ArithLength is arraylength's encoding: it has no JVM arithmetic
	// counterpart but shares OpArithmetic's "pop operand(s), push one int"
	// shape closely enough that the builder folds it in rather than adding
	// a dedicated Op.
	ArithLength
)

// CompareKind distinguishes lcmp from fcmpl/fcmpg (the two float/double
// comparisons differ only in their NaN handling, which the interpreter
// consults when the fused typed branch is taken).
type CompareKind int

const (
	CompareLong CompareKind = iota
	CompareFloatL
	CompareFloatG
)

// IfKind distinguishes the operand shape an If instruction tests. The JVM
// opcode families ifeq/if_icmpeq/if_acmpeq/ifnull all collapse to the same
// Cond (e.g. ifeq and if_icmpeq are both CondEQ), but they don't pop the
// same number or type of stack operands, so a separate tag carries that
// distinction through to the interpreter.
type IfKind int

const (
	IfCompareZero IfKind = iota // ifeq/ifne/iflt/ifge/ifgt/ifle: pop one int, compare to 0
	IfCompareInts                // if_icmp??: pop two ints, compare to each other
	IfCompareRefs                // if_acmpeq/if_acmpne: pop two references, compare identity
	IfCompareNull                // ifnull/ifnonnull: pop one reference, compare to null
)

// Cond is an If instruction's relational test.
type Cond int

const (
	CondEQ Cond = iota
	CondNE
	CondLT
	CondGE
	CondGT
	CondLE
)

// ConstantRef refers to a value in a Klass's frequency-sorted object table
// (suite.ObjectTable) by its pre-freeze interned identity; the emitter
// resolves it to a final index once the table is frozen.
type ConstantRef struct {
	Value interface{}
}

// Instruction is one IR node. Only the fields relevant to Op are
// meaningful; this is a flat struct rather than an interface hierarchy so
// the lowering and emission passes can rewrite a node's Op and fields in
// place without reallocating the linked-list node.
type Instruction struct {
	Op   Op
	Prev *Instruction
	Next *Instruction

	// Local variable slot (LoadLocal/StoreLocal), with IsThis marking slot
	// 0 of an instance method's virtual receiver (spec §4.E).
	Slot   int
	IsThis bool

	// Field/static access.
	Owner      string // declaring class' binary name
	FieldName  string
	FieldDescr string

	// LoadConstant / phase-2 object_k rewriting.
	Constant ConstantRef

	Type    PrimType
	Arith   ArithOp
	Compare CompareKind
	Cond    Cond
	IfKind  IfKind

	// Invoke*.
	MethodOwner string
	MethodName  string
	MethodDescr string

	// Goto/If branch target, expressed as the JVM bytecode offset of the
	// target instruction and resolved to a real offset by the emitter.
	Target int

	// TableSwitch/LookupSwitch.
	SwitchLow     int
	SwitchTargets []int
	SwitchKeys    []int // LookupSwitch only
	SwitchDefault int

	// New/NewArray/NewDimension/InstanceOf/CheckCast.
	ClassName string
	Dimension int

	// SourceLine is the JVM source line this instruction was translated
	// from, carried through to the emitted method's debug line map.
	SourceLine int

	// OrigOffset is the byte offset of the JVM bytecode this instruction
	// was translated from (the comparison's, for OpIfTyped; the <init>
	// call's, for OpNewObject, so a branch to the original `new` resolves
	// to the first argument push). The emitter uses it to remap the class-file loader's
	// exception table, which still refers to original JVM offsets, onto
	// the freshly assigned Squawk bytecode offsets.
	OrigOffset int

	// StackWords/StackSkip describe an opDupStack/opPopStack/opSwapStack
	// marker: StackWords is 1 or 2 (matching the dup/dup2 vs pop/pop2
	// split), StackSkip is the x1/x2 insertion depth (0 for plain
	// dup/dup2).
	StackWords int
	StackSkip  int
}

// List is a method's phase-1/phase-2 instruction stream: a doubly-linked
// list with a sentinel head/tail so insertion and fused-node replacement
// (the lowering pass's bread and butter) never needs nil checks at the
// ends.
type List struct {
	head, tail *Instruction
	length     int
}

func NewList() *List {
	head := &Instruction{Op: -1}
	tail := &Instruction{Op: -1}
	head.Next = tail
	tail.Prev = head
	return &List{head: head, tail: tail}
}

func (l *List) Len() int { return l.length }

// Append adds ins at the end of the list.
func (l *List) Append(ins *Instruction) {
	prev := l.tail.Prev
	prev.Next = ins
	ins.Prev = prev
	ins.Next = l.tail
	l.tail.Prev = ins
	l.length++
}

// First returns the first real instruction, or nil if the list is empty.
func (l *List) First() *Instruction {
	if l.head.Next == l.tail {
		return nil
	}
	return l.head.Next
}

// Remove unlinks ins from the list. ins must belong to l.
func (l *List) Remove(ins *Instruction) {
	ins.Prev.Next = ins.Next
	ins.Next.Prev = ins.Prev
	l.length--
}

// ReplaceWithOne collapses [first, last] (an inclusive run already linked
// consecutively in the list) into a single instruction repl, used by the
// lowering pass's fusion rules.
func (l *List) ReplaceWithOne(first, last, repl *Instruction) {
	before := first.Prev
	after := last.Next
	repl.Prev = before
	repl.Next = after
	before.Next = repl
	after.Prev = repl

	// Recompute length by walking is wasteful; instead track the delta:
	// first..last collapses from some N nodes to 1.
	n := 0
	for cur := first; ; cur = cur.Next {
		n++
		if cur == last {
			break
		}
	}
	l.length -= n - 1
}

// Each calls fn for every real instruction in order.
func (l *List) Each(fn func(*Instruction)) {
	for cur := l.head.Next; cur != l.tail; cur = cur.Next {
		fn(cur)
	}
}

// Slice materializes the list as a slice, for the emitter's slot
// allocator, which needs random access and a stable final ordering.
func (l *List) Slice() []*Instruction {
	out := make([]*Instruction, 0, l.length)
	l.Each(func(i *Instruction) { out = append(out, i) })
	return out
}
