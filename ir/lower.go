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

// Lower runs phase 2 of the translator over a phase-1 instruction list,
// applying the fusion rules spec §4.E names: new+<init> folding and
// typed-compare/branch fusion. It mutates list in place.
func Lower(list *List) {
	foldNewObject(list)
	foldTypedBranch(list)
}

// foldNewObject finds every `new C` immediately followed by the dup/arg*/
// invokespecial <init> sequence javac emits for `new C(args)` and collapses
// it to a single OpNewObject, eliminating the dup and the constructor
// invoke. The object's field-initializing side effects still happen --
// they're folded into OpNewObject's semantics, executed by the
// interpreter as part of allocation, not dropped.
func foldNewObject(list *List) {
	for cur := list.First(); cur != nil; {
		next := cur.Next
		if cur.Op != OpNew {
			cur = next
			continue
		}
		dup := cur.Next
		if dup == nil || dup.Op != OpDupStack || dup.StackWords != 1 || dup.StackSkip != 0 {
			cur = next
			continue
		}
		initCall := matchingInit(dup.Next, cur.ClassName)
		if initCall == nil {
			cur = next
			continue
		}
		fused := &Instruction{
			Op:          OpNewObject,
			ClassName:   cur.ClassName,
			MethodOwner: initCall.MethodOwner,
			MethodName:  initCall.MethodName,
			MethodDescr: initCall.MethodDescr,
			SourceLine:  cur.SourceLine,
			OrigOffset:  initCall.OrigOffset,
		}
		after := dup.Next
		if after == initCall {
			after = fused
		}
		// The argument-pushing instructions between dup and initCall (if
		// any) stay in the stream untouched; fused takes initCall's place
		// after them, so the arguments are on the stack when it pops them.
		// Only the new, the dup and the invokespecial collapse away.
		list.Remove(cur)
		list.Remove(dup)
		list.ReplaceWithOne(initCall, initCall, fused)
		cur = after
	}
}

// matchingInit scans forward from start (the instruction right after a
// new+dup pair) for the invokespecial <init> that consumes that
// allocation, tracking nested new+dup pairs (e.g. constructor arguments
// that are themselves freshly allocated objects) so it doesn't return too
// early on an unrelated nested constructor call.
func matchingInit(start *Instruction, className string) *Instruction {
	depth := 1
	for cur := start; cur != nil; cur = cur.Next {
		switch {
		case cur.Op == OpNew && cur.Next != nil && cur.Next.Op == OpDupStack:
			depth++
		case cur.Op == OpInvokeSpecial && cur.MethodName == "<init>":
			depth--
			if depth == 0 {
				if cur.MethodOwner != className {
					return nil
				}
				return cur
			}
		}
	}
	return nil
}

// foldTypedBranch fuses a long/float/double Comparison immediately
// followed by a zero-test If into a single OpIfTyped, the typed branch
// the interpreter's dispatch loop executes without materializing the
// intermediate -1/0/1 result (spec §4.E lowering rule 2).
func foldTypedBranch(list *List) {
	for cur := list.First(); cur != nil; {
		next := cur.Next
		if cur.Op == OpComparison && next != nil && next.Op == OpIf {
			fused := &Instruction{
				Op:         OpIfTyped,
				Compare:    cur.Compare,
				Cond:       next.Cond,
				Target:     next.Target,
				SourceLine: cur.SourceLine,
				OrigOffset: cur.OrigOffset,
			}
			after := next.Next
			list.ReplaceWithOne(cur, next, fused)
			cur = after
			continue
		}
		cur = next
	}
}

// SynthesizeDefaultInit builds the IR for a class's implicit no-argument
// constructor (spec §4.E supplements javac's own synthesis: a class file
// lacking any <init> still needs one once loaded into a suite) --
// equivalent to `super(); return;`.
func SynthesizeDefaultInit(superClass string) *List {
	list := NewList()
	list.Append(&Instruction{Op: OpLoadLocal, Type: TypeReference, IsThis: true})
	list.Append(&Instruction{Op: OpInvokeSuper, MethodOwner: superClass, MethodName: "<init>", MethodDescr: "()V"})
	list.Append(&Instruction{Op: OpReturn, Type: TypeBoolean})
	return list
}

// RewriteUnresolvedNatives rewrites every native-bound invoke whose target
// resolved reports false to java.lang.VM.undefinedNativeMethod, the
// romizer-time substitution spec §4.E describes for natives the registry
// doesn't (yet) implement: calling it at runtime raises a consistent,
// catchable error instead of leaving a dangling unresolved symbol in a
// romized suite.
func RewriteUnresolvedNatives(list *List, resolved func(owner, name, descr string) bool) {
	list.Each(func(ins *Instruction) {
		if ins.Op != OpInvokeStatic && ins.Op != OpInvokeVirtual && ins.Op != OpInvokeSpecial {
			return
		}
		if ins.MethodOwner != "java/lang/VM" {
			return
		}
		if resolved(ins.MethodOwner, ins.MethodName, ins.MethodDescr) {
			return
		}
		ins.Op = OpInvokeNative
		ins.MethodName = "undefinedNativeMethod"
	})
}
