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

// SlotPlan is the result of resolving REVERSE_PARAMETERS (see DESIGN.md's
// Open Question decision): the JVM-numbered local slot a declared
// parameter occupied at translation time, remapped to where Squawk's
// calling convention actually places it, plus the receiver/parameter word
// count the emitted Method records. Exported so the interpreter (4.G) can
// lay a call's argument words directly into a callee frame's locals
// without re-deriving the remap from the descriptor a second time.
type SlotPlan struct {
	Remap          map[int]int
	ParameterWords int
}

// ComputeSlotPlan builds the old->new slot remap for a method. Squawk
// lays its parameter block out in the reverse of declaration order --
// immediately after the receiver, which keeps slot 0 for instance methods
// -- so that a caller pushing arguments left-to-right can grow the new
// activation's parameter block downward without first reversing them
// (spec §4.F "reverse-growing method header assembly" applies the same
// idea to the header; this applies it to the frame). Locals declared in
// the method body (JVM slots at or past the parameter word count) are not
// parameters and keep their original slot number unchanged.
func ComputeSlotPlan(descr string, isStatic bool) SlotPlan {
	widths := paramWidths(descr)
	oldBases, total := argOldBases(descr, isStatic)

	remap := make(map[int]int, len(widths))
	// Walk declared parameters in forward order to find each one's
	// original (oldBase) JVM slot, then assign new slots by walking the
	// same parameters in reverse, packing from the end of the block
	// backward so the last declared parameter lands right after the
	// receiver and the first declared parameter lands at the top.
	base := 0
	if !isStatic {
		base = 1
	}
	newCursor := base
	for i := len(widths) - 1; i >= 0; i-- {
		w := widths[i]
		for word := 0; word < w; word++ {
			remap[oldBases[i]+word] = newCursor + word
		}
		newCursor += w
	}
	return SlotPlan{Remap: remap, ParameterWords: total}
}

// argOldBases returns, per declared parameter, the JVM local slot it
// occupied before REVERSE_PARAMETERS remapping -- i.e. the slot a caller's
// un-reversed argument words already sit at, in declaration order. Shared by
// ComputeSlotPlan (to build the remap) and by the interpreter's call-site
// argument marshaling (to know where each popped stack word belongs before
// the remap is applied), so the two packages can never disagree about how
// the original slots were packed.
func argOldBases(descr string, isStatic bool) (bases []int, total int) {
	widths := paramWidths(descr)
	base := 0
	if !isStatic {
		base = 1
	}
	bases = make([]int, len(widths))
	cursor := base
	for i, w := range widths {
		bases[i] = cursor
		cursor += w
	}
	return bases, cursor
}

// ArgOldBases is the exported form of argOldBases, used by the interpreter
// to pop a call's stack arguments directly into their REVERSE_PARAMETERS
// slots without re-deriving the original packing itself.
func ArgOldBases(descr string, isStatic bool) (bases []int, total int) {
	return argOldBases(descr, isStatic)
}

// apply rewrites every Slot field the remap covers. Locals outside the
// parameter block (not present in the map) are left untouched.
func (p SlotPlan) apply(list *ir.List) {
	list.Each(func(ins *ir.Instruction) {
		if ins.Op != ir.OpLoadLocal && ins.Op != ir.OpStoreLocal {
			return
		}
		if ins.IsThis {
			return
		}
		if n, ok := p.Remap[ins.Slot]; ok {
			ins.Slot = n
		}
	})
}

// buildOopMap scans the (already slot-remapped) instruction list and
// marks every local slot ever loaded or stored as a reference, for the
// interpreter's stack-walk GC root scan (spec §4.G, §5).
func buildOopMap(list *ir.List, maxLocals int) []bool {
	refs := make([]bool, maxLocals)
	list.Each(func(ins *ir.Instruction) {
		if ins.Op != ir.OpLoadLocal && ins.Op != ir.OpStoreLocal {
			return
		}
		if ins.Type == ir.TypeReference && ins.Slot < maxLocals {
			refs[ins.Slot] = true
		}
	})
	return refs
}
