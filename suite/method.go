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

package suite

import "github.com/squawkvm/squawk/object"

// RelocationEntry records one site in a method's bytecode that held a
// relative offset at build time and must be adjusted when the method is
// relocated to a different suite base (spec §4.F "relocation table",
// §4.H "Hibernate/unhibernate").
type RelocationEntry struct {
	BytecodeOffset int
	Kind           RelocationKind
}

type RelocationKind uint8

const (
	RelocObjectConstant RelocationKind = iota
	RelocClassConstant
	RelocBranchTarget
)

// ExceptionHandler is one row of a method's exception table: the PC range
// it guards, the handler entry point, and the klass it catches (the zero
// ClassID value means "catch all", a finally block).
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC int
	CatchType                 uint16 // index into the method's constant objects, or 0
}

// Method is an immutable, position-independent unit of bytecode plus the
// metadata the interpreter and GC need to execute and scan it: its
// oop-map, exception table and relocation table (spec §3 "Method header",
// §4.F "Emission").
type Method struct {
	Name           string
	Signature      string
	MaxLocals      int
	MaxStack       int
	ParameterWords int
	IsStatic       bool
	IsNative       bool

	Bytecode []byte

	// OopMap marks which of the method's local/parameter slots hold
	// references, read by the interpreter's stack-walk during GC (spec §4.G
	// "Implicit null checks", §5 "GC interaction").
	OopMap object.OopMap

	ExceptionTable []ExceptionHandler
	Relocations    []RelocationEntry

	// LineMap maps a bytecode offset to the source line that produced it,
	// carried only when the suite was built with debug info retained.
	LineMap map[int]int
}

// HandlerFor returns the exception-table row (if any) whose range covers
// pc and whose CatchType is either catchType or the catch-all sentinel 0.
func (m *Method) HandlerFor(pc int, catchType uint16) (ExceptionHandler, bool) {
	for _, h := range m.ExceptionTable {
		if pc < h.StartPC || pc >= h.EndPC {
			continue
		}
		if h.CatchType == 0 || h.CatchType == catchType {
			return h, true
		}
	}
	return ExceptionHandler{}, false
}

// Relocate applies every relocation table entry against a new base,
// rewriting the 4-byte little-endian operand at each recorded offset. It
// is the counterpart of the emitter's forward pass (4.F). Nothing in this
// repository calls it: isolate.Unhibernate (4.H) only resolves names and
// expects relocation to have been applied before it runs.
func (m *Method) Relocate(delta int32, kind RelocationKind) {
	for _, r := range m.Relocations {
		if r.Kind != kind {
			continue
		}
		off := r.BytecodeOffset
		if off+4 > len(m.Bytecode) {
			continue
		}
		cur := int32(m.Bytecode[off]) | int32(m.Bytecode[off+1])<<8 |
			int32(m.Bytecode[off+2])<<16 | int32(m.Bytecode[off+3])<<24
		cur += delta
		m.Bytecode[off] = byte(cur)
		m.Bytecode[off+1] = byte(cur >> 8)
		m.Bytecode[off+2] = byte(cur >> 16)
		m.Bytecode[off+3] = byte(cur >> 24)
	}
}
