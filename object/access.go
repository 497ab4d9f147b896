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

package object

import (
	"github.com/squawkvm/squawk/common"
)

// Oop is a reference (object pointer) slot: the index, within a Heap, of an
// object's header word. The payload starts at Oop+1.
type Oop int32

// NilOop is Java's null.
const NilOop Oop = -1

// ComponentTyper is implemented by the suite's Klass so the heap can run
// array-store checks without importing the suite package (which imports
// object).
type ComponentTyper interface {
	// AssignableArrayElement reports whether val's class is assignable to
	// the array's component type.
	AssignableArrayElement(arrayClassOffset uintptr, val Oop) bool
}

// WriteBarrier is invoked by SetSlotO whenever an oop is stored into a heap
// object, with the storing object, the slot index written, and the new
// value. Concrete GC plug-ins decide whether this is a no-op (Cheney
// two-space) or marks a card/bit (Lisp2 mark-compact) -- see spec §4.A.
type WriteBarrier func(container Oop, slotIndex int, newValue Oop)

// Heap is the pseudo-memory pointer operations in spec §4.A operate over:
// a flat Word array addressed by Oop, plus the write-barrier hook that lets
// a pluggable GC observe every oop store.
type Heap struct {
	words   []Word
	barrier WriteBarrier
	types   ComponentTyper
}

// NewHeap allocates a heap of the given word capacity.
func NewHeap(words int, barrier WriteBarrier, types ComponentTyper) *Heap {
	if barrier == nil {
		barrier = func(Oop, int, Oop) {}
	}
	return &Heap{words: make([]Word, words), barrier: barrier, types: types}
}

func (h *Heap) header(o Oop) Header { return Header(h.words[o]) }

// SetHeader writes the header word at oop o's header slot directly. The
// allocator (interp) calls this once per header word when it carves out a
// fresh instance, small array, or large array -- the large two-word array
// form writes its length word at o and its class-offset word at o-1.
func (h *Heap) SetHeader(o Oop, hdr Header) {
	h.words[o] = Word(hdr)
}

// KlassOf resolves the class pointer/offset for oop o, distinguishing the
// small and large header forms by their low tag bits (spec §4.A).
func (h *Heap) KlassOf(o Oop) uintptr {
	hdr := h.header(o)
	if hdr.IsSmall() {
		return hdr.SmallClassOffset()
	}
	// Large form: the class word is the header's immediate predecessor
	// slot for arrays, or reached directly for method/klass headers.
	return uintptr(h.words[o-1]) >> 2
}

// LengthOf returns an array's element count, or 0 for a non-array object.
func (h *Heap) LengthOf(o Oop) uintptr {
	hdr := h.header(o)
	if hdr.IsSmall() {
		return hdr.SmallLength()
	}
	if hdr.IsLargeArray() {
		return hdr.ArrayLength()
	}
	return 0
}

// payloadBase is the index of slot 0 of o's payload.
func (h *Heap) payloadBase(o Oop) Oop {
	hdr := h.header(o)
	if hdr.IsLargeArray() {
		return o + 2 // two header words precede a large array's payload
	}
	return o + 1
}

// GetSlotI reads a non-pointer (int-tagged) slot.
func (h *Heap) GetSlotI(o Oop, n int) Word {
	return h.words[int(h.payloadBase(o))+n]
}

// SetSlotI writes a non-pointer slot; no barrier fires since no oop is
// involved.
func (h *Heap) SetSlotI(o Oop, n int, v Word) {
	h.words[int(h.payloadBase(o))+n] = v
}

// GetSlotO reads a pointer-tagged slot and returns it as an Oop.
func (h *Heap) GetSlotO(o Oop, n int) Oop {
	return Oop(h.words[int(h.payloadBase(o))+n])
}

// SetSlotO writes a pointer-tagged slot and invokes the write barrier, per
// the contract in spec §4.A: "the allocator region's barrier callback is
// invoked with (container, slot_index, new_value)".
func (h *Heap) SetSlotO(o Oop, n int, v Oop) {
	h.words[int(h.payloadBase(o))+n] = Word(v)
	h.barrier(o, n, v)
}

// SetSlotOStoreCheck is SetSlotO plus the array-component type check
// (spec §4.A), raising ArrayStoreException via the returned error when the
// stored value's class is not assignable to the array's component type.
func (h *Heap) SetSlotOStoreCheck(arr Oop, idx int, val Oop) error {
	if val != NilOop && h.types != nil {
		classOffset := h.KlassOf(arr)
		if !h.types.AssignableArrayElement(classOffset, val) {
			return common.ErrArrayStore
		}
	}
	h.SetSlotO(arr, idx, val)
	return nil
}
