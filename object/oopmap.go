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

// OopMap is a byte sequence read backward from a fixed offset: each byte's
// high bit is a continuation flag, and the remaining 7 bits mark, from
// LSB, 7 successive pointer/non-pointer slots (spec §3 "Oop-map").
type OopMap []byte

// IsPointer reports whether slot i (0-based, forward order) holds a
// reference, per spec §8 "Oop-map faithfulness".
func (m OopMap) IsPointer(i int) bool {
	byteIdx := i / 7
	bitIdx := uint(i % 7)
	if byteIdx >= len(m) {
		return false
	}
	return m[byteIdx]&(1<<bitIdx) != 0
}

// PointerSlots returns the indices of every slot the map marks as a
// pointer, in ascending order. The GC uses this to visit exactly the set
// of reference slots in an object or stack frame.
func (m OopMap) PointerSlots(slotCount int) []int {
	var out []int
	for i := 0; i < slotCount; i++ {
		if m.IsPointer(i) {
			out = append(out, i)
		}
	}
	return out
}

// BuildOopMap packs a []bool (slot i == true means "holds a reference")
// into the continuation-byte oop-map encoding, used by the emitter when it
// assembles a method header (spec §4.F) and by the suite builder when it
// assembles a Klass's instance oop-map.
func BuildOopMap(pointerSlots []bool) OopMap {
	if len(pointerSlots) == 0 {
		return nil
	}
	nBytes := (len(pointerSlots) + 6) / 7
	m := make(OopMap, nBytes)
	for i, isPtr := range pointerSlots {
		if !isPtr {
			continue
		}
		byteIdx := i / 7
		bitIdx := uint(i % 7)
		m[byteIdx] |= 1 << bitIdx
	}
	for i := 0; i < nBytes-1; i++ {
		m[i] |= 0x80 // continuation flag: more bytes follow
	}
	return m
}
