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

package classfile

import "encoding/binary"

// classBuilder assembles a minimal, valid class file byte-for-byte so
// tests exercise the real parser instead of a fixture checked into the
// tree. Every UTF8 string the class needs must be registered with utf8()
// before calling build(); build() then lays out the constant pool as
// [UTF8 entries in registration order][a Class entry for "this"][a Class
// entry for "super"], followed by the rest of the class body.
type classBuilder struct {
	utf8s []string // 1-based: utf8s[0] is unused
}

func newClassBuilder() *classBuilder {
	return &classBuilder{utf8s: []string{""}}
}

func (b *classBuilder) utf8(s string) uint16 {
	b.utf8s = append(b.utf8s, s)
	return uint16(len(b.utf8s) - 1)
}

type byteWriter struct{ buf []byte }

func (w *byteWriter) u1(v uint8)  { w.buf = append(w.buf, v) }
func (w *byteWriter) u2(v uint16) { w.buf = append(w.buf, byte(v>>8), byte(v)) }
func (w *byteWriter) u4(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}
func (w *byteWriter) raw(b []byte) { w.buf = append(w.buf, b...) }

// build assembles the full class file. thisUTF8/superUTF8 and
// methodNameUTF8/methodDescUTF8 are indices previously returned by utf8().
func (b *classBuilder) build(major uint16, thisUTF8, superUTF8 uint16, access AccessFlags, methodNameUTF8, methodDescUTF8 uint16, withCode bool) []byte {
	w := &byteWriter{}
	w.u4(classFileMagic)
	w.u2(0)
	w.u2(major)

	thisClassIdx := uint16(len(b.utf8s))
	superClassIdx := uint16(len(b.utf8s)) + 1
	// constant_pool_count is one past the highest valid index (index 0 is
	// reserved/unused, so count = #UTF8 entries + #Class entries + 1).
	cpCount := uint16(len(b.utf8s)) + 2
	w.u2(cpCount)
	for i := 1; i < len(b.utf8s); i++ {
		w.u1(tagUTF8)
		w.u2(uint16(len(b.utf8s[i])))
		w.raw([]byte(b.utf8s[i]))
	}
	w.u1(tagClass)
	w.u2(thisUTF8)
	w.u1(tagClass)
	w.u2(superUTF8)

	w.u2(uint16(access))
	w.u2(thisClassIdx)
	w.u2(superClassIdx)
	w.u2(0) // interfaces count
	w.u2(0) // fields count

	w.u2(1) // methods count
	w.u2(uint16(access &^ AccInterface &^ AccAbstract))
	w.u2(methodNameUTF8)
	w.u2(methodDescUTF8)
	if withCode {
		codeNameIdx, ok := b.indexOf("Code")
		if !ok {
			panic("classBuilder: withCode requires utf8(\"Code\") to be registered first")
		}
		w.u2(1) // attribute count
		w.u2(codeNameIdx)

		code := &byteWriter{}
		code.u2(1)             // max_stack
		code.u2(1)             // max_locals
		body := []byte{0xb1}   // return
		code.u4(uint32(len(body)))
		code.raw(body)
		code.u2(0) // exception table count
		code.u2(0) // attributes count
		w.u4(uint32(len(code.buf)))
		w.raw(code.buf)
	} else {
		w.u2(0) // attribute count
	}

	w.u2(0) // class attributes count
	return w.buf
}

func (b *classBuilder) indexOf(s string) (uint16, bool) {
	for i, v := range b.utf8s {
		if v == s {
			return uint16(i), true
		}
	}
	return 0, false
}
