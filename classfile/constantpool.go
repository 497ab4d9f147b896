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

import "math"

// Constant pool tags, per the JVM class file format.
const (
	tagUTF8              = 1
	tagInteger           = 3
	tagFloat             = 4
	tagLong              = 5
	tagDouble            = 6
	tagClass             = 7
	tagString            = 8
	tagFieldref          = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// CPEntry is one constant pool slot. Only the fields relevant to the tag
// are populated; callers switch on Tag.
type CPEntry struct {
	Tag     uint8
	Int     int32
	Long    int64
	Float   float32
	Double  float64
	UTF8    string
	Index1  uint16 // class name index, NameAndType index, string index, etc.
	Index2  uint16 // NameAndType's descriptor index, method ref's name-and-type, etc.
}

// classFileMagic is the fixed four-byte signature every .class file opens
// with.
const classFileMagic = 0xCAFEBABE

func parseConstantPool(c *cursor, count int) ([]CPEntry, error) {
	// Entry 0 is unused; Long/Double entries occupy two slots (a JVM class
	// file quirk carried over so indices line up with what javac emitted).
	pool := make([]CPEntry, count)
	for i := 1; i < count; i++ {
		tag := c.u1()
		switch tag {
		case tagUTF8:
			n := int(c.u2())
			pool[i] = CPEntry{Tag: tag, UTF8: string(c.bytes(n))}
		case tagInteger:
			pool[i] = CPEntry{Tag: tag, Int: int32(c.u4())}
		case tagFloat:
			bits := c.u4()
			pool[i] = CPEntry{Tag: tag, Float: math.Float32frombits(bits)}
		case tagLong:
			hi, lo := uint64(c.u4()), uint64(c.u4())
			pool[i] = CPEntry{Tag: tag, Long: int64(hi<<32 | lo)}
			i++ // occupies two slots
		case tagDouble:
			hi, lo := uint64(c.u4()), uint64(c.u4())
			pool[i] = CPEntry{Tag: tag, Double: math.Float64frombits(hi<<32 | lo)}
			i++ // occupies two slots
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			pool[i] = CPEntry{Tag: tag, Index1: c.u2()}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			pool[i] = CPEntry{Tag: tag, Index1: c.u2(), Index2: c.u2()}
		case tagMethodHandle:
			refKind := c.u1()
			pool[i] = CPEntry{Tag: tag, Index1: uint16(refKind), Index2: c.u2()}
		default:
			return nil, classFormatErrorf("unrecognized constant pool tag %d at index %d", tag, i)
		}
	}
	return pool, nil
}

// utf8 resolves a constant pool index known to hold a UTF8 entry.
func (p cpPool) utf8(idx uint16) (string, error) {
	if int(idx) >= len(p) || p[idx].Tag != tagUTF8 {
		return "", classFormatErrorf("constant pool index %d is not a UTF8 entry", idx)
	}
	return p[idx].UTF8, nil
}

// className resolves a Class entry to its name by following its UTF8
// index.
func (p cpPool) className(idx uint16) (string, error) {
	if idx == 0 {
		return "", nil
	}
	if int(idx) >= len(p) || p[idx].Tag != tagClass {
		return "", classFormatErrorf("constant pool index %d is not a Class entry", idx)
	}
	return p.utf8(p[idx].Index1)
}

type cpPool []CPEntry
