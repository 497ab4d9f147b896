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

// Exported constant pool accessors used by the ir package's phase-1
// builder. RawClass keeps its constant pool representation (cpPool)
// unexported so only the loader can build one; everything downstream
// resolves entries through these methods instead of walking CPEntry
// directly.

// ClassLiteral marks a resolved Class entry used as a runtime constant
// (ldc on a Class, or CheckCast/InstanceOf/New/NewArray's operand),
// distinguishing "this string names a class" from an ordinary interned
// string for the lowering pass's object_k rewriting rule.
type ClassLiteral string

// ResolveUTF8 resolves a constant pool index known to hold a UTF8 entry.
func (rc *RawClass) ResolveUTF8(idx uint16) (string, error) {
	return rc.ConstantPool.utf8(idx)
}

// ResolveClassName resolves a Class entry to its binary name.
func (rc *RawClass) ResolveClassName(idx uint16) (string, error) {
	return rc.ConstantPool.className(idx)
}

// ResolveNameAndType resolves a NameAndType entry to its member name and
// descriptor.
func (rc *RawClass) ResolveNameAndType(idx uint16) (name, descr string, err error) {
	if int(idx) >= len(rc.ConstantPool) || rc.ConstantPool[idx].Tag != tagNameAndType {
		return "", "", classFormatErrorf("constant pool index %d is not a NameAndType entry", idx)
	}
	e := rc.ConstantPool[idx]
	if name, err = rc.ConstantPool.utf8(e.Index1); err != nil {
		return "", "", err
	}
	if descr, err = rc.ConstantPool.utf8(e.Index2); err != nil {
		return "", "", err
	}
	return name, descr, nil
}

// ResolveRef resolves a Fieldref, Methodref or InterfaceMethodref entry to
// the declaring class' binary name, the member name and its descriptor.
func (rc *RawClass) ResolveRef(idx uint16) (owner, name, descr string, err error) {
	if int(idx) >= len(rc.ConstantPool) {
		return "", "", "", classFormatErrorf("constant pool index %d out of range", idx)
	}
	e := rc.ConstantPool[idx]
	switch e.Tag {
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
	default:
		return "", "", "", classFormatErrorf("constant pool index %d is not a ref entry", idx)
	}
	if owner, err = rc.ConstantPool.className(e.Index1); err != nil {
		return "", "", "", err
	}
	if name, descr, err = rc.ResolveNameAndType(e.Index2); err != nil {
		return "", "", "", err
	}
	return owner, name, descr, nil
}

// IsInterfaceRef reports whether idx names an InterfaceMethodref entry, so
// the builder can distinguish invokeinterface's operand sanity from a
// plain invokevirtual/static Methodref.
func (rc *RawClass) IsInterfaceRef(idx uint16) bool {
	return int(idx) < len(rc.ConstantPool) && rc.ConstantPool[idx].Tag == tagInterfaceMethodref
}

// ResolveLdc resolves a one-slot ldc/ldc_w operand: an Integer, Float,
// String or Class constant.
func (rc *RawClass) ResolveLdc(idx uint16) (interface{}, error) {
	if int(idx) >= len(rc.ConstantPool) {
		return nil, classFormatErrorf("constant pool index %d out of range", idx)
	}
	e := rc.ConstantPool[idx]
	switch e.Tag {
	case tagInteger:
		return e.Int, nil
	case tagFloat:
		return e.Float, nil
	case tagString:
		return rc.ConstantPool.utf8(e.Index1)
	case tagClass:
		name, err := rc.ConstantPool.className(idx)
		if err != nil {
			return nil, err
		}
		return ClassLiteral(name), nil
	default:
		return nil, classFormatErrorf("constant pool index %d is not a valid ldc operand (tag %d)", idx, e.Tag)
	}
}

// ResolveLdc2 resolves a two-slot ldc2_w operand: a Long or Double
// constant.
func (rc *RawClass) ResolveLdc2(idx uint16) (interface{}, error) {
	if int(idx) >= len(rc.ConstantPool) {
		return nil, classFormatErrorf("constant pool index %d out of range", idx)
	}
	e := rc.ConstantPool[idx]
	switch e.Tag {
	case tagLong:
		return e.Long, nil
	case tagDouble:
		return e.Double, nil
	default:
		return nil, classFormatErrorf("constant pool index %d is not a valid ldc2_w operand (tag %d)", idx, e.Tag)
	}
}
