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

import (
	"github.com/squawkvm/squawk/common"
)

// Verify runs the spec §4.D legality checks that depend only on the
// class's own structure: names, modifier combinations, and the
// interface/abstract consistency rules. Checks that require resolving
// another class (superclass existence, circularity) are Loader's job,
// since only the Loader has the suite/registry in scope.
func Verify(rc *RawClass) error {
	if rc.ThisClass == "" {
		return classFormatErrorf("class has no name")
	}
	if !isValidBinaryName(rc.ThisClass) {
		return classFormatErrorf("illegal class name %q", rc.ThisClass)
	}

	isInterface := rc.AccessFlags&AccInterface != 0
	isAbstract := rc.AccessFlags&AccAbstract != 0
	isFinal := rc.AccessFlags&AccFinal != 0

	if isInterface && !isAbstract {
		return classFormatErrorf("interface %s must be abstract", rc.ThisClass)
	}
	if isInterface && isFinal {
		return classFormatErrorf("interface %s must not be final", rc.ThisClass)
	}
	if isFinal && isAbstract {
		return classFormatErrorf("class %s cannot be both final and abstract", rc.ThisClass)
	}
	if !isInterface && rc.SuperClass == "" && rc.ThisClass != "java/lang/Object" {
		return classFormatErrorf("class %s has no superclass", rc.ThisClass)
	}

	for _, m := range rc.Methods {
		if m.Name == "" || m.Descriptor == "" {
			return classFormatErrorf("method in class %s has an empty name or descriptor", rc.ThisClass)
		}
		isAbstractMethod := m.AccessFlags&AccAbstract != 0
		isNative := m.AccessFlags&AccNative != 0
		if !isAbstractMethod && !isNative && m.Code == nil {
			return common.ErrAbstractMethod
		}
		if isAbstractMethod && m.Code != nil {
			return classFormatErrorf("abstract method %s.%s has a Code attribute", rc.ThisClass, m.Name)
		}
	}
	return nil
}

// isValidBinaryName rejects a handful of characters the JVM spec forbids
// in a binary class name; this is deliberately not a full re-verification
// of javac's own output, only the checks a hostile or corrupted class
// file could otherwise slip past the loader with.
func isValidBinaryName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch r {
		case ';', '[', '.':
			return false
		}
	}
	return true
}
