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

package common

import "fmt"

// classNoBits is the width, in bits, of the class-number component of a
// ClassID. The remaining high bits identify the owning suite.
const classNoBits = 16

// ClassID is the 32-bit (suite_no, class_no) pair that identifies a Klass
// across the whole suite hierarchy. It is deliberately a small value type,
// not a pointer, so that Klass <-> ObjectAssociation back-references stay
// cheap to copy and remain valid across suite relocation.
type ClassID uint32

// MakeClassID packs a suite number and a class number into a ClassID.
func MakeClassID(suiteNo, classNo uint16) ClassID {
	return ClassID(uint32(suiteNo)<<classNoBits | uint32(classNo))
}

// SuiteNo returns the suite component of the class id.
func (c ClassID) SuiteNo() uint16 {
	return uint16(uint32(c) >> classNoBits)
}

// ClassNo returns the per-suite class component of the class id.
func (c ClassID) ClassNo() uint16 {
	return uint16(uint32(c))
}

func (c ClassID) String() string {
	return fmt.Sprintf("%d:%d", c.SuiteNo(), c.ClassNo())
}

// InvalidClassID is never assigned to a real class and is used as the
// sentinel for "no class" (e.g. Object's super type).
const InvalidClassID ClassID = 0xFFFFFFFF
