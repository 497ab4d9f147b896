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

import "errors"

// Translator errors. Each is fatal to the klass being loaded, not to the
// suite or the VM as a whole: the klass enters state ERROR and is treated
// as unresolved thereafter.
var (
	ErrClassFormat            = errors.New("class format error")
	ErrUnsupportedClassVer    = errors.New("unsupported class version")
	ErrClassCircularity       = errors.New("class circularity error")
	ErrIncompatibleClassChange = errors.New("incompatible class change error")
	ErrAbstractMethod         = errors.New("abstract method error")
	ErrIllegalAccess          = errors.New("illegal access error")
	ErrNoSuchField            = errors.New("no such field error")
	ErrNoSuchMethod           = errors.New("no such method error")
	ErrNoClassDef             = errors.New("no class def found error")
	ErrVerify                 = errors.New("verify error")
)

// Runtime errors, raised by the interpreter's implicit checks
// (interp/natives.go) and by the heap. All are
// catchable by user code via the exception table.
var (
	ErrNullPointer        = errors.New("null pointer exception")
	ErrArrayIndexOOB      = errors.New("array index out of bounds exception")
	ErrArithmetic         = errors.New("arithmetic exception")
	ErrArrayStore         = errors.New("array store exception")
	ErrClassCast          = errors.New("class cast exception")
	ErrOutOfMemory        = errors.New("out of memory error")
	ErrStackOverflow      = errors.New("stack overflow error")
)

// Structural/operational errors that are not part of the Java exception
// hierarchy: they signal a misuse of the core itself.
var (
	ErrGlobalBankUnmapped   = errors.New("global accessed before its bank was mapped")
	ErrGlobalOffsetOOB      = errors.New("global offset outside configured table length")
	ErrSuiteChecksum          = errors.New("suite image checksum mismatch")
	ErrSuiteParentMissing     = errors.New("parent suite not reachable")
	ErrSuiteFinalized         = errors.New("suite is finalized and accepts no further classes")
	ErrSuiteAlreadyRegistered = errors.New("suite number already registered")
	ErrIsolateNotHibernated = errors.New("isolate is not in a hibernatable state")
	ErrIsolateExited        = errors.New("isolate has already exited")
	ErrThreadBusy           = errors.New("thread has live nested call depth and cannot hibernate")
	ErrChannelBadContext    = errors.New("bad channel context")
	ErrChannelBadParameter  = errors.New("bad channel parameter")
)

// ValidateNotNil returns an error naming msg if data is nil. Mirrors the
// boundary-validation helpers used throughout the class-file loader and
// channel argument decoding.
func ValidateNotNil(data interface{}, msg string) error {
	if data == nil {
		return errors.New(msg + " must be specified")
	}
	return nil
}

// ByteSliceEqual reports whether a and b hold the same bytes, treating a
// nil slice and an empty slice as distinct (mirrors bytes.Equal but is used
// where the nil/empty distinction matters, e.g. optional relocation tables).
func ByteSliceEqual(a, b []byte) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
