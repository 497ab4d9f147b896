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

import "fmt"

// AccessFlags mirrors the JVM class/method/field access_flags bitset,
// trimmed to the values spec §4.D's legality checks care about.
type AccessFlags uint16

const (
	AccPublic     AccessFlags = 0x0001
	AccFinal      AccessFlags = 0x0010
	AccSuper      AccessFlags = 0x0020
	AccInterface  AccessFlags = 0x0200
	AccAbstract   AccessFlags = 0x0400
	AccSynthetic  AccessFlags = 0x1000
	AccStatic     AccessFlags = 0x0008
	AccNative     AccessFlags = 0x0100
)

// RawClass is the class-file loader's output: an untranslated but fully
// parsed class, ready for the IR builder (4.E) to turn into Klass/Method
// values. It deliberately keeps JVM bytecode verbatim -- lowering it to
// Squawk bytecode is the translator's job, not the loader's (spec §4.D
// scope: "parses ... populates the suite's Klass descriptor, builds the
// in-memory constant pool").
type RawClass struct {
	MinorVersion, MajorVersion uint16
	ConstantPool               cpPool
	AccessFlags                AccessFlags
	ThisClass                  string
	SuperClass                 string
	Interfaces                 []string
	Fields                     []RawField
	Methods                    []RawMethod
	SourceFile                 string
}

type RawField struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string
	ConstValue  interface{}
}

type RawMethod struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string

	MaxStack, MaxLocals int
	Code                []byte
	ExceptionTable      []RawExceptionHandler
	LineNumbers         map[int]int // bytecode offset -> source line
}

type RawExceptionHandler struct {
	StartPC, EndPC, HandlerPC int
	CatchType                 string // "" means catch-all
}

func classFormatErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", classFormatError, fmt.Sprintf(format, args...))
}
