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

import "github.com/squawkvm/squawk/common"

// MinSupportedMajor/MaxSupportedMajor bound the class file versions this
// core accepts; outside that range the file is almost certainly meant for
// a desktop JVM feature Squawk's CLDC-class translator doesn't implement
// (spec §4.D: UnsupportedClassVersionError).
const (
	MinSupportedMajor = 45 // JDK 1.1
	MaxSupportedMajor = 52 // JDK 8, the last version with no dynamic/module constants worth supporting here
)

// Parse reads a class file's bytes into a RawClass, performing every
// structural check the format itself requires (magic, version, constant
// pool shape, attribute lengths) but none of the legality checks
// (legality.go's Verify, which Loader.LoadBytes runs before interning the
// class) and none that require cross-class knowledge (ResolveSuper).
func Parse(data []byte) (rc *RawClass, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(errTruncated); ok {
				err = classFormatError
				return
			}
			panic(r)
		}
	}()

	c := &cursor{data: data}
	if magic := c.u4(); magic != classFileMagic {
		return nil, classFormatErrorf("bad magic number %08x", magic)
	}
	minor := c.u2()
	major := c.u2()
	if major < MinSupportedMajor || major > MaxSupportedMajor {
		return nil, common.ErrUnsupportedClassVer
	}

	cpCount := int(c.u2())
	pool, err := parseConstantPool(c, cpCount)
	if err != nil {
		return nil, err
	}

	access := AccessFlags(c.u2())
	thisIdx := c.u2()
	superIdx := c.u2()

	thisName, err := pool.className(thisIdx)
	if err != nil {
		return nil, err
	}
	superName, err := pool.className(superIdx)
	if err != nil {
		return nil, err
	}

	ifaceCount := int(c.u2())
	interfaces := make([]string, ifaceCount)
	for i := range interfaces {
		name, err := pool.className(c.u2())
		if err != nil {
			return nil, err
		}
		interfaces[i] = name
	}

	fields, err := parseFields(c, pool)
	if err != nil {
		return nil, err
	}
	methods, err := parseMethods(c, pool)
	if err != nil {
		return nil, err
	}
	sourceFile, err := parseClassAttributes(c, pool)
	if err != nil {
		return nil, err
	}

	return &RawClass{
		MinorVersion: minor,
		MajorVersion: major,
		ConstantPool: pool,
		AccessFlags:  access,
		ThisClass:    thisName,
		SuperClass:   superName,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		SourceFile:   sourceFile,
	}, nil
}

func parseFields(c *cursor, pool cpPool) ([]RawField, error) {
	count := int(c.u2())
	fields := make([]RawField, count)
	for i := range fields {
		flags := AccessFlags(c.u2())
		name, err := pool.utf8(c.u2())
		if err != nil {
			return nil, err
		}
		desc, err := pool.utf8(c.u2())
		if err != nil {
			return nil, err
		}
		if err := skipAttributes(c); err != nil {
			return nil, err
		}
		fields[i] = RawField{AccessFlags: flags, Name: name, Descriptor: desc}
	}
	return fields, nil
}

func parseMethods(c *cursor, pool cpPool) ([]RawMethod, error) {
	count := int(c.u2())
	methods := make([]RawMethod, count)
	for i := range methods {
		flags := AccessFlags(c.u2())
		name, err := pool.utf8(c.u2())
		if err != nil {
			return nil, err
		}
		desc, err := pool.utf8(c.u2())
		if err != nil {
			return nil, err
		}
		m := RawMethod{AccessFlags: flags, Name: name, Descriptor: desc}

		attrCount := int(c.u2())
		for a := 0; a < attrCount; a++ {
			attrName, err := pool.utf8(c.u2())
			if err != nil {
				return nil, err
			}
			attrLen := int(c.u4())
			body := c.bytes(attrLen)
			if attrName == "Code" {
				code, err := parseCodeAttribute(body, pool)
				if err != nil {
					return nil, err
				}
				m.MaxStack, m.MaxLocals = code.maxStack, code.maxLocals
				m.Code = code.code
				m.ExceptionTable = code.handlers
				m.LineNumbers = code.lineNumbers
			}
		}
		methods[i] = m
	}
	return methods, nil
}

type parsedCode struct {
	maxStack, maxLocals int
	code                []byte
	handlers            []RawExceptionHandler
	lineNumbers         map[int]int
}

func parseCodeAttribute(body []byte, pool cpPool) (parsedCode, error) {
	c := &cursor{data: body}
	maxStack := int(c.u2())
	maxLocals := int(c.u2())
	codeLen := int(c.u4())
	code := c.bytes(codeLen)

	handlerCount := int(c.u2())
	handlers := make([]RawExceptionHandler, handlerCount)
	for i := range handlers {
		startPC := int(c.u2())
		endPC := int(c.u2())
		handlerPC := int(c.u2())
		catchIdx := c.u2()
		catchType, err := pool.className(catchIdx)
		if err != nil {
			return parsedCode{}, err
		}
		handlers[i] = RawExceptionHandler{StartPC: startPC, EndPC: endPC, HandlerPC: handlerPC, CatchType: catchType}
	}

	lineNumbers := make(map[int]int)
	attrCount := int(c.u2())
	for a := 0; a < attrCount; a++ {
		attrName, err := pool.utf8(c.u2())
		if err != nil {
			return parsedCode{}, err
		}
		attrLen := int(c.u4())
		attrBody := c.bytes(attrLen)
		if attrName == "LineNumberTable" {
			sub := &cursor{data: attrBody}
			n := int(sub.u2())
			for i := 0; i < n; i++ {
				startPC := int(sub.u2())
				line := int(sub.u2())
				lineNumbers[startPC] = line
			}
		}
	}

	return parsedCode{maxStack: maxStack, maxLocals: maxLocals, code: code, handlers: handlers, lineNumbers: lineNumbers}, nil
}

func parseClassAttributes(c *cursor, pool cpPool) (sourceFile string, err error) {
	count := int(c.u2())
	for i := 0; i < count; i++ {
		name, err := pool.utf8(c.u2())
		if err != nil {
			return "", err
		}
		length := int(c.u4())
		body := c.bytes(length)
		if name == "SourceFile" && len(body) == 2 {
			idx := uint16(body[0])<<8 | uint16(body[1])
			sourceFile, err = pool.utf8(idx)
			if err != nil {
				return "", err
			}
		}
	}
	return sourceFile, nil
}

// skipAttributes consumes an attribute_info[] whose contents are not
// needed by the loader (i.e. anything on a field -- Squawk has no field
// annotations or generic signatures in scope).
func skipAttributes(c *cursor) error {
	count := int(c.u2())
	for i := 0; i < count; i++ {
		c.u2() // name index
		length := int(c.u4())
		c.bytes(length)
	}
	return nil
}
