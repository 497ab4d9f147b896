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
	"errors"
	"testing"

	"github.com/squawkvm/squawk/common"
)

func simpleClassBytes() []byte {
	b := newClassBuilder()
	this := b.utf8("Greeter")
	super := b.utf8("java/lang/Object")
	name := b.utf8("main")
	desc := b.utf8("()V")
	_ = b.utf8("Code")
	return b.build(52, this, super, AccPublic, name, desc, true)
}

func TestParseSimpleClass(t *testing.T) {
	rc, err := Parse(simpleClassBytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rc.ThisClass != "Greeter" {
		t.Fatalf("want ThisClass Greeter, got %q", rc.ThisClass)
	}
	if rc.SuperClass != "java/lang/Object" {
		t.Fatalf("want SuperClass java/lang/Object, got %q", rc.SuperClass)
	}
	if len(rc.Methods) != 1 {
		t.Fatalf("want 1 method, got %d", len(rc.Methods))
	}
	m := rc.Methods[0]
	if m.Name != "main" || m.Descriptor != "()V" {
		t.Fatalf("unexpected method %+v", m)
	}
	if len(m.Code) == 0 {
		t.Fatalf("expected a non-empty Code attribute body")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := simpleClassBytes()
	data[0] = 0x00
	if _, err := Parse(data); !errors.Is(err, common.ErrClassFormat) {
		t.Fatalf("want ErrClassFormat, got %v", err)
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	b := newClassBuilder()
	this := b.utf8("Greeter")
	super := b.utf8("java/lang/Object")
	name := b.utf8("main")
	desc := b.utf8("()V")
	data := b.build(99, this, super, AccPublic, name, desc, false)
	if _, err := Parse(data); !errors.Is(err, common.ErrUnsupportedClassVer) {
		t.Fatalf("want ErrUnsupportedClassVer, got %v", err)
	}
}

func TestParseRejectsTruncated(t *testing.T) {
	data := simpleClassBytes()
	if _, err := Parse(data[:8]); !errors.Is(err, common.ErrClassFormat) {
		t.Fatalf("want ErrClassFormat for truncated input, got %v", err)
	}
}

func TestVerifyRejectsInterfaceNotAbstract(t *testing.T) {
	rc := &RawClass{ThisClass: "Marker", SuperClass: "java/lang/Object", AccessFlags: AccInterface}
	if err := Verify(rc); err == nil {
		t.Fatalf("expected an error for a non-abstract interface")
	}
}

func TestVerifyRejectsFinalAbstract(t *testing.T) {
	rc := &RawClass{ThisClass: "X", SuperClass: "java/lang/Object", AccessFlags: AccFinal | AccAbstract}
	if err := Verify(rc); err == nil {
		t.Fatalf("expected an error for a final-and-abstract class")
	}
}

func TestVerifyAcceptsSimpleClass(t *testing.T) {
	rc, err := Parse(simpleClassBytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Verify(rc); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
