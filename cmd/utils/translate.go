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

// Package utils holds the small pieces of plumbing cmd/squawk and cmd/sqc
// both need -- chiefly driving classfile/ir/emit end to end to build a
// Suite out of a directory of .class files -- mirroring the role the
// teacher's own cmd/utils package plays for its two binaries.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/squawkvm/squawk/classfile"
	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/emit"
	"github.com/squawkvm/squawk/ir"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// TranslateDir walks dir for *.class files and translates all of them into
// a single new Suite registered under reg, with suite number no, name and
// parents as given. Every class file found is loaded in a first pass (so
// sibling classes can reference each other regardless of file order), then
// translated in a second pass once every name is interned.
func TranslateDir(reg *suite.Registry, no uint16, name string, parents []string, dir string) (*suite.Suite, error) {
	su := suite.New(no, name, parents)
	loader := classfile.NewLoader(su, 64)

	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".class") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var raws []*classfile.RawClass
	var klasses []*suite.Klass
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rc, k, err := loader.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		raws = append(raws, rc)
		klasses = append(klasses, k)
	}
	for i, rc := range raws {
		if err := translateOne(reg, su, rc, klasses[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
	}

	if err := reg.Register(su); err != nil {
		return nil, err
	}
	su.Finalize()
	return su, nil
}

// translateOne builds k's full layout from rc: its method bodies (IR build
// + lower + emit), a simple one-word-per-field instance layout with a
// matching oop-map, and super/interface resolution against reg.
func translateOne(reg *suite.Registry, su *suite.Suite, rc *classfile.RawClass, k *suite.Klass) error {
	super := common.InvalidClassID
	if rc.SuperClass != "" {
		if sk, ok := reg.Resolve(su, rc.SuperClass); ok {
			super = sk.ID()
		}
	}
	var interfaces []common.ClassID
	for _, name := range rc.Interfaces {
		if ik, ok := reg.Resolve(su, name); ok {
			interfaces = append(interfaces, ik.ID())
		}
	}

	instanceWords, oopMap := fieldLayout(rc.Fields)

	em := emit.NewEmitter(k.ConstantObjects())
	var virtual, static []*suite.Method
	md := &suite.Metadata{}
	for _, rm := range rc.Methods {
		m, err := translateMethod(em, rc, rm)
		if err != nil {
			return err
		}
		md.MethodNames = append(md.MethodNames, rm.Name)
		md.MethodSignatures = append(md.MethodSignatures, rm.Descriptor)
		if rm.AccessFlags&classfile.AccStatic != 0 {
			static = append(static, m)
		} else {
			virtual = append(virtual, m)
		}
	}
	for _, f := range rc.Fields {
		md.FieldNames = append(md.FieldNames, f.Name)
		md.FieldSignatures = append(md.FieldSignatures, f.Descriptor)
	}
	em.Finish()

	k.SetLayout(super, interfaces, accessModifiers(rc.AccessFlags), instanceWords, oopMap, virtual, static, md)
	return nil
}

// accessModifiers maps classfile's JVM-numbered access_flags bits onto
// suite.Modifier's own bit assignment; the two enumerations share names
// but not numeric values.
func accessModifiers(f classfile.AccessFlags) suite.Modifier {
	var m suite.Modifier
	if f&classfile.AccPublic != 0 {
		m |= suite.ModPublic
	}
	if f&classfile.AccFinal != 0 {
		m |= suite.ModFinal
	}
	if f&classfile.AccInterface != 0 {
		m |= suite.ModInterface
	}
	if f&classfile.AccAbstract != 0 {
		m |= suite.ModAbstract
	}
	if f&classfile.AccSynthetic != 0 {
		m |= suite.ModSynthetic
	}
	return m
}

func translateMethod(em *emit.Emitter, rc *classfile.RawClass, rm classfile.RawMethod) (*suite.Method, error) {
	ms := emit.MethodSource{
		Name:       rm.Name,
		Descriptor: rm.Descriptor,
		IsStatic:   rm.AccessFlags&classfile.AccStatic != 0,
		IsNative:   rm.AccessFlags&classfile.AccNative != 0,
		Exceptions: rm.ExceptionTable,
	}
	if !ms.IsNative {
		list, err := ir.Build(rc, &rm)
		if err != nil {
			return nil, err
		}
		ir.Lower(list)
		ms.List = list
	}
	return em.EmitMethod(ms)
}

// fieldLayout assigns each declared instance field its own heap word (this
// runtime's Heap already stores every slot as a uniform 64-bit object.Word,
// so there is no JVM-style 2-word long/double split to account for here,
// the same convention interp/invoke.go's popArgs already relies on) and
// builds the matching oop-map bit for reference-typed fields.
func fieldLayout(fields []classfile.RawField) (int, object.OopMap) {
	bits := make([]bool, 0, len(fields))
	for _, f := range fields {
		isRef := strings.HasPrefix(f.Descriptor, "L") || strings.HasPrefix(f.Descriptor, "[")
		bits = append(bits, isRef)
	}
	oopMap := make(object.OopMap, (len(bits)+6)/7)
	for i, isRef := range bits {
		if isRef {
			oopMap[i/7] |= 1 << uint(i%7)
		}
	}
	return len(bits), oopMap
}
