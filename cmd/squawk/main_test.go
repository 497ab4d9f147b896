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

package main

import (
	"testing"

	"github.com/squawkvm/squawk/suite"
)

func buildTestSuite(t *testing.T) (*suite.Registry, *suite.Suite) {
	t.Helper()
	reg := suite.NewRegistry(0, 0)
	su := suite.New(1, "test", nil)
	if err := reg.Register(su); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg, su
}

func TestResolveMainFindsStaticVoidMain(t *testing.T) {
	reg, su := buildTestSuite(t)
	k, _ := su.Intern("Main")
	main := &suite.Method{Name: "main", Signature: "([Ljava/lang/String;)V", IsStatic: true}
	other := &suite.Method{Name: "helper", Signature: "()I", IsStatic: true}
	k.SetLayout(0, nil, suite.ModPublic, 0, nil, nil, []*suite.Method{main, other}, &suite.Metadata{})
	su.Finalize()

	rk, rm, ok := resolveMain(reg, su, "Main")
	if !ok {
		t.Fatalf("resolveMain should find Main.main")
	}
	if rk != k || rm != main {
		t.Fatalf("resolveMain returned the wrong klass/method")
	}
}

func TestResolveMainMissingClass(t *testing.T) {
	reg, su := buildTestSuite(t)
	if _, _, ok := resolveMain(reg, su, "NoSuchClass"); ok {
		t.Fatalf("resolveMain should fail for an unknown class")
	}
}

func TestResolveMainMissingMainMethod(t *testing.T) {
	reg, su := buildTestSuite(t)
	k, _ := su.Intern("NoMain")
	k.SetLayout(0, nil, suite.ModPublic, 0, nil, nil, nil, &suite.Metadata{})
	su.Finalize()

	if _, _, ok := resolveMain(reg, su, "NoMain"); ok {
		t.Fatalf("resolveMain should fail when no static ...V main-shaped method exists")
	}
}
