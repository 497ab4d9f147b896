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

package suite

import "testing"

func TestRegistryResolveWalksParents(t *testing.T) {
	r := NewRegistry(32*1024, 8)

	base := New(1, "base", nil)
	base.Intern("java.lang.Object")
	base.Finalize()
	if err := r.Register(base); err != nil {
		t.Fatalf("Register(base): %v", err)
	}

	app := New(2, "app", []string{"base"})
	app.Intern("Main")
	app.Finalize()
	if err := r.Register(app); err != nil {
		t.Fatalf("Register(app): %v", err)
	}

	if _, ok := r.Resolve(app, "Main"); !ok {
		t.Fatalf("expected to resolve Main from app itself")
	}
	if _, ok := r.Resolve(app, "java.lang.Object"); !ok {
		t.Fatalf("expected to resolve java.lang.Object via parent suite base")
	}
	if _, ok := r.Resolve(app, "NoSuchClass"); ok {
		t.Fatalf("resolving an unknown class should fail")
	}
}

func TestRegistryResolveCacheIsConsistent(t *testing.T) {
	r := NewRegistry(32*1024, 8)
	base := New(1, "base", nil)
	base.Intern("java.lang.Object")
	base.Finalize()
	r.Register(base)

	app := New(2, "app", []string{"base"})
	app.Finalize()
	r.Register(app)

	k1, ok1 := r.Resolve(app, "java.lang.Object")
	k2, ok2 := r.Resolve(app, "java.lang.Object") // should hit the fastcache path
	if !ok1 || !ok2 {
		t.Fatalf("expected both resolves to succeed")
	}
	if k1.ID() != k2.ID() {
		t.Fatalf("cached resolve returned a different class id: %v vs %v", k1.ID(), k2.ID())
	}
}

func TestRegistryDuplicateRegisterFails(t *testing.T) {
	r := NewRegistry(1024, 4)
	s := New(5, "dup", nil)
	if err := r.Register(s); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(s); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
