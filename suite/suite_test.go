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

import (
	"errors"
	"testing"

	"github.com/squawkvm/squawk/common"
)

var errTest = errors.New("test error")

func TestInternIsIdempotent(t *testing.T) {
	s := New(1, "app", nil)
	k1, err := s.Intern("Main")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	k2, err := s.Intern("Main")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("Intern returned different klasses for the same name")
	}
	if s.ClassCount() != 1 {
		t.Fatalf("want 1 class, got %d", s.ClassCount())
	}
}

func TestFinalizeFreezesClasses(t *testing.T) {
	s := New(2, "app", nil)
	k, _ := s.Intern("Main")
	if k.State() != StateLoading {
		t.Fatalf("new klass should start LOADING, got %s", k.State())
	}
	cksum1 := s.Finalize()
	if k.State() != StateConverted {
		t.Fatalf("klass should be CONVERTED after Finalize, got %s", k.State())
	}
	if _, err := s.Intern("Other"); err == nil {
		t.Fatalf("Intern after Finalize should fail")
	}
	cksum2 := s.Finalize()
	if cksum1 != cksum2 {
		t.Fatalf("Finalize should be idempotent: got %08x then %08x", cksum1, cksum2)
	}
}

func TestFinalizeLeavesErrorKlassesAlone(t *testing.T) {
	s := New(3, "app", nil)
	k, _ := s.Intern("Broken")
	k.MarkError(errTest)
	s.Finalize()
	if k.State() != StateError {
		t.Fatalf("errored klass must stay ERROR through Finalize, got %s", k.State())
	}
}

func TestKlassIsAssignableFrom(t *testing.T) {
	s := New(4, "app", nil)
	object, _ := s.Intern("java.lang.Object")
	base, _ := s.Intern("Base")
	derived, _ := s.Intern("Derived")
	base.SetLayout(object.ID(), nil, ModPublic, 0, nil, nil, nil, nil)
	derived.SetLayout(base.ID(), nil, ModPublic, 0, nil, nil, nil, nil)

	resolve := func(cid common.ClassID) *Klass {
		k, _ := s.Lookup(cid.ClassNo())
		return k
	}
	if !object.IsAssignableFrom(derived, resolve) {
		t.Fatalf("Object should be assignable from Derived through Base")
	}
	if derived.IsAssignableFrom(object, resolve) {
		t.Fatalf("Derived must not be assignable from Object")
	}
}
