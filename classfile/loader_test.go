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
	"testing"

	"github.com/squawkvm/squawk/suite"
)

func TestLoaderLoadBytesInternsClass(t *testing.T) {
	s := suite.New(1, "app", nil)
	l := NewLoader(s, 8)

	rc, k, err := l.LoadBytes(simpleClassBytes())
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if rc.ThisClass != "Greeter" {
		t.Fatalf("want Greeter, got %q", rc.ThisClass)
	}
	if k.Name() != "Greeter" {
		t.Fatalf("want interned klass named Greeter, got %q", k.Name())
	}
	if k.State() != suite.StateLoading {
		t.Fatalf("freshly loaded klass should be LOADING, got %s", k.State())
	}
	if !l.MightExist("Greeter") {
		t.Fatalf("bloom filter should report Greeter as present")
	}
	if l.MightExist("NeverLoaded") {
		// Not a hard requirement (bloom filters have false positives), but
		// with one entry and a generously sized filter this should hold.
		t.Fatalf("bloom filter unexpectedly reports NeverLoaded as present")
	}
	if _, ok := l.RawClassFor("Greeter"); !ok {
		t.Fatalf("expected RawClassFor to find the just-loaded class")
	}
}

func TestLoaderLoadBytesRejectsBadClass(t *testing.T) {
	s := suite.New(1, "app", nil)
	l := NewLoader(s, 8)
	if _, _, err := l.LoadBytes([]byte{0, 0, 0, 0}); err == nil {
		t.Fatalf("expected an error loading garbage bytes")
	}
}
