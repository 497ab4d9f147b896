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

func TestObjectTableFrequencySort(t *testing.T) {
	tbl := NewObjectTable()
	tbl.Intern("rare")
	for i := 0; i < 5; i++ {
		tbl.Intern("common")
	}
	for i := 0; i < 3; i++ {
		tbl.Intern("medium")
	}
	tbl.Freeze()

	idxCommon, _ := tbl.IndexOf("common")
	idxMedium, _ := tbl.IndexOf("medium")
	idxRare, _ := tbl.IndexOf("rare")
	if !(idxCommon < idxMedium && idxMedium < idxRare) {
		t.Fatalf("expected hottest-first ordering, got common=%d medium=%d rare=%d", idxCommon, idxMedium, idxRare)
	}
}

func TestObjectTableInternAfterFreezePanics(t *testing.T) {
	tbl := NewObjectTable()
	tbl.Intern("x")
	tbl.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic interning into a frozen table")
		}
	}()
	tbl.Intern("y")
}

func TestObjectTableAt(t *testing.T) {
	tbl := NewObjectTable()
	tbl.Intern("a")
	tbl.Intern("b")
	tbl.Freeze()
	for i := 0; i < tbl.Len(); i++ {
		if _, ok := tbl.At(i); !ok {
			t.Fatalf("At(%d) should be present", i)
		}
	}
	if _, ok := tbl.At(tbl.Len()); ok {
		t.Fatalf("At(len) should be absent")
	}
}
