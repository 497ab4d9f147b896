// Copyright 2020 The go-probeum Authors
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

package suitedb

import (
	"path/filepath"
	"testing"
)

func TestLevelDBPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenLevelDB(filepath.Join(dir, "suites"), 0, 0)
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}
	defer db.Close()

	key, val := []byte("suite:1:Main"), []byte("classdata")
	if ok, _ := db.Has(key); ok {
		t.Fatalf("key should not exist yet")
	}
	if err := db.Put(key, val); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("got %q, want %q", got, val)
	}
	if err := db.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := db.Has(key); ok {
		t.Fatalf("key should be gone after Delete")
	}
}

func TestLevelDBBatch(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenLevelDB(filepath.Join(dir, "suites"), 0, 0)
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}
	defer db.Close()

	b := db.NewBatch()
	for i := 0; i < 10; i++ {
		b.Put([]byte{byte(i)}, []byte{byte(i * 2)})
	}
	if b.ValueSize() == 0 {
		t.Fatalf("expected nonzero ValueSize after queuing writes")
	}
	if err := b.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := db.Get([]byte{5})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v) != 1 || v[0] != 10 {
		t.Fatalf("got %v, want [10]", v)
	}
}

func TestLevelDBIterator(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenLevelDB(filepath.Join(dir, "suites"), 0, 0)
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}
	defer db.Close()

	db.Put([]byte("a1"), []byte("1"))
	db.Put([]byte("a2"), []byte("2"))
	db.Put([]byte("b1"), []byte("3"))

	it := db.NewIterator([]byte("a"), nil)
	defer it.Release()
	count := 0
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 keys under prefix \"a\", got %d", count)
	}
	if it.Error() != nil {
		t.Fatalf("iterator error: %v", it.Error())
	}
}
