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

import "sort"

// ObjectEntry is one interned constant object: a string, a boxed int, a
// class reference used as a constant, and so on. count tracks reference
// frequency so the translator's phase-1 builder (4.E) can place the
// hottest constants at the lowest indices, keeping their encoded operand
// small (spec §4.E "frequency-sorted object table").
type ObjectEntry struct {
	Value interface{}
	count int
	index int // assigned only after Freeze
}

// ObjectTable is a Klass's per-class constant pool: the set of object
// constants a class's methods reference, deduplicated by value and
// reordered by access frequency once building is complete.
type ObjectTable struct {
	entries []*ObjectEntry
	byValue map[interface{}]*ObjectEntry
	frozen  bool
}

func NewObjectTable() *ObjectTable {
	return &ObjectTable{byValue: make(map[interface{}]*ObjectEntry)}
}

// Intern records a reference to value, returning its (possibly new) entry.
// Safe to call repeatedly for the same value during phase-1 building: each
// call past the first just bumps the frequency counter.
func (t *ObjectTable) Intern(value interface{}) *ObjectEntry {
	if t.frozen {
		panic("suite: Intern called on frozen ObjectTable")
	}
	if e, ok := t.byValue[value]; ok {
		e.count++
		return e
	}
	e := &ObjectEntry{Value: value, count: 1}
	t.byValue[value] = e
	t.entries = append(t.entries, e)
	return e
}

// Freeze sorts entries by descending frequency (ties broken by first-seen
// order, for determinism) and assigns final indices. After Freeze, Intern
// is no longer valid -- the table mirrors a Klass's CONVERTED immutability.
func (t *ObjectTable) Freeze() {
	if t.frozen {
		return
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].count > t.entries[j].count
	})
	for i, e := range t.entries {
		e.index = i
	}
	t.frozen = true
}

// IndexOf returns the final constant-pool index of value. Valid only after
// Freeze.
func (t *ObjectTable) IndexOf(value interface{}) (int, bool) {
	e, ok := t.byValue[value]
	if !ok {
		return 0, false
	}
	return e.index, true
}

// At returns the constant stored at the given frozen index.
func (t *ObjectTable) At(index int) (interface{}, bool) {
	if index < 0 || index >= len(t.entries) {
		return nil, false
	}
	for _, e := range t.entries {
		if e.index == index {
			return e.Value, true
		}
	}
	return nil, false
}

func (t *ObjectTable) Len() int { return len(t.entries) }
