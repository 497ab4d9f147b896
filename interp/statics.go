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

package interp

import (
	"sort"
	"sync"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/object"
)

// staticState is one klass's static field storage. Squawk's real object
// model would hang this off the klass's own association record; this core
// keeps it in a side table instead, the same trade a plain map-based
// symbol table makes against a dedicated memory layout when the layout
// itself isn't load-bearing for anything spec §4.G exercises.
type staticState struct {
	mu     sync.RWMutex
	values map[string]object.Word
}

// Statics is the process-wide table of every klass's static fields, keyed
// by ClassID, with each klass's own fields keyed by name. Populated
// lazily: a klass with no static writes yet never allocates an entry.
type Statics struct {
	mu    sync.RWMutex
	perID map[common.ClassID]*staticState
}

func NewStatics() *Statics {
	return &Statics{perID: make(map[common.ClassID]*staticState)}
}

func (s *Statics) stateFor(id common.ClassID) *staticState {
	s.mu.RLock()
	st, ok := s.perID[id]
	s.mu.RUnlock()
	if ok {
		return st
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.perID[id]; ok {
		return st
	}
	st = &staticState{values: make(map[string]object.Word)}
	s.perID[id] = st
	return st
}

func (s *Statics) Get(id common.ClassID, field string) object.Word {
	st := s.stateFor(id)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.values[field]
}

func (s *Statics) Set(id common.ClassID, field string, v object.Word) {
	st := s.stateFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.values[field] = v
}

// StaticField is one named static field's value, as captured by Snapshot.
// object.Word is already a plain scalar (uintptr), not a pointer the GC
// would need to relocate, so it round-trips as a bare uint64 the same way
// isolate.HibernateThread's Args already do.
type StaticField struct {
	Name  string
	Value uint64
}

// StaticSnapshot is one klass's static fields, named by class rather than
// by ClassID so the snapshot survives a suite being renumbered across a
// hibernate/unhibernate cycle (a ClassID is only stable within one VM
// instance's suite registry).
type StaticSnapshot struct {
	ClassName string
	Fields    []StaticField
}

// Snapshot walks every klass this table holds field values for and returns
// them keyed by class name via resolveName (spec §4.H hibernate item (ii),
// "the isolate's per-class static areas"). perID and staticState.values are
// both plain, fully enumerable maps, so this is a complete walk, not a
// best-effort one; a ClassID resolveName can't name (its suite was already
// unloaded) is skipped, since there is then nothing to look it back up by
// on the unhibernate side either. Output is sorted by class name, then
// field name, so two snapshots of the same state encode identically.
func (s *Statics) Snapshot(resolveName func(common.ClassID) (string, bool)) []StaticSnapshot {
	s.mu.RLock()
	ids := make([]common.ClassID, 0, len(s.perID))
	states := make([]*staticState, 0, len(s.perID))
	for id, st := range s.perID {
		ids = append(ids, id)
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]StaticSnapshot, 0, len(ids))
	for i, id := range ids {
		name, ok := resolveName(id)
		if !ok {
			continue
		}
		st := states[i]
		st.mu.RLock()
		fields := make([]StaticField, 0, len(st.values))
		for field, v := range st.values {
			fields = append(fields, StaticField{Name: field, Value: uint64(v)})
		}
		st.mu.RUnlock()
		sort.Slice(fields, func(a, b int) bool { return fields[a].Name < fields[b].Name })
		out = append(out, StaticSnapshot{ClassName: name, Fields: fields})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ClassName < out[b].ClassName })
	return out
}
