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
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/log"
)

var log_ = log.New("component", "suite")

// Suite is a position-independent, relocatable collection of Klasses,
// ordered by class_no within a single suite_no, with a name and an
// ordered list of parent suite names resolved at load time (spec §3
// "Suite", §4.B "Interning rule"). A Suite plays the role the teacher's
// StateDB plays for account state: the container, the in-memory cache,
// and the boundary to persistence (suitedb), with dirty tracking so a
// suite being built can be queried before it is finalized.
type Suite struct {
	mu sync.RWMutex

	no      uint16
	name    string
	parents []string

	classes    map[uint16]*Klass
	byName     map[string]uint16
	nextClass  uint16

	checksum uint32 // CRC32 over class names and method bytecode; 0 until Finalize
	final    bool
}

// New creates an empty, still-open suite. no is the suite number this
// suite will register under once loaded into a Registry (below).
func New(no uint16, name string, parents []string) *Suite {
	return &Suite{
		no:      no,
		name:    name,
		parents: parents,
		classes: make(map[uint16]*Klass),
		byName:  make(map[string]uint16),
	}
}

func (s *Suite) No() uint16        { return s.no }
func (s *Suite) Name() string      { return s.name }
func (s *Suite) Parents() []string { return s.parents }
func (s *Suite) Checksum() uint32  { return s.checksum }
func (s *Suite) IsFinal() bool     { return s.final }

// Intern assigns name a class_no within this suite if it does not already
// have one, and returns the resulting Klass in state LOADING. Re-interning
// an already-known name returns the existing Klass: spec §4.B's
// "Interning rule" requires idempotent lookups by name within a suite.
func (s *Suite) Intern(name string) (*Klass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final {
		return nil, common.ErrSuiteFinalized
	}
	if no, ok := s.byName[name]; ok {
		return s.classes[no], nil
	}
	no := s.nextClass
	s.nextClass++
	id := common.MakeClassID(s.no, no)
	k := NewKlass(id, name)
	s.classes[no] = k
	s.byName[name] = no
	return k, nil
}

// Lookup resolves a class_no within this suite.
func (s *Suite) Lookup(classNo uint16) (*Klass, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.classes[classNo]
	return k, ok
}

// LookupByName resolves a class name within this suite only -- it does
// not walk the parent chain; that is Registry.Resolve's job, since only a
// Registry has every suite in scope.
func (s *Suite) LookupByName(name string) (*Klass, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	no, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.classes[no], true
}

// Each calls fn for every klass currently interned, in class_no order.
func (s *Suite) Each(fn func(*Klass)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for no := uint16(0); no < s.nextClass; no++ {
		if k, ok := s.classes[no]; ok {
			fn(k)
		}
	}
}

// Finalize freezes every klass still in LOADING/LINKING state to
// CONVERTED (any already in ERROR stay there), computes the suite's
// checksum over its class names and bytecode in class_no order, and
// rejects further Intern calls. This is the suite-level analogue of a
// Klass reaching CONVERTED: once Finalize returns, the suite as a whole
// is immutable and safe to persist or share across isolates (spec §3
// "Lifecycles", supplemented checksum feature).
func (s *Suite) Finalize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final {
		return s.checksum
	}
	h := crc32.NewIEEE()
	for no := uint16(0); no < s.nextClass; no++ {
		k, ok := s.classes[no]
		if !ok {
			continue
		}
		if k.State() != StateError {
			k.MarkConverted()
		}
		h.Write([]byte(k.Name()))
		for _, m := range k.StaticMethods() {
			h.Write(m.Bytecode)
		}
		for _, m := range k.VirtualMethods() {
			h.Write(m.Bytecode)
		}
	}
	s.checksum = h.Sum32()
	s.final = true
	log_.Info("suite finalized", "name", s.name, "classes", s.nextClass, "checksum", fmt.Sprintf("%08x", s.checksum))
	return s.checksum
}

// ClassCount returns the number of classes interned so far.
func (s *Suite) ClassCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.nextClass)
}
