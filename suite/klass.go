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

// Package suite implements the in-memory suite, class and method model of
// spec §3/§4.B: an ordered, immutable-once-CONVERTED collection of Klass
// objects, keyed by (suite_no, class_no), with parent-suite name lookup.
// It is grounded on the teacher's core/state package: a Suite plays the
// role StateDB plays (the container + cache + persistence boundary), and a
// Klass plays the role stateObject plays (the per-entity mutable record
// with a dirty/clean cache split in front of a KV store).
package suite

import (
	"sync"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/object"
)

// KlassState tracks a Klass through its lifecycle (spec §3 "Lifecycles").
type KlassState int

const (
	StateLoading KlassState = iota
	StateLinking
	StateConverted // immutable within the suite from this point on
	StateError     // translator failure isolated to this klass
)

func (s KlassState) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateLinking:
		return "LINKING"
	case StateConverted:
		return "CONVERTED"
	default:
		return "ERROR"
	}
}

// Modifier mirrors a (trimmed) subset of JVM access_flags relevant to the
// core: public/final/interface/abstract/array.
type Modifier uint16

const (
	ModPublic Modifier = 1 << iota
	ModFinal
	ModInterface
	ModAbstract
	ModArray
	ModSynthetic
)

// prefixLayout is embedded first in both Klass and ObjectAssociation so
// that "self" and "virtualMethods" occupy the same offsets in either type,
// letting the interpreter fetch a method table from whichever one it has a
// reference to via a single fixed offset (spec §3 Klass invariant, §9
// "Cyclic graphs"). It is a flat struct with a discriminator, not an
// inheritance relationship, per spec §9's explicit guidance.
type prefixLayout struct {
	self           common.ClassID // back-pointer for identity
	virtualMethods []*Method
}

// ObjectAssociation is the companion object returned for an *instance*
// reference when a piece of code needs "the method table this object
// dispatches through" without caring whether that's literally the Klass
// (for a static context) or an association record (for a polymorphic
// instance) -- see spec §3's Klass invariant.
type ObjectAssociation struct {
	prefixLayout
}

func (a *ObjectAssociation) Self() common.ClassID      { return a.self }
func (a *ObjectAssociation) VirtualMethods() []*Method { return a.virtualMethods }

// Klass is a loaded class descriptor.
type Klass struct {
	prefixLayout

	mu sync.RWMutex

	name          string
	componentType common.ClassID // arrays only; InvalidClassID otherwise
	super         common.ClassID
	interfaces    []common.ClassID
	modifiers     Modifier
	instanceWords int // instance size in words

	staticMethods []*Method
	constantObjects *ObjectTable

	metadata *Metadata

	instanceOopMap object.OopMap

	state KlassState
	err   error // set when state == StateError
}

// Metadata carries the names/signatures of fields and methods, the
// line-number table and local-variable types -- everything the
// interpreter itself never touches but a debugger-adjacent tool
// (explicitly out of scope per spec §1) or the `-verbose` dump would want.
type Metadata struct {
	FieldNames      []string
	FieldSignatures []string
	MethodNames     []string
	MethodSignatures []string
	LineNumberTable []LineEntry
	LocalVarTypes   []LocalVarEntry
}

type LineEntry struct {
	StartPC int
	Line    int
}

type LocalVarEntry struct {
	Slot int
	Name string
	Type string
}

// NewKlass constructs a Klass in state LOADING. id is assigned by the
// owning Suite at interning time (4.B "Interning rule").
func NewKlass(id common.ClassID, name string) *Klass {
	k := &Klass{
		name:          name,
		componentType: common.InvalidClassID,
		super:         common.InvalidClassID,
		state:         StateLoading,
	}
	k.self = id
	k.constantObjects = NewObjectTable()
	return k
}

func (k *Klass) ID() common.ClassID   { return k.self }
func (k *Klass) Name() string         { return k.name }
func (k *Klass) State() KlassState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

func (k *Klass) Error() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.err
}

// MarkError moves the klass into state ERROR and records why. Per spec §7,
// this isolates failure to the klass itself: the klass is "treated as
// unresolved thereafter" but the owning suite survives.
func (k *Klass) MarkError(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = StateError
	k.err = err
}

// MarkConverted freezes the klass: spec §3 "Lifecycles" says Klasses are
// immutable within the suite once CONVERTED.
func (k *Klass) MarkConverted() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state != StateError {
		k.state = StateConverted
	}
}

func (k *Klass) IsArray() bool { return k.modifiers&ModArray != 0 }
func (k *Klass) ComponentType() common.ClassID { return k.componentType }
func (k *Klass) Super() common.ClassID         { return k.super }
func (k *Klass) Interfaces() []common.ClassID  { return k.interfaces }
func (k *Klass) Modifiers() Modifier           { return k.modifiers }
func (k *Klass) InstanceWords() int            { return k.instanceWords }
func (k *Klass) VirtualMethods() []*Method     { return k.virtualMethods }
func (k *Klass) StaticMethods() []*Method      { return k.staticMethods }
func (k *Klass) ConstantObjects() *ObjectTable { return k.constantObjects }
func (k *Klass) Metadata() *Metadata           { return k.metadata }
func (k *Klass) InstanceOopMap() object.OopMap { return k.instanceOopMap }

// SetLayout is called once, by the translator's phase-2 output (4.F), to
// fill in everything beyond the bare name assigned at NewKlass time.
// Calling it after the klass has reached CONVERTED is a programming error.
func (k *Klass) SetLayout(super common.ClassID, interfaces []common.ClassID, mods Modifier,
	instanceWords int, instanceOopMap object.OopMap, virtual, static []*Method, md *Metadata) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.super = super
	k.interfaces = interfaces
	k.modifiers = mods
	k.instanceWords = instanceWords
	k.instanceOopMap = instanceOopMap
	k.virtualMethods = virtual
	k.staticMethods = static
	k.metadata = md
}

// SetComponentType marks this klass as an array klass of the given
// component (spec §4.B "Field descriptors").
func (k *Klass) SetComponentType(c common.ClassID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.componentType = c
	k.modifiers |= ModArray
}

// IsAssignableFrom is a structural subtype check used by checkcast,
// instanceof and array-store checks. lookup resolves a ClassID to its
// Klass (supplied by the Suite, which owns the class table).
func (k *Klass) IsAssignableFrom(other *Klass, lookup func(common.ClassID) *Klass) bool {
	for c := other; c != nil; {
		if c.self == k.self {
			return true
		}
		for _, ifaceID := range c.interfaces {
			if iface := lookup(ifaceID); iface != nil && k.IsAssignableFrom(iface, lookup) {
				return true
			}
		}
		if c.super == common.InvalidClassID {
			break
		}
		c = lookup(c.super)
	}
	return false
}
