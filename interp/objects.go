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
	"sync"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
)

// objectConstants hash-conses the values OpLoadConstObj resolves (a string,
// a classfile.ClassLiteral, or nil) into a stable identity handle. There is
// no java.lang bootstrap class tree in scope to back a real
// java.lang.String or java.lang.Class heap object, so this core represents
// object_k constants as an opaque negative Oop minted from a VM-local
// table instead -- identity and equality (==, intern-style string compare)
// still work exactly as bytecode expects, just without a real layout behind
// them.
type objectConstants struct {
	mu     sync.Mutex
	values []interface{}
	index  map[interface{}]object.Oop
}

func newObjectConstants() *objectConstants {
	return &objectConstants{index: make(map[interface{}]object.Oop)}
}

// handle returns v's identity oop, minting one the first time v is seen.
// Oops here are negative and start below object.NilOop (-1) so they can
// never collide with a real heap-allocated oop; code that forgets this and
// hands one to object.Heap will fault on an out-of-range index rather than
// silently reading unrelated memory.
func (c *objectConstants) handle(v interface{}) object.Oop {
	if v == nil {
		return object.NilOop
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.index[v]; ok {
		return o
	}
	o := object.Oop(-2 - int32(len(c.values)))
	c.values = append(c.values, v)
	c.index[v] = o
	return o
}

func (c *objectConstants) value(o object.Oop) (interface{}, bool) {
	if o >= -1 {
		return nil, false
	}
	idx := int(-2 - int32(o))
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.values) {
		return nil, false
	}
	return c.values[idx], true
}

// KlassTyper adapts a suite.Registry into object.ComponentTyper: the heap's
// array-store check hands it a raw classOffset word and an Oop, and it has
// to turn both back into real Klasses to run the assignability test. This
// core stores a common.ClassID (not a pointer into any Class heap object)
// as every header's classOffset field -- see DESIGN.md's note on object_k
// constants for why no such object model exists here. Heap is set once,
// right after the object.Heap it types is constructed (the two have a
// necessary circular reference: the heap needs a typer to be built, and the
// typer needs the heap to resolve a stored value's own class).
type KlassTyper struct {
	Registry *suite.Registry
	Heap     *object.Heap
}

func (t *KlassTyper) AssignableArrayElement(arrayClassOffset uintptr, val object.Oop) bool {
	component, ok := t.Registry.ResolveID(common.ClassID(arrayClassOffset))
	if !ok {
		return false
	}
	valKlass, ok := t.Registry.ResolveID(common.ClassID(t.Heap.KlassOf(val)))
	if !ok {
		return false
	}
	return component.IsAssignableFrom(valKlass, func(id common.ClassID) *suite.Klass {
		k, _ := t.Registry.ResolveID(id)
		return k
	})
}

// NewTypedHeap builds an object.Heap wired to a KlassTyper backed by reg,
// resolving the circular heap/typer reference described above.
func NewTypedHeap(words int, barrier object.WriteBarrier, reg *suite.Registry) (*object.Heap, *KlassTyper) {
	typer := &KlassTyper{Registry: reg}
	heap := object.NewHeap(words, barrier, typer)
	typer.Heap = heap
	return heap, typer
}

// primitiveClassOffset is the sentinel classOffset stored in a primitive
// array's header. A primitive array is never the target of an
// ArrayStoreException check (the JVM's element stores to a primitive array
// are never polymorphic), so it needs no real Klass behind this value --
// only a value distinguishable from any real ClassID, which 0 is, since
// common.InvalidClassID (the only other reserved sentinel) is 0xFFFFFFFF
// and every suite the translator registers has a suite_no of at least 1,
// which puts every real ClassID at 0x10000 or above.
const primitiveClassOffset = 0

// NewInstance allocates and headers a fresh instance of klass.
func (vm *VM) NewInstance(klass *suite.Klass) (object.Oop, error) {
	o, err := vm.Alloc.Allocate(klass.InstanceWords() + 1)
	if err != nil {
		return object.NilOop, err
	}
	vm.Alloc.Heap().SetHeader(o, object.MakeSmallHeader(uintptr(klass.ID()), 0))
	return o, nil
}

// NewArray allocates a fresh array of length elements, with component
// (nil for a primitive array) recorded in the header for later array-store
// checks. Arrays at or past object.SmallArrayLengthOverflow would need the
// large two-word header form; this core doesn't support that form (see
// DESIGN.md) and reports it the same way a real embedded heap that small
// would: out of memory.
func (vm *VM) NewArray(component *suite.Klass, length int) (object.Oop, error) {
	if length < 0 || uintptr(length) >= object.SmallArrayLengthOverflow {
		return object.NilOop, common.ErrOutOfMemory
	}
	classOffset := uintptr(primitiveClassOffset)
	if component != nil {
		classOffset = uintptr(component.ID())
	}
	o, err := vm.Alloc.Allocate(length + 1)
	if err != nil {
		return object.NilOop, err
	}
	vm.Alloc.Heap().SetHeader(o, object.MakeSmallHeader(classOffset, uintptr(length)))
	return o, nil
}

// NewMultiArray builds a multianewarray result: an array of lengths[0]
// elements, each (for len(lengths) > 1) itself an array built recursively
// from lengths[1:]. Only the innermost dimension's element klass is known
// (component); every intermediate level is a reference array whose own
// component would be another array klass this core has no naming
// convention for synthesizing on the fly, so intermediate stores bypass the
// array-store check (object.Heap.SetSlotO, not SetSlotOStoreCheck) --
// documented in DESIGN.md as this core's multianewarray simplification.
func (vm *VM) NewMultiArray(component *suite.Klass, lengths []int) (object.Oop, error) {
	if len(lengths) == 1 {
		return vm.NewArray(component, lengths[0])
	}
	outer, err := vm.NewArray(nil, lengths[0])
	if err != nil {
		return object.NilOop, err
	}
	for i := 0; i < lengths[0]; i++ {
		inner, err := vm.NewMultiArray(component, lengths[1:])
		if err != nil {
			return object.NilOop, err
		}
		vm.Alloc.Heap().SetSlotO(outer, i, inner)
	}
	return outer, nil
}
