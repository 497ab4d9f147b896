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
	"os"
	"sync"

	"github.com/shirou/gopsutil/process"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/log"
	"github.com/squawkvm/squawk/object"
)

var log_ = log.New("component", "interp")

// Allocator is a bump-pointer allocator in front of an object.Heap: spec
// §4.A hands the pointer arithmetic to object.Heap, but never says who
// owns the "next free word" cursor -- that belongs to whatever embeds the
// heap, which here is the interpreter.
type Allocator struct {
	mu      sync.Mutex
	heap    *object.Heap
	next    object.Oop
	limit   object.Oop
	verbose bool
}

func NewAllocator(heap *object.Heap, words int, verbose bool) *Allocator {
	return &Allocator{heap: heap, limit: object.Oop(words), verbose: verbose}
}

func (a *Allocator) Heap() *object.Heap { return a.heap }

// Allocate bumps the cursor by n words and returns the oop of the new
// object's header slot. Returns common.ErrOutOfMemory once the simulated
// heap is exhausted; in -verbose mode it also logs the host process's RSS
// alongside the simulated occupancy, since a real allocation failure on an
// embedded device is exactly the moment an operator wants both numbers
// side by side (SPEC_FULL.md §4.G verbose diagnostics).
func (a *Allocator) Allocate(n int) (object.Oop, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o := a.next
	if o+object.Oop(n) > a.limit {
		if a.verbose {
			a.reportFailure()
		}
		return object.NilOop, common.ErrOutOfMemory
	}
	a.next += object.Oop(n)
	return o, nil
}

// Occupancy returns the fraction of the simulated heap currently in use.
func (a *Allocator) Occupancy() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit == 0 {
		return 0
	}
	return float64(a.next) / float64(a.limit)
}

func (a *Allocator) reportFailure() {
	fields := []interface{}{"simulatedWords", int(a.next), "limitWords", int(a.limit)}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log_.Warn("allocation failed; could not read host RSS", append(fields, "err", err)...)
		return
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		log_.Warn("allocation failed; could not read host RSS", append(fields, "err", err)...)
		return
	}
	log_.Warn("allocation failed", append(fields, "hostRSSBytes", mem.RSS)...)
}
