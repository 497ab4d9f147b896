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

// Package globals implements the three process-wide tagged slot banks
// (int/addr/oop) described in spec §3/§4.C: fixed-capacity tables,
// populated at romize time, whose offsets are baked into FieldOffsets and
// the Global table shared with the interpreter.
package globals

import (
	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/log"
	"github.com/squawkvm/squawk/object"
)

// Tag selects which of the three banks a Global's offset addresses. The
// high bits of a tagged constant carry the tag; the low 16 bits carry the
// offset (spec §4.C).
type Tag uint32

const (
	TagInt  Tag = 0x88880000
	TagOop  Tag = 0x99990000
	TagAddr Tag = 0xAAAA0000
)

const offsetMask = 0xFFFF

// Global is a tagged reference into one of the three banks.
type Global uint32

func MakeGlobal(tag Tag, offset uint16) Global {
	return Global(uint32(tag) | uint32(offset))
}

func (g Global) Tag() Tag       { return Tag(uint32(g) &^ offsetMask) }
func (g Global) Offset() uint16 { return uint16(uint32(g) & offsetMask) }

var log_ = log.New("component", "globals")

// Banks is the process-scoped resource holding the three tables. It is
// explicit, documented init/teardown: NewBanks "romizes" the table sizes
// once at VM startup, and Close releases them at VM shutdown (spec §9
// "Process-wide mutable state").
type Banks struct {
	ints  []int64
	addrs []uintptr
	oops  []object.Oop

	mapped bool
}

// NewBanks allocates the three banks at the given capacities. Capacities
// are fixed for the lifetime of the VM instance: spec §4.C's invariant is
// that "new entries may not be added at runtime".
func NewBanks(intCap, addrCap, oopCap int) *Banks {
	oops := make([]object.Oop, oopCap)
	for i := range oops {
		oops[i] = object.NilOop
	}
	return &Banks{
		ints:   make([]int64, intCap),
		addrs:  make([]uintptr, addrCap),
		oops:   oops,
		mapped: true,
	}
}

// Close frees the banks, matching the documented teardown half of the
// process-scoped resource contract.
func (b *Banks) Close() {
	b.ints, b.addrs, b.oops = nil, nil, nil
	b.mapped = false
}

func (b *Banks) checkMapped() error {
	if !b.mapped {
		return common.ErrGlobalBankUnmapped
	}
	return nil
}

// Every accessor below refuses to take an offset outside the configured
// table length, and fails loudly (Crit) if the bank was never mapped (or
// was already closed) -- accessing a global before its bank is mapped is
// documented as a fatal VM error (spec §3 "Global bank" invariant), and
// that holds uniformly across all three banks and both read and write.
func (b *Banks) GetInt(g Global) int64 {
	b.mustTag(g, TagInt)
	off := int(g.Offset())
	if err := b.checkMapped(); err != nil {
		log_.Crit("global accessed before bank mapped", "global", g, "err", err)
	}
	if off >= len(b.ints) {
		log_.Crit("global int offset out of bounds", "offset", off, "cap", len(b.ints))
	}
	return b.ints[off]
}

func (b *Banks) SetInt(g Global, v int64) {
	b.mustTag(g, TagInt)
	off := int(g.Offset())
	if err := b.checkMapped(); err != nil {
		log_.Crit("global accessed before bank mapped", "global", g, "err", err)
	}
	if off >= len(b.ints) {
		log_.Crit("global int offset out of bounds", "offset", off, "cap", len(b.ints))
	}
	b.ints[off] = v
}

func (b *Banks) GetAddr(g Global) uintptr {
	b.mustTag(g, TagAddr)
	off := int(g.Offset())
	if err := b.checkMapped(); err != nil {
		log_.Crit("global accessed before bank mapped", "global", g, "err", err)
	}
	if off >= len(b.addrs) {
		log_.Crit("global addr offset out of bounds", "offset", off, "cap", len(b.addrs))
	}
	return b.addrs[off]
}

func (b *Banks) SetAddr(g Global, v uintptr) {
	b.mustTag(g, TagAddr)
	off := int(g.Offset())
	if err := b.checkMapped(); err != nil {
		log_.Crit("global accessed before bank mapped", "global", g, "err", err)
	}
	if off >= len(b.addrs) {
		log_.Crit("global addr offset out of bounds", "offset", off, "cap", len(b.addrs))
	}
	b.addrs[off] = v
}

func (b *Banks) GetOop(g Global) object.Oop {
	b.mustTag(g, TagOop)
	off := int(g.Offset())
	if err := b.checkMapped(); err != nil {
		log_.Crit("global accessed before bank mapped", "global", g, "err", err)
	}
	if off >= len(b.oops) {
		log_.Crit("global oop offset out of bounds", "offset", off, "cap", len(b.oops))
	}
	return b.oops[off]
}

func (b *Banks) SetOop(g Global, v object.Oop) {
	b.mustTag(g, TagOop)
	off := int(g.Offset())
	if err := b.checkMapped(); err != nil {
		log_.Crit("global accessed before bank mapped", "global", g, "err", err)
	}
	if off >= len(b.oops) {
		log_.Crit("global oop offset out of bounds", "offset", off, "cap", len(b.oops))
	}
	b.oops[off] = v
}

// OopBank exposes the raw oop table for the GC's root-scanning pass
// (spec §5 "GC interaction": "globals oop bank" is a root set).
func (b *Banks) OopBank() []object.Oop { return b.oops }

func (b *Banks) mustTag(g Global, want Tag) {
	if g.Tag() != want {
		log_.Crit("global tag mismatch", "global", g, "want", want, "got", g.Tag())
	}
}
