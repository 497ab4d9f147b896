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

// Package classfile parses JVM .class files into a RawClass intermediate
// representation, performs the spec §4.D legality checks, and hands the
// result to the translator's IR builder (4.E). It is grounded on jacobin's
// classloader.go: the byte-cursor parsing style, per-tag constant pool
// entries, and the cfe()-style "class format error" reporting convention.
package classfile

import (
	"encoding/binary"

	"github.com/squawkvm/squawk/common"
)

// cursor is a forward-only reader over a class file's bytes, panicking with
// a recoverable sentinel on underrun so Parse can report a single
// ClassFormatError instead of threading an error return through every u1/
// u2/u4 call -- mirrors jacobin's terse single-purpose byte helpers.
type cursor struct {
	data []byte
	pos  int
}

// errTruncated is recovered by Parse; it never escapes the package.
type errTruncated struct{}

func (errTruncated) Error() string { return common.ErrClassFormat.Error() + ": truncated class file" }

func (c *cursor) need(n int) {
	if c.pos+n > len(c.data) {
		panic(errTruncated{})
	}
}

func (c *cursor) u1() uint8 {
	c.need(1)
	v := c.data[c.pos]
	c.pos++
	return v
}

func (c *cursor) u2() uint16 {
	c.need(2)
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u4() uint32 {
	c.need(4)
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) bytes(n int) []byte {
	c.need(n)
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }
