// Copyright 2015 The go-probeum Authors
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

package channel

import (
	"encoding/binary"

	"github.com/squawkvm/squawk/common"
)

// decodeWireText interprets a split I/O server request's object payload as
// text, per the class-ids spec §6 defines for it. WireString and
// WireStringOfBytes carry modified-UTF-8 bytes; WireCharArray carries
// big-endian UTF-16 code units (the teacher-free Java char-array wire
// shape); WireByteArray is treated as already-decoded Latin-1/ASCII bytes.
// Any other class-id (or a malformed char-array length) yields "", which
// callers such as ExecuteWire's CONNECTION_OPEN handler treat as a bad
// parameter.
func decodeWireText(classID int32, payload []byte) string {
	switch classID {
	case common.WireString, common.WireStringOfBytes:
		return decodeModifiedUTF8(payload)
	case common.WireCharArray:
		if len(payload)%2 != 0 {
			return ""
		}
		out := make([]rune, len(payload)/2)
		for i := range out {
			out[i] = rune(binary.BigEndian.Uint16(payload[i*2:]))
		}
		return string(out)
	case common.WireByteArray:
		return string(payload)
	default:
		return ""
	}
}

// decodeModifiedUTF8 decodes the classfile variant of modified UTF-8 (spec
// §6: "the last two are decoded using modified-UTF-8 (classfile variant
// where the NUL byte is two-byte encoded)"). Identical to ordinary UTF-8
// except a NUL code point is always the two-byte sequence 0xC0 0x80 rather
// than a literal zero byte; a malformed lead byte or truncated trailer
// emits the Unicode replacement character and resyncs one byte at a time.
func decodeModifiedUTF8(b []byte) string {
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c0 := b[i]
		switch {
		case c0&0x80 == 0x00:
			out = append(out, rune(c0))
			i++
		case c0&0xE0 == 0xC0 && i+1 < len(b):
			c1 := b[i+1]
			out = append(out, rune(c0&0x1F)<<6|rune(c1&0x3F))
			i += 2
		case c0&0xF0 == 0xE0 && i+2 < len(b):
			c1, c2 := b[i+1], b[i+2]
			out = append(out, rune(c0&0x0F)<<12|rune(c1&0x3F)<<6|rune(c2&0x3F))
			i += 3
		default:
			out = append(out, 0xFFFD)
			i++
		}
	}
	return string(out)
}
