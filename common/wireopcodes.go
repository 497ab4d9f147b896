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

package common

// Channel result codes. These four values are a persistent wire contract:
// never renumber them, even across incompatible protocol revisions.
const (
	ResultOK            = 0
	ResultBadContext     = -1
	ResultException      = -2
	ResultBadParameter   = -3
)

// Channel opcode groups. Numeric ranges are a wire contract (see spec §6):
// global 1-5, context 6-10, connection 11-16, stream 17-34, GUI 35-71,
// internal 1000-1018, with an embedded/flash profile adding 101/102/201-203/301-302.
const (
	GlobalCreateContext     = 1
	GlobalDeleteContext     = 2
	GlobalHibernateContext  = 3
	GlobalGetEvent          = 4
	GlobalWaitForEvent      = 5

	ContextGetChannel   = 6
	ContextFreeChannel  = 7
	ContextGetResult    = 8
	ContextGetResult2   = 9
	ContextGetError     = 10

	ConnectionOpen  = 11
	ConnectionAccept = 12
	ConnectionClose = 16

	StreamReadByte    = 17
	StreamReadShort   = 18
	StreamReadInt     = 19
	StreamReadLong    = 20
	StreamReadBuf     = 21
	StreamWriteByte   = 22
	StreamWriteShort  = 23
	StreamWriteInt    = 24
	StreamWriteLong   = 25
	StreamWriteBuf    = 26
	StreamMark        = 27
	StreamReset       = 28
	StreamAvailable   = 29
	StreamFlush       = 34

	GUIFirst = 35
	GUILast  = 71

	InternalPrint     = 1000
	InternalStopVM    = 1001
	InternalCopyBytes = 1002
	InternalTime      = 1003
	InternalLast      = 1018
)

// Embedded/flash profile channel types and opcodes.
const (
	ChannelLED = 101
	ChannelSW  = 102

	LEDOff = 201
	LEDOn  = 202
	SWRead = 203

	Peek = 301
	Poke = 302
)

// Reserved channel ids. Id 1 is always the isolate's stdio channel, 2 its
// GUI-in channel, 3 its GUI-out channel; Generic channels (id >= 4) are
// allocated on demand.
const (
	ChannelStdio  = 1
	ChannelGUIIn  = 2
	ChannelGUIOut = 3
	ChannelGenericFirst = 4
)

// ChannelType classifies the open resource backing a Channel.
type ChannelType byte

const (
	ChannelTypeGeneric ChannelType = iota
	ChannelTypeGUIIn
	ChannelTypeGUIOut
	ChannelTypeLED
	ChannelTypeSwitch
)

// Object class-ids used by the split I/O server wire protocol when an
// argument or result is an array/string rather than a scalar.
const (
	WireByteArray      = 8
	WireCharArray      = 9
	WireIntArray       = 11
	WireString         = 12
	WireStringOfBytes  = 13
)

// SuiteFileMagic identifies a Squawk suite image on disk.
const SuiteFileMagic uint32 = 0xDEED5051

// SplitIOMagic is the magic the split I/O server replies with, per the
// wire contract in spec §6.
const SplitIOMagic uint32 = 0xCAFEBABE
