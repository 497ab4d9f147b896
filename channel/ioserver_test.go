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
	"net"
	"testing"

	"github.com/squawkvm/squawk/common"
)

// dialWire sends one §6 wire frame and returns the decoded reply.
func dialWire(t *testing.T, conn net.Conn, cio, op, cid int32, i [6]int32, resultBufLen int32, payloadClassID int32, payload []byte) (status, low, high int32, result []byte) {
	t.Helper()

	req := make([]byte, 40+8+len(payload))
	binary.LittleEndian.PutUint32(req[0:4], uint32(cio))
	binary.LittleEndian.PutUint32(req[4:8], uint32(op))
	binary.LittleEndian.PutUint32(req[8:12], uint32(cid))
	for n := 0; n < 6; n++ {
		binary.LittleEndian.PutUint32(req[12+4*n:], uint32(i[n]))
	}
	binary.LittleEndian.PutUint32(req[36:40], uint32(resultBufLen))
	binary.LittleEndian.PutUint32(req[40:44], uint32(payloadClassID))
	binary.LittleEndian.PutUint32(req[44:48], uint32(len(payload)))
	copy(req[48:], payload)

	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var hdr [20]byte
	if _, err := readFull(conn, hdr[:]); err != nil {
		t.Fatalf("read reply header: %v", err)
	}
	if magic := binary.LittleEndian.Uint32(hdr[0:4]); magic != common.SplitIOMagic {
		t.Fatalf("reply magic = %#x, want %#x", magic, common.SplitIOMagic)
	}
	status = int32(binary.LittleEndian.Uint32(hdr[4:8]))
	low = int32(binary.LittleEndian.Uint32(hdr[8:12]))
	high = int32(binary.LittleEndian.Uint32(hdr[12:16]))
	resLth := binary.LittleEndian.Uint32(hdr[16:20])
	if resLth > 0 {
		result = make([]byte, resLth)
		if _, err := readFull(conn, result); err != nil {
			t.Fatalf("read reply payload: %v", err)
		}
	}
	return status, low, high, result
}

// TestIOServerStreamRoundTrip drives the split I/O server wire protocol
// end to end: create a context, open a generic:// channel for write,
// write bytes via the STREAM_WRITE_BUF object payload (no heap oop in
// sight), close and reopen for read, and read them back via
// STREAM_READ_BUF's result-bytes reply -- the spec §8 "channel stream"
// seed scenario, but driven over the actual TCP wire frame instead of
// Dispatcher.execute directly.
func TestIOServerStreamRoundTrip(t *testing.T) {
	d := newDispatcher(t)
	srv, err := NewIOServer(d, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewIOServer: %v", err)
	}
	srv.Start()
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	status, _, _, _ := dialWire(t, conn, 0, common.GlobalCreateContext, 0, [6]int32{}, 0, 0, nil)
	if status <= 0 {
		t.Fatalf("GLOBAL_CREATECONTEXT status = %d, want a positive context id", status)
	}
	cio := status

	url := []byte("generic://io-server-roundtrip")
	status, _, _, _ = dialWire(t, conn, cio, common.ConnectionOpen, 0, [6]int32{0: ModeWrite}, 0, common.WireByteArray, url)
	if status <= 0 {
		t.Fatalf("CONNECTION_OPEN (write) status = %d, want a positive channel id", status)
	}
	chWrite := status

	payload := []byte{0x01, 0x02, 0x03}
	status, _, _, _ = dialWire(t, conn, cio, common.StreamWriteBuf, chWrite, [6]int32{}, 0, common.WireByteArray, payload)
	if status != int32(len(payload)) {
		t.Fatalf("STREAM_WRITEBUF status = %d, want %d", status, len(payload))
	}

	status, _, _, _ = dialWire(t, conn, cio, common.StreamFlush, chWrite, [6]int32{}, 0, 0, nil)
	if status != common.ResultOK {
		t.Fatalf("STREAM_FLUSH status = %d, want ResultOK", status)
	}
	status, _, _, _ = dialWire(t, conn, cio, common.ConnectionClose, chWrite, [6]int32{}, 0, 0, nil)
	if status != common.ResultOK {
		t.Fatalf("CONNECTION_CLOSE status = %d, want ResultOK", status)
	}

	status, _, _, _ = dialWire(t, conn, cio, common.ConnectionOpen, 0, [6]int32{0: ModeRead}, 0, common.WireByteArray, url)
	if status <= 0 {
		t.Fatalf("CONNECTION_OPEN (read) status = %d, want a positive channel id", status)
	}
	chRead := status

	status, _, _, result := dialWire(t, conn, cio, common.StreamReadBuf, chRead, [6]int32{}, int32(len(payload)), 0, nil)
	if status != int32(len(payload)) {
		t.Fatalf("STREAM_READBUF status = %d, want %d", status, len(payload))
	}
	if string(result) != string(payload) {
		t.Fatalf("STREAM_READBUF result = %v, want %v", result, payload)
	}
}

// TestIOServerConnectionOpenModifiedUTF8 exercises the wire protocol's
// STRING object class-id decoding a modified-UTF-8 URL, including the
// two-byte NUL encoding the classfile variant requires.
func TestIOServerConnectionOpenModifiedUTF8(t *testing.T) {
	d := newDispatcher(t)
	srv, err := NewIOServer(d, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewIOServer: %v", err)
	}
	srv.Start()
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	status, _, _, _ := dialWire(t, conn, 0, common.GlobalCreateContext, 0, [6]int32{}, 0, 0, nil)
	cio := status

	mutf8 := append([]byte("generic://mutf8"), 0xC0, 0x80) // trailing NUL, two-byte encoded
	status, _, _, _ = dialWire(t, conn, cio, common.ConnectionOpen, 0, [6]int32{0: ModeWrite}, 0, common.WireString, mutf8)
	if status <= 0 {
		t.Fatalf("CONNECTION_OPEN status = %d, want a positive channel id", status)
	}
}

func TestDecodeModifiedUTF8(t *testing.T) {
	in := append([]byte("ab"), 0xC0, 0x80, 'c')
	if got, want := decodeModifiedUTF8(in), "ab\x00c"; got != want {
		t.Fatalf("decodeModifiedUTF8 = %q, want %q", got, want)
	}
}
