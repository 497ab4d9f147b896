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
	"fmt"
	"net"
	"sync"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/log"
)

var log_ = log.New("component", "channel")

// IOServer is the "-Xioport split" alternate I/O mode: instead of running a
// Dispatcher in-process, a detached native-I/O process drives channel
// operations as wire requests per spec §6 "Split I/O server protocol".
// Grounded on the teacher's handler.Start/Stop shutdown shape -- a wait
// group per accepted connection plus a close-to-quit signal channel,
// gating new registrations once stopped -- applied here to a raw
// net.Listener accept loop instead of a p2p peer set.
type IOServer struct {
	dispatch *Dispatcher
	ln       net.Listener

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewIOServer binds addr and returns a server ready for Start.
func NewIOServer(dispatch *Dispatcher, addr string) (*IOServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &IOServer{dispatch: dispatch, ln: ln, quit: make(chan struct{})}, nil
}

// Addr reports the bound listener address, useful when addr was "127.0.0.1:0".
func (s *IOServer) Addr() net.Addr { return s.ln.Addr() }

// Start begins accepting connections in the background.
func (s *IOServer) Start() {
	s.wg.Add(1)
	go s.acceptLoop()
}

// Stop closes the listener, unblocking acceptLoop, and waits for every
// in-flight connection handler to return.
func (s *IOServer) Stop() {
	close(s.quit)
	s.ln.Close()
	s.wg.Wait()
	log_.Info("channel split I/O server stopped")
}

func (s *IOServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log_.Warn("channel I/O accept failed", "err", err)
				return
			}
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

// requestIntFields is cio, op, cid, i1..i6, return-buf-length: 10 little-
// endian int32 fields, per spec §6.
const requestIntFields = 10

// maxWirePayload bounds the object payload and the requested result buffer
// a single frame may carry, guarding the server against a malformed or
// hostile length field forcing an unbounded allocation.
const maxWirePayload = 64 << 20

// serve handles one connection's requests until it closes or the server is
// stopped. Each request is the §6 wire frame: 10 little-endian int32
// fields followed by one object (a little-endian int32 class-id, a
// little-endian int32 byte length, then that many payload bytes -- empty
// for scalar-only calls). Each reply is magic 0xCAFEBABE, status, low,
// high, resLth, then resLth result bytes, all little-endian.
func (s *IOServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		req, err := readRequest(conn)
		if err != nil {
			return
		}

		status, low, high, result := s.dispatch.ExecuteWire(
			req.op, req.cio, req.cid, req.i, req.payloadClassID, req.payload, req.resultBufLen)

		if err := writeReply(conn, status, low, high, result); err != nil {
			return
		}
	}
}

// wireRequest holds one decoded frame.
type wireRequest struct {
	cio, op, cid   int32
	i              [6]int32
	resultBufLen   int32
	payloadClassID int32
	payload        []byte
}

func readRequest(conn net.Conn) (wireRequest, error) {
	var hdr [requestIntFields * 4]byte
	if _, err := readFull(conn, hdr[:]); err != nil {
		return wireRequest{}, err
	}
	fields := make([]int32, requestIntFields)
	for i := range fields {
		fields[i] = int32(binary.LittleEndian.Uint32(hdr[4*i:]))
	}

	req := wireRequest{cio: fields[0], op: fields[1], cid: fields[2], resultBufLen: fields[9]}
	copy(req.i[:], fields[3:9])

	var objHdr [8]byte
	if _, err := readFull(conn, objHdr[:]); err != nil {
		return wireRequest{}, err
	}
	req.payloadClassID = int32(binary.LittleEndian.Uint32(objHdr[0:4]))
	length := int32(binary.LittleEndian.Uint32(objHdr[4:8]))
	if length < 0 || length > maxWirePayload {
		return wireRequest{}, fmt.Errorf("channel I/O: bad payload length %d", length)
	}
	if length > 0 {
		req.payload = make([]byte, length)
		if _, err := readFull(conn, req.payload); err != nil {
			return wireRequest{}, err
		}
	}
	return req, nil
}

func writeReply(conn net.Conn, status, low, high int32, result []byte) error {
	if len(result) > maxWirePayload {
		result = result[:maxWirePayload]
	}
	reply := make([]byte, 20+len(result))
	binary.LittleEndian.PutUint32(reply[0:4], common.SplitIOMagic)
	binary.LittleEndian.PutUint32(reply[4:8], uint32(status))
	binary.LittleEndian.PutUint32(reply[8:12], uint32(low))
	binary.LittleEndian.PutUint32(reply[12:16], uint32(high))
	binary.LittleEndian.PutUint32(reply[16:20], uint32(len(result)))
	copy(reply[20:], result)
	_, err := conn.Write(reply)
	return err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
