// Copyright 2020 The go-probeum Authors
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

package suitedb

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/squawkvm/squawk/common"
)

// ImageHeader is the fixed-size prefix of a suite image file on disk:
// magic, format version, suite number, checksum, and the byte length of
// the name table that immediately follows the header (spec §9 "Suite
// persistence").
type ImageHeader struct {
	Magic      uint32
	Version    uint16
	SuiteNo    uint16
	Checksum   uint32
	NameLength uint32
}

const imageHeaderSize = 4 + 2 + 2 + 4 + 4

// EncodeImageHeader writes h in the on-disk byte order (little-endian,
// matching the relocation table encoding used elsewhere in the suite
// format).
func EncodeImageHeader(h ImageHeader) []byte {
	buf := make([]byte, imageHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.SuiteNo)
	binary.LittleEndian.PutUint32(buf[8:12], h.Checksum)
	binary.LittleEndian.PutUint32(buf[12:16], h.NameLength)
	return buf
}

// DecodeImageHeader parses the fixed header prefix and validates the magic
// number. It does not validate the checksum against the body -- callers
// compare it themselves once the body has been read (see
// suite.Suite.Finalize, which computes the same CRC32).
func DecodeImageHeader(buf []byte) (ImageHeader, error) {
	if len(buf) < imageHeaderSize {
		return ImageHeader{}, fmt.Errorf("suitedb: image header truncated: %d bytes", len(buf))
	}
	h := ImageHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint16(buf[4:6]),
		SuiteNo:    binary.LittleEndian.Uint16(buf[6:8]),
		Checksum:   binary.LittleEndian.Uint32(buf[8:12]),
		NameLength: binary.LittleEndian.Uint32(buf[12:16]),
	}
	if h.Magic != common.SuiteFileMagic {
		return ImageHeader{}, fmt.Errorf("suitedb: bad suite image magic %08x", h.Magic)
	}
	return h, nil
}

// MappedImage is a memory-mapped suite file: the header plus a read-only
// view of the body, used so loading a suite already on disk costs no more
// than a page fault per region actually touched, rather than a full read
// into process memory up front (spec §9 "Suite persistence").
type MappedImage struct {
	Header ImageHeader
	Body   []byte // name table followed by class records, still encoded

	file *os.File
	mmap mmap.MMap
}

// OpenMappedImage mmaps path read-only and parses its header.
func OpenMappedImage(path string) (*MappedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	hdr, err := DecodeImageHeader(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	return &MappedImage{
		Header: hdr,
		Body:   m[imageHeaderSize:],
		file:   f,
		mmap:   m,
	}, nil
}

// Close unmaps and closes the backing file.
func (mi *MappedImage) Close() error {
	if err := mi.mmap.Unmap(); err != nil {
		return err
	}
	return mi.file.Close()
}

// WriteImage serializes header+body to a new file at path. cmd/sqc does
// not call it; that tool reports a translated suite without writing an
// image.
func WriteImage(path string, h ImageHeader, body []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(EncodeImageHeader(h)); err != nil {
		return err
	}
	_, err = f.Write(body)
	return err
}
