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
	"path/filepath"
	"testing"

	"github.com/squawkvm/squawk/common"
)

func TestImageHeaderRoundTrip(t *testing.T) {
	h := ImageHeader{
		Magic:      common.SuiteFileMagic,
		Version:    1,
		SuiteNo:    7,
		Checksum:   0xdeadbeef,
		NameLength: 42,
	}
	buf := EncodeImageHeader(h)
	got, err := DecodeImageHeader(buf)
	if err != nil {
		t.Fatalf("DecodeImageHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeImageHeaderRejectsBadMagic(t *testing.T) {
	h := ImageHeader{Magic: 0x12345678, Version: 1}
	buf := EncodeImageHeader(h)
	if _, err := DecodeImageHeader(buf); err == nil {
		t.Fatalf("expected an error for a bad magic number")
	}
}

func TestDecodeImageHeaderRejectsTruncated(t *testing.T) {
	if _, err := DecodeImageHeader([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a truncated header")
	}
}

func TestWriteAndOpenMappedImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.sqimg")
	body := []byte("hello-suite-body")
	h := ImageHeader{Magic: common.SuiteFileMagic, Version: 1, SuiteNo: 3, Checksum: 123, NameLength: uint32(len(body))}

	if err := WriteImage(path, h, body); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}
	mi, err := OpenMappedImage(path)
	if err != nil {
		t.Fatalf("OpenMappedImage: %v", err)
	}
	defer mi.Close()

	if mi.Header != h {
		t.Fatalf("header mismatch: got %+v, want %+v", mi.Header, h)
	}
	if string(mi.Body[:len(body)]) != string(body) {
		t.Fatalf("body mismatch: got %q, want %q", mi.Body[:len(body)], body)
	}
}
