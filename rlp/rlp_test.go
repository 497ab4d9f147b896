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

package rlp

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type hibernateBlobFixture struct {
	ThreadID int64
	Stack    []byte
	Channels []string
	Done     bool
}

func TestEncodeDecodeStructRoundTrip(t *testing.T) {
	want := hibernateBlobFixture{
		ThreadID: 7,
		Stack:    []byte{0x01, 0x02, 0x03, 0xff},
		Channels: []string{"stdin", "stdout"},
		Done:     true,
	}

	enc, err := EncodeToBytes(want)
	require.NoError(t, err)

	var got hibernateBlobFixture
	require.NoError(t, DecodeBytes(enc, &got))

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s\ndump of want: %s", diff, spew.Sdump(want))
	}
}

func TestEncodeDecodeScalarKinds(t *testing.T) {
	cases := []interface{}{
		uint64(0), uint64(1), uint64(1 << 40),
		int64(-5), "", "hello", true, false,
	}
	for _, c := range cases {
		enc, err := EncodeToBytes(c)
		require.NoError(t, err)

		out := newZeroOf(c)
		require.NoError(t, DecodeBytes(enc, out))
	}
}

func newZeroOf(v interface{}) interface{} {
	switch v.(type) {
	case uint64:
		var x uint64
		return &x
	case int64:
		var x int64
		return &x
	case string:
		var x string
		return &x
	case bool:
		var x bool
		return &x
	default:
		panic("unsupported fixture kind")
	}
}

func TestEncodeDecodeByteSlice(t *testing.T) {
	want := []byte{0xaa, 0xbb, 0xcc}
	enc, err := EncodeToBytes(want)
	require.NoError(t, err)

	var got []byte
	require.NoError(t, DecodeBytes(enc, &got))
	require.Equal(t, want, got)
}

func TestEncodeDecodeSliceOfStructs(t *testing.T) {
	want := []hibernateBlobFixture{
		{ThreadID: 1, Stack: []byte{1}, Channels: nil, Done: false},
		{ThreadID: 2, Stack: []byte{2, 3}, Channels: []string{"a"}, Done: true},
	}
	enc, err := EncodeToBytes(want)
	require.NoError(t, err)

	var got []hibernateBlobFixture
	require.NoError(t, DecodeBytes(enc, &got))

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("slice round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamKindReportsTagAndLength(t *testing.T) {
	enc, err := EncodeToBytes("hello")
	require.NoError(t, err)

	s := NewStream(bytes.NewReader(enc), uint64(len(enc)))
	kind, length, err := s.Kind()
	require.NoError(t, err)
	require.Equal(t, KindString, kind)
	require.EqualValues(t, 5, length)
}
