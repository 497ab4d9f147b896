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

package object

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHeaderTagsAreDisjoint is spec §8's "Header tag uniqueness" property:
// every header word must classify as exactly one of small/large-array/
// large-header, never more than one and never none.
func TestHeaderTagsAreDisjoint(t *testing.T) {
	cases := []Header{
		Header(MakeSmallHeader(5, 3)),
		Header(MakeLargeArrayHeader(7, 12345).Length),
		Header(MakeMethodHeaderLength(99)),
	}
	wantSmall := []bool{true, false, false}
	wantLargeArray := []bool{false, true, false}
	wantLargeHeader := []bool{false, false, true}

	for i, h := range cases {
		got := []bool{h.IsSmall(), h.IsLargeArray(), h.IsLargeHeader()}
		want := []bool{wantSmall[i], wantLargeArray[i], wantLargeHeader[i]}
		require.Equalf(t, want, got, "case %d: header %#x tag classification", i, h)

		n := 0
		for _, b := range got {
			if b {
				n++
			}
		}
		assert.Equalf(t, 1, n, "case %d: header %#x must satisfy exactly one tag, got %s", i, h, spew.Sdump(got))
	}
}

func TestMakeSmallHeaderRoundTrips(t *testing.T) {
	f := fuzz.New().NilChance(0).Funcs(func(u *uintptr, c fuzz.Continue) {
		*u = uintptr(c.Intn(1 << 20))
	})
	for i := 0; i < 50; i++ {
		var classOffset uintptr
		f.Fuzz(&classOffset)
		length := uintptr(i % int(SmallArrayLengthOverflow))

		h := MakeSmallHeader(classOffset, length)
		require.True(t, h.IsSmall())
		assert.Equal(t, classOffset, h.SmallClassOffset(), "class offset round trip, iter %d", i)
		assert.Equal(t, length, h.SmallLength(), "length round trip, iter %d", i)
	}
}

func TestLargeArrayHeaderRoundTrips(t *testing.T) {
	h := MakeLargeArrayHeader(42, 70000)
	assert.True(t, Header(h.Length).IsLargeArray())
	assert.Equal(t, uintptr(70000), h.ArrayLength())
}

func TestBuildOopMapBitLayout(t *testing.T) {
	tests := []struct {
		name   string
		slots  []bool
		expect []int
	}{
		{"empty", nil, nil},
		{"single pointer", []bool{true}, []int{0}},
		{"alternating", []bool{true, false, true, false, true}, []int{0, 2, 4}},
		{"spans continuation byte", make([]bool, 10), nil},
	}
	// exercise the 10-slot all-true case separately since literal []bool
	// construction above can't express "all true" inline cleanly.
	allTrue := make([]bool, 10)
	for i := range allTrue {
		allTrue[i] = true
	}
	tests = append(tests, struct {
		name   string
		slots  []bool
		expect []int
	}{"all true spans two bytes", allTrue, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildOopMap(tt.slots)
			var got []int
			for i := range tt.slots {
				if m.IsPointer(i) {
					got = append(got, i)
				}
			}
			if diff := cmp.Diff(tt.expect, got); diff != "" {
				t.Errorf("pointer slots mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.expect, m.PointerSlots(len(tt.slots)))
		})
	}
}

func TestBuildOopMapContinuationBytes(t *testing.T) {
	slots := make([]bool, 15) // spans three 7-bit groups
	m := BuildOopMap(slots)
	require.Len(t, m, 3)
	for i := 0; i < len(m)-1; i++ {
		assert.NotZerof(t, m[i]&0x80, "byte %d should carry the continuation flag", i)
	}
	assert.Zero(t, m[len(m)-1]&0x80, "final byte must not set the continuation flag")
}

func TestOopMapIsPointerOutOfRangeIsFalse(t *testing.T) {
	m := BuildOopMap([]bool{true})
	assert.False(t, m.IsPointer(100))
}
