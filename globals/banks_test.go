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

package globals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/object"
)

// checkMapped is exercised directly (rather than through an accessor) since
// every accessor's unmapped path ends in log.Crit, which calls os.Exit and
// would kill the test binary -- checkMapped itself just returns the
// sentinel error, which is the part actually safe and useful to assert on.
func TestCheckMappedTracksNewAndClose(t *testing.T) {
	b := NewBanks(4, 4, 4)
	require.NoError(t, b.checkMapped())

	b.Close()
	assert.ErrorIs(t, b.checkMapped(), common.ErrGlobalBankUnmapped)
}

func TestGlobalTagAndOffsetRoundTrip(t *testing.T) {
	g := MakeGlobal(TagOop, 17)
	assert.Equal(t, TagOop, g.Tag())
	assert.Equal(t, uint16(17), g.Offset())
}

func TestIntBankGetSetRoundTrip(t *testing.T) {
	b := NewBanks(8, 0, 0)
	g := MakeGlobal(TagInt, 3)
	b.SetInt(g, 42)
	assert.EqualValues(t, 42, b.GetInt(g))
}

func TestAddrBankGetSetRoundTrip(t *testing.T) {
	b := NewBanks(0, 8, 0)
	g := MakeGlobal(TagAddr, 5)
	b.SetAddr(g, 0xDEADBEEF)
	assert.EqualValues(t, 0xDEADBEEF, b.GetAddr(g))
}

func TestOopBankGetSetRoundTripAndNilDefault(t *testing.T) {
	b := NewBanks(0, 0, 4)
	for i, o := range b.OopBank() {
		assert.Equalf(t, object.NilOop, o, "slot %d should default to NilOop until set", i)
	}

	g := MakeGlobal(TagOop, 2)
	b.SetOop(g, object.Oop(99))
	assert.Equal(t, object.Oop(99), b.GetOop(g))
	assert.Equal(t, object.Oop(99), b.OopBank()[2])
}

func TestNewBanksCapsMatchRequestedSizes(t *testing.T) {
	b := NewBanks(2, 3, 5)
	assert.Len(t, b.ints, 2)
	assert.Len(t, b.addrs, 3)
	assert.Len(t, b.oops, 5)
}
