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

// Package crypto provides a Keccak256 hash primitive. No other package in
// this repository imports it: the suite checksum is a CRC32 computed by
// suite.Suite.Finalize, and the registry's lookup cache is keyed by suite
// and class name. The core has no accounts, no
// signing and no wallets, so the teacher's ECDSA/address machinery is not
// carried forward; only the hash primitive survives, repurposed.
package crypto

import (
	"hash"

	"golang.org/x/crypto/sha3"
)

// DigestLength is the length, in bytes, of a Keccak256 digest.
const DigestLength = 32

// KeccakState wraps sha3.state, additionally supporting Read to pull a
// variable amount of data out of the hash state without copying it.
type KeccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

// NewKeccakState creates a new KeccakState.
func NewKeccakState() KeccakState {
	return sha3.NewLegacyKeccak256().(KeccakState)
}

// Keccak256 calculates and returns the Keccak256 hash of the input data.
func Keccak256(data ...[]byte) []byte {
	b := make([]byte, DigestLength)
	d := NewKeccakState()
	for _, chunk := range data {
		d.Write(chunk)
	}
	d.Read(b)
	return b
}

// Keccak256Array is Keccak256 with its result copied into a fixed-size
// array, convenient as a map key.
func Keccak256Array(data ...[]byte) [DigestLength]byte {
	var h [DigestLength]byte
	d := NewKeccakState()
	for _, chunk := range data {
		d.Write(chunk)
	}
	d.Read(h[:])
	return h
}
