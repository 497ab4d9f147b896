// Copyright 2021 The go-probeum Authors
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

package classfile

import (
	"hash"
	"hash/fnv"

	"github.com/holiman/bloomfilter/v2"
)

// classBloom is a per-suite negative-lookup filter over the class names a
// Loader has interned. Loader.MightExist exposes it so a caller can skip a
// parent-chain walk on a definite miss, making repeated
// NoClassDefFoundError lookups (a common pattern when probing for optional
// classes) cheap (spec §3 "(NEW) Class existence bloom filter"). The
// Loader's own lookups (ResolveSuper) do not consult it.
type classBloom struct {
	filter *bloomfilter.Filter
}

// newClassBloom sizes the filter for an expected class count with a target
// false-positive rate of 1%.
func newClassBloom(expectedClasses uint64) *classBloom {
	if expectedClasses == 0 {
		expectedClasses = 64
	}
	f, err := bloomfilter.NewOptimal(expectedClasses, 0.01)
	if err != nil {
		// Only fails for a zero/negative input, which newClassBloom already
		// guards against above.
		panic(err)
	}
	return &classBloom{filter: f}
}

func (b *classBloom) add(name string) {
	b.filter.Add(hashClassName(name))
}

// mightContain reports false only when name is definitely not present;
// true means "maybe", and the caller still must confirm with a real
// lookup.
func (b *classBloom) mightContain(name string) bool {
	return b.filter.Contains(hashClassName(name))
}

// hashClassName returns a hash.Hash64 already loaded with name's bytes, the
// form the Filter's Add/Contains expect (it derives its own internal
// k-round hashes from Sum64()).
func hashClassName(name string) hash.Hash64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h
}
